package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mezonai/syncgate/logx"
)

const subscriberBuffer = 50

type SubscriberID string

type Subscriber struct {
	ID      SubscriberID
	Channel chan NodeEvent
}

// EventBus fans events out to subscribers without blocking the publisher.
// A subscriber whose buffer is full misses the event.
type EventBus struct {
	subscribers map[SubscriberID]*Subscriber
	mu          sync.RWMutex
	log         *logx.Logger
}

func NewEventBus(log *logx.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[SubscriberID]*Subscriber),
		log:         log,
	}
}

func (eb *EventBus) generateUUIDID() SubscriberID {
	id := uuid.Must(uuid.NewV7())
	return SubscriberID(id.String())
}

func (eb *EventBus) Subscribe() (SubscriberID, <-chan NodeEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.generateUUIDID()
	ch := make(chan NodeEvent, subscriberBuffer)
	eb.subscribers[id] = &Subscriber{ID: id, Channel: ch}

	eb.log.Info("EVENTBUS", fmt.Sprintf("subscribed | subscriber_id=%s | total_subscribers=%d", id, len(eb.subscribers)))
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (eb *EventBus) Unsubscribe(id SubscriberID) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscriber, exists := eb.subscribers[id]
	if !exists {
		eb.log.Warn("EVENTBUS", fmt.Sprintf("unsubscribe of unknown subscriber | subscriber_id=%s", id))
		return false
	}
	delete(eb.subscribers, id)
	close(subscriber.Channel)

	eb.log.Info("EVENTBUS", fmt.Sprintf("unsubscribed | subscriber_id=%s | remaining_subscribers=%d", id, len(eb.subscribers)))
	return true
}

func (eb *EventBus) Publish(event NodeEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, subscriber := range eb.subscribers {
		select {
		case subscriber.Channel <- event:
		default:
			eb.log.Warn("EVENTBUS", fmt.Sprintf("subscriber channel full | subscriber_id=%s | event_type=%s | key=%s", id, event.Type(), event.Key()))
		}
	}
	eb.log.Debug("EVENTBUS", fmt.Sprintf("published | event_type=%s | key=%s | subscribers=%d", event.Type(), event.Key(), len(eb.subscribers)))
}

func (eb *EventBus) GetTotalSubscriptions() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

func (eb *EventBus) HasSubscriber(id SubscriberID) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	_, exists := eb.subscribers[id]
	return exists
}
