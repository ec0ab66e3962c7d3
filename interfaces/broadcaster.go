package interfaces

import "context"

// Broadcaster fans an envelope of the given type out to peers. Delivery is
// best effort with no acknowledgement; peers dedup on receipt.
type Broadcaster interface {
	Broadcast(ctx context.Context, msgType string, payload any) error
}
