package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/mezonai/syncgate/db"
	"github.com/mezonai/syncgate/jsonx"
)

// LogEntry is one record of the synchronization log.
type LogEntry struct {
	Seq  uint64           `json:"n"`
	Kind string           `json:"kind"`
	Hash string           `json:"hash,omitempty"`
	Data jsonx.RawMessage `json:"data,omitempty"`
}

// LogStore is the append-only, globally ordered synchronization log.
// Sequence numbers start at 0 and grow by one.
type LogStore interface {
	Append(kind, hash string, data []byte) (*LogEntry, error)
	// Range returns entries from..to inclusive, stopping at the end of the log.
	Range(from, to uint64) ([]*LogEntry, error)
	// Len is the number of entries, which is also the next sequence number.
	Len() uint64
}

type GenericLogStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
	next       uint64
}

func NewGenericLogStore(dbProvider db.DatabaseProvider) (*GenericLogStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	s := &GenericLogStore{dbProvider: dbProvider}
	if err := s.loadMeta(); err != nil {
		return nil, fmt.Errorf("failed to load log metadata: %w", err)
	}
	return s, nil
}

func (s *GenericLogStore) loadMeta() error {
	value, err := s.dbProvider.Get([]byte(LogMetaKey))
	if err != nil {
		return err
	}
	if value == nil {
		s.next = 0
		return nil
	}
	if len(value) != 8 {
		return fmt.Errorf("invalid log meta length: %d", len(value))
	}
	s.next = binary.BigEndian.Uint64(value)
	return nil
}

func logKey(seq uint64) []byte {
	key := make([]byte, len(PrefixLog)+8)
	copy(key, PrefixLog)
	binary.BigEndian.PutUint64(key[len(PrefixLog):], seq)
	return key
}

func (s *GenericLogStore) Append(kind, hash string, data []byte) (*LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &LogEntry{Seq: s.next, Kind: kind, Hash: hash, Data: data}
	value, err := jsonx.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log entry: %w", err)
	}
	meta := make([]byte, 8)
	binary.BigEndian.PutUint64(meta, s.next+1)

	batch := s.dbProvider.Batch()
	defer batch.Close()
	batch.Put(logKey(entry.Seq), value)
	batch.Put([]byte(LogMetaKey), meta)
	if err := batch.Write(); err != nil {
		return nil, fmt.Errorf("failed to append log entry %d: %w", entry.Seq, err)
	}

	s.next++
	return entry, nil
}

func (s *GenericLogStore) Len() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

func (s *GenericLogStore) Range(from, to uint64) ([]*LogEntry, error) {
	size := s.Len()
	entries := make([]*LogEntry, 0)
	if size == 0 || from >= size || to < from {
		return entries, nil
	}
	if to >= size {
		to = size - 1
	}

	keys := make([][]byte, 0, to-from+1)
	for seq := from; seq <= to; seq++ {
		keys = append(keys, logKey(seq))
	}
	values, err := s.dbProvider.GetBatch(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to read log %d..%d: %w", from, to, err)
	}

	for _, key := range keys {
		value, ok := values[string(key)]
		if !ok {
			break
		}
		var entry LogEntry
		if err := jsonx.Unmarshal(value, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry %x: %w", key, err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
