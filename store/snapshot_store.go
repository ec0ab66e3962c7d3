package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/mezonai/syncgate/db"
	"github.com/mezonai/syncgate/jsonx"
)

var snapshotHashRegexp = regexp.MustCompile(`^[0-9a-f]{64}$`)

// SnapshotMeta identifies a published snapshot body.
type SnapshotMeta struct {
	Hash      string `json:"hash"`
	SizeBytes uint64 `json:"size_bytes"`
	Height    uint64 `json:"height"`
}

type snapshotRef struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

// SnapshotStore keeps snapshot metadata in the database and bodies as
// files named after their hash. Bodies never change once published.
type SnapshotStore interface {
	Publish(meta *SnapshotMeta, body []byte) error
	// LatestAtOrBelow returns nil, nil when no snapshot exists at or below height.
	LatestAtOrBelow(height uint64) (*SnapshotMeta, error)
	Meta(hash string) (*SnapshotMeta, error)
	// ReadChunk returns bytes [chunkNo*chunkSize, (chunkNo+1)*chunkSize) clipped to
	// the body, or nil when the snapshot is unknown or the chunk starts past the end.
	ReadChunk(hash string, chunkNo, chunkSize uint64) ([]byte, error)
}

type GenericSnapshotStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
	dir        string
	index      []snapshotRef
}

func NewGenericSnapshotStore(dbProvider db.DatabaseProvider, dir string) (*GenericSnapshotStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	s := &GenericSnapshotStore{dbProvider: dbProvider, dir: dir}
	value, err := dbProvider.Get([]byte(SnapshotIndexKey))
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot index: %w", err)
	}
	if value != nil {
		if err := jsonx.Unmarshal(value, &s.index); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot index: %w", err)
		}
	}
	return s, nil
}

func (s *GenericSnapshotStore) bodyPath(hash string) string {
	return filepath.Join(s.dir, hash+".snap")
}

// Publish writes the body file first and registers the metadata after, so a
// registered snapshot always has its body on disk.
func (s *GenericSnapshotStore) Publish(meta *SnapshotMeta, body []byte) error {
	if meta == nil || !snapshotHashRegexp.MatchString(meta.Hash) {
		return fmt.Errorf("snapshot hash must be 64 lowercase hex chars")
	}
	if meta.SizeBytes != uint64(len(body)) {
		return fmt.Errorf("snapshot %s: size %d does not match body length %d", meta.Hash, meta.SizeBytes, len(body))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.metaLocked(meta.Hash)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("snapshot %s already published", meta.Hash)
	}

	tmp := s.bodyPath(meta.Hash) + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot body: %w", err)
	}
	if err := os.Rename(tmp, s.bodyPath(meta.Hash)); err != nil {
		return fmt.Errorf("failed to move snapshot body: %w", err)
	}

	index := append([]snapshotRef(nil), s.index...)
	i := sort.Search(len(index), func(i int) bool { return index[i].Height > meta.Height })
	index = append(index, snapshotRef{})
	copy(index[i+1:], index[i:])
	index[i] = snapshotRef{Height: meta.Height, Hash: meta.Hash}

	metaValue, err := jsonx.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot meta: %w", err)
	}
	indexValue, err := jsonx.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot index: %w", err)
	}

	batch := s.dbProvider.Batch()
	defer batch.Close()
	batch.Put([]byte(PrefixSnapshotMeta+meta.Hash), metaValue)
	batch.Put([]byte(SnapshotIndexKey), indexValue)
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to register snapshot %s: %w", meta.Hash, err)
	}
	s.index = index
	return nil
}

func (s *GenericSnapshotStore) LatestAtOrBelow(height uint64) (*SnapshotMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// index is sorted by height; later publishes at the same height sort last
	i := sort.Search(len(s.index), func(i int) bool { return s.index[i].Height > height })
	if i == 0 {
		return nil, nil
	}
	return s.metaLocked(s.index[i-1].Hash)
}

func (s *GenericSnapshotStore) Meta(hash string) (*SnapshotMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metaLocked(hash)
}

func (s *GenericSnapshotStore) metaLocked(hash string) (*SnapshotMeta, error) {
	if !snapshotHashRegexp.MatchString(hash) {
		return nil, nil
	}
	value, err := s.dbProvider.Get([]byte(PrefixSnapshotMeta + hash))
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot meta %s: %w", hash, err)
	}
	if value == nil {
		return nil, nil
	}
	var meta SnapshotMeta
	if err := jsonx.Unmarshal(value, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot meta %s: %w", hash, err)
	}
	return &meta, nil
}

func (s *GenericSnapshotStore) ReadChunk(hash string, chunkNo, chunkSize uint64) ([]byte, error) {
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	meta, err := s.Meta(hash)
	if err != nil || meta == nil {
		return nil, err
	}
	if chunkNo >= (meta.SizeBytes+chunkSize-1)/chunkSize {
		return nil, nil
	}
	offset := chunkNo * chunkSize
	length := min(chunkSize, meta.SizeBytes-offset)

	f, err := os.Open(s.bodyPath(meta.Hash))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot body %s: %w", hash, err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read snapshot %s chunk %d: %w", hash, chunkNo, err)
	}
	if uint64(n) != length {
		return nil, fmt.Errorf("snapshot %s body is truncated", hash)
	}
	return buf, nil
}
