package mempool

import (
	"sync"
)

// DEDUP_WINDOW_GAP is how many windows a seen hash is remembered for.
const DEDUP_WINDOW_GAP = 200

// DedupService remembers envelope hashes recently received from peers so
// that a gossiped submission is processed once even when it arrives over
// several paths. Hashes are grouped into windows; Advance opens a new window
// and forgets the one DEDUP_WINDOW_GAP windows back.
type DedupService struct {
	mu                 sync.Mutex
	window             uint64
	gap                uint64
	dedupHashSet       map[string]uint64
	windowDedupHashSet map[uint64]map[string]struct{}
}

// NewDedupService uses gap windows of memory; gap 0 means DEDUP_WINDOW_GAP.
func NewDedupService(gap uint64) *DedupService {
	if gap == 0 {
		gap = DEDUP_WINDOW_GAP
	}
	return &DedupService{
		gap:                gap,
		dedupHashSet:       make(map[string]uint64),
		windowDedupHashSet: make(map[uint64]map[string]struct{}),
	}
}

// MarkSeen records hash and reports whether this is its first sighting.
func (ds *DedupService) MarkSeen(hash string) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if _, exists := ds.dedupHashSet[hash]; exists {
		return false
	}
	ds.dedupHashSet[hash] = ds.window
	if _, exists := ds.windowDedupHashSet[ds.window]; !exists {
		ds.windowDedupHashSet[ds.window] = make(map[string]struct{})
	}
	ds.windowDedupHashSet[ds.window][hash] = struct{}{}
	return true
}

func (ds *DedupService) IsDuplicate(hash string) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	_, exists := ds.dedupHashSet[hash]
	return exists
}

// Advance opens the next window and drops hashes that fell out of range.
func (ds *DedupService) Advance() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.window++
	if ds.window < ds.gap {
		return
	}
	oldWindow := ds.window - ds.gap
	if oldHashes, exists := ds.windowDedupHashSet[oldWindow]; exists {
		for hash := range oldHashes {
			delete(ds.dedupHashSet, hash)
		}
		delete(ds.windowDedupHashSet, oldWindow)
	}
}

func (ds *DedupService) Len() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return len(ds.dedupHashSet)
}
