package variant

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// sizeofVariant approximates the C struct's fixed header cost for stat
// accounting: sz_total_mem == sum(per-kind sizes) and nr_total_values ==
// sum(per-kind counts), both tracked here against a constant
// per-variant overhead plus any extra-size payload.
const sizeofVariant = 64

// mmapExtraSizeThreshold is the payload size at or above which an
// out-of-line string/byte-sequence buffer gets its own anonymous mmap
// region (mapped on allocation, unmapped on release) instead of a plain
// Go slice.
const mmapExtraSizeThreshold = 64 * 1024

// HeapStats mirrors the per-kind counters needed for the
// stat-accounting property.
type HeapStats struct {
	CountByKind [int(KindSortedArray) + 1]int64
	SizeByKind  [int(KindSortedArray) + 1]int64
	TotalValues int64
	TotalMem    int64
}

// Heap is one normal, per-instance heap. It owns the per-heap
// boolean/null singletons, tracks statistics, and backs the out-of-line
// extra-size arena used by large strings/byte sequences.
type Heap struct {
	log *zap.Logger

	mu    sync.Mutex
	stats HeapStats

	singletonNull      *Variant
	singletonUndefined *Variant
	singletonTrue      *Variant
	singletonFalse     *Variant

	arena *extraArena

	// revWalkCacheSize bounds the identity-keyed visited-parent cache used
	// by the reverse-update triple-map frontier algorithm (address-indexed,
	// not value-indexed, so cyclic graphs terminate).
	revWalkCacheSize int
	// cloneCacheSize bounds the move-heap's clone-identity cache.
	cloneCacheSize int
}

// HeapOption configures a new Heap.
type HeapOption func(*Heap)

// WithLogger attaches a structured logger; the default is zap.NewNop()
// so constructing a Heap has no logging side effects unless requested.
func WithLogger(l *zap.Logger) HeapOption {
	return func(h *Heap) { h.log = l }
}

// WithWalkCacheSize bounds the LRU caches used by the reverse-update
// walk and the move-heap clone walk. Zero selects the default.
func WithWalkCacheSize(revWalk, clone int) HeapOption {
	return func(h *Heap) {
		if revWalk > 0 {
			h.revWalkCacheSize = revWalk
		}
		if clone > 0 {
			h.cloneCacheSize = clone
		}
	}
}

// NewHeap constructs a fresh per-instance heap and its singletons.
func NewHeap(opts ...HeapOption) *Heap {
	h := &Heap{
		log:              zap.NewNop(),
		revWalkCacheSize: 4096,
		cloneCacheSize:   4096,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.arena = newExtraArena(h.log)

	h.singletonNull = h.newSingleton(KindUnitNull)
	h.singletonUndefined = h.newSingleton(KindUnitUndefined)
	h.singletonTrue = h.newSingletonBool(true)
	h.singletonFalse = h.newSingletonBool(false)

	h.log.Debug("heap created")
	return h
}

func (h *Heap) newSingleton(k Kind) *Variant {
	v := &Variant{kind: k, heap: h, flags: FlagNoFree}
	v.refc.Store(1)
	h.accountAlloc(k, 0)
	return v
}

func (h *Heap) newSingletonBool(b bool) *Variant {
	v := &Variant{kind: KindBoolean, heap: h, flags: FlagNoFree, b: b}
	v.refc.Store(1)
	h.accountAlloc(KindBoolean, 0)
	return v
}

// Null, Undefined, True, False return the per-heap singletons (spec
// invariant 1: per-heap singletons, never freed, advisory refcount).
func (h *Heap) Null() *Variant      { return h.singletonNull }
func (h *Heap) Undefined() *Variant { return h.singletonUndefined }
func (h *Heap) True() *Variant      { return h.singletonTrue }
func (h *Heap) False() *Variant     { return h.singletonFalse }
func (h *Heap) Bool(b bool) *Variant {
	if b {
		return h.singletonTrue
	}
	return h.singletonFalse
}

func (h *Heap) accountAlloc(k Kind, extra int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats.CountByKind[k]++
	h.stats.SizeByKind[k] += int64(sizeofVariant + extra)
	h.stats.TotalValues++
	h.stats.TotalMem += int64(sizeofVariant + extra)
}

func (h *Heap) accountFree(k Kind, extra int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats.CountByKind[k]--
	h.stats.SizeByKind[k] -= int64(sizeofVariant + extra)
	h.stats.TotalValues--
	h.stats.TotalMem -= int64(sizeofVariant + extra)
}

// accountResize adjusts the extra-size bookkeeping when a variant's
// out-of-line buffer changes size without a kind change (e.g. a
// reuse-buffer constructor transferring a differently sized buffer).
func (h *Heap) accountResize(k Kind, oldExtra, newExtra int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delta := int64(newExtra - oldExtra)
	h.stats.SizeByKind[k] += delta
	h.stats.TotalMem += delta
}

// Stats returns a snapshot of the heap's statistics.
func (h *Heap) Stats() HeapStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Heap) newRevWalkCache() *lru.Cache[*Variant, *Variant] {
	c, _ := lru.New[*Variant, *Variant](max(h.revWalkCacheSize, 16))
	return c
}

func (h *Heap) newCloneCache() *lru.Cache[*Variant, *Variant] {
	c, _ := lru.New[*Variant, *Variant](max(h.cloneCacheSize, 16))
	return c
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// moveHeap is the single process-wide staging heap guarded by a mutex.
// It is a Heap like any other but is shared across all instances;
// ownership of the mutex is what makes the move protocol atomic.
var moveHeap = struct {
	mu   sync.Mutex
	heap *Heap
	once sync.Once
}{}

func globalMoveHeap() *Heap {
	moveHeap.once.Do(func() {
		moveHeap.heap = NewHeap()
	})
	return moveHeap.heap
}

// extraArena backs out-of-line payloads for string/byte-sequence
// variants above mmapExtraSizeThreshold with anonymous mmap regions
// (component C "reserve free-lists ... out-of-ordinary sized
// variants"); smaller payloads simply use Go byte slices and never
// touch the arena.
type extraArena struct {
	log     *zap.Logger
	mu      sync.Mutex
	regions [][]byte
	live    int64
}

func newExtraArena(log *zap.Logger) *extraArena {
	return &extraArena{log: log}
}

func (a *extraArena) alloc(n int) []byte {
	buf, err := mmapAlloc(n)
	if err != nil {
		a.log.Warn("mmap alloc failed, falling back to heap slice",
			zap.Int("bytes", n), zap.Error(err))
		return make([]byte, n)
	}
	a.mu.Lock()
	a.regions = append(a.regions, buf)
	atomic.AddInt64(&a.live, int64(n))
	a.mu.Unlock()
	return buf
}

func (a *extraArena) free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	atomic.AddInt64(&a.live, -int64(len(buf)))
	_ = mmapFree(buf)
}
