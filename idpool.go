package layerz

import (
	"crypto/rand"
	"runtime"
	"sync"
)

// IDPool manages a pool of pre-generated IDs to amortize crypto/rand overhead.
type IDPool[T any] struct {
	factory func() T
	ids     chan T
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewIDPool creates a new ID pool with the specified capacity.
func NewIDPool[T any](capacity int, factory func() T) *IDPool[T] {
	pool := &IDPool[T]{
		ids:     make(chan T, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	// Start background refill goroutine.
	go pool.refill()
	return pool
}

// Get retrieves an ID from the pool or generates one if pool is empty.
func (p *IDPool[T]) Get() T {
	select {
	case id := <-p.ids:
		return id
	default:
		// Pool empty, generate directly (fallback for burst load).
		return p.factory()
	}
}

// refill maintains the pool by generating IDs in background.
func (p *IDPool[T]) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		case p.ids <- p.factory():
		}
	}
}

// Close shuts down the ID pool gracefully.
func (p *IDPool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}

var (
	idPoolOnce sync.Once
	taskIDPool *IDPool[TaskID]
	opIDPool   *IDPool[OpID]
)

// ensureIDPools starts the process-wide pools on first use.
func ensureIDPools() {
	idPoolOnce.Do(func() {
		// Pool size based on number of CPUs for optimal contention balance.
		poolSize := runtime.NumCPU() * 64
		taskIDPool = NewIDPool(poolSize, randomTaskID)
		opIDPool = NewIDPool(poolSize, randomOpID)
	})
}

func newTaskID() TaskID {
	ensureIDPools()
	return taskIDPool.Get()
}

func newOpID() OpID {
	ensureIDPools()
	return opIDPool.Get()
}

// randomTaskID never returns the zero sentinel.
func randomTaskID() TaskID {
	var id TaskID
	for id.IsZero() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// randomOpID never returns the zero sentinel.
func randomOpID() OpID {
	var id OpID
	for id.IsZero() {
		_, _ = rand.Read(id[:])
	}
	return id
}
