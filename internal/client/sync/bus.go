package sync

import (
	"sync"

	"github.com/example/cardbox/internal/models"
)

// DataUpdate tells subscribers which collections changed during a merge so
// they can reload their in-memory views from the replica. A nil slice means
// the collection did not change.
type DataUpdate struct {
	Cards []models.Card
	Tags  []models.Tag
	Links []models.Link
}

type (
	StatusListener func(models.SyncStatus)
	DataListener   func(DataUpdate)
)

// bus is a plain multi-subscriber broadcast: no replay, no buffering. A
// listener registered after an event is not retroactively notified.
type bus struct {
	mu              sync.Mutex
	nextID          int
	statusListeners map[int]StatusListener
	dataListeners   map[int]DataListener
}

func newBus() *bus {
	return &bus{
		statusListeners: make(map[int]StatusListener),
		dataListeners:   make(map[int]DataListener),
	}
}

// subscribeStatus registers a listener for sync status changes and returns
// its unsubscribe function.
func (b *bus) subscribeStatus(fn StatusListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.statusListeners[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.statusListeners, id)
	}
}

// subscribeData registers a listener for post-merge data updates and
// returns its unsubscribe function.
func (b *bus) subscribeData(fn DataListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.dataListeners[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.dataListeners, id)
	}
}

func (b *bus) publishStatus(status models.SyncStatus) {
	b.mu.Lock()
	listeners := make([]StatusListener, 0, len(b.statusListeners))
	for _, fn := range b.statusListeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

func (b *bus) publishData(update DataUpdate) {
	b.mu.Lock()
	listeners := make([]DataListener, 0, len(b.dataListeners))
	for _, fn := range b.dataListeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(update)
	}
}
