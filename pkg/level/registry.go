package level

import (
	"errors"
	"io"
	"sync"
)

// registry tracks live iterators of a store and all of its sublevels so
// closing the store can close the ones callers forgot.
type registry struct {
	mu   sync.Mutex
	next uint64
	live map[uint64]io.Closer
}

func newRegistry() *registry {
	return &registry{live: make(map[uint64]io.Closer)}
}

// register stores c under the next id.
func (r *registry) register(c io.Closer) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.live[id] = c
	return id
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, id)
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// closeAll empties the registry before closing its entries, so a failing
// Close still leaves it clean.
func (r *registry) closeAll() (int, error) {
	r.mu.Lock()
	live := r.live
	r.live = make(map[uint64]io.Closer)
	r.mu.Unlock()

	var errs []error
	for _, c := range live {
		errs = append(errs, c.Close())
	}
	return len(live), errors.Join(errs...)
}
