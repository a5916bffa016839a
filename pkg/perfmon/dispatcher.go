package perfmon

import (
	"sync"
)

// Dispatcher is an in-process ObserverSource. Producers such as the ingest
// endpoint or an entry stream push batches with Dispatch.
type Dispatcher struct {
	mu        sync.RWMutex
	supported map[EntryType]bool
	subs      map[EntryType]map[uint64]func([]Entry)
	next      uint64
}

var _ ObserverSource = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher accepting the given entry types, or every
// known type when none are given.
func NewDispatcher(supported ...EntryType) *Dispatcher {
	if len(supported) == 0 {
		supported = EntryTypes
	}
	d := &Dispatcher{
		supported: make(map[EntryType]bool, len(supported)),
		subs:      make(map[EntryType]map[uint64]func([]Entry)),
	}
	for _, t := range supported {
		d.supported[t] = true
	}
	return d
}

func (d *Dispatcher) Observe(entryType EntryType, callback func([]Entry)) (Observer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.supported[entryType] {
		return nil, ErrUnsupportedEntryType
	}
	if d.subs[entryType] == nil {
		d.subs[entryType] = make(map[uint64]func([]Entry))
	}
	d.next++
	id := d.next
	d.subs[entryType][id] = callback
	return &subscription{dispatcher: d, entryType: entryType, id: id}, nil
}

// Supports reports whether entryType can be observed.
func (d *Dispatcher) Supports(entryType EntryType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.supported[entryType]
}

// Dispatch delivers entries to every observer of entryType and returns how
// many observers received them.
func (d *Dispatcher) Dispatch(entryType EntryType, entries []Entry) int {
	d.mu.RLock()
	callbacks := make([]func([]Entry), 0, len(d.subs[entryType]))
	for _, cb := range d.subs[entryType] {
		callbacks = append(callbacks, cb)
	}
	d.mu.RUnlock()

	for _, cb := range callbacks {
		cb(entries)
	}
	return len(callbacks)
}

type subscription struct {
	dispatcher *Dispatcher
	entryType  EntryType
	id         uint64
	once       sync.Once
}

func (s *subscription) Disconnect() {
	s.once.Do(func() {
		s.dispatcher.mu.Lock()
		defer s.dispatcher.mu.Unlock()
		delete(s.dispatcher.subs[s.entryType], s.id)
	})
}
