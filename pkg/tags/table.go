package tags

import (
	"sync"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/ring"
)

type state uint8

const (
	free state = iota
	waiting
	completed
	orphaned
)

type slot struct {
	generation uint32
	state      state
	next       int
	waker      Waker
	orphan     Orphan
	result     ring.CompletionEntry
}

// New
// creates a table of capacity slots. at most maxOrphans of them may be orphaned at once,
// zero or out of range means half of the capacity.
func New(capacity uint32, maxOrphans int) *Table {
	if capacity == 0 {
		capacity = 1
	}
	if maxOrphans < 1 || maxOrphans > int(capacity) {
		maxOrphans = int(capacity) / 2
		if maxOrphans < 1 {
			maxOrphans = 1
		}
	}
	slots := make([]slot, capacity)
	for i := range slots {
		slots[i].next = i + 1
	}
	slots[len(slots)-1].next = -1
	return &Table{
		slots:      slots,
		free:       0,
		maxOrphans: maxOrphans,
	}
}

// Table
// maps in-flight tags to the waker of their owner.
type Table struct {
	mu         sync.Mutex
	slots      []slot
	free       int
	inflight   int
	completed  int
	orphans    int
	maxOrphans int
}

// Register
// allocates a tag for waker. ErrBusy means every slot is in flight or too many
// slots are orphaned, which is backpressure.
func (table *Table) Register(waker Waker) (tag Tag, err error) {
	table.mu.Lock()
	if table.free < 0 || table.orphans >= table.maxOrphans {
		table.mu.Unlock()
		err = ErrBusy
		return
	}
	idx := table.free
	s := &table.slots[idx]
	table.free = s.next
	s.next = -1
	s.state = waiting
	s.waker = waker
	table.inflight++
	tag = makeTag(s.generation, idx)
	table.mu.Unlock()
	return
}

// Wake
// stores cqe as the result of its tag and wakes the owner. an orphaned slot is released
// and freed instead. a tag that is not waiting is a protocol violation.
func (table *Table) Wake(tag Tag, cqe ring.CompletionEntry) error {
	table.mu.Lock()
	s, ok := table.lookup(tag)
	if !ok || (s.state != waiting && s.state != orphaned) {
		table.mu.Unlock()
		return errors.From(
			ErrProtocolViolation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaTagKey, tag.String()),
		)
	}
	if s.state == orphaned {
		holder := s.orphan
		table.orphans--
		table.release(tag.index())
		table.mu.Unlock()
		if holder != nil {
			holder.Release(cqe)
		}
		return nil
	}
	waker := s.waker
	s.waker = nil
	s.result = cqe
	s.state = completed
	table.completed++
	table.mu.Unlock()
	if waker != nil {
		waker.Wake()
	}
	return nil
}

// TakeResult
// returns the result once the tag was woken and frees its slot for reuse.
func (table *Table) TakeResult(tag Tag) (cqe ring.CompletionEntry, ok bool) {
	table.mu.Lock()
	s, found := table.lookup(tag)
	if !found || s.state != completed {
		table.mu.Unlock()
		return
	}
	cqe = s.result
	ok = true
	table.completed--
	table.release(tag.index())
	table.mu.Unlock()
	return
}

// Orphan
// hands holder to the slot of tag. when the tag already completed the holder is released
// at once and the slot freed. returns false when tag is not in flight.
func (table *Table) Orphan(tag Tag, holder Orphan) bool {
	table.mu.Lock()
	s, found := table.lookup(tag)
	if !found {
		table.mu.Unlock()
		return false
	}
	switch s.state {
	case waiting:
		s.state = orphaned
		s.waker = nil
		s.orphan = holder
		table.orphans++
		table.mu.Unlock()
		return true
	case completed:
		cqe := s.result
		table.completed--
		table.release(tag.index())
		table.mu.Unlock()
		if holder != nil {
			holder.Release(cqe)
		}
		return true
	default:
		table.mu.Unlock()
		return false
	}
}

// Owner
// the waker of a waiting tag or the holder of an orphaned one.
func (table *Table) Owner(tag Tag) (waker Waker, holder Orphan, ok bool) {
	table.mu.Lock()
	s, found := table.lookup(tag)
	if found && (s.state == waiting || s.state == orphaned) {
		waker, holder, ok = s.waker, s.orphan, true
	}
	table.mu.Unlock()
	return
}

// Discard
// rolls back a registration that never reached the engine.
func (table *Table) Discard(tag Tag) bool {
	table.mu.Lock()
	s, found := table.lookup(tag)
	if !found || s.state != waiting {
		table.mu.Unlock()
		return false
	}
	table.release(tag.index())
	table.mu.Unlock()
	return true
}

func (table *Table) InFlight() int {
	table.mu.Lock()
	n := table.inflight
	table.mu.Unlock()
	return n
}

// Outstanding
// tags whose completion has not been reaped yet, orphans included.
// the engine may still access the memory of these operations.
func (table *Table) Outstanding() int {
	table.mu.Lock()
	n := table.inflight - table.completed
	table.mu.Unlock()
	return n
}

func (table *Table) Orphans() int {
	table.mu.Lock()
	n := table.orphans
	table.mu.Unlock()
	return n
}

func (table *Table) MaxOrphans() int {
	return table.maxOrphans
}

func (table *Table) Cap() int {
	return len(table.slots)
}

func (table *Table) lookup(tag Tag) (*slot, bool) {
	idx := tag.index()
	if idx < 0 || idx >= len(table.slots) {
		return nil, false
	}
	s := &table.slots[idx]
	if s.state == free || s.generation != tag.Generation() {
		return nil, false
	}
	return s, true
}

func (table *Table) release(idx int) {
	s := &table.slots[idx]
	s.generation++
	s.state = free
	s.waker = nil
	s.orphan = nil
	s.result = ring.CompletionEntry{}
	s.next = table.free
	table.free = idx
	table.inflight--
}
