package tags

import (
	"fmt"

	"github.com/brickingsoft/uring/pkg/ring"
)

// Tag
// correlation tag, written to user data. the low 32 bits hold the slot index plus one,
// the high 32 bits hold the slot generation. zero is never issued.
type Tag uint64

func makeTag(generation uint32, index int) Tag {
	return Tag(uint64(generation)<<32 | uint64(index+1))
}

func (tag Tag) index() int {
	return int(uint32(tag)) - 1
}

func (tag Tag) Generation() uint32 {
	return uint32(tag >> 32)
}

func (tag Tag) String() string {
	return fmt.Sprintf("%d:%d", tag.Generation(), tag.index())
}

// Waker
// invoked exactly once per completion.
type Waker interface {
	Wake()
}

type WakerFunc func()

func (fn WakerFunc) Wake() {
	fn()
}

// Orphan
// holds what an abandoned operation still lends to the engine.
// Release is called once the matching completion is reaped.
type Orphan interface {
	Release(cqe ring.CompletionEntry)
}

type OrphanFunc func(cqe ring.CompletionEntry)

func (fn OrphanFunc) Release(cqe ring.CompletionEntry) {
	fn(cqe)
}
