package ring

import (
	"strconv"
	"sync/atomic"

	"github.com/brickingsoft/errors"
)

const (
	MaxEntries     = 32768
	DefaultEntries = 256
)

// New
// creates a submission queue of sqEntries and a completion queue of cqEntries.
// both round up to a power of two, cqEntries defaults to twice the submission queue.
func New(sqEntries uint32, cqEntries uint32) (*Pair, error) {
	if sqEntries == 0 {
		sqEntries = DefaultEntries
	}
	if sqEntries > MaxEntries {
		return nil, errors.From(
			ErrInvalidEntries,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("sq", strconv.FormatUint(uint64(sqEntries), 10)),
		)
	}
	sqEntries = roundupPow2(sqEntries)
	if cqEntries == 0 {
		cqEntries = sqEntries * 2
	}
	cqEntries = roundupPow2(cqEntries)
	if cqEntries < sqEntries || cqEntries > MaxEntries*2 {
		return nil, errors.From(
			ErrInvalidEntries,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("sq", strconv.FormatUint(uint64(sqEntries), 10)),
			errors.WithMeta("cq", strconv.FormatUint(uint64(cqEntries), 10)),
		)
	}
	return &Pair{
		sq: newQueue[SubmissionEntry](sqEntries),
		cq: newQueue[CompletionEntry](cqEntries),
	}, nil
}

// Pair
// the submission and completion rings shared by submitters, the driver and the engine.
type Pair struct {
	sq       *queue[SubmissionEntry]
	cq       *queue[CompletionEntry]
	overflow atomic.Uint64
	resolver Resolver
}

// SetResolver
// installs the memory lookup, it must happen before the engine starts.
func (pair *Pair) SetResolver(resolver Resolver) {
	pair.resolver = resolver
}

// Resolve
// the memory of the in-flight entry carrying userData.
func (pair *Pair) Resolve(userData uint64) (Memory, bool) {
	if pair.resolver == nil || userData == 0 {
		return Memory{}, false
	}
	return pair.resolver(userData)
}

// TryPushSubmission
// returns ErrFull when the submission queue has no free slot.
func (pair *Pair) TryPushSubmission(entry *SubmissionEntry) error {
	if pair.sq.push(entry) {
		return nil
	}
	return ErrFull
}

// TryPopCompletion
// returns false when no completion is available.
func (pair *Pair) TryPopCompletion() (CompletionEntry, bool) {
	return pair.cq.pop()
}

// PopCompletions
// pops at most len(dst) completions.
func (pair *Pair) PopCompletions(dst []CompletionEntry) int {
	return pair.cq.popBatch(dst)
}

// PopSubmission
// engine side of the submission queue.
func (pair *Pair) PopSubmission() (SubmissionEntry, bool) {
	return pair.sq.pop()
}

// PopSubmissions
// engine side of the submission queue, pops at most len(dst) entries.
func (pair *Pair) PopSubmissions(dst []SubmissionEntry) int {
	return pair.sq.popBatch(dst)
}

// PushCompletion
// engine side of the completion queue. returns false when the completion queue is full,
// the engine must keep the entry and retry.
func (pair *Pair) PushCompletion(entry *CompletionEntry) bool {
	if pair.cq.push(entry) {
		return true
	}
	pair.overflow.Add(1)
	return false
}

func (pair *Pair) SubmissionPending() uint32 {
	return pair.sq.len()
}

func (pair *Pair) CompletionReady() uint32 {
	return pair.cq.len()
}

func (pair *Pair) SQEntries() uint32 {
	return pair.sq.cap()
}

func (pair *Pair) CQEntries() uint32 {
	return pair.cq.cap()
}

// Overflow
// times the engine found the completion queue full.
func (pair *Pair) Overflow() uint64 {
	return pair.overflow.Load()
}
