package cancellation

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"weak"
)

// tree is shared by every source linked under the same root. Its mutex makes
// cancellation of a whole subtree atomic with respect to child registration.
type tree struct {
	mu sync.Mutex
}

// Source signals cancellation to the tokens derived from it.
//
// Sources form a tree: a source created with NewLinkedSource is cancelled when
// its parent is. The parent keeps only weak references to its children, so a
// child that is dropped without Close is still garbage collected; children keep
// a strong reference to their parent for the IsCancellationRequested check.
//
// All methods are safe for concurrent use.
type Source struct {
	tree   *tree
	parent *Source
	id     uint64

	cancelled atomic.Bool
	done      chan struct{}

	// guarded by tree.mu
	children map[uint64]weak.Pointer[Source]
	nextID   uint64
}

// NewSource creates a root source.
//
// Returns:
//   - *Source: Source whose token is cancelled only by Cancel
func NewSource() *Source {
	return &Source{
		tree:     &tree{},
		done:     make(chan struct{}),
		children: make(map[uint64]weak.Pointer[Source]),
	}
}

// NewLinkedSource creates a source that is cancelled when parent is cancelled.
//
// Parameters:
//   - parent: Token of the parent source
//
// Returns:
//   - *Source: Child source
//   - error: ErrIllegalState if the parent is already cancelled
//
// Example:
//
//	child, err := cancellation.NewLinkedSource(root.Token())
//	if err != nil {
//	    return err // shutting down
//	}
//	defer child.Close()
func NewLinkedSource(parent Token) (*Source, error) {
	p := parent.src
	if p == nil {
		return NewSource(), nil
	}

	p.tree.mu.Lock()
	defer p.tree.mu.Unlock()

	if p.IsCancellationRequested() {
		return nil, ErrIllegalState
	}

	p.nextID++
	child := &Source{
		tree:     p.tree,
		parent:   p,
		id:       p.nextID,
		done:     make(chan struct{}),
		children: make(map[uint64]weak.Pointer[Source]),
	}
	p.children[child.id] = weak.Make(child)

	runtime.AddCleanup(child, func(id uint64) {
		p.tree.mu.Lock()
		delete(p.children, id)
		p.tree.mu.Unlock()
	}, child.id)

	return child, nil
}

// Token returns the token observing this source.
func (s *Source) Token() Token {
	return Token{src: s}
}

// Cancel cancels the source and every descendant.
//
// Cancel is idempotent: repeated calls, or cancelling a child after its parent,
// have no further effect.
func (s *Source) Cancel() {
	s.tree.mu.Lock()
	defer s.tree.mu.Unlock()

	s.cancelLocked()
}

func (s *Source) cancelLocked() {
	if s.cancelled.Swap(true) {
		return
	}
	close(s.done)

	for id, wp := range s.children {
		if child := wp.Value(); child != nil {
			child.cancelLocked()
		}
		delete(s.children, id)
	}
}

// Close detaches the source from its parent without cancelling it.
//
// Call Close when the work guarded by a linked source finishes, so long-lived
// parents do not accumulate child entries.
func (s *Source) Close() {
	if s.parent == nil {
		return
	}

	s.tree.mu.Lock()
	delete(s.parent.children, s.id)
	s.tree.mu.Unlock()
}

// IsCancellationRequested reports whether this source or any ancestor was cancelled.
func (s *Source) IsCancellationRequested() bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.cancelled.Load() {
			return true
		}
	}

	return false
}

// childCount returns the number of registered live children.
func (s *Source) childCount() int {
	s.tree.mu.Lock()
	defer s.tree.mu.Unlock()

	return len(s.children)
}

// Token observes a Source.
//
// Token implements context.Context so it can be passed directly to any
// blocking call. The zero Token is never cancelled.
type Token struct {
	src *Source
}

// None is a token that is never cancelled.
var None = Token{}

var _ context.Context = Token{}

// IsCancellationRequested reports whether cancellation was requested.
func (t Token) IsCancellationRequested() bool {
	return t.src != nil && t.src.IsCancellationRequested()
}

// Deadline implements context.Context; tokens carry no deadline.
func (t Token) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

// Done implements context.Context.
func (t Token) Done() <-chan struct{} {
	if t.src == nil {
		return nil
	}

	return t.src.done
}

// Err implements context.Context: ErrCancelled once cancellation was requested.
func (t Token) Err() error {
	if t.IsCancellationRequested() {
		return ErrCancelled
	}

	return nil
}

// Value implements context.Context; tokens carry no values.
func (t Token) Value(any) any {
	return nil
}
