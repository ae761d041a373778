package slideshow

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionState tracks the scheduler's position in its lifecycle. The
// three terminal values are carried by Outcome, not SessionState.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateLoading
	StateRendering
	StateDone
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRendering:
		return "rendering"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome is the terminal resolution of a session.
type Outcome int32

const (
	OutcomePending Outcome = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// completionGuard is a write-once outcome cell. However many signal
// sources race (normal stop, encoder error, timeout, cancellation), only
// the first resolve wins; every later attempt is a no-op.
type completionGuard struct {
	state atomic.Int32
	done  chan struct{}
}

func newCompletionGuard() *completionGuard {
	return &completionGuard{done: make(chan struct{})}
}

// resolve attempts the pending→outcome transition and reports whether
// this call won.
func (g *completionGuard) resolve(o Outcome) bool {
	if g.state.CompareAndSwap(int32(OutcomePending), int32(o)) {
		close(g.done)
		return true
	}
	return false
}

func (g *completionGuard) outcome() Outcome {
	return Outcome(g.state.Load())
}

// doneCh is closed once the guard has resolved; the render loop watches
// it so a timeout or encoder error stops frame production promptly.
func (g *completionGuard) doneCh() <-chan struct{} {
	return g.done
}

// RenderSession is the sole mutable entity of one generation run. It owns
// the loaded drawables and the frame counter, and is destroyed (all
// references released) at the first terminal transition.
type RenderSession struct {
	ID string

	state       atomic.Int32
	frameIndex  atomic.Int64
	totalFrames int

	guard *completionGuard

	mu        sync.Mutex
	drawables []Drawable
}

func newRenderSession() *RenderSession {
	return &RenderSession{
		ID:    uuid.NewString(),
		guard: newCompletionGuard(),
	}
}

func (s *RenderSession) setState(st SessionState) {
	s.state.Store(int32(st))
}

// State returns the scheduler's current lifecycle state.
func (s *RenderSession) State() SessionState {
	return SessionState(s.state.Load())
}

// Outcome returns the terminal resolution, or OutcomePending while the
// session is live.
func (s *RenderSession) Outcome() Outcome {
	return s.guard.outcome()
}

// FrameIndex returns the monotonic frame counter. It never exceeds
// TotalFrames.
func (s *RenderSession) FrameIndex() int {
	return int(s.frameIndex.Load())
}

// TotalFrames is fixed once the load barrier resolves and never
// recomputed.
func (s *RenderSession) TotalFrames() int {
	return s.totalFrames
}

func (s *RenderSession) setDrawables(ds []Drawable) {
	s.mu.Lock()
	s.drawables = ds
	s.mu.Unlock()
}

// Drawables returns the session's loaded surfaces; nil after release.
func (s *RenderSession) Drawables() []Drawable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawables
}

// release drops every drawable reference. Called exactly once, on the
// terminal path, regardless of which signal resolved the session.
func (s *RenderSession) release() {
	s.mu.Lock()
	s.drawables = nil
	s.mu.Unlock()
	s.setState(StateDone)
}
