package gcomm

import (
	"sync"
	"time"
)

// SocketState is one state in the socket lifecycle (spec.md §4.10):
// closed -> connecting -> connected -> (closing ->) closed, with a
// terminal failed state reachable from any non-closed state.
type SocketState int

const (
	StateClosed SocketState = iota
	StateConnecting
	StateConnected
	StateClosing
	StateFailed
)

func (s SocketState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultCloseLinger is how long a TCP-style socket lingers in
// StateClosing, draining its send queue, before finally releasing
// resources (spec.md §4.10: "short, implementation-defined, typically
// <= 1s"). It is the default only: NewSocket's closeLinger argument
// sets the linger per socket.
const DefaultCloseLinger = 1 * time.Second

var validTransitions = map[SocketState]map[SocketState]bool{
	StateClosed:     {StateConnecting: true},
	StateConnecting: {StateConnected: true, StateFailed: true, StateClosed: true},
	StateConnected:  {StateClosing: true, StateFailed: true},
	StateClosing:    {StateClosed: true, StateFailed: true},
	StateFailed:     {},
}

// Socket is a single gcomm transport endpoint: a state machine guarding
// a fair send queue and a deferred-close timer, mirroring the
// mutex-guarded PeerSession state in node/p2p_runtime.go.
type Socket struct {
	mu          sync.Mutex
	state       SocketState
	queue       *SendQueue
	closeLinger time.Duration
	closeTimer  *time.Timer
	onClosed    func()
}

// NewSocket builds a Socket in StateClosed with an empty send queue
// bounded at maxSendQBytes (0 uses MaxSendQBytes). closeLinger <= 0
// uses DefaultCloseLinger.
func NewSocket(maxSendQBytes int, closeLinger time.Duration) *Socket {
	if closeLinger <= 0 {
		closeLinger = DefaultCloseLinger
	}
	return &Socket{
		state:       StateClosed,
		queue:       NewSendQueue(maxSendQBytes),
		closeLinger: closeLinger,
	}
}

// State returns the socket's current state.
func (s *Socket) State() SocketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) transition(to SocketState) error {
	if !validTransitions[s.state][to] {
		return newErr(ErrInvalidStateTransition, s.state.String()+" -> "+to.String())
	}
	s.state = to
	return nil
}

// Connect moves the socket from closed to connecting.
func (s *Socket) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(StateConnecting)
}

// MarkConnected moves the socket from connecting to connected, e.g.
// once the underlying handshake completes.
func (s *Socket) MarkConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(StateConnected)
}

// Fail moves the socket directly to the terminal failed state from
// connecting, connected or closing, and stops any pending close timer.
// From closed or failed it returns ErrInvalidStateTransition.
func (s *Socket) Fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(StateFailed); err != nil {
		return err
	}
	s.stopCloseTimerLocked()
	return nil
}

// Send pushes dg onto segment seg's FIFO. It fails with
// ErrSocketClosed if the socket is not connected, and with
// ErrSendQueueFull if the queue bound would be exceeded (spec.md §4.9).
func (s *Socket) Send(seg uint32, dg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return newErr(ErrSocketClosed, "socket: send while not connected")
	}
	return s.queue.PushBack(seg, dg)
}

// PopFront drains one datagram from the send queue for the caller to
// write out. It works in both StateConnected and StateClosing, so a
// closing socket can finish draining its queue before its linger timer
// fires (spec.md §4.10).
func (s *Socket) PopFront() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.PopFront()
}

// Close begins a graceful shutdown: the socket moves to StateClosing,
// refuses new sends, and after closeLinger elapses (or immediately if
// the queue is already empty) transitions to StateClosed and invokes
// onClosed. This preserves a TCP-style FIN/FIN-ACK exchange for the
// outgoing message tail (spec.md §4.10).
func (s *Socket) Close(onClosed func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.state == StateFailed {
		return nil
	}
	if err := s.transition(StateClosing); err != nil {
		return err
	}
	s.onClosed = onClosed
	if s.queue.Empty() {
		return s.finishCloseLocked()
	}
	s.closeTimer = time.AfterFunc(s.closeLinger, s.onLingerExpired)
	return nil
}

func (s *Socket) onLingerExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosing {
		return
	}
	_ = s.finishCloseLocked()
}

func (s *Socket) finishCloseLocked() error {
	s.stopCloseTimerLocked()
	if err := s.transition(StateClosed); err != nil {
		return err
	}
	if s.onClosed != nil {
		cb := s.onClosed
		s.onClosed = nil
		cb()
	}
	return nil
}

func (s *Socket) stopCloseTimerLocked() {
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
}

// DrainedClose reports whether a closing socket has finished draining
// its send queue and can be finalized early, e.g. right after a
// PopFront empties it. Callers of PopFront during StateClosing should
// check this and call finalize via Close's linger path, or rely on the
// timer; this helper lets an event loop short-circuit the wait.
func (s *Socket) DrainedClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosing || !s.queue.Empty() {
		return nil
	}
	return s.finishCloseLocked()
}
