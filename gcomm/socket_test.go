package gcomm

import (
	"testing"
	"time"
)

func TestConnectLifecycle(t *testing.T) {
	s := NewSocket(0, time.Millisecond)
	if s.State() != StateClosed {
		t.Fatalf("initial state = %v, want closed", s.State())
	}
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if s.State() != StateConnecting {
		t.Fatalf("state = %v, want connecting", s.State())
	}
	if err := s.MarkConnected(); err != nil {
		t.Fatalf("MarkConnected: %v", err)
	}
	if s.State() != StateConnected {
		t.Fatalf("state = %v, want connected", s.State())
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	s := NewSocket(0, time.Millisecond)
	if err := s.MarkConnected(); err == nil {
		t.Fatalf("expected MarkConnected from closed to fail")
	}
}

func TestSendRequiresConnected(t *testing.T) {
	s := NewSocket(0, time.Millisecond)
	if err := s.Send(0, []byte{1}); err == nil {
		t.Fatalf("expected Send to fail before connecting")
	}
	s.Connect()
	s.MarkConnected()
	if err := s.Send(0, []byte{1}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestCloseDrainsQueueBeforeClosing(t *testing.T) {
	s := NewSocket(0, 20*time.Millisecond)
	s.Connect()
	s.MarkConnected()
	s.Send(0, []byte{1})

	done := make(chan struct{})
	if err := s.Close(func() { close(done) }); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.State() != StateClosing {
		t.Fatalf("state = %v, want closing", s.State())
	}
	if _, ok := s.PopFront(); !ok {
		t.Fatalf("expected to drain the queued datagram while closing")
	}
	if err := s.DrainedClose(); err != nil {
		t.Fatalf("DrainedClose: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("onClosed callback was not invoked")
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}

func TestCloseWithEmptyQueueFinishesImmediately(t *testing.T) {
	s := NewSocket(0, time.Minute)
	s.Connect()
	s.MarkConnected()
	done := make(chan struct{})
	if err := s.Close(func() { close(done) }); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected immediate close with an empty send queue")
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}

func TestLingerTimerClosesAfterDelay(t *testing.T) {
	s := NewSocket(0, 10*time.Millisecond)
	s.Connect()
	s.MarkConnected()
	s.Send(0, []byte{1})
	done := make(chan struct{})
	s.Close(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("linger timer did not fire")
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}

func TestFailStopsLingerTimer(t *testing.T) {
	s := NewSocket(0, time.Hour)
	s.Connect()
	s.MarkConnected()
	s.Send(0, []byte{1})
	called := false
	s.Close(func() { called = true })
	if err := s.Fail(); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if s.State() != StateFailed {
		t.Fatalf("state = %v, want failed", s.State())
	}
	if called {
		t.Fatalf("onClosed should not run when the socket fails instead")
	}
}
