package gateway

import (
	"fmt"
	"sync"
)

// ResumeTracker records the session id and highest event sequence number seen
// on a connection, so a reconnect can resume instead of starting over.
// It is safe for concurrent use by a read loop and a reconnect path.
type ResumeTracker struct {
	mu        sync.Mutex
	sessionID string
	sn        uint64
}

// Observe updates the tracker from an inbound frame. A rejected HELLO is
// returned as an error and leaves the tracker unchanged.
func (t *ResumeTracker) Observe(f Frame) error {
	switch f.S {
	case SignalHello:
		var h Hello
		if err := f.DecodeData(&h); err != nil {
			return err
		}
		if h.Code != 0 {
			return fmt.Errorf("gateway handshake rejected: code %d", h.Code)
		}
		t.mu.Lock()
		if h.SessionID != t.sessionID {
			t.sn = 0
		}
		t.sessionID = h.SessionID
		t.mu.Unlock()
	case SignalResumeAck:
		var ack ResumeAck
		if err := f.DecodeData(&ack); err != nil {
			return err
		}
		t.mu.Lock()
		t.sessionID = ack.SessionID
		t.mu.Unlock()
	case SignalEvent:
		t.mu.Lock()
		if f.SN > t.sn {
			t.sn = f.SN
		}
		t.mu.Unlock()
	case SignalReconnect:
		t.Reset()
	}
	return nil
}

// State returns the resume state, or nil if no session has been established.
func (t *ResumeTracker) State() *ResumeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID == "" {
		return nil
	}
	return &ResumeState{SN: t.sn, SessionID: t.sessionID}
}

// Ping builds a heartbeat frame for the highest sequence number seen.
func (t *ResumeTracker) Ping() Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ResumeState{SN: t.sn}.Ping()
}

// Reset discards the session, e.g. after a RECONNECT frame.
func (t *ResumeTracker) Reset() {
	t.mu.Lock()
	t.sessionID = ""
	t.sn = 0
	t.mu.Unlock()
}

// Address returns base with resume state attached when a session exists, or
// without any resume state otherwise.
func (t *ResumeTracker) Address(base Address) Address {
	base = base.WithoutResume()
	// State only reports established sessions, so the id is never empty.
	base.Resume = t.State()
	return base
}
