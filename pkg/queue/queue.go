// Package queue implements the single-flight request queue and connection
// state machine that owns the wire: it serializes Selects, enforces the
// ACK/NAK/EOT handshake, manages per-request timeouts and retries, and
// escalates prolonged silence into a "lost" condition for the engine to
// act on.
package queue

import (
	"time"

	"github.com/samsamfire/eemclient/pkg/frame"
)

// Tunables governing retry/timeout/escalation behavior.
const (
	RequestTimeout  = 10 * time.Second
	LostTimeout     = 60 * time.Second
	MaxSendCount    = 2
	SkipStreakLimit = 4
	ShortBackoff    = 5 * time.Second
	LongBackoff     = 15 * time.Second
)

// State is the connection's coarse lifecycle state.
type State int

const (
	StateInactive State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "INACTIVE"
	}
}

// Callback receives a request's answer payload. ok is false when the
// frame's checksum mismatched (the payload is still passed) or the request
// was abandoned (timeout/lost), in which case payload is nil.
type Callback func(payload []byte, ok bool)

// Request is one queued Select, or — with a nil Payload — a checkpoint
// sentinel whose Callback fires once every earlier request has completed,
// without ever touching the wire.
type Request struct {
	Payload   []byte
	Callback  Callback
	sendCount int
}

// IsCheckpoint reports whether r is a wire-silent sequencing marker.
func (r *Request) IsCheckpoint() bool { return r.Payload == nil }

// LostReason distinguishes why the connection was declared lost, since
// the engine raises a distinct alarm for each.
type LostReason int

const (
	LostSilence    LostReason = iota // cumulative silence exceeded LostTimeout
	LostSkipStreak                   // SkipStreakLimit consecutive NAK/EOT with no progress
)

// Queue is the single-flight request serializer. It holds no goroutine of
// its own: the owning engine's event loop calls Enqueue, HandleEvent and
// Tick, and Queue calls back out through its Send/ConnectNeeded/Lost
// hooks, avoiding a dedicated goroutine per connection.
type Queue struct {
	ccID  [2]byte
	state State
	items []*Request

	deadline    time.Time
	lastSuccess time.Time
	skipStreak  int

	// Send transmits raw bytes to the peer (a Select, Poll or ACK).
	Send func(b []byte) error
	// ConnectNeeded is invoked when a request is enqueued while INACTIVE.
	ConnectNeeded func()
	// Lost is invoked when the connection is declared lost, with the
	// backoff the caller should arm before reconnecting.
	Lost func(reason LostReason, backoff time.Duration)
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// New returns a Queue addressed to ccID (the 2-ASCII-hex-digit station
// subaddress).
func New(ccID [2]byte) *Queue {
	return &Queue{ccID: ccID, state: StateInactive, Now: time.Now}
}

// State returns the current connection state.
func (q *Queue) State() State { return q.state }

// Len reports the number of requests still pending (including the
// in-flight head).
func (q *Queue) Len() int { return len(q.items) }

// SetConnecting transitions INACTIVE → CONNECTING (the caller has started
// an asynchronous TCP connect).
func (q *Queue) SetConnecting() { q.state = StateConnecting }

// SetConnected transitions into CONNECTED and starts servicing the queue.
func (q *Queue) SetConnected() {
	q.state = StateConnected
	q.lastSuccess = q.Now()
	q.skipStreak = 0
	q.trySend()
}

// SetInactive resets to INACTIVE, e.g. after a connect failure.
func (q *Queue) SetInactive() { q.state = StateInactive }

// Enqueue appends req to the tail. If the queue was empty, servicing
// starts immediately per the current state: CONNECTED sends now, INACTIVE
// triggers a connect, CONNECTING just waits.
func (q *Queue) Enqueue(req *Request) {
	wasEmpty := len(q.items) == 0
	q.items = append(q.items, req)
	if !wasEmpty {
		return
	}
	switch q.state {
	case StateConnected:
		q.trySend()
	case StateInactive:
		if q.ConnectNeeded != nil {
			q.ConnectNeeded()
		}
	case StateConnecting:
		// nothing to do; SetConnected will drain the queue
	}
}

// head returns the in-flight request, skipping and firing any checkpoint
// sentinels encountered at the front of the queue first.
func (q *Queue) head() *Request {
	for len(q.items) > 0 && q.items[0].IsCheckpoint() {
		r := q.items[0]
		q.items = q.items[1:]
		if r.Callback != nil {
			r.Callback(nil, true)
		}
	}
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// trySend sends the current head as a Select frame if one exists and
// nothing is already in flight with send_count > 0 waiting on a response.
func (q *Queue) trySend() {
	if q.state != StateConnected {
		return
	}
	r := q.head()
	if r == nil || r.sendCount > 0 {
		return
	}
	q.sendSelect(r)
}

func (q *Queue) sendSelect(r *Request) {
	if q.Send != nil {
		_ = q.Send(frame.EncodeSelect(q.ccID, r.Payload))
	}
	r.sendCount++
	q.deadline = q.Now().Add(RequestTimeout)
}

func (q *Queue) dequeueHead() *Request {
	if len(q.items) == 0 {
		return nil
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r
}

// HandleEvent processes one Scanner event against the head request.
func (q *Queue) HandleEvent(ev frame.Event) {
	switch ev.Kind {
	case frame.EventFrame:
		q.handleFrame(ev.Frame)
	case frame.EventACK:
		q.skipStreak = 0
		if len(q.items) > 0 && q.Send != nil {
			_ = q.Send(frame.EncodePoll(q.ccID))
		}
	case frame.EventNAK:
		// logged by the caller; do not resend, only count toward the
		// skip-streak escalation.
		q.bumpSkipStreak()
	case frame.EventEOT:
		q.bumpSkipStreak()
		q.trySend()
	}
}

func (q *Queue) handleFrame(raw []byte) {
	resp, err := frame.ParseResponse(raw)
	if err != nil {
		return
	}
	if q.Send != nil {
		_ = q.Send(frame.EncodeAck())
	}
	r := q.dequeueHead()
	q.lastSuccess = q.Now()
	q.skipStreak = 0
	if r != nil && r.Callback != nil {
		r.Callback(resp.Payload, resp.OK)
	}
	q.trySend()
}

func (q *Queue) bumpSkipStreak() {
	q.skipStreak++
	if q.skipStreak >= SkipStreakLimit {
		q.skipStreak = 0
		if q.Lost != nil {
			q.Lost(LostSkipStreak, LongBackoff)
		}
	}
}

// Tick drives timeout handling; call it periodically (or whenever a timer
// fires) while CONNECTED and a request is in flight.
func (q *Queue) Tick() {
	if q.state != StateConnected || len(q.items) == 0 || q.deadline.IsZero() {
		return
	}
	now := q.Now()
	if now.Before(q.deadline) {
		return
	}
	r := q.head()
	if r == nil {
		return
	}
	if r.sendCount < MaxSendCount {
		q.sendSelect(r)
		return
	}
	// exhausted retries for this request
	q.dequeueHead()
	if r.Callback != nil {
		r.Callback(nil, false)
	}
	if now.Sub(q.lastSuccess) > LostTimeout {
		if q.Lost != nil {
			q.Lost(LostSilence, ShortBackoff)
		}
		return
	}
	q.trySend()
}

// Reset clears all pending requests (firing their callbacks with nil/false)
// and returns to INACTIVE — called by the engine after Lost fires.
func (q *Queue) Reset() {
	pending := q.items
	q.items = nil
	q.deadline = time.Time{}
	q.state = StateInactive
	for _, r := range pending {
		if r.Callback != nil {
			r.Callback(nil, false)
		}
	}
}
