package queue

import (
	"testing"
	"time"

	"github.com/samsamfire/eemclient/pkg/frame"
	"github.com/stretchr/testify/assert"
)

func newTestQueue(now *time.Time) (*Queue, *[][]byte) {
	q := New([2]byte{'0', '1'})
	q.Now = func() time.Time { return *now }
	var sent [][]byte
	q.Send = func(b []byte) error {
		sent = append(sent, append([]byte(nil), b...))
		return nil
	}
	return q, &sent
}

func TestEnqueueTriggersConnectWhenInactive(t *testing.T) {
	now := time.Now()
	q, _ := newTestQueue(&now)
	connected := false
	q.ConnectNeeded = func() { connected = true }
	q.Enqueue(&Request{Payload: []byte("RN!")})
	assert.True(t, connected)
}

func TestSingleFlight(t *testing.T) {
	now := time.Now()
	q, sent := newTestQueue(&now)
	q.SetConnected()
	q.Enqueue(&Request{Payload: []byte("RB0200!")})
	q.Enqueue(&Request{Payload: []byte("RB0201!")})
	// only the head has been sent as a Select so far
	assert.Len(t, *sent, 1)
}

func TestCheckpointFiresWithoutWireTraffic(t *testing.T) {
	now := time.Now()
	q, sent := newTestQueue(&now)
	q.SetConnected()
	fired := false
	q.Enqueue(&Request{Payload: nil, Callback: func(p []byte, ok bool) { fired = true }})
	assert.True(t, fired)
	assert.Len(t, *sent, 0)
}

func TestRetryThenRelease(t *testing.T) {
	now := time.Now()
	q, sent := newTestQueue(&now)
	q.SetConnected()

	var result []byte
	var called bool
	q.Enqueue(&Request{Payload: []byte("RB0200!"), Callback: func(p []byte, ok bool) {
		called, result = true, p
	}})
	assert.Len(t, *sent, 1)

	now = now.Add(RequestTimeout + time.Second)
	q.Tick() // first timeout: retransmit
	assert.Len(t, *sent, 2)
	assert.False(t, called)

	now = now.Add(RequestTimeout + time.Second)
	q.Tick() // second timeout: release with empty payload
	assert.True(t, called)
	assert.Nil(t, result)
	assert.Equal(t, 0, q.Len())
}

func TestLostAfterCumulativeSilence(t *testing.T) {
	now := time.Now()
	q, _ := newTestQueue(&now)
	q.SetConnected()

	var lostReason LostReason
	lost := false
	q.Lost = func(r LostReason, backoff time.Duration) { lost = true; lostReason = r }

	q.Enqueue(&Request{Payload: []byte("RB0200!")})
	// exhaust retries repeatedly until cumulative silence exceeds 60s
	for i := 0; i < 10 && !lost; i++ {
		now = now.Add(RequestTimeout + time.Second)
		q.Tick()
		if !lost {
			q.Enqueue(&Request{Payload: []byte("RB0200!")})
		}
	}
	assert.True(t, lost)
	assert.Equal(t, LostSilence, lostReason)
}

func TestSkipStreakForcesLost(t *testing.T) {
	now := time.Now()
	q, _ := newTestQueue(&now)
	q.SetConnected()

	lost := false
	var backoff time.Duration
	q.Lost = func(r LostReason, b time.Duration) { lost = true; backoff = b }

	for i := 0; i < SkipStreakLimit; i++ {
		q.HandleEvent(frame.Event{Kind: frame.EventEOT})
	}
	assert.True(t, lost)
	assert.Equal(t, LongBackoff, backoff)
}

func TestDataFrameAcksAndDequeues(t *testing.T) {
	now := time.Now()
	q, sent := newTestQueue(&now)
	q.SetConnected()

	var gotPayload []byte
	q.Enqueue(&Request{Payload: []byte("RB0200!"), Callback: func(p []byte, ok bool) {
		gotPayload = p
	}})

	payload := []byte("78000008")
	raw := append([]byte{frame.SOH, '0', '1', '0', '2', '0', '0', frame.STX}, payload...)
	raw = append(raw, '*', frame.ETX)
	raw = append(raw, frame.Checksum(raw[1:]))

	q.HandleEvent(frame.Event{Kind: frame.EventFrame, Frame: raw})

	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, 0, q.Len())
	// an ACK must have been written back after the data frame
	found := false
	for _, b := range *sent {
		if len(b) == 1 && b[0] == frame.ACK {
			found = true
		}
	}
	assert.True(t, found)
}
