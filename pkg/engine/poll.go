package engine

import (
	"bytes"

	"github.com/samsamfire/eemclient/pkg/device"
	"github.com/samsamfire/eemclient/pkg/frame"
	"github.com/samsamfire/eemclient/pkg/queue"
)

// startPollCycle walks the device list in list order issuing one RB per
// device, then sweeps alarms with RC00. rbLoopActive is true strictly
// from the first RB to the terminating RC response.
func (e *Engine) startPollCycle(done func()) {
	devices := e.devices.All()
	e.rbLoopActive = true
	e.metrics.PollCycles.Inc()
	e.pollNext(devices, 0, done)
}

func (e *Engine) pollNext(devices []*device.Device, i int, done func()) {
	if i >= len(devices) {
		e.startAlarmSweep(0, done)
		return
	}
	d := devices[i]
	e.q.Enqueue(&queue.Request{
		Payload: frame.JoinFields([]byte("RB" + string(d.ID))),
		Callback: func(payload []byte, ok bool) {
			if ok {
				e.applyRB(d, payload)
			}
			e.pollNext(devices, i+1, done)
		},
	})
}

// applyRB parses "<devid>!<status>!<AI>!<AO>!<DI>!<DO>*" and updates d's
// BlockData via the per-class readers. A device-id mismatch drops the
// response; a payload starting with a literal "ERR" clears d's cached
// BlockData.
func (e *Engine) applyRB(d *device.Device, payload []byte) {
	if bytes.HasPrefix(payload, []byte("ERR")) {
		d.Data = device.BlockData{}
		return
	}
	fields := frame.SplitFields(payload)
	if len(fields) < 2 {
		return
	}
	if string(fields[0]) != string(d.ID) {
		return
	}
	var ai, ao []float32
	var di, do []bool
	if len(fields) > 2 {
		ai = decodeFloats(fields[2])
	}
	if len(fields) > 3 {
		ao = decodeFloats(fields[3])
	}
	if len(fields) > 4 {
		di, _ = frame.UnpackBits(string(fields[4]), d.Class.DICount)
	}
	if len(fields) > 5 {
		do, _ = frame.UnpackBits(string(fields[5]), d.Class.DOCount)
	}
	d.Data = device.BlockData{AI: ai, AO: ao, DI: di, DO: do}
	if instance := e.instanceOf(d); instance != nil {
		e.sink.SetData(instance, d.Data)
	}
	applyReader(e, d)
}

// decodeFloats splits a concatenated run of 8-hex-digit float words and
// decodes each with frame.DecodeFloat, skipping any that fail to parse.
func decodeFloats(field []byte) []float32 {
	const wordLen = 8
	var out []float32
	for len(field) >= wordLen {
		v, err := frame.DecodeFloat(string(field[:wordLen]))
		if err == nil {
			out = append(out, v)
		}
		field = field[wordLen:]
	}
	return out
}
