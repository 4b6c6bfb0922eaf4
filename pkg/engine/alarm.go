package engine

import (
	"strconv"
	"strings"

	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/frame"
	"github.com/samsamfire/eemclient/pkg/queue"
)

// alarmChunk is the number of blocks fetched per RC request.
const alarmChunk = 10

// startAlarmSweep issues RC<startIdx> and keeps following the chunked
// response until a response's terminating block index is no more than
// alarmChunk-1 past its leading block index, then finalizes the cycle.
func (e *Engine) startAlarmSweep(startIdx int, done func()) {
	seen := map[block.Kind]bool{}
	e.sweepChunk(startIdx, seen, done)
}

func (e *Engine) sweepChunk(startIdx int, seen map[block.Kind]bool, done func()) {
	req := "RC" + padHex2(startIdx)
	e.q.Enqueue(&queue.Request{
		Payload: frame.JoinFields([]byte(req)),
		Callback: func(payload []byte, ok bool) {
			if !ok {
				e.finishSweep(seen, done)
				return
			}
			rcStart, endIdx := e.applyRC(payload, seen)
			if endIdx-rcStart > alarmChunk-1 {
				e.sweepChunk(endIdx, seen, done)
				return
			}
			e.finishSweep(seen, done)
		},
	})
}

// applyRC parses one RC response, raises/clears alarms for every matching
// record, and returns the response's leading block index and the
// terminating block index it saw. The leading
// index field is variable-width (every device with 16+ discovered blocks
// echoes two or more hex digits), so it is read up to the first "#"
// rather than as a single fixed-width character.
func (e *Engine) applyRC(payload []byte, seen map[block.Kind]bool) (int, int) {
	if len(payload) == 0 {
		return 0, 0
	}
	parts := strings.Split(string(payload), "#")
	startIdx, _ := strconv.ParseInt(parts[0], 16, 32)
	endIdx := int(startIdx)

	for _, rec := range parts[1:] {
		if rec == "" {
			continue
		}
		idx, ok := e.applyAlarmRecord(rec, seen)
		if ok && idx > endIdx {
			endIdx = idx
		}
	}
	return int(startIdx), endIdx
}

// applyAlarmRecord decodes one "<block_index>!<dev_id>!I<hex_index>!<cat_hex>"
// record and raises the mapped alarm, returning the record's block index.
func (e *Engine) applyAlarmRecord(rec string, seen map[block.Kind]bool) (int, bool) {
	fields := strings.Split(rec, "!")
	if len(fields) < 4 {
		return 0, false
	}
	blockIdx, err := strconv.ParseInt(fields[0], 16, 32)
	if err != nil {
		return 0, false
	}
	devID := block.Id(fields[1])
	raw := strings.TrimPrefix(fields[2], "I")
	hexIndex, err := strconv.ParseInt(raw, 16, 32)
	if err != nil {
		return int(blockIdx), false
	}
	cat, err := strconv.ParseInt(fields[3], 16, 32)
	if err != nil {
		return int(blockIdx), false
	}

	d := e.devices.Find(devID)
	if d == nil {
		return int(blockIdx), true
	}
	alarmIndex := int(hexIndex) / 2
	entry, ok := block.Remap(d.Class, alarmIndex, e.flavor == FlavorNCU)
	if !ok || entry.Kind == block.KindIgnore {
		return int(blockIdx), true
	}
	severity := block.SeverityFromCategory(int(cat))
	instance := e.instanceOf(d)
	if instance != nil {
		e.sink.AlarmRaise(instance, entry.Kind, entry.Bit, severity)
		e.metrics.AlarmsRaised.Inc()
	}
	seen[entry.Kind] = true
	return int(blockIdx), true
}

// finishSweep aggregates per-rectifier DI bits into group alarms, clears
// any alarm not reaffirmed by this sweep, and hands control back to the
// caller.
func (e *Engine) finishSweep(seen map[block.Kind]bool, done func()) {
	e.aggregateRectifierGroupAlarms(seen)
	for _, d := range e.devices.All() {
		instance := e.instanceOf(d)
		if instance == nil {
			continue
		}
		e.sink.AlarmClearInactive(instance, seen)
	}
	e.rbLoopActive = false
	if done != nil {
		done()
	}
}

// aggregateRectifierGroupAlarms recomputes each rectifier group's
// fail/lost counts from its member rectifiers' Active flag, raising
// RECT_GROUP_LOST when the installed count exceeds the number of members
// currently reporting active.
func (e *Engine) aggregateRectifierGroupAlarms(seen map[block.Kind]bool) {
	for _, group := range e.devices.All() {
		if group.Class.Class != block.ClassRectifierGroup {
			continue
		}
		failCount := 0
		aliveCount := 0
		for _, unit := range e.devices.All() {
			if unit.Class.Class != block.ClassRectifier {
				continue
			}
			if unit.Active {
				aliveCount++
			} else {
				failCount++
			}
		}
		installed := int(group.Readings["installed_count"])
		if installed > aliveCount {
			instance := e.instanceOf(group)
			if instance != nil {
				e.sink.AlarmRaise(instance, block.KindRectGroupLost, 1, block.SeverityMajor)
			}
			seen[block.KindRectGroupLost] = true
		}
		if failCount > 0 {
			instance := e.instanceOf(group)
			if instance != nil {
				e.sink.AlarmRaise(instance, block.KindRectGroupFail, 0, block.SeverityMajor)
			}
			seen[block.KindRectGroupFail] = true
		}
	}
}

func padHex2(v int) string {
	s := strconv.FormatInt(int64(v), 16)
	if len(s) < 2 {
		s = "0" + s
	}
	return strings.ToUpper(s)
}
