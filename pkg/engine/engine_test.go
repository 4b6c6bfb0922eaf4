package engine

import (
	"testing"

	"github.com/samsamfire/eemclient/internal/testsink"
	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/frame"
	"github.com/samsamfire/eemclient/pkg/metrics"
	"github.com/samsamfire/eemclient/pkg/snmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeFrame builds a complete SOH...ETX+BCC response frame the way a real
// device would answer a Select for ccID, carrying payload between the
// echoed header and the trailing field terminator.
func makeFrame(ccID [2]byte, payload []byte) []byte {
	body := []byte{ccID[0], ccID[1], '0', '0', '0', '0', frame.STX}
	body = append(body, payload...)
	body = append(body, '*', frame.ETX)
	bcc := frame.Checksum(body)
	buf := []byte{frame.SOH}
	buf = append(buf, body...)
	buf = append(buf, bcc)
	return buf
}

func newTestEngine() (*Engine, *testsink.Sink, *[][]byte) {
	sink := testsink.New()
	e := New(Config{Name: "plant1", Addr: "127.0.0.1:2000", CCID: [2]byte{'0', '1'}}, sink, nil, metrics.NewNoop(), nil)
	var sent [][]byte
	e.q.Send = func(b []byte) error {
		sent = append(sent, append([]byte(nil), b...))
		return nil
	}
	e.q.SetConnected()
	return e, sink, &sent
}

// answer feeds resp as the reply to whatever Select the queue most recently
// sent, driving the queue's ACK/dequeue/callback path the same way the real
// event loop would from a scanner event.
func answer(e *Engine, ccID [2]byte, payload []byte) {
	e.q.HandleEvent(frame.Event{Kind: frame.EventFrame, Frame: makeFrame(ccID, payload)})
}

func TestDiscoveryHappyPath(t *testing.T) {
	e, sink, _ := newTestEngine()
	done := false
	e.startDiscovery(func() { done = true })

	// RN
	answer(e, e.cfg.CCID, []byte("Plant One"))
	assert.Equal(t, "Plant One", e.name)

	// RI names one rectifier group and one individual rectifier, in an
	// order that would break the group-first invariant if ids were not
	// reordered at discovery.
	answer(e, e.cfg.CCID, []byte("0201A!0200A"))

	// RP0201 (rectifier unit) resolves first in queue order...
	answer(e, e.cfg.CCID, []byte("0201!Rectifier 1"))
	// ...then RP0200 (rectifier group)
	answer(e, e.cfg.CCID, []byte("0200!Rectifier Group"))

	require.True(t, done)
	devices := e.devices.All()
	require.Len(t, devices, 3) // group, unit, synthetic system
	assert.Equal(t, block.Id("0200"), devices[0].ID, "rectifier group must sort ahead of its units")
	assert.NotNil(t, sink.Root())
}

func TestPollCycleUpdatesDeviceAndSink(t *testing.T) {
	e, sink, _ := newTestEngine()
	done := false
	e.startDiscovery(func() { done = true })
	answer(e, e.cfg.CCID, []byte("Plant"))
	answer(e, e.cfg.CCID, []byte("0201A"))
	answer(e, e.cfg.CCID, []byte("0201!Rectifier 1"))
	require.True(t, done)

	polled := false
	e.startPollCycle(func() { polled = true })

	rect := e.devices.Find(block.Id("0201"))
	require.NotNil(t, rect)
	aiWord := frame.EncodeFloat(53.5)
	answer(e, e.cfg.CCID, []byte("0201!OK!"+aiWord+"!!0!0"))

	assert.InDelta(t, 53.5, rect.Readings["v_out"], 0.5)

	// finish the cycle: system (synthetic) RB, then the RC00 alarm sweep.
	answer(e, e.cfg.CCID, []byte("0000!OK!!!!"))
	answer(e, e.cfg.CCID, []byte("0"))
	require.True(t, polled)

	instance := e.instanceOf(rect)
	require.NotNil(t, instance)
	assert.Equal(t, rect.Data, sink.Data(instance))
}

func TestAlarmSweepRaisesExactlyOneAlarm(t *testing.T) {
	e, sink, _ := newTestEngine()
	done := false
	e.startDiscovery(func() { done = true })
	answer(e, e.cfg.CCID, []byte("Plant"))
	answer(e, e.cfg.CCID, []byte("0301A"))
	answer(e, e.cfg.CCID, []byte("0301!Battery 1"))
	require.True(t, done)

	swept := false
	e.startAlarmSweep(0, func() { swept = true })
	// one record: block 0, device 0301, alarm index 0 (hex "00" -> index 0),
	// category 0 (critical).
	answer(e, e.cfg.CCID, []byte("0#0!0301!I00!0"))
	require.True(t, swept)

	bat := e.devices.Find(block.Id("0301"))
	instance := e.instanceOf(bat)
	alarms := sink.Alarms(instance)
	assert.Len(t, alarms, 1)
}

func TestAlarmSweepParsesMultiDigitBlockIndex(t *testing.T) {
	e, sink, _ := newTestEngine()
	done := false
	e.startDiscovery(func() { done = true })
	answer(e, e.cfg.CCID, []byte("Plant"))
	answer(e, e.cfg.CCID, []byte("0301A"))
	answer(e, e.cfg.CCID, []byte("0301!Battery 1"))
	require.True(t, done)

	swept := false
	e.startAlarmSweep(0, func() { swept = true })
	// leading block index "1A" (26 decimal) must parse as a whole field,
	// not truncate to its first hex digit.
	answer(e, e.cfg.CCID, []byte("1A#1A!0301!I00!0"))
	require.True(t, swept)

	bat := e.devices.Find(block.Id("0301"))
	instance := e.instanceOf(bat)
	alarms := sink.Alarms(instance)
	assert.Len(t, alarms, 1)
}

func TestWriteAOPreservesOtherIndices(t *testing.T) {
	e, _, sent := newTestEngine()
	done := false
	e.startDiscovery(func() { done = true })
	answer(e, e.cfg.CCID, []byte("Plant"))
	answer(e, e.cfg.CCID, []byte(""))
	require.True(t, done)

	system := e.devices.Find(block.Id("0000"))
	require.NotNil(t, system)
	system.Data.AO = make([]float32, system.Class.AOCount)
	system.Data.AO[0] = 53.5
	system.Data.AO[4] = 120

	before := len(*sent)
	require.NoError(t, e.WriteAO(block.Id("0000"), 1, 54.0))
	assert.Greater(t, len(*sent), before)

	assert.Equal(t, float32(54.0), system.Data.AO[1])
	assert.Equal(t, float32(53.5), system.Data.AO[0], "unrelated indices must survive the read-modify-write")
	assert.Equal(t, float32(120), system.Data.AO[4])
}

func TestSetConfigFloatRejectsLVDOrderingViolation(t *testing.T) {
	e, _, _ := newTestEngine()
	done := false
	e.startDiscovery(func() { done = true })
	answer(e, e.cfg.CCID, []byte("Plant"))
	answer(e, e.cfg.CCID, []byte(""))
	require.True(t, done)

	system := e.devices.Find(block.Id("0000"))
	system.Data.AO = make([]float32, system.Class.AOCount)
	system.Data.AO[1] = 50.0 // lvd1
	system.Data.AO[2] = 48.0 // lvd2
	system.Data.AO[3] = 45.0 // blvd

	err := e.SetConfigFloat(ConfigLVD2Voltage, 52.0) // would exceed lvd1
	require.Error(t, err)
}

func TestSetConfigFloatRejectsLVDReconnectBelowDisconnect(t *testing.T) {
	e, _, _ := newTestEngine()
	done := false
	e.startDiscovery(func() { done = true })
	answer(e, e.cfg.CCID, []byte("Plant"))
	answer(e, e.cfg.CCID, []byte("0701A"))
	answer(e, e.cfg.CCID, []byte("0701!LVD 1"))
	require.True(t, done)

	lvd := e.devices.Find(block.Id("0701"))
	require.NotNil(t, lvd)
	lvd.Data.AO = make([]float32, lvd.Class.AOCount)
	lvd.Data.AO[lvdDisconnectVoltageIdx] = 46.0
	lvd.Data.AO[lvdReconnectVoltageIdx] = 50.0

	// lowering reconnect below the current disconnect threshold must be
	// rejected.
	err := e.SetConfigFloat(ConfigLVDReconnectVoltage1, 45.0)
	require.Error(t, err)

	// raising disconnect above the current reconnect threshold must also
	// be rejected.
	err = e.SetConfigFloat(ConfigLVDDisconnectVoltage1, 51.0)
	require.Error(t, err)

	// a value that keeps reconnect >= disconnect is accepted.
	err = e.SetConfigFloat(ConfigLVDReconnectVoltage1, 47.0)
	require.NoError(t, err)
}

type fakeEnricher struct {
	result       snmp.Result
	err          error
	gotRectCount int
}

func (f *fakeEnricher) Enrich(dev snmp.Device, rectifierCount int) (snmp.Result, error) {
	f.gotRectCount = rectifierCount
	return f.result, f.err
}

type fakeSNMPDevice struct{}

func (fakeSNMPDevice) Get(oid string) (string, error) { return "", nil }

func TestNCUDiscoveryRunsSNMPEnrichment(t *testing.T) {
	sink := testsink.New()
	enricher := &fakeEnricher{result: snmp.Result{
		Model:        "NCU-M",
		ControllerFW: "2.0",
		SerialNum:    "SYS001",
		Rectifiers:   []snmp.RectifierInventory{{ProdNum: "PN0", SerialNum: "RS0"}},
	}}
	e := New(Config{
		Name:       "plant1",
		Addr:       "127.0.0.1:2000",
		CCID:       [2]byte{'0', '1'},
		SNMPDevice: fakeSNMPDevice{},
	}, sink, enricher, metrics.NewNoop(), nil)
	e.q.Send = func(b []byte) error { return nil }
	e.q.SetConnected()

	done := false
	e.startDiscovery(func() { done = true })
	answer(e, e.cfg.CCID, []byte("Plant"))
	// a DC-distribution block ("0400") is NCU-only and drives flavor
	// inference to NCU, which in turn gates SNMP enrichment.
	answer(e, e.cfg.CCID, []byte("0201A!0400A"))
	answer(e, e.cfg.CCID, []byte("0201!Rectifier 1"))
	answer(e, e.cfg.CCID, []byte("0400!DC Dist"))
	require.True(t, done)

	assert.Equal(t, FlavorNCU, e.Flavor())
	assert.Equal(t, 1, enricher.gotRectCount)

	system := e.devices.Find(block.Id("0000"))
	require.NotNil(t, system)
	assert.Equal(t, "NCU-M", system.Inventory["model"])
	assert.Equal(t, "SYS001", system.Inventory["serial_num"])

	rect := e.devices.Find(block.Id("0201"))
	require.NotNil(t, rect)
	assert.Equal(t, "PN0", rect.Inventory["prod_num"])
}

func TestACUDiscoverySkipsSNMPEnrichment(t *testing.T) {
	sink := testsink.New()
	enricher := &fakeEnricher{result: snmp.Result{Model: "should-not-be-used"}}
	e := New(Config{
		Name:       "plant1",
		Addr:       "127.0.0.1:2000",
		CCID:       [2]byte{'0', '1'},
		SNMPDevice: fakeSNMPDevice{},
	}, sink, enricher, metrics.NewNoop(), nil)
	e.q.Send = func(b []byte) error { return nil }
	e.q.SetConnected()

	done := false
	e.startDiscovery(func() { done = true })
	answer(e, e.cfg.CCID, []byte("Plant"))
	answer(e, e.cfg.CCID, []byte("0201A"))
	answer(e, e.cfg.CCID, []byte("0201!Rectifier 1"))
	require.True(t, done)

	assert.Equal(t, FlavorACU, e.Flavor())
	system := e.devices.Find(block.Id("0000"))
	require.NotNil(t, system)
	assert.Empty(t, system.Inventory)
}
