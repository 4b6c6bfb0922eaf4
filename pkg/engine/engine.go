// Package engine ties the frame codec, block registry, request queue and
// managed-object sink together into the discovery/poll/write orchestrator
// described by the protocol engine's component design.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/device"
	"github.com/samsamfire/eemclient/pkg/eemerr"
	"github.com/samsamfire/eemclient/pkg/frame"
	"github.com/samsamfire/eemclient/pkg/metrics"
	"github.com/samsamfire/eemclient/pkg/mosink"
	"github.com/samsamfire/eemclient/pkg/queue"
	"github.com/samsamfire/eemclient/pkg/snmp"
	"github.com/samsamfire/eemclient/pkg/transport"
	"github.com/sirupsen/logrus"
)

// ControllerFlavor distinguishes the two controller families the protocol
// targets. Readers and writers take it as an explicit argument rather
// than consulting a package global.
type ControllerFlavor int

const (
	FlavorACU ControllerFlavor = iota
	FlavorNCU
)

func (f ControllerFlavor) String() string {
	if f == FlavorNCU {
		return "NCU"
	}
	return "ACU"
}

// ScanPeriod is the interval between full poll cycles.
const ScanPeriod = 90 * time.Second

// ConnectTimeout bounds a single TCP connect attempt.
const ConnectTimeout = 5 * time.Second

// Config is the minimal set of per-engine tunables the engine itself
// needs; pkg/config.EngineConfig is loaded into one of these at startup.
type Config struct {
	Name      string
	Addr      string // host:port
	CCID      [2]byte
	Transport string // registered transport.Conn name, default "tcp"
	// SNMPDevice is the NCU's SNMP target, queried for inventory
	// enrichment right after discovery. Left nil, enrichment is skipped.
	SNMPDevice snmp.Device
}

// Engine owns one plant's connection, device tree and poll cycle. There
// is exactly one Engine per power plant; independent Engines share no
// state.
type Engine struct {
	cfg Config
	log *logrus.Entry

	devices    *device.List
	sink       mosink.Sink
	snmp       snmp.Enricher
	snmpDevice snmp.Device
	metrics    *metrics.Metrics
	flavor     ControllerFlavor

	conn    transport.Conn
	scanner frame.Scanner
	q       *queue.Queue

	name         string
	rootInstance mosink.Instance
	rbLoopActive bool
	discovered   bool

	rxCh      chan []byte
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	timerSeq  int

	reconnectTimer *time.Timer
}

// New constructs an Engine. sink must be non-nil; snmpHook and m may be
// nil (SNMP enrichment / metrics become no-ops).
func New(cfg Config, sink mosink.Sink, snmpHook snmp.Enricher, m *metrics.Metrics, log *logrus.Entry) *Engine {
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	e := &Engine{
		cfg:        cfg,
		log:        log.WithField("engine", cfg.Name),
		devices:    device.NewList(),
		sink:       sink,
		snmp:       snmpHook,
		snmpDevice: cfg.SNMPDevice,
		metrics:    m,
		flavor:     FlavorACU,
		rxCh:       make(chan []byte, 256),
	}
	e.q = queue.New(cfg.CCID)
	e.q.Lost = e.handleLost
	return e
}

// Flavor returns the controller flavor inferred at discovery.
func (e *Engine) Flavor() ControllerFlavor { return e.flavor }

// Devices returns the engine's device list (read-only use by callers).
func (e *Engine) Devices() *device.List { return e.devices }

// Handle implements transport.Listener, feeding raw bytes from the
// connection's read loop into the single event-loop goroutine.
func (e *Engine) Handle(data []byte) {
	select {
	case e.rxCh <- data:
	default:
		e.log.Warn("rx channel full, dropping chunk")
	}
}

// Run runs the engine's single event loop in the calling goroutine and
// returns when ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	connectCh := make(chan error, 1)
	scanTimer := time.NewTimer(0) // fire once discovery completes; reset thereafter
	scanTimer.Stop()
	reconnect := time.NewTimer(0)
	e.reconnectTimer = reconnect

	e.q.Send = func(b []byte) error {
		if e.conn == nil {
			return eemerr.ErrNotConnected
		}
		return e.conn.Write(b)
	}
	e.startConnect(connectCh)

	tickTimeout := time.NewTicker(time.Second)
	defer tickTimeout.Stop()

	for {
		select {
		case <-ctx.Done():
			if e.conn != nil {
				_ = e.conn.Close()
			}
			return
		case err := <-connectCh:
			if err != nil {
				e.log.WithError(err).Warn("connect failed")
				e.q.SetInactive()
				reconnect.Reset(queue.ShortBackoff)
				continue
			}
			e.q.SetConnected()
			e.metrics.Reconnects.Inc()
			e.startDiscovery(func() {
				e.discovered = true
				scanTimer.Reset(0)
			})
		case <-reconnect.C:
			e.startConnect(connectCh)
		case <-scanTimer.C:
			e.startPollCycle(func() {
				scanTimer.Reset(ScanPeriod)
			})
		case <-tickTimeout.C:
			e.q.Tick()
		case data := <-e.rxCh:
			for _, ev := range e.scanner.Feed(data) {
				e.q.HandleEvent(ev)
			}
		}
	}
}

// Stop cancels the event loop started by Run.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) startConnect(result chan<- error) {
	e.q.SetConnecting()
	conn, err := transport.New(e.cfg.Transport)
	if err != nil {
		result <- err
		return
	}
	conn.Subscribe(e)
	e.conn = conn
	go func() {
		result <- conn.Connect(ConnectTimeout, e.cfg.Addr)
	}()
}

// handleLost is wired as queue.Queue.Lost: it closes the connection,
// drops cached block data (keeping the device list), resets the
// discovery/poll state and raises PWR_LOST on the root instance (plus
// COMM_FAILURE when the skip streak caused the loss) before rearming the
// reconnect backoff.
func (e *Engine) handleLost(reason queue.LostReason, backoff time.Duration) {
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
	e.devices.ClearData()
	e.rbLoopActive = false
	e.discovered = false
	e.q.Reset()

	if e.rootInstance != nil {
		e.sink.AlarmRaise(e.rootInstance, block.Kind("PWR_LOST"), 0, block.SeverityCritical)
		if reason == queue.LostSkipStreak {
			e.sink.AlarmRaise(e.rootInstance, block.KindSysCommFailure, 0, block.SeverityCritical)
		}
	}
	e.metrics.PowerLost.Inc()

	if e.reconnectTimer != nil {
		e.reconnectTimer.Reset(backoff)
	}
}
