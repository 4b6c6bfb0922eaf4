package engine

import (
	"github.com/samsamfire/eemclient/pkg/block"
	"github.com/samsamfire/eemclient/pkg/device"
	"github.com/samsamfire/eemclient/pkg/frame"
	"github.com/samsamfire/eemclient/pkg/queue"
)

// startDiscovery enqueues RN (if the name is unknown), then RI, then a
// per-block RP for every id named in the RI response, finishing with a
// checkpoint sentinel that invokes done once every RP has completed.
func (e *Engine) startDiscovery(done func()) {
	if e.name == "" {
		e.enqueueName()
	}
	e.enqueueIdentify(done)
}

func (e *Engine) enqueueName() {
	e.q.Enqueue(&queue.Request{
		Payload: frame.JoinFields([]byte("RN")),
		Callback: func(payload []byte, ok bool) {
			if !ok || len(payload) == 0 {
				return
			}
			fields := frame.SplitFields(payload)
			if len(fields) > 0 {
				e.name = string(fields[0])
			}
		},
	})
}

func (e *Engine) enqueueIdentify(done func()) {
	e.q.Enqueue(&queue.Request{
		Payload: frame.JoinFields([]byte("RI")),
		Callback: func(payload []byte, ok bool) {
			if !ok {
				done()
				return
			}
			ids := parseIdentifyResponse(payload)
			for _, id := range ids {
				e.enqueueEnsureAndName(id)
			}
			e.enqueueSyntheticSystemEntry()
			e.q.Enqueue(&queue.Request{Callback: func([]byte, bool) { done() }})
		},
	})
}

// parseIdentifyResponse splits an RI response ("!"-delimited 5-char block
// ids: 4 hex digits + one suffix byte) into block.Id values.
func parseIdentifyResponse(payload []byte) []block.Id {
	var ids []block.Id
	for _, f := range frame.SplitFields(payload) {
		if len(f) < 4 {
			continue
		}
		ids = append(ids, block.Id(f[:4]))
	}
	return ids
}

func (e *Engine) enqueueEnsureAndName(id block.Id) {
	info, err := block.Lookup(id)
	if err != nil {
		// unknown block ids during discovery are dropped silently
		return
	}
	front := info.Class == block.ClassRectifierGroup
	d, created := e.devices.Ensure(id, front)
	if !created {
		return
	}
	e.q.Enqueue(&queue.Request{
		Payload: frame.JoinFields([]byte("RP" + string(id))),
		Callback: func(payload []byte, ok bool) {
			if !ok {
				return
			}
			fields := frame.SplitFields(payload)
			if len(fields) >= 2 {
				d.Name = string(fields[1])
			}
			e.registerEquipment(d)
		},
	})
}

// enqueueSyntheticSystemEntry materializes the synthetic "0000" system
// entry named after the engine's RN-reported product name.
func (e *Engine) enqueueSyntheticSystemEntry() {
	id := block.Id("0000")
	d, created := e.devices.Ensure(id, false)
	if created {
		d.Name = e.name
		e.registerEquipment(d)
	}
}

// registerEquipment creates the device's managed-object instance and, for
// the synthetic system entry, runs SNMP inventory enrichment on NCU
// controllers.
func (e *Engine) registerEquipment(d *device.Device) {
	if e.rootInstance == nil {
		e.rootInstance = e.sink.Create(nil, block.ClassSystem, block.Id("0000"))
	}
	instance := e.sink.Create(e.rootInstance, d.Class.Class, d.ID)
	_ = instance

	if d.ID == block.Id("0000") {
		e.inferFlavor()
		if e.flavor == FlavorNCU && e.snmp != nil && e.snmpDevice != nil {
			e.enrichNCU(d)
		}
	}
}

// enrichNCU runs the SNMP inventory walk against the configured NCU
// target and stamps the result onto the system device and its
// per-rectifier records, matched to the rectifiers already discovered by
// position.
func (e *Engine) enrichNCU(system *device.Device) {
	var rectifiers []*device.Device
	for _, dev := range e.devices.All() {
		if dev.Class.Class == block.ClassRectifier {
			rectifiers = append(rectifiers, dev)
		}
	}
	res, err := e.snmp.Enrich(e.snmpDevice, len(rectifiers))
	if err != nil {
		e.log.WithError(err).Warn("snmp inventory enrichment failed")
	}
	stampInventory(system, map[string]string{
		"model":         res.Model,
		"controller_fw": res.ControllerFW,
		"name":          res.Name,
		"serial_num":    res.SerialNum,
	})
	for i, inv := range res.Rectifiers {
		if i >= len(rectifiers) {
			break
		}
		stampInventory(rectifiers[i], map[string]string{
			"prod_num":   inv.ProdNum,
			"hw_version": inv.HWVersion,
			"sw_version": inv.SWVersion,
			"serial_num": inv.SerialNum,
			"ident":      inv.Ident,
		})
	}
}

// stampInventory merges non-empty fields into d's Inventory map,
// allocating it on first use.
func stampInventory(d *device.Device, fields map[string]string) {
	for k, v := range fields {
		if v == "" {
			continue
		}
		if d.Inventory == nil {
			d.Inventory = map[string]string{}
		}
		d.Inventory[k] = v
	}
}

// inferFlavor sets e.flavor from the presence of NCU-only blocks
// discovered so far, standing in for the build-time product flag a
// real controller would report directly.
func (e *Engine) inferFlavor() {
	for _, d := range e.devices.All() {
		if d.Class.Class == block.ClassDCDistribution {
			e.flavor = FlavorNCU
			return
		}
	}
}
