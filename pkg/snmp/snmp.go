// Package snmp implements the NCU post-discovery inventory enrichment
// hook: a small state machine that walks a fixed OID sequence and stamps
// the results onto the System and per-rectifier equipment records.
package snmp

import "strconv"

// State is one step of the inventory walk.
type State int

const (
	StateRectNum State = iota
	StateRectKey
	StateRectID
	StateMultiReq
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRectNum:
		return "RECTNUM"
	case StateRectKey:
		return "RECTKEY"
	case StateRectID:
		return "RECTID"
	case StateMultiReq:
		return "MULTIRQ"
	default:
		return "DONE"
	}
}

// Result is the inventory data stamped onto equipment records after a
// successful walk.
type Result struct {
	Model           string
	ControllerFW    string
	Name            string
	SerialNum       string
	RectifierCount  int
	Rectifiers      []RectifierInventory
}

// RectifierInventory is the per-rectifier inventory stamped after the
// MULTIRQ step.
type RectifierInventory struct {
	Index     int
	ProdNum   string
	HWVersion string
	SWVersion string
	SerialNum string
	Ident     string
}

// Device is the minimal SNMP target surface the walk needs: one blocking
// OID fetch per call, returning a status error that sends the walk
// straight to DONE regardless of which step it failed in.
type Device interface {
	Get(oid string) (string, error)
}

// OIDs used by the walk, named for the step that issues them.
const (
	OIDIdentModel        = "identModel"
	OIDIdentCtrlFWVersion = "identCtrlFWVersion"
	OIDIdentName          = "identName"
	OIDIdentSerialNum     = "identSerialNum"
	OIDRectProdNum        = "rectProdNum"
	OIDRectHWVersion      = "rectHWVersion"
	OIDRectSWVersion      = "rectSWVersion"
	OIDRectSerialNum      = "rectSerialNum"
	OIDRectIdent          = "rectIdent"
)

// Enricher runs the inventory walk against dev for rectifierCount
// installed rectifiers, returning whatever it collected before DONE. Any
// Get error aborts the remainder of the walk and returns the partial
// Result collected so far alongside the error.
type Enricher interface {
	Enrich(dev Device, rectifierCount int) (Result, error)
}

type walker struct{}

// New returns the default Enricher implementation.
func New() Enricher { return walker{} }

func (walker) Enrich(dev Device, rectifierCount int) (Result, error) {
	var res Result
	state := StateRectNum

	for state != StateDone {
		var err error
		switch state {
		case StateRectNum:
			res.Model, err = dev.Get(OIDIdentModel)
			state = StateRectKey
		case StateRectKey:
			res.ControllerFW, err = dev.Get(OIDIdentCtrlFWVersion)
			state = StateRectID
		case StateRectID:
			res.Name, err = dev.Get(OIDIdentName)
			if err == nil {
				res.SerialNum, err = dev.Get(OIDIdentSerialNum)
			}
			state = StateMultiReq
		case StateMultiReq:
			res.RectifierCount = rectifierCount
			res.Rectifiers = make([]RectifierInventory, 0, rectifierCount)
			for i := 0; i < rectifierCount && err == nil; i++ {
				var inv RectifierInventory
				inv.Index = i
				inv.ProdNum, err = dev.Get(indexed(OIDRectProdNum, i))
				if err == nil {
					inv.HWVersion, err = dev.Get(indexed(OIDRectHWVersion, i))
				}
				if err == nil {
					inv.SWVersion, err = dev.Get(indexed(OIDRectSWVersion, i))
				}
				if err == nil {
					inv.SerialNum, err = dev.Get(indexed(OIDRectSerialNum, i))
				}
				if err == nil {
					inv.Ident, err = dev.Get(indexed(OIDRectIdent, i))
				}
				res.Rectifiers = append(res.Rectifiers, inv)
			}
			state = StateDone
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func indexed(oid string, i int) string {
	return oid + "." + strconv.Itoa(i)
}
