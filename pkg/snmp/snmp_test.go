package snmp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDevice struct {
	values map[string]string
	failOn string
	calls  []string
}

func (f *fakeDevice) Get(oid string) (string, error) {
	f.calls = append(f.calls, oid)
	if f.failOn != "" && oid == f.failOn {
		return "", errors.New("snmp timeout")
	}
	if v, ok := f.values[oid]; ok {
		return v, nil
	}
	return "", nil
}

func TestEnrichWalksIdentThenPerRectifier(t *testing.T) {
	dev := &fakeDevice{values: map[string]string{
		OIDIdentModel:         "NCU-M",
		OIDIdentCtrlFWVersion: "1.2.3",
		OIDIdentName:          "plant-a",
		OIDIdentSerialNum:     "SN001",
		indexed(OIDRectProdNum, 0):   "PN0",
		indexed(OIDRectHWVersion, 0): "HW0",
		indexed(OIDRectSWVersion, 0): "SW0",
		indexed(OIDRectSerialNum, 0): "RS0",
		indexed(OIDRectIdent, 0):     "ID0",
	}}

	res, err := New().Enrich(dev, 1)
	assert.NoError(t, err)
	assert.Equal(t, "NCU-M", res.Model)
	assert.Equal(t, "1.2.3", res.ControllerFW)
	assert.Equal(t, "plant-a", res.Name)
	assert.Equal(t, "SN001", res.SerialNum)
	assert.Equal(t, 1, res.RectifierCount)
	assert.Len(t, res.Rectifiers, 1)
	assert.Equal(t, "PN0", res.Rectifiers[0].ProdNum)
	assert.Equal(t, "ID0", res.Rectifiers[0].Ident)
}

func TestEnrichAbortsOnFirstError(t *testing.T) {
	dev := &fakeDevice{failOn: OIDIdentCtrlFWVersion}

	res, err := New().Enrich(dev, 3)
	assert.Error(t, err)
	assert.Equal(t, "", res.ControllerFW)
	assert.Empty(t, res.Rectifiers)
}

func TestEnrichAbortsMidRectifierWalk(t *testing.T) {
	dev := &fakeDevice{
		values: map[string]string{
			OIDIdentModel:         "NCU-M",
			OIDIdentCtrlFWVersion: "1.2.3",
			OIDIdentName:          "plant-a",
			OIDIdentSerialNum:     "SN001",
			indexed(OIDRectProdNum, 0): "PN0",
		},
		failOn: indexed(OIDRectHWVersion, 0),
	}

	res, err := New().Enrich(dev, 2)
	assert.Error(t, err)
	assert.Equal(t, 2, res.RectifierCount)
	assert.Len(t, res.Rectifiers, 1)
	assert.Equal(t, "PN0", res.Rectifiers[0].ProdNum)
	assert.Equal(t, "", res.Rectifiers[0].HWVersion)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "RECTNUM", StateRectNum.String())
	assert.Equal(t, "MULTIRQ", StateMultiReq.String())
	assert.Equal(t, "DONE", StateDone.String())
}
