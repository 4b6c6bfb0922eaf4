// Package frame implements the EEM wire codec: control-byte framing, the
// 7-bit BCC checksum, the lossy float encoding and bit-vector packing used
// inside request/response payloads.
package frame

import (
	"fmt"

	"github.com/samsamfire/eemclient/pkg/eemerr"
)

// Control bytes, as defined by the EEM serial-over-TCP protocol.
const (
	SOH byte = 0x01
	STX byte = 0x02
	ETX byte = 0x03
	EOT byte = 0x04
	ENQ byte = 0x05
	ACK byte = 0x06
	NAK byte = 0x15
)

// FastSelect and Poll select the request type carried by an EOT-prefixed
// select frame.
const (
	FastSelect byte = 'S'
	Poll       byte = 'P'
)

// fieldEnd terminates the field list inside a select request payload.
const fieldEnd byte = '*'

// Checksum computes the EEM 7-bit BCC: a byte-wise sum of buf, masked to 7
// bits, with 0x20 added when the result is below 0x20 so it never
// collides with a control byte.
func Checksum(buf []byte) byte {
	var sum byte
	for _, b := range buf {
		sum += b
	}
	sum &= 0x7F
	if sum < 0x20 {
		sum += 0x20
	}
	return sum
}

// EncodeSelect builds a fast-select request frame addressed to ccID, asking
// the device to execute payload (an already-tokenized request body such as
// "RB0200!" or "WB0200!...!...*") and reply with it framed in SOH/ETX.
//
//	EOT cc_id "0000" 'S' SOH cc_id "0000" STX payload '*' ETX BCC
func EncodeSelect(ccID [2]byte, payload []byte) []byte {
	buf := make([]byte, 0, 16+len(payload))
	buf = append(buf, EOT, ccID[0], ccID[1], '0', '0', '0', '0', FastSelect)
	bccStart := len(buf) + 1
	buf = append(buf, SOH, ccID[0], ccID[1], '0', '0', '0', '0', STX)
	buf = append(buf, payload...)
	buf = append(buf, fieldEnd, ETX)
	bcc := Checksum(buf[bccStart:])
	buf = append(buf, bcc)
	return buf
}

// EncodePoll builds an EOT-prefixed poll frame: "is there a reply ready".
func EncodePoll(ccID [2]byte) []byte {
	return []byte{EOT, ccID[0], ccID[1], '0', '0', '0', '0', Poll, ENQ}
}

// EncodeAck returns the bare ACK byte sent after a correctly-checksummed
// SOH...ETX response has been consumed.
func EncodeAck() []byte {
	return []byte{ACK}
}

// Response is a decoded SOH-framed reply: the payload between the device's
// echoed header and the trailing '*' delimiter, with the checksum already
// verified against ok.
type Response struct {
	Payload []byte
	OK      bool
}

// ParseResponse checks the checksum of a complete SOH...ETX BCC frame
// (frame[0]==SOH, the byte following ETX is the BCC) and returns the
// request's answer payload, stripped of the 8-byte echoed header and the
// trailing delimiter — mirroring the original readCb's
// `callback(start+8, plen-10, ...)` slicing.
func ParseResponse(frame []byte) (Response, error) {
	if len(frame) < 10 || frame[0] != SOH {
		return Response{}, fmt.Errorf("%w: short or missing SOH", eemerr.ErrFrameMalformed)
	}
	etx := -1
	for i, b := range frame {
		if b == ETX {
			etx = i
			break
		}
	}
	if etx < 0 || etx+1 >= len(frame) {
		return Response{}, fmt.Errorf("%w: missing ETX/BCC", eemerr.ErrFrameMalformed)
	}
	bcc := Checksum(frame[1 : etx+1])
	ok := bcc == frame[etx+1]
	// header is SOH + 2-byte CC_ID + 4-digit block id + STX = 8 bytes;
	// trailer is '*' + ETX = 2 bytes.
	if etx < 8 {
		return Response{}, fmt.Errorf("%w: frame shorter than header+trailer", eemerr.ErrFrameMalformed)
	}
	payload := frame[8:etx]
	payload = trimFieldEnd(payload)
	return Response{Payload: payload, OK: ok}, nil
}

func trimFieldEnd(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == fieldEnd {
		return b[:len(b)-1]
	}
	return b
}
