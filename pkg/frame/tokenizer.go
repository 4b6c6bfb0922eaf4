package frame

import "bytes"

// SplitFields splits a request/response payload on '!', dropping a
// trailing '*' terminator if present — the inverse of how block readers
// and writers join fields with '!' and close the field list with '*'.
func SplitFields(payload []byte) [][]byte {
	payload = trimFieldEnd(payload)
	if len(payload) == 0 {
		return nil
	}
	return bytes.Split(payload, []byte{'!'})
}

// JoinFields joins fields with '!' and appends the '*' field-list
// terminator, the format block readers/writers send in request bodies.
func JoinFields(fields ...[]byte) []byte {
	out := bytes.Join(fields, []byte{'!'})
	out = append(out, fieldEnd)
	return out
}
