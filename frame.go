package main

import (
	"encoding/binary"
	"errors"
)

const (
	// First header byte of every outbound frame: FIN set, opcode text.
	finText = 0x81

	maxSmallPayload = 125
	payloadLen16    = 126
	payloadLen64    = 127
)

var errShortFrame = errors.New("websocket: frame shorter than its header")

// encodeTextFrame wraps payload in a single unmasked, unfragmented text frame.
func encodeTextFrame(payload []byte) []byte {
	n := len(payload)
	var frame []byte
	switch {
	case n <= maxSmallPayload:
		frame = make([]byte, 2, 2+n)
		frame[1] = byte(n)
	case n <= 0xffff:
		frame = make([]byte, 4, 4+n)
		frame[1] = payloadLen16
		binary.BigEndian.PutUint16(frame[2:], uint16(n))
	default:
		frame = make([]byte, 10, 10+n)
		frame[1] = payloadLen64
		binary.BigEndian.PutUint64(frame[2:], uint64(n))
	}
	frame[0] = finText
	return append(frame, payload...)
}

// decodeClientFrame unmasks the payload of one client frame held in frame.
// Everything after the mask key is treated as payload; the extended length
// fields are not checked against it.
func decodeClientFrame(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, errShortFrame
	}
	maskAt, dataAt := 2, 6
	switch frame[1] & 0x7f {
	case payloadLen16:
		maskAt, dataAt = 4, 8
	case payloadLen64:
		maskAt, dataAt = 10, 14
	}
	if len(frame) < dataAt {
		return nil, errShortFrame
	}
	mask := frame[maskAt:dataAt]
	payload := make([]byte, len(frame)-dataAt)
	for i, b := range frame[dataAt:] {
		payload[i] = b ^ mask[i%4]
	}
	return payload, nil
}
