package main

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Characters stripped from both ends of handshake keys and admin payloads.
const trimCutset = " \t\n\r\x00\x0b"

var (
	errIncompleteHandshake = errors.New("websocket: handshake headers incomplete")
	errMissingKey          = errors.New("websocket: missing Sec-WebSocket-Key")
)

var (
	headerTerminator = []byte("\r\n\r\n")
	keyHeader        = regexp.MustCompile("Sec-WebSocket-Key: (.*)\r\n")
)

// acceptKey derives the Sec-WebSocket-Accept value for a client key.
func acceptKey(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// parseHandshake extracts the client key from the bytes received so far.
// It returns errIncompleteHandshake until the header terminator has arrived.
func parseHandshake(buf []byte) (string, error) {
	end := bytes.Index(buf, headerTerminator)
	if end < 0 {
		return "", errIncompleteHandshake
	}
	// Keep the CRLF closing the last header line.
	m := keyHeader.FindSubmatch(buf[:end+2])
	if m == nil {
		return "", errMissingKey
	}
	key := strings.Trim(string(m[1]), trimCutset)
	if key == "" {
		return "", errMissingKey
	}
	return key, nil
}

func handshakeResponse(accept string) []byte {
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n")
}
