// Package transport turns raw connections into discrete application
// messages. TCP connections use either newline-terminated lines or
// length-prefixed frames; WebSocket connections carry one message per text
// frame.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Framing names a TCP message codec.
type Framing string

const (
	FramingLine  Framing = "line"
	FramingFrame Framing = "frame"
)

const (
	frameHeaderSize = 2
	// MaxFramePayload is the largest payload a 2-byte total length allows.
	MaxFramePayload = 0xFFFF - frameHeaderSize
	// MaxLineLength bounds one inbound line, terminator excluded.
	MaxLineLength = 64 * 1024
)

var (
	ErrUnknownFraming = errors.New("unknown framing")
	ErrFrameTooLarge  = errors.New("frame payload too large")
)

// ParseFraming validates a framing name. The empty string selects line.
func ParseFraming(s string) (Framing, error) {
	switch Framing(strings.ToLower(s)) {
	case "", FramingLine:
		return FramingLine, nil
	case FramingFrame:
		return FramingFrame, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFraming, s)
}

// ReadFrame reads one frame from r.
// Wire format: [2 bytes LE: total length including header][payload].
// Returns the payload bytes without the header.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	totalLen := int(binary.LittleEndian.Uint16(header[:]))
	payloadLen := totalLen - frameHeaderSize
	if payloadLen < 0 {
		return nil, fmt.Errorf("invalid frame length: %d", totalLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", payloadLen, err)
	}
	return payload, nil
}

// WriteFrame writes data as one frame. Header and payload go out in a single
// Write call.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFramePayload {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	totalLen := len(data) + frameHeaderSize
	frame := make([]byte, totalLen)
	binary.LittleEndian.PutUint16(frame[0:frameHeaderSize], uint16(totalLen))
	copy(frame[frameHeaderSize:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// trimMessage strips the line terminator a client may have sent.
func trimMessage(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// lineTerminated appends a newline unless msg already ends with one.
func lineTerminated(msg string) string {
	if strings.HasSuffix(msg, "\n") {
		return msg
	}
	return msg + "\n"
}
