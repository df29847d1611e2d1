package frame

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/iocat/rudpcopy/protocol"
)

// InitPayload is the payload of a FILENAME frame: the requested file
// name plus the client's chosen window and buffer sizes, packed into
// the fixed 109-byte layout spec.md §3/§6 require.
type InitPayload struct {
	Filename   string
	WindowSize uint32
	BufferSize uint32
}

// ErrFilenameTooLong is returned by EncodeInit when Filename exceeds
// protocol.MaxFilenameLen bytes.
var ErrFilenameTooLong = errors.New("frame: filename exceeds 100 bytes")

// ErrInitPayloadTooShort is returned by DecodeInit for any payload
// shorter than protocol.InitPayloadSize, corresponding to spec.md §7's
// "Malformed init payload" error kind.
var ErrInitPayloadTooShort = errors.New("frame: init payload shorter than header + init size")

// EncodeInit packs p into the zero-padded 109-byte init payload: a
// 101-byte null-terminated name field, a 4-byte big-endian window
// size, and a 4-byte big-endian buffer size.
func EncodeInit(p InitPayload) ([]byte, error) {
	if len(p.Filename) > protocol.MaxFilenameLen {
		return nil, ErrFilenameTooLong
	}
	buf := make([]byte, protocol.InitPayloadSize)
	copy(buf[:protocol.MaxFilenameLen+1], p.Filename)
	binary.BigEndian.PutUint32(buf[protocol.MaxFilenameLen+1:], p.WindowSize)
	binary.BigEndian.PutUint32(buf[protocol.MaxFilenameLen+1+4:], p.BufferSize)
	return buf, nil
}

// DecodeInit unpacks the init payload of a FILENAME frame.
func DecodeInit(b []byte) (InitPayload, error) {
	if len(b) < protocol.InitPayloadSize {
		return InitPayload{}, ErrInitPayloadTooShort
	}
	nameField := b[:protocol.MaxFilenameLen+1]
	if n := bytes.IndexByte(nameField, 0); n >= 0 {
		nameField = nameField[:n]
	}
	return InitPayload{
		Filename:   string(nameField),
		WindowSize: binary.BigEndian.Uint32(b[protocol.MaxFilenameLen+1:]),
		BufferSize: binary.BigEndian.Uint32(b[protocol.MaxFilenameLen+1+4:]),
	}, nil
}
