package bot

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"google.golang.org/protobuf/encoding/protowire"
)

// Callback data layout:
//
//	byte 0     id - 128
//	byte 1     sub id - 128
//	byte 2..   protobuf length-delimited fields, field number 1
//
// Compressed data starts with the marker 0x7F 0x7F followed by the deflated
// layout above. The marker decodes to id 255, so ids are limited to 0..254;
// sub ids use the full byte.
const (
	MaxCallbackID = 254
	MaxSubID      = 255

	compressionMarker = 0x7F
	fieldNumber       = protowire.Number(1)
	maxInflated       = 64 << 10
)

var ErrInvalidData = fmt.Errorf("bot: invalid callback data")

// CallbackData is the decoded payload of an inline button.
type CallbackData struct {
	ID     int
	SubID  int
	Fields [][]byte
}

// String returns field i as a string, or "" when absent.
func (d *CallbackData) String(i int) string {
	if i < 0 || i >= len(d.Fields) {
		return ""
	}
	return string(d.Fields[i])
}

// StringFields converts s for EncodeData.
func StringFields(s ...string) [][]byte {
	out := make([][]byte, len(s))
	for i, v := range s {
		out[i] = []byte(v)
	}
	return out
}

func EncodeData(id, subID int, fields ...[]byte) ([]byte, error) {
	if id < 0 || id > MaxCallbackID || subID < 0 || subID > MaxSubID {
		return nil, fmt.Errorf("%w: id %d sub %d out of range", ErrInvalidData, id, subID)
	}
	b := []byte{byte(int8(id - 128)), byte(int8(subID - 128))}
	for _, f := range fields {
		b = protowire.AppendTag(b, fieldNumber, protowire.BytesType)
		b = protowire.AppendBytes(b, f)
	}
	return b, nil
}

// EncodeDataCompressed is EncodeData followed by deflate.
func EncodeDataCompressed(id, subID int, fields ...[]byte) ([]byte, error) {
	raw, err := EncodeData(id, subID, fields...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write([]byte{compressionMarker, compressionMarker})
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeData(b []byte) (*CallbackData, error) {
	if len(b) >= 2 && b[0] == compressionMarker && b[1] == compressionMarker {
		r := flate.NewReader(bytes.NewReader(b[2:]))
		defer r.Close()
		raw, err := io.ReadAll(io.LimitReader(r, maxInflated))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		b = raw
	}
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidData, len(b))
	}

	d := &CallbackData{
		ID:    int(int8(b[0])) + 128,
		SubID: int(int8(b[1])) + 128,
	}
	if d.ID > MaxCallbackID {
		return nil, fmt.Errorf("%w: reserved id", ErrInvalidData)
	}

	rest := b[2:]
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, protowire.ParseError(n))
		}
		if num != fieldNumber || typ != protowire.BytesType {
			return nil, fmt.Errorf("%w: unexpected field %d type %d", ErrInvalidData, num, typ)
		}
		rest = rest[n:]

		v, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, protowire.ParseError(n))
		}
		d.Fields = append(d.Fields, bytes.Clone(v))
		rest = rest[n:]
	}
	return d, nil
}
