// Package mcfwire provides the self-describing, msgpack-compatible packed
// encoding used by the recorder file format and available to Pack/Unpack
// functions registered in a value.Registry. The remote bridge's envelope
// codec (remote/codec.go) calls msgp directly and does not use this package.
package mcfwire

import (
	"bytes"
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Header is the packed per-value record header described in spec.md §6:
// (time_ms, topic, type_id, value_id).
type Header struct {
	TimeMs  uint64
	Topic   string
	TypeID  string
	ValueID uint64
}

// ExtMemHeader is the packed ext-mem header described in spec.md §6:
// (size, present, compressed_size).
type ExtMemHeader struct {
	Size           uint32
	Present        bool
	CompressedSize uint32
}

// WriteHeader appends the packed header to w.
func WriteHeader(w *msgp.Writer, h Header) error {
	if err := w.WriteMapHeader(4); err != nil {
		return err
	}
	if err := w.WriteString("time_ms"); err != nil {
		return err
	}
	if err := w.WriteUint64(h.TimeMs); err != nil {
		return err
	}
	if err := w.WriteString("topic"); err != nil {
		return err
	}
	if err := w.WriteString(h.Topic); err != nil {
		return err
	}
	if err := w.WriteString("type_id"); err != nil {
		return err
	}
	if err := w.WriteString(h.TypeID); err != nil {
		return err
	}
	if err := w.WriteString("value_id"); err != nil {
		return err
	}
	return w.WriteUint64(h.ValueID)
}

// ReadHeader decodes a packed header previously written by WriteHeader.
func ReadHeader(r *msgp.Reader) (Header, error) {
	var h Header
	n, err := r.ReadMapHeader()
	if err != nil {
		return h, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return h, err
		}
		switch key {
		case "time_ms":
			if h.TimeMs, err = r.ReadUint64(); err != nil {
				return h, err
			}
		case "topic":
			if h.Topic, err = r.ReadString(); err != nil {
				return h, err
			}
		case "type_id":
			if h.TypeID, err = r.ReadString(); err != nil {
				return h, err
			}
		case "value_id":
			if h.ValueID, err = r.ReadUint64(); err != nil {
				return h, err
			}
		default:
			if err := r.Skip(); err != nil {
				return h, err
			}
		}
	}
	return h, nil
}

// WriteExtMemHeader appends the packed ext-mem header to w.
func WriteExtMemHeader(w *msgp.Writer, h ExtMemHeader) error {
	if err := w.WriteMapHeader(3); err != nil {
		return err
	}
	if err := w.WriteString("size"); err != nil {
		return err
	}
	if err := w.WriteUint32(h.Size); err != nil {
		return err
	}
	if err := w.WriteString("present"); err != nil {
		return err
	}
	if err := w.WriteBool(h.Present); err != nil {
		return err
	}
	if err := w.WriteString("compressed_size"); err != nil {
		return err
	}
	return w.WriteUint32(h.CompressedSize)
}

// ReadExtMemHeader decodes a packed ext-mem header.
func ReadExtMemHeader(r *msgp.Reader) (ExtMemHeader, error) {
	var h ExtMemHeader
	n, err := r.ReadMapHeader()
	if err != nil {
		return h, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return h, err
		}
		switch key {
		case "size":
			if h.Size, err = r.ReadUint32(); err != nil {
				return h, err
			}
		case "present":
			if h.Present, err = r.ReadBool(); err != nil {
				return h, err
			}
		case "compressed_size":
			if h.CompressedSize, err = r.ReadUint32(); err != nil {
				return h, err
			}
		default:
			if err := r.Skip(); err != nil {
				return h, err
			}
		}
	}
	return h, nil
}

// PackMap packs an ordered set of scalar fields into a msgpack map, used by
// built-in demo value types for their Pack implementation. Supported value
// types: string, int64, uint64, float64, bool, []byte.
func PackMap(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := w.WriteMapHeader(uint32(len(fields))); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if err := w.WriteString(f.Name); err != nil {
			return nil, err
		}
		if err := writeScalar(w, f.Value); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Field is one named scalar entry in a PackMap/UnpackMap payload.
type Field struct {
	Name  string
	Value any
}

func writeScalar(w *msgp.Writer, v any) error {
	switch t := v.(type) {
	case string:
		return w.WriteString(t)
	case int64:
		return w.WriteInt64(t)
	case uint64:
		return w.WriteUint64(t)
	case float64:
		return w.WriteFloat64(t)
	case bool:
		return w.WriteBool(t)
	case []byte:
		return w.WriteBytes(t)
	default:
		return fmt.Errorf("mcfwire: unsupported scalar type %T", v)
	}
}

// UnpackMap decodes a payload written by PackMap into a name->value map.
func UnpackMap(data []byte) (map[string]any, error) {
	r := msgp.NewReader(bytes.NewReader(data))
	n, err := r.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, n)
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadIntf()
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
