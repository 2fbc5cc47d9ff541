package remote

import (
	"bytes"

	"github.com/tinylib/msgp/msgp"
)

// EncodeEnvelope serializes e to the packed msgpack-map wire format every
// Transport exchanges (spec.md §4.5's message kinds), reusable by any
// concrete transport (socket, NATS, Kafka) so they differ only in framing,
// not in payload shape.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := w.WriteMapHeader(7); err != nil {
		return nil, err
	}
	fields := []struct {
		name string
		fn   func() error
	}{
		{"kind", func() error { return w.WriteUint8(uint8(e.Kind)) }},
		{"freshness", func() error { return w.WriteUint64(e.Freshness) }},
		{"topic", func() error { return w.WriteString(e.Topic) }},
		{"payload", func() error { return w.WriteBytes(e.Payload) }},
		{"ext_mem", func() error { return w.WriteBytes(e.ExtMem) }},
		{"command", func() error { return w.WriteString(e.Command) }},
		{"response", func() error { return w.WriteString(e.Response) }},
	}
	for _, f := range fields {
		if err := w.WriteString(f.name); err != nil {
			return nil, err
		}
		if err := f.fn(); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEnvelope deserializes bytes previously produced by EncodeEnvelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	r := msgp.NewReader(bytes.NewReader(data))
	n, err := r.ReadMapHeader()
	if err != nil {
		return e, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return e, err
		}
		switch key {
		case "kind":
			v, err := r.ReadUint8()
			if err != nil {
				return e, err
			}
			e.Kind = Kind(v)
		case "freshness":
			if e.Freshness, err = r.ReadUint64(); err != nil {
				return e, err
			}
		case "topic":
			if e.Topic, err = r.ReadString(); err != nil {
				return e, err
			}
		case "payload":
			if e.Payload, err = r.ReadBytes(nil); err != nil {
				return e, err
			}
		case "ext_mem":
			if e.ExtMem, err = r.ReadBytes(nil); err != nil {
				return e, err
			}
		case "command":
			if e.Command, err = r.ReadString(); err != nil {
				return e, err
			}
		case "response":
			if e.Response, err = r.ReadString(); err != nil {
				return e, err
			}
		default:
			if err := r.Skip(); err != nil {
				return e, err
			}
		}
	}
	return e, nil
}
