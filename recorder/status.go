package recorder

import (
	"github.com/mcf-go/mcf/mcfwire"
	"github.com/mcf-go/mcf/value"
)

// Status is republished once per second on the recorder's own status
// topic (spec.md §4.4 step 4: "publish a RecorderStatus value on the
// recorder's own status topic with avg/max latency, queue sizes, CPU
// usage, drop and error flags").
type Status struct {
	value.Base
	AvgLatencyMs float64
	MaxLatencyMs float64
	QueueDepth   int64
	DroppedTotal uint64
	WriteErrors  uint64
	BytesWritten uint64
	CPUPercent   float64
	Warning      bool
}

// TypeID implements value.Value.
func (Status) TypeID() string { return "mcf.recorder_status" }

// WithID implements ports.Stampable, letting Status be published through a
// SenderPort as well as directly via Store.SetValue.
func (v Status) WithID(id value.ID) value.Value {
	v.Base = value.NewBase(id)
	return v
}

// RegisterStatusType registers Status's pack/unpack pair, built on
// mcfwire.PackMap/UnpackMap since every field is a scalar.
func RegisterStatusType(reg *value.Registry) {
	reg.Register("mcf.recorder_status", packStatus, unpackStatus)
}

func packStatus(v value.Value) ([]byte, error) {
	s := v.(Status)
	warn := uint64(0)
	if s.Warning {
		warn = 1
	}
	return mcfwire.PackMap([]mcfwire.Field{
		{Name: "avg_latency_ms", Value: s.AvgLatencyMs},
		{Name: "max_latency_ms", Value: s.MaxLatencyMs},
		{Name: "queue_depth", Value: uint64(s.QueueDepth)},
		{Name: "dropped_total", Value: s.DroppedTotal},
		{Name: "write_errors", Value: s.WriteErrors},
		{Name: "bytes_written", Value: s.BytesWritten},
		{Name: "cpu_percent", Value: s.CPUPercent},
		{Name: "warning", Value: warn},
	})
}

func unpackStatus(data []byte) (value.Value, error) {
	fields, err := mcfwire.UnpackMap(data)
	if err != nil {
		return nil, err
	}
	s := Status{}
	if v, ok := fields["avg_latency_ms"].(float64); ok {
		s.AvgLatencyMs = v
	}
	if v, ok := fields["max_latency_ms"].(float64); ok {
		s.MaxLatencyMs = v
	}
	if v, ok := toUint64(fields["queue_depth"]); ok {
		s.QueueDepth = int64(v)
	}
	if v, ok := toUint64(fields["dropped_total"]); ok {
		s.DroppedTotal = v
	}
	if v, ok := toUint64(fields["write_errors"]); ok {
		s.WriteErrors = v
	}
	if v, ok := toUint64(fields["bytes_written"]); ok {
		s.BytesWritten = v
	}
	if v, ok := fields["cpu_percent"].(float64); ok {
		s.CPUPercent = v
	}
	if v, ok := toUint64(fields["warning"]); ok {
		s.Warning = v != 0
	}
	return s, nil
}

// toUint64 normalizes the handful of integer shapes msgp.ReadIntf may
// hand back for an unsigned field.
func toUint64(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint64:
		return t, true
	case int64:
		return uint64(t), true
	default:
		return 0, false
	}
}
