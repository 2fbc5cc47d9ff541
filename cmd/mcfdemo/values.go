package main

import (
	"github.com/mcf-go/mcf/mcfwire"
	"github.com/mcf-go/mcf/value"
)

// Range is a minimal sensor reading value type, following the same
// Base-embedding/TypeID/WithID/PackMap shape as recorder.Status, used
// here to exercise a producer/consumer component pair and the remote
// bridge end to end.
type Range struct {
	value.Base
	Meters float64
}

// TypeID implements value.Value.
func (Range) TypeID() string { return "demo.range" }

// WithID implements ports.Stampable.
func (v Range) WithID(id value.ID) value.Value {
	v.Base = value.NewBase(id)
	return v
}

func registerRangeType(reg *value.Registry) {
	reg.Register("demo.range", packRange, unpackRange)
}

func packRange(v value.Value) ([]byte, error) {
	r := v.(Range)
	return mcfwire.PackMap([]mcfwire.Field{
		{Name: "meters", Value: r.Meters},
	})
}

func unpackRange(data []byte) (value.Value, error) {
	fields, err := mcfwire.UnpackMap(data)
	if err != nil {
		return nil, err
	}
	r := Range{}
	if v, ok := fields["meters"].(float64); ok {
		r.Meters = v
	}
	return r, nil
}

// Scan is a demo ext-mem value type, modeling a fixed-size point cloud
// buffer carried out of band alongside its header (spec.md §4.6).
type Scan struct {
	value.BaseExtMem
	PointCount int
}

// TypeID implements value.Value.
func (Scan) TypeID() string { return "demo.scan" }

// WithID implements ports.Stampable, re-wrapping the same ExtMem region
// under a freshly minted id.
func (v Scan) WithID(id value.ID) value.Value {
	v.BaseExtMem = value.NewBaseExtMem(id, v.ExtMem())
	return v
}

func registerScanType(reg *value.Registry) {
	reg.Register("demo.scan", packScan, unpackScan)
}

func packScan(v value.Value) ([]byte, error) {
	s := v.(Scan)
	return mcfwire.PackMap([]mcfwire.Field{
		{Name: "point_count", Value: uint64(s.PointCount)},
	})
}

func unpackScan(data []byte) (value.Value, error) {
	fields, err := mcfwire.UnpackMap(data)
	if err != nil {
		return nil, err
	}
	s := Scan{}
	if v, ok := fields["point_count"].(uint64); ok {
		s.PointCount = int(v)
	} else if v, ok := fields["point_count"].(int64); ok {
		s.PointCount = int(v)
	}
	return s, nil
}
