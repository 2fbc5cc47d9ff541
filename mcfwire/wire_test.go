package mcfwire_test

import (
	"bytes"
	"testing"

	"github.com/tinylib/msgp/msgp"

	"github.com/mcf-go/mcf/mcfwire"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	h := mcfwire.Header{TimeMs: 1234, Topic: "/t", TypeID: "int", ValueID: 99}
	if err := mcfwire.WriteHeader(w, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := msgp.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := mcfwire.ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, h)
	}
}

func TestExtMemHeaderRoundTrip(t *testing.T) {
	cases := []mcfwire.ExtMemHeader{
		{Size: 10, Present: true, CompressedSize: 4},
		{Size: 0, Present: false, CompressedSize: 0},
	}
	for _, h := range cases {
		var buf bytes.Buffer
		w := msgp.NewWriter(&buf)
		if err := mcfwire.WriteExtMemHeader(w, h); err != nil {
			t.Fatalf("WriteExtMemHeader: %v", err)
		}
		w.Flush()

		r := msgp.NewReader(bytes.NewReader(buf.Bytes()))
		got, err := mcfwire.ReadExtMemHeader(r)
		if err != nil {
			t.Fatalf("ReadExtMemHeader: %v", err)
		}
		if got != h {
			t.Fatalf("round-trip mismatch: got %+v want %+v", got, h)
		}
	}
}

func TestPackMapUnpackMapRoundTrip(t *testing.T) {
	fields := []mcfwire.Field{
		{Name: "name", Value: "sensor-1"},
		{Name: "count", Value: int64(42)},
		{Name: "active", Value: true},
		{Name: "ratio", Value: 0.5},
		{Name: "raw", Value: []byte{1, 2, 3}},
	}
	data, err := mcfwire.PackMap(fields)
	if err != nil {
		t.Fatalf("PackMap: %v", err)
	}
	out, err := mcfwire.UnpackMap(data)
	if err != nil {
		t.Fatalf("UnpackMap: %v", err)
	}
	if out["name"] != "sensor-1" {
		t.Fatalf("expected name sensor-1, got %v", out["name"])
	}
	if out["active"] != true {
		t.Fatalf("expected active true, got %v", out["active"])
	}
	if !bytes.Equal(out["raw"].([]byte), []byte{1, 2, 3}) {
		t.Fatalf("expected raw bytes round-trip, got %v", out["raw"])
	}
}

func TestPackMapRejectsUnsupportedScalar(t *testing.T) {
	_, err := mcfwire.PackMap([]mcfwire.Field{{Name: "bad", Value: struct{}{}}})
	if err == nil {
		t.Fatal("expected error for unsupported scalar type")
	}
}
