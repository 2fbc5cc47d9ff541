package recorder_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"
	"github.com/tinylib/msgp/msgp"

	"github.com/mcf-go/mcf/mcfwire"
	"github.com/mcf-go/mcf/recorder"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// scan is a minimal ext-mem value type used to exercise the recorder's
// ext-mem round trip (spec.md §8 E2E scenario #4).
type scan struct {
	value.BaseExtMem
}

func (scan) TypeID() string { return "test.scan" }

func (v scan) WithID(id value.ID) value.Value {
	v.BaseExtMem = value.NewBaseExtMem(id, v.ExtMem())
	return v
}

func registerScan(reg *value.Registry) {
	reg.Register("test.scan", func(v value.Value) ([]byte, error) {
		return mcfwire.PackMap(nil)
	}, func(data []byte) (value.Value, error) {
		return scan{}, nil
	})
}

func TestStatusPackUnpackRoundTrip(t *testing.T) {
	reg := value.NewRegistry()
	recorder.RegisterStatusType(reg)

	s := recorder.Status{
		AvgLatencyMs: 1.5,
		MaxLatencyMs: 3.25,
		QueueDepth:   7,
		DroppedTotal: 2,
		WriteErrors:  1,
		BytesWritten: 4096,
		CPUPercent:   12.5,
		Warning:      true,
	}
	data, err := reg.Pack(s)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	back, err := reg.Unpack("mcf.recorder_status", data)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	got := back.(recorder.Status)
	if got.AvgLatencyMs != s.AvgLatencyMs || got.QueueDepth != s.QueueDepth ||
		got.DroppedTotal != s.DroppedTotal || got.Warning != s.Warning {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, s)
	}
}

func TestRecorderExtMemRoundTripWithCompression(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.mcf")

	store := valuestore.New()
	reg := value.NewRegistry()
	registerScan(reg)
	recorder.RegisterStatusType(reg)

	rec, err := recorder.New(recorder.Config{
		Path:         path,
		StatusTopic:  "/mcf/recorder/status",
		ExtMemTopics: []string{"/t"},
		Compressors:  map[string]recorder.Compressor{"/t": recorder.NewZlibCompressor(0)},
	}, store, reg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec.Start()

	mem, err := value.ExtMemInit(10)
	if err != nil {
		t.Fatalf("ExtMemInit: %v", err)
	}
	raw := mem.Bytes()
	for i := range raw {
		raw[i] = byte(i)
	}
	v := scan{BaseExtMem: value.NewBaseExtMem(1, mem)}
	store.SetValue("/t", v, true, nil)

	// Give the writer a moment to drain before Stop, though Stop itself
	// waits for the writer to finish draining the queue.
	time.Sleep(20 * time.Millisecond)
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	r := msgp.NewReader(bytes.NewReader(data))

	hdr, err := mcfwire.ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Topic != "/t" || hdr.TypeID != "test.scan" {
		t.Fatalf("unexpected header: %+v", hdr)
	}

	if _, err := r.ReadMapHeader(); err != nil { // the (empty) packed value body
		t.Fatalf("reading value body: %v", err)
	}

	extHdr, err := mcfwire.ReadExtMemHeader(r)
	if err != nil {
		t.Fatalf("ReadExtMemHeader: %v", err)
	}
	if !extHdr.Present {
		t.Fatal("expected ext-mem header present=true")
	}
	if extHdr.Size != 10 {
		t.Fatalf("expected size 10, got %d", extHdr.Size)
	}
	if extHdr.CompressedSize == 0 {
		t.Fatal("expected a non-zero compressed size when compression is enabled")
	}

	compressed := make([]byte, extHdr.CompressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		t.Fatalf("reading compressed ext-mem bytes: %v", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer zr.Close()
	decompressed := make([]byte, 10)
	if _, err := io.ReadFull(zr, decompressed); err != nil {
		t.Fatalf("reading decompressed bytes: %v", err)
	}
	for i, b := range decompressed {
		if b != byte(i) {
			t.Fatalf("byte %d: expected %d got %d", i, i, b)
		}
	}
}
