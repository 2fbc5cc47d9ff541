package mcfmetrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcf-go/mcf/mcfmetrics"
)

func TestRegistryObserversUpdateExposedMetrics(t *testing.T) {
	r := mcfmetrics.NewRegistry()
	r.ObservePublication("/t")
	r.ObserveFanout("/t")
	r.ObserveAgain("/t")
	r.ObserveRecorderQueueDepth(3)
	r.ObserveRecorderDropped()
	r.ObserveRecorderWriteError()
	r.ObserveRecorderLatency(1.5, 4.5)
	r.ObserveRecorderCPU(12.0)
	r.ObserveRecorderBytesWritten(128)
	r.ObserveRemoteLiveness("pair1", "UP")
	r.ObserveRemoteSendTimeout("pair1")
	r.ObserveRemoteValueForwarded("pair1", "send")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	body := sb.String()

	for _, want := range []string{
		"mcf_publications_total",
		"mcf_recorder_dropped_total",
		"mcf_recorder_latency_ms_avg",
		"mcf_remote_liveness_state",
		"mcf_remote_values_forwarded_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
