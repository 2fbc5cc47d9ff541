// Package recorder implements spec.md §4.4/§6: a lock-minimal background
// serializer that captures every Value Store publication to an
// append-only file, with latency/drop/CPU accounting and a periodic
// status republish. Grounded on
// original_source/mcf_core/src/ValueRecorder.cpp for the algorithm and on
// the teacher's internal/shared/monitoring/system_monitor.go singleton
// CPU sampler for the "measure once, many readers" idiom used for the
// recorder's own CPU accounting.
package recorder

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/tinylib/msgp/msgp"

	"github.com/mcf-go/mcf/mcfwire"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// Metrics is the subset of mcfmetrics.Registry the recorder touches,
// expressed structurally to avoid an import cycle (mirrors
// valuestore.Metrics's pattern).
type Metrics interface {
	ObserveRecorderQueueDepth(n int)
	ObserveRecorderDropped()
	ObserveRecorderWriteError()
	ObserveRecorderLatency(avgMs, maxMs float64)
	ObserveRecorderCPU(percent float64)
	ObserveRecorderBytesWritten(n int)
}

// Config selects a Recorder instance's behavior.
type Config struct {
	// Path is the append-only log file to create (spec.md §6 "Recorder
	// file format").
	Path string
	// StatusTopic is where Status values are republished once per
	// second. Defaults to "/mcf/recorder/status", the same default as
	// mcfconfig.ProcessConfig's RecorderStatusTopic.
	StatusTopic string
	// MaxQueue is the soft internal queue-depth limit past which entries
	// are dropped at dequeue time (spec.md §4.4 step 2). 0 means
	// unbounded (never drop for depth).
	MaxQueue int
	// Disabled lists topics the recorder silently skips.
	Disabled []string
	// ExtMemTopics lists topics whose ExtMemValue out-of-band bytes
	// should be appended to the log (spec.md §4.4 step 3).
	ExtMemTopics []string
	// Compressors maps a topic in ExtMemTopics to the Compressor used for
	// its ext-mem bytes. A topic with no entry is written uncompressed.
	Compressors map[string]Compressor
}

// Recorder is spec.md §4.4's value recorder.
type Recorder struct {
	store    *valuestore.Store
	registry *value.Registry
	logger   zerolog.Logger
	metrics  Metrics
	ids      *value.IDGenerator
	proc     *process.Process

	file *os.File
	w    *msgp.Writer
	wMu  sync.Mutex

	statusTopic  string
	maxQueue     int
	disabled     map[string]struct{}
	extMem       map[string]struct{}
	compressors  map[string]Compressor

	recv *receiver
	q    *recordQueue

	wg sync.WaitGroup

	statsMu      sync.Mutex
	dropped      uint64
	writeErrors  uint64
	bytesWritten uint64
	latencySumMs float64
	latencyMaxMs float64
	latencyCount uint64
}

// New creates the recorder's log file and returns an unstarted Recorder.
func New(cfg Config, store *valuestore.Store, reg *value.Registry, logger zerolog.Logger, metrics Metrics) (*Recorder, error) {
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("recorder: create %s: %w", cfg.Path, err)
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("recorder: CPU accounting unavailable")
		proc = nil
	}

	disabled := make(map[string]struct{}, len(cfg.Disabled))
	for _, t := range cfg.Disabled {
		disabled[t] = struct{}{}
	}
	extMem := make(map[string]struct{}, len(cfg.ExtMemTopics))
	for _, t := range cfg.ExtMemTopics {
		extMem[t] = struct{}{}
	}

	statusTopic := cfg.StatusTopic
	if statusTopic == "" {
		statusTopic = "/mcf/recorder/status"
	}

	return &Recorder{
		store:       store,
		registry:    reg,
		logger:      logger,
		metrics:     metrics,
		ids:         value.NewIDGenerator(0),
		proc:        proc,
		file:        f,
		w:           msgp.NewWriter(f),
		statusTopic: statusTopic,
		maxQueue:    cfg.MaxQueue,
		disabled:    disabled,
		extMem:      extMem,
		compressors: cfg.Compressors,
		q:           newRecordQueue(),
	}, nil
}

// Start registers the recorder as an all-topics receiver and spawns the
// background writer thread.
func (r *Recorder) Start() {
	r.recv = &receiver{q: r.q}
	r.store.AddAllTopicReceiver(r.recv)
	r.wg.Add(1)
	go r.writerLoop()
}

// Stop unregisters the receiver, joins the writer, then closes the file —
// in that order, so no new entry can arrive after the writer has drained
// the queue (spec.md §4.4 "Stopping is graceful").
func (r *Recorder) Stop() error {
	r.store.RemoveAllTopicReceiver(r.recv)
	r.q.close()
	r.wg.Wait()

	r.wMu.Lock()
	flushErr := r.w.Flush()
	r.wMu.Unlock()
	closeErr := r.file.Close()
	if flushErr != nil {
		return fmt.Errorf("recorder: flush: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("recorder: close: %w", closeErr)
	}
	return nil
}

func (r *Recorder) writerLoop() {
	defer r.wg.Done()
	lastStatus := time.Now()
	for {
		e, sizeAfter, ok := r.q.pop()
		if !ok {
			return
		}
		r.handle(e, sizeAfter)
		if time.Since(lastStatus) >= time.Second {
			lastStatus = time.Now()
			r.publishStatus()
		}
	}
}

// handle implements spec.md §4.4's per-entry writer steps 1-3.
func (r *Recorder) handle(e entry, queueSizeAfter int) {
	if _, skip := r.disabled[e.topic]; skip {
		return
	}
	if r.maxQueue > 0 && queueSizeAfter > r.maxQueue && e.topic != r.statusTopic {
		r.bumpDropped()
		return
	}

	data, err := r.registry.Pack(e.val)
	if err != nil {
		if _, isUnknown := err.(*value.ErrUnknownType); isUnknown {
			r.logger.Debug().Str("topic", e.topic).Str("type", e.val.TypeID()).Msg("recorder: unknown type, skipping entry")
			return
		}
		r.bumpWriteError()
		r.logger.Warn().Err(err).Str("topic", e.topic).Msg("recorder: pack failed")
		return
	}

	header := mcfwire.Header{
		TimeMs:  uint64(time.Now().UnixMilli()),
		Topic:   e.topic,
		TypeID:  e.val.TypeID(),
		ValueID: uint64(e.val.ID()),
	}

	extHeader, extBytes := r.buildExtMem(e)

	r.wMu.Lock()
	n := 0
	if err := mcfwire.WriteHeader(r.w, header); err == nil {
		if nw, werr := r.w.Write(data); werr == nil {
			n += nw
			if werr := mcfwire.WriteExtMemHeader(r.w, extHeader); werr == nil {
				if len(extBytes) > 0 {
					if nw, werr := r.w.Write(extBytes); werr == nil {
						n += nw
					} else {
						err = werr
					}
				}
			} else {
				err = werr
			}
		} else {
			err = werr
		}
	}
	if err == nil {
		err = r.w.Flush()
	}
	r.wMu.Unlock()

	if err != nil {
		r.bumpWriteError()
		r.logger.Warn().Err(err).Str("topic", e.topic).Msg("recorder: write failed")
		return
	}

	r.bumpBytesWritten(n)
	r.bumpLatency(time.Since(e.publishedAt))
}

// buildExtMem implements spec.md §4.4 step 3's ext-mem header/bytes
// selection: present only for ExtMemValue on a topic with ext-mem
// enabled; compressed when a Compressor is configured for the topic,
// falling back to uncompressed on a compression error.
func (r *Recorder) buildExtMem(e entry) (mcfwire.ExtMemHeader, []byte) {
	ext, ok := e.val.(value.ExtMemValue)
	if !ok {
		return mcfwire.ExtMemHeader{}, nil
	}
	if _, enabled := r.extMem[e.topic]; !enabled {
		return mcfwire.ExtMemHeader{}, nil
	}
	raw := ext.ExtMem().Bytes()
	header := mcfwire.ExtMemHeader{Size: uint32(len(raw)), Present: true}

	comp, hasComp := r.compressors[e.topic]
	if !hasComp {
		return header, raw
	}
	compressed, err := comp.Compress(raw)
	if err != nil {
		r.logger.Warn().Err(err).Str("topic", e.topic).Msg("recorder: ext-mem compression failed, falling back to uncompressed")
		return header, raw
	}
	header.CompressedSize = uint32(len(compressed))
	return header, compressed
}

func (r *Recorder) bumpDropped() {
	r.statsMu.Lock()
	r.dropped++
	r.statsMu.Unlock()
	if r.metrics != nil {
		r.metrics.ObserveRecorderDropped()
	}
}

func (r *Recorder) bumpWriteError() {
	r.statsMu.Lock()
	r.writeErrors++
	r.statsMu.Unlock()
	if r.metrics != nil {
		r.metrics.ObserveRecorderWriteError()
	}
}

func (r *Recorder) bumpBytesWritten(n int) {
	r.statsMu.Lock()
	r.bytesWritten += uint64(n)
	r.statsMu.Unlock()
	if r.metrics != nil {
		r.metrics.ObserveRecorderBytesWritten(n)
	}
}

func (r *Recorder) bumpLatency(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	r.statsMu.Lock()
	r.latencySumMs += ms
	r.latencyCount++
	if ms > r.latencyMaxMs {
		r.latencyMaxMs = ms
	}
	r.statsMu.Unlock()
}

// publishStatus implements spec.md §4.4 step 4: once per second, publish
// a Status value with avg/max latency, queue depth, CPU usage and
// drop/error counters, then reset the latency window.
func (r *Recorder) publishStatus() {
	r.statsMu.Lock()
	avg := 0.0
	if r.latencyCount > 0 {
		avg = r.latencySumMs / float64(r.latencyCount)
	}
	maxMs := r.latencyMaxMs
	dropped := r.dropped
	writeErrors := r.writeErrors
	bytesWritten := r.bytesWritten
	r.latencySumMs, r.latencyMaxMs, r.latencyCount = 0, 0, 0
	r.statsMu.Unlock()

	cpuPercent := 0.0
	if r.proc != nil {
		if pct, err := r.proc.CPUPercent(); err == nil {
			cpuPercent = pct
		}
	}

	warning := avg > 1000 || (maxMs > 1000) || dropped > 0
	if r.metrics != nil {
		r.metrics.ObserveRecorderLatency(avg, maxMs)
		r.metrics.ObserveRecorderCPU(cpuPercent)
		r.metrics.ObserveRecorderQueueDepth(r.q.len())
	}

	status := Status{
		AvgLatencyMs: avg,
		MaxLatencyMs: maxMs,
		QueueDepth:   int64(r.q.len()),
		DroppedTotal: dropped,
		WriteErrors:  writeErrors,
		BytesWritten: bytesWritten,
		CPUPercent:   cpuPercent,
		Warning:      warning,
	}
	stamped := status.WithID(r.ids.Next())
	r.store.SetValue(r.statusTopic, stamped, false, nil)
}
