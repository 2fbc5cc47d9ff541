// Command mcfdemo wires the whole framework into one runnable process:
// two in-process components exchanging a value through the store, a
// recorder capturing every publication, a Prometheus metrics endpoint,
// and a loopback remote bridge mirroring the same topic across an
// in-process socket transport, exercising spec.md's full publish path
// end to end. Modeled on the teacher's main.go: automaxprocs, env-driven
// config, structured logging, signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/rs/zerolog"

	"github.com/mcf-go/mcf/component"
	"github.com/mcf-go/mcf/mcfconfig"
	"github.com/mcf-go/mcf/mcflog"
	"github.com/mcf-go/mcf/mcfmetrics"
	"github.com/mcf-go/mcf/mcfsched"
	"github.com/mcf-go/mcf/ports"
	"github.com/mcf-go/mcf/recorder"
	"github.com/mcf-go/mcf/remote"
	"github.com/mcf-go/mcf/remote/transport/socket"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

func main() {
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve Prometheus metrics on")
	recordPath := flag.String("record-path", "mcfdemo.mcfrec", "path of the value recorder log file")
	flag.Parse()

	base := mcflog.NewBase(mcflog.Config{Level: zerolog.InfoLevel, Format: mcflog.FormatPretty})
	logger := mcflog.For(base, "mcfdemo")

	cfg, err := mcfconfig.Load(&base)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if level, perr := zerolog.ParseLevel(cfg.LogLevel); perr == nil {
		base = base.Level(level)
		logger = mcflog.For(base, "mcfdemo")
	}

	metrics := mcfmetrics.NewRegistry()
	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	reg := value.NewRegistry()
	registerRangeType(reg)
	registerScanType(reg)
	recorder.RegisterStatusType(reg)

	caps := mcfsched.NewCapabilities()
	warn := mcflog.Logger{Z: logger}

	store := valuestore.NewWithLocks(nil, metrics)

	rec, err := recorder.New(recorder.Config{
		Path:        *recordPath,
		StatusTopic: cfg.RecorderStatusTopic,
		MaxQueue:    cfg.RecorderMaxQueue,
		ExtMemTopics: []string{
			"/demo/scan",
		},
		Compressors: map[string]recorder.Compressor{
			"/demo/scan": recorder.NewZlibCompressor(0),
		},
	}, store, reg, mcflog.For(base, "recorder"), metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("create recorder")
	}
	rec.Start()

	producer := newProducerComponent(store, caps, warn, base)
	consumer := newConsumerComponent(store, caps, warn, base)

	pair, err := newLoopbackRemotePair(store, reg, caps, warn, base, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("create remote pair")
	}

	for _, c := range []*component.Component{producer, consumer} {
		if err := c.Start(); err != nil {
			logger.Fatal().Err(err).Str("component", c.Name()).Msg("start component")
		}
	}
	for _, c := range []*component.Component{producer, consumer} {
		if err := c.Run(); err != nil {
			logger.Fatal().Err(err).Str("component", c.Name()).Msg("run component")
		}
	}
	pair.Start()

	logger.Info().Str("metrics_addr", *metricsAddr).Str("record_path", *recordPath).Msg("mcfdemo running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")

	if err := pair.Stop(); err != nil {
		logger.Warn().Err(err).Msg("stop remote pair")
	}
	for _, c := range []*component.Component{consumer, producer} {
		if err := c.Stop(); err != nil {
			logger.Warn().Err(err).Str("component", c.Name()).Msg("stop component")
		}
	}
	if err := rec.Stop(); err != nil {
		logger.Warn().Err(err).Msg("stop recorder")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

// newProducerComponent publishes a simulated Range reading once per
// second through a SenderPort, exercising the store's write protocol.
func newProducerComponent(store *valuestore.Store, caps mcfsched.Capabilities, warn mcfsched.Warner, base zerolog.Logger) *component.Component {
	c := component.New("range-producer", store,
		component.WithLogger(mcflog.For(base, "range-producer")),
		component.WithCapabilities(caps, warn),
		component.WithProcessID(uint32(os.Getpid())),
		component.WithScheduling(mcfsched.Params{Policy: mcfsched.PolicyDefault}),
	)
	sender := ports.NewSenderPort[Range]("range_out", store, c.IDs())
	sender.Map("/demo/range")

	var n int
	c.RegisterTriggerHandler("emit_range", func() error {
		n++
		r := Range{Meters: 1.0 + float64(n%10)*0.5}
		if err := sender.SetValue(r, false); err != nil {
			return fmt.Errorf("range-producer: publish: %w", err)
		}
		return nil
	})

	// The producer has no receiver port of its own to wake its worker, so
	// a dedicated ticker goroutine fires the component's Trigger once a
	// second (spec.md's periodic/timer-driven component pattern), started
	// and stopped from the worker's own lifecycle hooks.
	stopTick := make(chan struct{})
	c.SetHooks(component.Hooks{
		Startup: func() error {
			go func() {
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						c.Trigger().Fire()
					case <-stopTick:
						return
					}
				}
			}()
			return nil
		},
		Shutdown: func() error {
			close(stopTick)
			return nil
		},
	})
	return c
}

// newConsumerComponent watches /demo/range through a ReceiverPort and
// logs each arrival, exercising the trigger/fan-out path.
func newConsumerComponent(store *valuestore.Store, caps mcfsched.Capabilities, warn mcfsched.Warner, base zerolog.Logger) *component.Component {
	logger := mcflog.For(base, "range-consumer")
	c := component.New("range-consumer", store,
		component.WithLogger(logger),
		component.WithCapabilities(caps, warn),
		component.WithProcessID(uint32(os.Getpid()+1)),
		component.WithScheduling(mcfsched.Params{Policy: mcfsched.PolicyDefault}),
	)
	recv := ports.NewReceiverPort[Range]("range_in", store)
	recv.Map("/demo/range")

	handler := ports.NewPortTriggerHandler(func() {
		r := recv.GetValue()
		logger.Info().Float64("meters", r.Meters).Msg("range update")
	})
	recv.RegisterHandler(handler)
	handler.Flag().Subscribe(c.Trigger())
	c.RegisterPortHandler("log_range", handler)
	return c
}

// newLoopbackRemotePair builds a RemotePair mirroring /demo/range onto
// /demo/range/mirror across a pair of socket transports joined by
// net.Pipe, demonstrating the bridge without requiring an external peer
// process.
func newLoopbackRemotePair(store *valuestore.Store, reg *value.Registry, caps mcfsched.Capabilities, warn mcfsched.Warner, base zerolog.Logger, metrics *mcfmetrics.Registry) (*remote.RemotePair, error) {
	clientConn, serverConn := net.Pipe()
	serverTransport := socket.NewServer(serverConn)
	go func() {
		// The peer side of the loopback: answer every ping with a pong and
		// every value with an INJECTED response (other envelopes get no
		// reply) so the demo's single RemotePair sees a live peer without
		// standing up a second process.
		for {
			e, err := serverTransport.Recv()
			if err != nil {
				return
			}
			switch e.Kind {
			case remote.KindPing:
				_ = serverTransport.Send(remote.Envelope{Kind: remote.KindPong, Freshness: e.Freshness})
			case remote.KindValue:
				_ = serverTransport.Send(remote.Envelope{Kind: remote.KindResponse, Topic: e.Topic, Response: remote.ResponseInjected})
			}
		}
	}()

	clientTransport := socket.NewClient(clientConn)
	pair := remote.NewRemotePair(remote.Config{
		TypeID:     "demo.range",
		Scheduling: mcfsched.Params{Policy: mcfsched.PolicyDefault},
		Caps:       caps,
		Warn:       warn,
		Name:       "range-loopback",
		Metrics:    metrics,
	}, store, reg, clientTransport, mcflog.For(base, "remote"))
	pair.AddSendRule("/demo/range", "/demo/range/mirror", 8, false, 0)
	return pair, nil
}
