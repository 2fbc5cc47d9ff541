// Package kafkabridge implements spec.md §4.5's remote Transport over a
// pair of Kafka/Redpanda topics, one per direction. Grounded on the
// teacher's franz-go consumer (ws/internal/shared/kafka/consumer.go:
// kgo.NewClient with ConsumeTopics/FetchMaxWait, a consumeLoop calling
// PollFetches in a background goroutine, EachRecord dispatch) repurposed
// from "broadcast a token event to websocket clients" to "deliver one
// remote-bridge envelope per record".
package kafkabridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/mcf-go/mcf/remote"
)

// Transport implements remote.Transport over Kafka: Send produces to
// sendTopic; a background consumeLoop polls recvTopic and feeds decoded
// envelopes to Recv.
type Transport struct {
	client    *kgo.Client
	sendTopic string
	recvTopic string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	envCh chan remote.Envelope
	errCh chan error
}

// New connects to brokers, producing to sendTopic and consuming recvTopic
// under consumerGroup, then starts the background consume loop.
func New(brokers []string, consumerGroup, sendTopic, recvTopic string) (*Transport, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(consumerGroup),
		kgo.ConsumeTopics(recvTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafkabridge: new client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		client:    client,
		sendTopic: sendTopic,
		recvTopic: recvTopic,
		ctx:       ctx,
		cancel:    cancel,
		envCh:     make(chan remote.Envelope, 256),
		errCh:     make(chan error, 1),
	}
	t.wg.Add(1)
	go t.consumeLoop()
	return t, nil
}

func (t *Transport) consumeLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}
		fetches := t.client.PollFetches(t.ctx)
		if t.ctx.Err() != nil {
			return
		}
		fetches.EachError(func(_ string, _ int32, err error) {
			select {
			case t.errCh <- err:
			default:
			}
		})
		fetches.EachRecord(func(record *kgo.Record) {
			e, err := remote.DecodeEnvelope(record.Value)
			if err != nil {
				select {
				case t.errCh <- fmt.Errorf("kafkabridge: decode: %w", err):
				default:
				}
				return
			}
			select {
			case t.envCh <- e:
			case <-t.ctx.Done():
			}
		})
	}
}

// Send implements remote.Transport.
func (t *Transport) Send(e remote.Envelope) error {
	data, err := remote.EncodeEnvelope(e)
	if err != nil {
		return fmt.Errorf("kafkabridge: encode: %w", err)
	}
	record := &kgo.Record{Topic: t.sendTopic, Value: data}
	result := t.client.ProduceSync(t.ctx, record)
	return result.FirstErr()
}

// Recv implements remote.Transport.
func (t *Transport) Recv() (remote.Envelope, error) {
	select {
	case e := <-t.envCh:
		return e, nil
	case err := <-t.errCh:
		return remote.Envelope{}, err
	case <-t.ctx.Done():
		return remote.Envelope{}, fmt.Errorf("kafkabridge: closed")
	}
}

// Close implements remote.Transport.
func (t *Transport) Close() error {
	t.cancel()
	t.wg.Wait()
	t.client.Close()
	return nil
}
