// Package natsbridge implements spec.md §4.5's remote Transport over NATS
// core pub/sub: each side publishes envelopes on the peer's inbound
// subject and subscribes to its own. Grounded on the teacher's NATS usage
// (go-server/pkg/nats/client.go, go-server-2's NATS-backed fan-out)
// repurposed from "websocket fan-out consuming a NATS feed" to "mirror one
// MCF topic pair onto one NATS subject pair".
package natsbridge

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mcf-go/mcf/remote"
)

// Transport implements remote.Transport over a pair of NATS core subjects.
// SendSubject is where this side publishes; RecvSubject is where it
// subscribes for inbound envelopes from the peer.
type Transport struct {
	nc          *nats.Conn
	sendSubject string
	sub         *nats.Subscription
	msgCh       chan *nats.Msg
	done        chan struct{}
	closeOnce   sync.Once
}

// New subscribes to recvSubject and returns a Transport that publishes to
// sendSubject. The caller owns nc's lifecycle beyond Close, which also
// unsubscribes.
func New(nc *nats.Conn, sendSubject, recvSubject string) (*Transport, error) {
	msgCh := make(chan *nats.Msg, 256)
	sub, err := nc.ChanSubscribe(recvSubject, msgCh)
	if err != nil {
		return nil, fmt.Errorf("natsbridge: subscribe %s: %w", recvSubject, err)
	}
	return &Transport{nc: nc, sendSubject: sendSubject, sub: sub, msgCh: msgCh, done: make(chan struct{})}, nil
}

// Send implements remote.Transport.
func (t *Transport) Send(e remote.Envelope) error {
	data, err := remote.EncodeEnvelope(e)
	if err != nil {
		return fmt.Errorf("natsbridge: encode: %w", err)
	}
	return t.nc.Publish(t.sendSubject, data)
}

// Recv implements remote.Transport.
func (t *Transport) Recv() (remote.Envelope, error) {
	var msg *nats.Msg
	var ok bool
	select {
	case msg, ok = <-t.msgCh:
	case <-t.done:
	}
	if !ok {
		return remote.Envelope{}, fmt.Errorf("natsbridge: subscription closed")
	}
	e, err := remote.DecodeEnvelope(msg.Data)
	if err != nil {
		return remote.Envelope{}, fmt.Errorf("natsbridge: decode: %w", err)
	}
	return e, nil
}

// Close implements remote.Transport.
func (t *Transport) Close() error {
	err := t.sub.Unsubscribe()
	t.closeOnce.Do(func() { close(t.done) })
	return err
}
