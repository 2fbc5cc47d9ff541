// Package remote implements spec.md §4.5's remote bridge: mirroring
// declared topics between two processes over a substitutable Transport.
// Grounded on the remote bridge's prose in spec.md §4.5 (no matching
// original_source file was retrieved for this module) and on the
// teacher's internal/multi/proxy.go's goroutine-per-direction pattern for
// bidirectional forwarding, generalized from "copy raw websocket frames"
// to "apply the per-rule send/receive protocol over a typed Envelope".
package remote

import "fmt"

// Kind tags every message the wire protocol exchanges (spec.md §4.5 "Wire
// protocol (message kinds)").
type Kind uint8

const (
	KindPing Kind = iota
	KindPong
	KindValue
	KindCommand
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindValue:
		return "value"
	case KindCommand:
		return "command"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Command names spec.md §4.5's three control commands.
const (
	CommandSendAll       = "sendAll"
	CommandValueInjected = "valueInjected"
	CommandValueRejected = "valueRejected"
)

// Response strings spec.md §4.5 defines for every non-ping/pong message.
const (
	ResponseInjected = "INJECTED"
	ResponseReceived = "RECEIVED"
	ResponseRejected = "REJECTED"
	ResponseTimeout  = "TIMEOUT"
	ResponseNone     = ""
)

// Envelope is one wire message, self-describing by Kind. Fields unused by
// a given Kind are left zero.
type Envelope struct {
	Kind      Kind
	Freshness uint64 // ping/pong
	Topic     string // value/command/response
	Payload   []byte // value
	ExtMem    []byte // value, optional out-of-band bytes
	Command   string // command
	Response  string // response
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s{topic=%q response=%q command=%q}", e.Kind, e.Topic, e.Response, e.Command)
}

// Transport is the substitutable wire codec spec.md §1 requires ("the
// specific wire codec chosen for the remote bridge... is a substitutable
// module"). A Transport need only deliver Envelopes in order, once each;
// RemotePair handles framing of the higher-level send/receive protocol on
// top.
type Transport interface {
	// Send writes one envelope to the peer. Safe to call from multiple
	// goroutines; implementations must serialize concurrent writes.
	Send(Envelope) error
	// Recv blocks until the next envelope arrives or the transport is
	// closed, in which case it returns an error.
	Recv() (Envelope, error)
	// Close releases the transport's underlying resources and unblocks
	// any pending Recv.
	Close() error
}
