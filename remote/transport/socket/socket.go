// Package socket implements spec.md §4.5's reference transport: a
// length-delimited binary codec over a plain net.Conn, framed with
// gobwas/ws's WebSocket opcodes so the same framing library the teacher
// uses for its client-facing fan-out (ws/internal/shared/pump_read.go,
// pump_write.go) carries the remote bridge's inter-process traffic.
// Grounded on those two files for the read/write-side idiom (wsutil
// helpers, one frame per logical message, read/write deadlines).
package socket

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/mcf-go/mcf/remote"
)

// readWriteTimeout bounds each individual frame read/write, matching the
// teacher's pongWait/writeWait deadlines applied per-operation rather than
// per-connection.
const readWriteTimeout = 30 * time.Second

// Transport implements remote.Transport over a net.Conn already upgraded
// to a WebSocket (or, for process-local IPC, a raw framed socket using the
// same wire opcodes). isServer selects gobwas/ws's server-side framing
// (unmasked writes, masked reads) vs. client-side (the reverse), per the
// WebSocket protocol's masking rule.
type Transport struct {
	conn     net.Conn
	isServer bool

	writeMu sync.Mutex
}

// NewServer wraps conn for the side that accepted the connection (e.g. via
// net.Listen + ws.Upgrade).
func NewServer(conn net.Conn) *Transport { return &Transport{conn: conn, isServer: true} }

// NewClient wraps conn for the side that dialed out (e.g. via
// ws.DefaultDialer.Dial).
func NewClient(conn net.Conn) *Transport { return &Transport{conn: conn, isServer: false} }

// Send implements remote.Transport.
func (t *Transport) Send(e remote.Envelope) error {
	data, err := remote.EncodeEnvelope(e)
	if err != nil {
		return fmt.Errorf("socket: encode: %w", err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(readWriteTimeout))
	if t.isServer {
		return wsutil.WriteServerMessage(t.conn, ws.OpBinary, data)
	}
	return wsutil.WriteClientMessage(t.conn, ws.OpBinary, data)
}

// Recv implements remote.Transport.
func (t *Transport) Recv() (remote.Envelope, error) {
	t.conn.SetReadDeadline(time.Now().Add(readWriteTimeout))
	var (
		data []byte
		err  error
	)
	if t.isServer {
		data, _, err = wsutil.ReadClientData(t.conn)
	} else {
		data, _, err = wsutil.ReadServerData(t.conn)
	}
	if err != nil {
		return remote.Envelope{}, fmt.Errorf("socket: read: %w", err)
	}
	e, err := remote.DecodeEnvelope(data)
	if err != nil {
		return remote.Envelope{}, fmt.Errorf("socket: decode: %w", err)
	}
	return e, nil
}

// Close implements remote.Transport.
func (t *Transport) Close() error { return t.conn.Close() }
