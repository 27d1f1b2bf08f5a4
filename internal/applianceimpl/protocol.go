package applianceimpl

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/skyrelay/vortex/internal/observability"
)

// Control protocol spoken over the vsock channel to the in-guest agent.
// Every message is a 4-byte big-endian length prefix followed by a JSON
// body, mirroring the framing used elsewhere in this codebase for
// control-plane traffic over a byte-stream transport.
const (
	msgTypeConfigure = 1
	msgTypeStats     = 2
	msgTypeStop      = 3
	msgTypePing      = 4
	msgTypeResp      = 5
)

type controlMessage struct {
	Type    int             `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// configurePayload carries the router's network configuration to the
// guest agent. Trace carries the host's current span so agent-side logs
// can be correlated back to the pump cycle that issued the configure
// call (internal/observability.ExtractTraceContext).
type configurePayload struct {
	RouterID string                     `json:"router_id"`
	TenantID string                     `json:"tenant_id"`
	Trace    observability.TraceContext `json:"trace,omitempty"`
}

// statsPayload is the guest agent's response to a stats request.
type statsPayload struct {
	RxBytes int64 `json:"rx_bytes"`
	TxBytes int64 `json:"tx_bytes"`
}

const maxControlMessageBytes = 1 << 20

func marshalPayload(v interface{}) (json.RawMessage, error) {
	return json.Marshal(v)
}

func unmarshalPayload(data json.RawMessage, v interface{}) error {
	return json.Unmarshal(data, v)
}

func sendControlMessage(conn net.Conn, msg *controlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)
	return writeFull(conn, buf)
}

func recvControlMessage(conn net.Conn) (*controlMessage, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf)
	if n > maxControlMessageBytes {
		return nil, fmt.Errorf("control message too large: %d bytes", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, err
	}
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func roundTrip(conn net.Conn, timeout time.Duration, req *controlMessage) (*controlMessage, error) {
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
		defer conn.SetDeadline(time.Time{})
	}
	if err := sendControlMessage(conn, req); err != nil {
		return nil, err
	}
	resp, err := recvControlMessage(conn)
	if err != nil {
		return nil, err
	}
	if resp.Type != msgTypeResp {
		return nil, errors.New("unexpected control response type")
	}
	return resp, nil
}

func writeFull(conn net.Conn, b []byte) error {
	for len(b) > 0 {
		n, err := conn.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
