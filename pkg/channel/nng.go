package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// TopicPrefix precedes every agent_update frame on the NNG PUB socket.
// SUB sockets filter on it and it is stripped before decoding.
const TopicPrefix = "agent_update:"

// recvPoll bounds each blocking Recv so Receive can notice a cancelled context
const recvPoll = time.Second

// NNGTransport subscribes to the research server's mangos PUB socket
type NNGTransport struct {
	Addr string
}

// NewNNGTransport creates a transport for an NNG URL such as tcp://host:5001
func NewNNGTransport(addr string) *NNGTransport {
	return &NNGTransport{Addr: addr}
}

func (t *NNGTransport) Name() string    { return "nng" }
func (t *NNGTransport) Address() string { return t.Addr }

// Dial creates a SUB socket subscribed to TopicPrefix. Once connected, mangos
// redials the PUB side on its own.
func (t *NNGTransport) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionSubscribe, []byte(TopicPrefix)); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, recvPoll); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set receive deadline: %w", err)
	}
	if err := sock.Dial(t.Addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("dial %s: %w", t.Addr, err)
	}
	return &nngConn{sock: sock}, nil
}

type nngConn struct {
	sock mangos.Socket
}

func (c *nngConn) Receive(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := c.sock.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrRecvTimeout) {
				continue
			}
			if errors.Is(err, mangos.ErrClosed) {
				return nil, ErrConnClosed
			}
			return nil, fmt.Errorf("nng recv: %w", err)
		}

		// The subscription filters on the prefix already; anything else is
		// a frame from a misconfigured publisher and is passed on undecoded
		// so the listener counts it as malformed.
		return bytes.TrimPrefix(msg, []byte(TopicPrefix)), nil
	}
}

func (c *nngConn) Close() error {
	err := c.sock.Close()
	if errors.Is(err, mangos.ErrClosed) {
		return nil
	}
	return err
}
