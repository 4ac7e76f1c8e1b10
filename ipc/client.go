package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrNotRunning is returned when no server listens on the control socket.
var ErrNotRunning = errors.New("no pressroom server is listening on the control socket")

// Client is a control socket client. Not safe for concurrent use.
type Client struct {
	conn net.Conn
	dec  *FrameDecoder
}

// Dial connects to the control socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return &Client{conn: conn, dec: NewFrameDecoder(conn)}, nil
}

// Do sends one command and returns the response. A response carrying an
// error is returned as an error.
func (c *Client) Do(ctx context.Context, command string) (*Response, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}

	if err := WriteFrame(c.conn, &Request{Command: command}); err != nil {
		return nil, fmt.Errorf("send %s: %w", command, err)
	}
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("read %s response: %w", command, err)
	}
	if !resp.OK {
		return &resp, fmt.Errorf("%s: %s", command, resp.Error)
	}
	return &resp, nil
}

// Stats fetches server statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	resp, err := c.Do(ctx, CommandStats)
	if err != nil {
		return nil, err
	}
	if resp.Stats == nil {
		return nil, errors.New("stats response carried no stats")
	}
	return resp.Stats, nil
}

// Shutdown asks the server to shut down. It returns once the request is
// acknowledged, not when shutdown completes.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.Do(ctx, CommandShutdown)
	return err
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, CommandPing)
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
