package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	traceerrors "github.com/tracey-dev/tracey/internal/errors"
)

// Client is a connection to a running daemon's endpoint, used by the CLI
// subcommands that delegate to a long-lived Engine instead of rebuilding
// the snapshot themselves.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	enc     *json.Encoder
}

// Dial connects to endpoint with a 1s timeout, matching the client-side
// health-check timeout from spec.md §5.
func Dial(endpoint string) (*Client, error) {
	conn, err := net.DialTimeout("unix", endpoint, time.Second)
	if err != nil {
		return nil, traceerrors.NewNetworkError(
			"Cannot connect to tracey daemon",
			fmt.Sprintf("Failed to reach %s", endpoint),
			"Run `tracey daemon` first, or check that a previous daemon did not exit",
			err,
		)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Client{conn: conn, scanner: scanner, enc: json.NewEncoder(conn)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Call sends one request and decodes its response.
func (c *Client) Call(op string, args map[string]any) (Response, error) {
	if err := c.enc.Encode(Request{Op: op, Args: args}); err != nil {
		return Response{}, err
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Response{}, err
		}
		return Response{}, fmt.Errorf("daemon closed connection without a response")
	}
	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
