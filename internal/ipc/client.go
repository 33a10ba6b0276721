package ipc

import (
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"babel/internal/protocol"
)

const (
	dialTimeout = 2 * time.Second
	serviceName = "Babel"
)

// Client is a JSON-RPC connection to the daemon's control socket.
type Client struct {
	client *rpc.Client
}

// Dial connects to the control socket at the given path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{client: jsonrpc.NewClient(conn)}, nil
}

// DialStream connects to the translation socket. The returned connection is
// used through its protocol.ControlPort half.
func DialStream(path string) (*protocol.StreamConn, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return protocol.NewStreamConn(conn), nil
}

// Close tears down the RPC client and its connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	if errors.Is(err, rpc.ErrShutdown) {
		return nil
	}
	return err
}

// Stop asks the daemon to shut down. The reply arrives before the daemon
// actually exits.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// HistoryList returns the newest limit history entries.
func (c *Client) HistoryList(limit int) (*HistoryListResponse, error) {
	return call[HistoryListResponse](c, "HistoryList", HistoryListRequest{Limit: limit})
}

// HistoryClear removes every history entry.
func (c *Client) HistoryClear() (*HistoryClearResponse, error) {
	return call[HistoryClearResponse](c, "HistoryClear", HistoryClearRequest{})
}

func call[T any](c *Client, method string, args any) (*T, error) {
	resp := new(T)
	if err := c.client.Call(serviceName+"."+method, args, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
