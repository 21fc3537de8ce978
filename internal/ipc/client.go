package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is the CLI side of the control socket. Its methods mirror the
// service registered by NewServer one to one.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path. Errors come
// back unwrapped so callers can distinguish a missing socket from a
// refused connection.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close tears down the RPC client and the socket connection beneath it.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Status reports the daemon's runtime counters and resolved paths.
func (c *Client) Status() (*StatusResponse, error) {
	resp := new(StatusResponse)
	if err := c.invoke("Status", StatusRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	resp := new(StopResponse)
	if err := c.invoke("Stop", StopRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Stats retrieves download counters and hub connection stats.
func (c *Client) Stats() (*StatsResponse, error) {
	resp := new(StatsResponse)
	if err := c.invoke("Stats", StatsRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// HistoryList returns archived download records, newest first.
func (c *Client) HistoryList(limit int) (*HistoryListResponse, error) {
	resp := new(HistoryListResponse)
	if err := c.invoke("HistoryList", HistoryListRequest{Limit: limit}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// HistoryClear removes all archived download records.
func (c *Client) HistoryClear() (*HistoryClearResponse, error) {
	resp := new(HistoryClearResponse)
	if err := c.invoke("HistoryClear", HistoryClearRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// LogTail fetches log lines starting at the offset carried in req.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	resp := new(LogTailResponse)
	if err := c.invoke("LogTail", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// TestNotification asks the daemon to push a test message through ntfy.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	resp := new(TestNotificationResponse)
	if err := c.invoke("TestNotification", TestNotificationRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
