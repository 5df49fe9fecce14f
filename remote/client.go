// Package remote implements the client side of the remote capability
// protocol: it discovers tools advertised by external capability hosts and
// forwards invocations to them. The core is a client only; it does not
// define the host side.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/pkg/metricskey"
	"github.com/effective-security/agentflow/registry"
	"github.com/effective-security/agentflow/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentflow", "remote")

var (
	// ErrConnection is returned when the connection handshake fails.
	ErrConnection = errors.New("connection failed")
	// ErrRemoteTimeout is returned when a remote invocation exceeds its
	// timeout. The connection is marked degraded but stays open.
	ErrRemoteTimeout = errors.New("remote call timed out")
	// ErrRemoteDisconnected is returned when the connection is lost during
	// an invocation.
	ErrRemoteDisconnected = errors.New("remote host disconnected")
)

const (
	protocolVersion = "2024-11-05"
	clientName      = "agentflow"
	clientVersion   = "1.0"

	// DefaultTimeout bounds a single remote invocation unless the caller
	// provides its own.
	DefaultTimeout = 30 * time.Second
)

// Credentials carries what a capability host needs to authorize the session.
// Credential storage is out of scope; values are passed through as headers.
type Credentials struct {
	Token   string
	Headers map[string]string
}

// Connection is one logical session with a capability host. Concurrent
// invocations over the same connection are allowed; each carries its own
// timeout and failure domain.
type Connection struct {
	id       string
	endpoint string
	creds    Credentials

	nextID   atomic.Int64
	degraded atomic.Bool
}

// ID returns the connection identifier used in remote tool descriptors.
func (c *Connection) ID() string {
	return c.id
}

// Endpoint returns the host endpoint URL.
func (c *Connection) Endpoint() string {
	return c.endpoint
}

// Degraded reports whether a call on this connection has timed out since the
// last successful exchange. A degraded connection remains usable.
func (c *Connection) Degraded() bool {
	return c.degraded.Load()
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithDefaultTimeout sets the per-invocation timeout used when the caller
// does not specify one.
func WithDefaultTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.defaultTimeout = d
	}
}

// Client maintains connections to one or more capability hosts.
type Client struct {
	http           *http.Client
	defaultTimeout time.Duration

	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewClient creates a remote capability client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:           &http.Client{},
		defaultTimeout: DefaultTimeout,
		conns:          make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect performs the initialize handshake with the host and returns the
// established connection. It fails with ErrConnection on handshake failure
// and does not retry internally.
func (c *Client) Connect(ctx context.Context, name, endpoint string, creds Credentials) (*Connection, error) {
	conn := &Connection{
		id:       name,
		endpoint: endpoint,
		creds:    creds,
	}

	var res initializeResult
	err := c.call(ctx, conn, methodInitialize, initializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
	}, &res)
	if err != nil {
		return nil, errors.Mark(errors.WithMessagef(err, "connection %s", name), ErrConnection)
	}

	c.mu.Lock()
	c.conns[name] = conn
	c.mu.Unlock()

	logger.ContextKV(ctx, xlog.INFO,
		"status", "connected",
		"connection", name,
		"endpoint", endpoint,
		"server", res.ServerInfo.Name,
	)
	return conn, nil
}

// Connection returns an established connection by name.
func (c *Client) Connection(name string) (*Connection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.conns[name]
	return conn, ok
}

// Discover issues a list-capabilities request and returns the advertised
// tools tagged origin=remote. Each call is idempotent; its result fully
// supersedes any prior discovery result for the connection.
func (c *Client) Discover(ctx context.Context, conn *Connection) ([]tools.Descriptor, error) {
	var res toolsListResult
	if err := c.call(ctx, conn, methodToolsList, struct{}{}, &res); err != nil {
		return nil, errors.WithMessagef(err, "connection %s: discovery failed", conn.id)
	}
	metricskey.StatsRemoteDiscoveries.IncrCounter(1, conn.id)

	descs := make([]tools.Descriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		descs = append(descs, tools.Descriptor{
			Name:         t.Name,
			Description:  t.Description,
			Parameters:   t.InputSchema,
			Origin:       tools.OriginRemote,
			ConnectionID: conn.id,
			RemoteName:   t.Name,
		})
	}

	logger.ContextKV(ctx, xlog.INFO,
		"status", "discovered_tools",
		"connection", conn.id,
		"tools", len(descs),
	)
	return descs, nil
}

// Invoke issues a call-capability request and blocks until the response
// arrives or the timeout elapses. On timeout it returns ErrRemoteTimeout and
// marks the connection degraded without closing it, so other in-flight calls
// are unaffected. A lost connection surfaces ErrRemoteDisconnected.
func (c *Client) Invoke(ctx context.Context, conn *Connection, remoteName string, args json.RawMessage, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	var res toolsCallResult
	err := c.call(ctx, conn, methodToolsCall, toolsCallParams{
		Name:      remoteName,
		Arguments: args,
	}, &res)
	metricskey.PerfRemoteCall.MeasureSince(started, conn.id)

	if err != nil {
		var rerr *rpcError
		switch {
		case errors.As(err, &rerr):
			// Structured host-side error, the session itself is fine.
			return "", err
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			conn.degraded.Store(true)
			metricskey.StatsRemoteTimeouts.IncrCounter(1, conn.id)
			return "", errors.Mark(errors.WithMessagef(err, "tool %s on connection %s", remoteName, conn.id), ErrRemoteTimeout)
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			metricskey.StatsRemoteDisconnects.IncrCounter(1, conn.id)
			return "", errors.Mark(errors.WithMessagef(err, "tool %s on connection %s", remoteName, conn.id), ErrRemoteDisconnected)
		}
	}

	conn.degraded.Store(false)
	if res.IsError {
		return "", errors.Newf("tool %s on connection %s: %s", remoteName, conn.id, res.text())
	}
	return res.text(), nil
}

// Invoker returns the registry bridge dispatching remote descriptors by
// connection ID, using the client's default timeout per call.
func (c *Client) Invoker() registry.RemoteInvoker {
	return func(ctx context.Context, connectionID, remoteName string, args json.RawMessage) (string, error) {
		conn, ok := c.Connection(connectionID)
		if !ok {
			return "", errors.Mark(errors.Newf("connection %s is not established", connectionID), ErrRemoteDisconnected)
		}
		return c.Invoke(ctx, conn, remoteName, args, 0)
	}
}

// RegisterAll runs one discovery round per established connection and applies
// each result to the registry. A connection that fails discovery is logged
// and skipped so its tools are simply absent; it never aborts the caller.
func (c *Client) RegisterAll(ctx context.Context, reg *registry.Registry, opts ...registry.DiscoveryOption) {
	c.mu.RLock()
	conns := make([]*Connection, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.RUnlock()

	reg.SetRemoteInvoker(c.Invoker())
	for _, conn := range conns {
		descs, err := c.Discover(ctx, conn)
		if err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "discovery_failed",
				"connection", conn.id,
				"err", err.Error(),
			)
			continue
		}
		if err := reg.ApplyDiscovery(conn.id, descs, opts...); err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "discovery_not_applied",
				"connection", conn.id,
				"err", err.Error(),
			)
		}
	}
}

// call performs one JSON-RPC exchange over HTTP POST.
func (c *Client) call(ctx context.Context, conn *Connection, method string, params, result any) error {
	id := conn.nextID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithMessage(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if conn.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+conn.creds.Token)
	}
	for k, v := range conn.creds.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("unexpected status %d from %s", resp.StatusCode, conn.endpoint)
	}

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var rpcRes rpcResponse
	if err := json.Unmarshal(bs, &rpcRes); err != nil {
		return errors.WithMessage(err, "invalid response")
	}
	if rpcRes.Error != nil {
		return rpcRes.Error
	}
	if result != nil && len(rpcRes.Result) > 0 {
		if err := json.Unmarshal(rpcRes.Result, result); err != nil {
			return errors.WithMessage(err, "invalid result payload")
		}
	}
	return nil
}
