// Package registry holds the process-wide set of tool descriptors, built
// once at startup and safe for concurrent readers. Mutations construct a new
// immutable snapshot and swap it atomically, so readers always observe
// either the old or the new descriptor set, never a partial one.
package registry

import (
	"context"
	"encoding/json"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/pkg/metricskey"
	"github.com/effective-security/agentflow/schema"
	"github.com/effective-security/agentflow/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentflow", "registry")

var (
	// ErrToolNotFound is returned when a tool name does not resolve.
	ErrToolNotFound = errors.New("tool not found")
	// ErrDuplicateTool is returned when a registration collides with an
	// existing tool name. Re-registering the same name is always an error;
	// shadowing happens only through the explicit override flag on
	// discovery.
	ErrDuplicateTool = errors.New("duplicate tool")
	// ErrInvalidArguments marks invocation errors caused by arguments that
	// violate the tool's parameter schema. The underlying error carries the
	// violated fields, see schema.ValidationError.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// RemoteInvoker forwards an invocation of a remote tool to its capability
// host. It is injected by the remote client so the registry stays free of
// transport concerns.
type RemoteInvoker func(ctx context.Context, connectionID, remoteName string, args json.RawMessage) (string, error)

// Filter selects descriptors in List.
type Filter func(tools.Descriptor) bool

type snapshot struct {
	// order holds descriptors in registration order; byName indexes the
	// same descriptors for resolution.
	order  []tools.Descriptor
	byName map[string]tools.Descriptor
}

type connection struct {
	id       string
	override bool
	descs    []tools.Descriptor
}

// Registry is the process-wide tool registry.
type Registry struct {
	mu       sync.Mutex
	natives  []tools.Descriptor
	conns    []*connection
	snapshot atomic.Pointer[snapshot]

	remoteInvoker RemoteInvoker
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	r.snapshot.Store(&snapshot{byName: map[string]tools.Descriptor{}})
	return r
}

// SetRemoteInvoker injects the bridge used to dispatch remote descriptors.
func (r *Registry) SetRemoteInvoker(inv RemoteInvoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remoteInvoker = inv
}

// Register adds a native tool descriptor. It fails with ErrDuplicateTool if
// any tool of the same name is already registered.
func (r *Registry) Register(d tools.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Origin != tools.OriginNative {
		return errors.Newf("tool %s: only native tools may be registered directly, remote tools arrive via discovery", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshot.Load().byName[d.Name]; ok {
		return errors.WithMessagef(ErrDuplicateTool, "tool %s", d.Name)
	}
	r.natives = append(r.natives, d)
	r.rebuildLocked()

	logger.KV(xlog.INFO, "status", "registered_tool", "tool", d.Name, "origin", d.Origin)
	return nil
}

// MustRegister registers all descriptors and panics on failure. Intended for
// the startup registration pass where a collision is a programming error.
func (r *Registry) MustRegister(descs ...tools.Descriptor) {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			logger.KV(xlog.ERROR, "status", "failed_to_register_tool", "tool", d.Name, "err", err.Error())
			panic(err)
		}
	}
}

// DiscoveryOption configures how a discovery result is applied.
type DiscoveryOption func(*discoveryOptions)

type discoveryOptions struct {
	override bool
}

// WithOverride allows remote descriptors to shadow natively registered tools
// of the same name. Without it a colliding remote tool is skipped.
func WithOverride() DiscoveryOption {
	return func(o *discoveryOptions) {
		o.override = true
	}
}

// ApplyDiscovery replaces all remote descriptors previously discovered for
// the connection with the given set. The replacement is a full swap, not a
// merge, since remote tool sets can shrink between discoveries.
func (r *Registry) ApplyDiscovery(connectionID string, descs []tools.Descriptor, opts ...DiscoveryOption) error {
	var o discoveryOptions
	for _, opt := range opts {
		opt(&o)
	}

	for _, d := range descs {
		if d.Origin != tools.OriginRemote || d.ConnectionID != connectionID {
			return errors.Newf("tool %s: descriptor does not belong to connection %s", d.Name, connectionID)
		}
		if err := d.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn := &connection{id: connectionID, override: o.override, descs: descs}
	replaced := false
	for i, c := range r.conns {
		if c.id == connectionID {
			r.conns[i] = conn
			replaced = true
			break
		}
	}
	if !replaced {
		r.conns = append(r.conns, conn)
	}
	r.rebuildLocked()

	logger.KV(xlog.INFO,
		"status", "applied_discovery",
		"connection", connectionID,
		"tools", len(descs),
		"override", o.override,
	)
	return nil
}

// DropConnection removes all remote descriptors for the connection, used
// when the connection is lost for good.
func (r *Registry) DropConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.conns {
		if c.id == connectionID {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			r.rebuildLocked()
			return
		}
	}
}

// rebuildLocked constructs a fresh snapshot from natives and per-connection
// remote sets and swaps it in. Callers must hold r.mu.
func (r *Registry) rebuildLocked() {
	next := &snapshot{byName: make(map[string]tools.Descriptor)}

	for _, d := range r.natives {
		next.order = append(next.order, d)
		next.byName[d.Name] = d
	}

	for _, c := range r.conns {
		for _, d := range c.descs {
			if _, exists := next.byName[d.Name]; exists {
				if !c.override {
					logger.KV(xlog.WARNING,
						"status", "remote_tool_shadowed",
						"tool", d.Name,
						"connection", c.id,
						"reason", "name collision without override",
					)
					continue
				}
				// The override removes the earlier entry so the remote
				// descriptor is the one resolution and listing observe.
				for i, prev := range next.order {
					if prev.Name == d.Name {
						next.order = append(next.order[:i], next.order[i+1:]...)
						break
					}
				}
			}
			next.order = append(next.order, d)
			next.byName[d.Name] = d
		}
	}

	r.snapshot.Store(next)
}

// Resolve returns the descriptor for the given name.
func (r *Registry) Resolve(name string) (tools.Descriptor, error) {
	d, ok := r.snapshot.Load().byName[name]
	if !ok {
		return tools.Descriptor{}, errors.WithMessagef(ErrToolNotFound, "tool %s", name)
	}
	return d, nil
}

// Len returns the number of resolvable tools.
func (r *Registry) Len() int {
	return len(r.snapshot.Load().order)
}

// List returns a lazy, restartable sequence of descriptors in registration
// order. The sequence iterates the snapshot current at the time List was
// called, so re-ranging it yields the same ordering.
func (r *Registry) List(filter Filter) iter.Seq[tools.Descriptor] {
	snap := r.snapshot.Load()
	return func(yield func(tools.Descriptor) bool) {
		for _, d := range snap.order {
			if filter != nil && !filter(d) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Descriptors returns all descriptors matching the filter as a slice.
func (r *Registry) Descriptors(filter Filter) []tools.Descriptor {
	var out []tools.Descriptor
	for d := range r.List(filter) {
		out = append(out, d)
	}
	return out
}

// Invoke validates the arguments against the tool's parameter schema and
// dispatches to the native handler or the remote invoker. The handler is
// never called when validation fails. The registry performs no retries;
// retry policy belongs to the handler or the orchestrator.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	d, err := r.Resolve(name)
	if err != nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		return "", err
	}

	if err := schema.ValidateArguments(d.Parameters, args); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			metricskey.StatsToolCallsInvalidArgs.IncrCounter(1, name)
			return "", errors.Mark(errors.WithMessagef(verr, "tool %s", name), ErrInvalidArguments)
		}
		return "", errors.WithMessagef(err, "tool %s", name)
	}

	started := time.Now()
	var res string
	if d.IsRemote() {
		r.mu.Lock()
		inv := r.remoteInvoker
		r.mu.Unlock()
		if inv == nil {
			return "", errors.Newf("tool %s: no remote invoker configured", name)
		}
		res, err = inv(ctx, d.ConnectionID, d.RemoteName, args)
	} else {
		res, err = d.Handler(ctx, args)
	}
	metricskey.PerfToolCall.MeasureSince(started, name)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_call_failed",
			"tool", name,
			"origin", d.Origin,
			"err", err.Error(),
		)
		return "", err
	}
	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	return res, nil
}
