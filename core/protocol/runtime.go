package protocol

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cantorfi/core/events"
	"cantorfi/core/state"
	"cantorfi/observability/metrics"
)

// Addresses are the singleton contracts of a deployment.
type Addresses struct {
	Registry   common.Address
	Factory    common.Address
	Collector  common.Address
	Collateral common.Address
}

// DefaultAddresses derives the singleton addresses from fixed labels.
func DefaultAddresses() Addresses {
	return Addresses{
		Registry:   labelAddress("cantorfi/registry"),
		Factory:    labelAddress("cantorfi/factory"),
		Collector:  labelAddress("cantorfi/fee-collector"),
		Collateral: labelAddress("cantorfi/collateral-manager"),
	}
}

func labelAddress(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label)))
}

// Option customises a Runtime.
type Option func(*Runtime)

func WithClock(clock func() time.Time) Option {
	return func(r *Runtime) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithEmitter sets the sink for committed events.
func WithEmitter(emitter events.Emitter) Option {
	return func(r *Runtime) {
		if emitter != nil {
			r.emitter = emitter
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runtime) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

func WithMetrics(m *metrics.VaultMetrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// Runtime executes protocol operations atomically against the state manager.
// Every call runs in its own transaction; events are only published after the
// transaction commits.
type Runtime struct {
	mu      sync.Mutex
	state   *state.Manager
	addrs   Addresses
	clock   func() time.Time
	emitter events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.VaultMetrics
}

// New constructs a runtime over manager.
func New(manager *state.Manager, addrs Addresses, opts ...Option) *Runtime {
	r := &Runtime{
		state:   manager,
		addrs:   addrs,
		clock:   time.Now,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("cantorfi/protocol"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Addresses returns the singleton contract addresses.
func (r *Runtime) Addresses() Addresses { return r.addrs }

// Now returns the runtime clock reading.
func (r *Runtime) Now() time.Time { return r.clock() }

func (r *Runtime) update(ctx context.Context, op string, caller common.Address, fn func(*env) error) error {
	_, span := r.tracer.Start(ctx, "protocol."+op, trace.WithAttributes(
		attribute.String("protocol.operation", op),
		attribute.String("protocol.caller", caller.Hex()),
	))
	defer span.End()
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	buf := &events.Buffer{}
	var snapshots []metrics.VaultSnapshot
	err := r.state.Update(func(tx *state.Tx) error {
		e := r.newEnv(tx, buf)
		if err := fn(e); err != nil {
			return err
		}
		snapshots = e.snapshots()
		return nil
	})
	r.metrics.ObserveOperation(op, time.Since(start), err)
	if err != nil {
		buf.Reset()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("protocol operation rejected", "operation", op, "caller", caller.Hex(), "error", err)
		return err
	}
	for _, snap := range snapshots {
		r.metrics.RecordVault(snap)
	}
	published := buf.Events()
	for _, evt := range published {
		r.metrics.RecordEvent(evt.EventType())
	}
	span.SetAttributes(attribute.Int("protocol.events", len(published)))
	buf.Flush(r.emitter)
	return nil
}

func (r *Runtime) view(ctx context.Context, op string, fn func(*env) error) error {
	_, span := r.tracer.Start(ctx, "protocol.view."+op)
	defer span.End()
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.state.View(func(tx *state.Tx) error {
		return fn(r.newEnv(tx, &events.Buffer{}))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
