package tree

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"treeline/arbor/internal/db"
	"treeline/arbor/internal/metrics"
)

// DeleteBehavior decides what Delete does with the children of the node it
// removes.
type DeleteBehavior string

const (
	DeleteNone     DeleteBehavior = ""         // children are left alone; the caller guarantees there are none
	DeleteRestrict DeleteBehavior = "restrict" // refuse with ErrHasChildren
	DeleteNullify  DeleteBehavior = "nullify"  // children become roots
	DeleteDestroy  DeleteBehavior = "destroy"  // the whole branch goes
)

// Config holds the tree maintenance parameters.
type Config struct {
	FamilyLevel    int
	DeleteBehavior DeleteBehavior
}

// DefaultConfig returns the defaults: family at the root, no delete cascade.
func DefaultConfig() *Config {
	return &Config{}
}

// Backend is a Store that can also run a function inside one transaction
// and describe its table layout.
type Backend interface {
	db.Store
	Atomic(ctx context.Context, fn func(db.Store) error) error
	Schema() db.Schema
}

// Engine maintains the derived tree fields of one node table and answers
// queries over them.
type Engine struct {
	backend Backend
	config  Config
	family  bool // the table stores family_id
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger mutations are reported to.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the collectors mutations are counted in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns an Engine over backend. A nil config means DefaultConfig.
func New(backend Backend, config *Config, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.FamilyLevel < 0 {
		return nil, fmt.Errorf("family level must not be negative, got %d", config.FamilyLevel)
	}
	switch config.DeleteBehavior {
	case DeleteNone, DeleteRestrict, DeleteNullify, DeleteDestroy:
	default:
		return nil, fmt.Errorf("unknown delete behavior %q", config.DeleteBehavior)
	}

	e := &Engine{
		backend: backend,
		config:  *config,
		family:  backend.Schema().Family,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	return e.config
}

// derive fills in path, level and family of n from its parent.
func (e *Engine) derive(n *db.Node, parent *db.Node) {
	n.Path, n.Level = ComputePath(n.ID, parent)
	n.FamilyID = nil
	if e.family && parent != nil {
		n.FamilyID = FamilyOf(n.Path, n.ID, e.config.FamilyLevel)
	}
}

// mutate runs fn in one transaction and records the outcome.
func (e *Engine) mutate(ctx context.Context, op string, fn func(db.Store) (int, error)) error {
	var rewritten int
	err := e.backend.Atomic(ctx, func(s db.Store) error {
		n, err := fn(s)
		rewritten = n
		return err
	})
	if err != nil {
		e.metrics.Failed(op)
		e.log.Debug().Err(err).Str("op", op).Msg("mutation rolled back")
		return err
	}
	e.metrics.Mutation(op, rewritten)
	return nil
}
