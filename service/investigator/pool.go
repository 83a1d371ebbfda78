package investigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/policy"
	"github.com/viant/deepresearch/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config controls budgets and time limits of a Pool.
type Config struct {
	Budget              int           `json:"budget" yaml:"budget"`
	MinViable           int           `json:"minViable" yaml:"minViable"`
	Split               Split         `json:"split,omitempty" yaml:"split,omitempty"`
	InvestigatorTimeout time.Duration `json:"investigatorTimeout" yaml:"investigatorTimeout"`
	Ceiling             time.Duration `json:"ceiling" yaml:"ceiling"`
}

// DefaultConfig returns budget 25, minimum 10, a 10 minute per-investigator
// timeout and a 30 minute ceiling.
func DefaultConfig() Config {
	return Config{
		Budget:              25,
		MinViable:           10,
		Split:               DefaultSplit(),
		InvestigatorTimeout: 10 * time.Minute,
		Ceiling:             30 * time.Minute,
	}
}

// Outcome is the joined result of one investigation round.
type Outcome struct {
	Findings map[model.SourceType][]model.Finding
	Budgets  map[model.SourceType]int
	Failed   map[model.SourceType]string
	Degraded bool
	Total    int
}

// FailedTypes lists investigators that failed, in dispatch order.
func (o *Outcome) FailedTypes() []model.SourceType {
	var ret []model.SourceType
	for _, t := range model.SourceTypes {
		if _, ok := o.Failed[t]; ok {
			ret = append(ret, t)
		}
	}
	return ret
}

// Pool runs the registered investigators concurrently.
type Pool struct {
	config        Config
	investigators map[model.SourceType]Investigator
	policy        *policy.Policy
	logger        *zap.Logger
}

// PoolOption customises a Pool.
type PoolOption func(p *Pool)

// WithPolicy filters findings before they count against budgets.
func WithPolicy(p *policy.Policy) PoolOption {
	return func(pool *Pool) { pool.policy = p }
}

// NewPool creates a pool over investigators; at most one per type is kept.
func NewPool(config Config, investigators []Investigator, opts ...PoolOption) *Pool {
	defaults := DefaultConfig()
	if config.Budget <= 0 {
		config.Budget = defaults.Budget
	}
	if config.MinViable < 0 {
		config.MinViable = 0
	}
	if config.InvestigatorTimeout <= 0 {
		config.InvestigatorTimeout = defaults.InvestigatorTimeout
	}
	if config.Ceiling <= 0 {
		config.Ceiling = defaults.Ceiling
	}
	p := &Pool{
		config:        config,
		investigators: map[model.SourceType]Investigator{},
		logger:        logging.Named("investigator"),
	}
	for _, inv := range investigators {
		if inv != nil {
			p.investigators[inv.Type()] = inv
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pool) Config() Config { return p.config }

// Run dispatches every non-zero sub-budget concurrently and joins them. A
// failing or slow investigator contributes whatever it returned; only
// cancellation of ctx itself aborts the round. When the combined count is
// below MinViable the outcome is returned with ErrInsufficientSources.
func (p *Pool) Run(ctx context.Context, brief *model.Brief) (outcome *Outcome, err error) {
	ctx, span := tracing.StartSpan(ctx, "investigator.Pool.Run")
	defer func() { tracing.EndSpan(span, err) }()

	ceilingCtx, cancel := context.WithTimeout(ctx, p.config.Ceiling)
	defer cancel()

	outcome = &Outcome{
		Findings: map[model.SourceType][]model.Finding{},
		Budgets:  Budgets(p.config.Budget, brief, p.config.Split),
		Failed:   map[model.SourceType]string{},
	}
	admissible := p.policy.ForBrief(brief)

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ceilingCtx)
	group.SetLimit(len(model.SourceTypes))
	for _, sourceType := range model.SourceTypes {
		budget := outcome.Budgets[sourceType]
		if budget == 0 {
			continue
		}
		inv, ok := p.investigators[sourceType]
		if !ok {
			outcome.Failed[sourceType] = "no investigator registered"
			continue
		}
		group.Go(func() error {
			findings, runErr := p.investigate(groupCtx, inv, brief, budget)
			findings = admissible.Filter(findings)
			if len(findings) > budget {
				findings = findings[:budget]
			}
			mu.Lock()
			defer mu.Unlock()
			outcome.Findings[sourceType] = findings
			if runErr != nil {
				outcome.Failed[sourceType] = runErr.Error()
			}
			return nil
		})
	}
	_ = group.Wait()

	if err = ctx.Err(); err != nil {
		return outcome, err
	}
	for _, t := range model.SourceTypes {
		outcome.Total += len(outcome.Findings[t])
	}
	outcome.Degraded = len(outcome.Failed) > 0 || outcome.Total < p.config.Budget
	span.WithInt("findings", outcome.Total)
	p.logger.Info("investigation joined",
		zap.String("topic", brief.Topic),
		zap.Int("findings", outcome.Total),
		zap.Any("budgets", outcome.Budgets),
		zap.Any("failed", outcome.Failed),
	)
	if outcome.Total < p.config.MinViable {
		return outcome, fmt.Errorf("%d of %d findings, minimum %d: %w", outcome.Total, p.config.Budget, p.config.MinViable, ErrInsufficientSources)
	}
	return outcome, nil
}

func (p *Pool) investigate(ctx context.Context, inv Investigator, brief *model.Brief, budget int) (findings []model.Finding, err error) {
	ctx, span := tracing.StartSpan(ctx, "investigator."+string(inv.Type()))
	defer func() { tracing.EndSpan(span, err) }()
	ctx, cancel := context.WithTimeout(ctx, p.config.InvestigatorTimeout)
	defer cancel()

	findings, err = inv.Investigate(ctx, brief, budget)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s timed out", ErrInvestigatorFailure, inv.Type())
		}
		p.logger.Warn("investigator failed",
			zap.String("type", string(inv.Type())),
			zap.Int("partial", len(findings)),
			zap.Error(err))
	}
	span.WithInt("findings", len(findings))
	return findings, err
}
