// Package monitor drives the live polling loop: it pulls lines from a
// source, parses them and appends committed samples to a store.
package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/vignelab/vignelab/pkg/metrics"
	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/store"
)

// Defaults for the polling loop.
const (
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultMaxLinesPerTick = 64
)

// CommitFunc is called after a sample was appended to the store.
type CommitFunc func(ts float64, snap store.Snapshot, state *parser.FieldState)

// Monitor owns the field state and feeds the store. It is not safe for
// concurrent use; Run and Tick must be called from one goroutine.
type Monitor struct {
	source  parser.LineSource
	parser  *parser.Parser
	store   *store.Store
	state   *parser.FieldState
	logger  *slog.Logger
	metrics *metrics.Metrics

	pollInterval    time.Duration
	maxLinesPerTick int
	onCommit        []CommitFunc

	stats   Stats
	readErr error
}

// Stats counts what the monitor has processed so far.
type Stats struct {
	Lines      int `json:"lines"`
	Updates    int `json:"updates"`
	Commits    int `json:"commits"`
	Skipped    int `json:"skipped"`
	ReadErrors int `json:"read_errors"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics publishes line counts and store state.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// WithPollInterval sets the tick period.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithMaxLinesPerTick caps the lines drained per tick.
func WithMaxLinesPerTick(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxLinesPerTick = n
		}
	}
}

// WithCommitHook registers a function called after every commit.
func WithCommitHook(fn CommitFunc) Option {
	return func(m *Monitor) {
		m.onCommit = append(m.onCommit, fn)
	}
}

// New creates a monitor reading src with p and appending to st.
func New(src parser.LineSource, p *parser.Parser, st *store.Store, opts ...Option) *Monitor {
	m := &Monitor{
		source:          src,
		parser:          p,
		store:           st,
		state:           parser.NewFieldState(),
		logger:          slog.Default(),
		pollInterval:    DefaultPollInterval,
		maxLinesPerTick: DefaultMaxLinesPerTick,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current field state.
func (m *Monitor) State() *parser.FieldState {
	return m.state
}

// Stats returns the processing counters.
func (m *Monitor) Stats() Stats {
	return m.stats
}

// Tick drains up to the per-tick line limit. It returns io.EOF once the
// source is exhausted and the context error when ctx is done. Any other
// read error is logged, counted and swallowed.
func (m *Monitor) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.ObserveTick(time.Since(start))
		}
	}()

	for i := 0; i < m.maxLinesPerTick; i++ {
		line, err := m.source.Next(ctx)
		switch {
		case err == nil:
			m.handle(line)
		case errors.Is(err, parser.ErrNoData):
			return nil
		case errors.Is(err, parser.ErrLineTooLong):
			m.dropLine(err)
		case errors.Is(err, io.EOF), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			m.stats.ReadErrors++
			m.readErr = err
			if m.metrics != nil {
				m.metrics.ObserveReadError()
			}
			m.logger.Warn("read failed", "error", err)
			return nil
		}
	}
	return nil
}

// dropLine counts a line the source had to discard as skipped.
func (m *Monitor) dropLine(err error) {
	m.stats.Lines++
	m.stats.Skipped++
	if m.metrics != nil {
		m.metrics.ObserveLine(parser.Result{Outcome: parser.OutcomeNoop, Reason: err.Error()})
	}
	m.logger.Warn("line dropped", "error", err)
}

func (m *Monitor) handle(line *parser.Line) {
	m.stats.Lines++
	res := m.parser.Parse(line.Text, m.state)
	if m.metrics != nil {
		m.metrics.ObserveLine(res)
	}

	switch res.Outcome {
	case parser.OutcomeFieldsUpdated:
		m.stats.Updates++
	case parser.OutcomeSampleCommitted:
		m.stats.Commits++
		ts := m.store.Append(*res.Sample)
		snap := m.store.Snapshot()
		if m.metrics != nil {
			m.metrics.ObserveStore(m.store)
		}
		m.logger.Debug("sample committed",
			"time", ts,
			"ndvi", snap.Values[parser.FieldNDVI],
			"health", snap.Health,
			"label", m.state.Label)
		for _, fn := range m.onCommit {
			fn(ts, snap, m.state)
		}
	default:
		m.stats.Skipped++
		if res.Category != parser.CategoryNone {
			m.logger.Debug("line skipped",
				"source", line.Source,
				"line", line.LineNum,
				"category", res.Category,
				"reason", res.Reason)
		}
	}
}

// Run ticks every poll interval until ctx is done or the source is
// exhausted. The source is always closed on return. Exhaustion and
// cancellation are not errors.
func (m *Monitor) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := m.source.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if terr := m.Tick(ctx); terr != nil {
			if errors.Is(terr, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return terr
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain ticks without waiting until a finite source is exhausted, for
// replaying a recorded log in one pass. A read error stops the replay.
func (m *Monitor) Drain(ctx context.Context) (err error) {
	defer func() {
		if cerr := m.source.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		before := m.stats
		if terr := m.Tick(ctx); terr != nil {
			if errors.Is(terr, io.EOF) {
				return nil
			}
			return terr
		}
		if m.stats.ReadErrors > before.ReadErrors {
			return m.readErr
		}
		if m.stats.Lines == before.Lines {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.pollInterval):
			}
		}
	}
}
