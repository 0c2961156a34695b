// Package store keeps the in-memory time series fed by the parsers.
package store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vignelab/vignelab/pkg/parser"
)

// Defaults for the live dashboard.
const (
	DefaultMaxPoints = 50
	DefaultTimeStep  = 10.0 // seconds between firmware cycles
)

// ErrNotIncreasing is returned by AppendAt when a timestamp does not
// move strictly forward.
var ErrNotIncreasing = errors.New("timestamp not strictly increasing")

// Store is an ordered, optionally bounded collection of samples kept as
// one timestamp axis plus one series per field. All series share a single
// index: eviction removes the same position from every one of them.
type Store struct {
	maxPoints int
	step      float64
	fields    []string

	times   []float64
	series  map[string][]float64
	evicted int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxPoints bounds the store. Zero or less keeps every sample.
func WithMaxPoints(n int) Option {
	return func(s *Store) {
		s.maxPoints = n
	}
}

// WithTimeStep sets the timestamp increment used by Append.
func WithTimeStep(step float64) Option {
	return func(s *Store) {
		if step > 0 {
			s.step = step
		}
	}
}

// WithFields sets the tracked fields. Defaults to the sensor schema.
func WithFields(fields ...string) Option {
	return func(s *Store) {
		if len(fields) > 0 {
			s.fields = slices.Clone(fields)
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		maxPoints: DefaultMaxPoints,
		step:      DefaultTimeStep,
		fields:    slices.Clone(parser.Fields),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.series = make(map[string][]float64, len(s.fields))
	return s
}

// Append adds a live sample. Its timestamp is the previous timestamp plus
// the configured step, or 0 for the first sample; sample.Time is ignored.
// It returns the assigned timestamp.
func (s *Store) Append(sample parser.Sample) float64 {
	ts := 0.0
	if n := len(s.times); n > 0 {
		ts = s.times[n-1] + s.step
	}
	s.push(ts, sample.Values)
	return ts
}

// AppendAt adds a sample with an explicit timestamp, as read from a file.
func (s *Store) AppendAt(ts float64, values map[string]float64) error {
	if n := len(s.times); n > 0 && ts <= s.times[n-1] {
		return fmt.Errorf("%w: %g after %g", ErrNotIncreasing, ts, s.times[n-1])
	}
	s.push(ts, values)
	return nil
}

func (s *Store) push(ts float64, values map[string]float64) {
	s.times = append(s.times, ts)
	for _, f := range s.fields {
		s.series[f] = append(s.series[f], values[f])
	}
	if s.maxPoints > 0 && len(s.times) > s.maxPoints {
		s.evictOldest()
	}
}

func (s *Store) evictOldest() {
	s.times = dropFirst(s.times)
	for _, f := range s.fields {
		s.series[f] = dropFirst(s.series[f])
	}
	s.evicted++
}

// dropFirst removes index 0 in place so the backing array does not grow.
func dropFirst(xs []float64) []float64 {
	copy(xs, xs[1:])
	return xs[:len(xs)-1]
}

// Len returns the number of retained samples.
func (s *Store) Len() int {
	return len(s.times)
}

// Evicted returns how many samples were dropped by the bound.
func (s *Store) Evicted() int {
	return s.evicted
}

// MaxPoints returns the bound, or 0 when unbounded.
func (s *Store) MaxPoints() int {
	return s.maxPoints
}

// Fields returns the tracked field names.
func (s *Store) Fields() []string {
	return slices.Clone(s.fields)
}

// Times returns a copy of the timestamp axis.
func (s *Store) Times() []float64 {
	return slices.Clone(s.times)
}

// SeriesFor returns aligned copies of the timestamps and the values of
// one field. ok is false for an unknown field.
func (s *Store) SeriesFor(field string) (times, values []float64, ok bool) {
	if !slices.Contains(s.fields, field) {
		return nil, nil, false
	}
	return slices.Clone(s.times), slices.Clone(s.series[field]), true
}

// Reset drops every sample. A new file load replaces, never merges.
func (s *Store) Reset() {
	s.times = nil
	s.series = make(map[string][]float64, len(s.fields))
	s.evicted = 0
}

// Snapshot is the most recent sample plus the derived health state.
type Snapshot struct {
	// Empty is true when no sample has been stored yet.
	Empty bool `json:"empty"`

	Time   float64            `json:"time"`
	Values map[string]float64 `json:"values"`
	Health Health             `json:"health,omitempty"`
}

// Snapshot returns the latest values. Health is computed from the latest
// NDVI on every call and never stored.
func (s *Store) Snapshot() Snapshot {
	n := len(s.times)
	if n == 0 {
		return Snapshot{Empty: true, Values: map[string]float64{}}
	}
	values := make(map[string]float64, len(s.fields))
	for _, f := range s.fields {
		values[f] = s.series[f][n-1]
	}
	return Snapshot{
		Time:   s.times[n-1],
		Values: values,
		Health: HealthOf(values[parser.FieldNDVI]),
	}
}

// Rows returns the retained samples in order.
func (s *Store) Rows() []parser.Sample {
	rows := make([]parser.Sample, len(s.times))
	for i, ts := range s.times {
		values := make(map[string]float64, len(s.fields))
		for _, f := range s.fields {
			values[f] = s.series[f][i]
		}
		rows[i] = parser.Sample{Time: ts, Values: values}
	}
	return rows
}
