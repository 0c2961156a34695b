package monitor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/store"
)

// scriptedSource replays a fixed sequence of Next results.
type scriptedSource struct {
	steps  []step
	closed int
}

type step struct {
	text string
	err  error
}

func (s *scriptedSource) Next(ctx context.Context) (*parser.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.steps) == 0 {
		return nil, io.EOF
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	if st.err != nil {
		return nil, st.err
	}
	return &parser.Line{Text: st.text, Source: "script"}, nil
}

func (s *scriptedSource) Close() error {
	s.closed++
	return nil
}

func lines(texts ...string) []step {
	out := make([]step, len(texts))
	for i, t := range texts {
		out[i] = step{text: t}
	}
	return out
}

var cycle = []string{
	"SANTÉ FEUILLE (NDVI) : 0.15 -> [ STRESS ]",
	"ACCÉLÉRATION X: 0.10 | Y: -0.20 | Z: 9.81",
	"MÉTÉO | 24.5°C | 60.0% Hum",
}

func TestTick_CommitsOnWeather(t *testing.T) {
	src := &scriptedSource{steps: lines(cycle...)}
	st := store.New()

	var commits []float64
	var lastSnap store.Snapshot
	m := New(src, parser.New(parser.DefaultGrammar()), st,
		WithCommitHook(func(ts float64, snap store.Snapshot, state *parser.FieldState) {
			commits = append(commits, ts)
			lastSnap = snap
			if state.Label != "[ STRESS ]" {
				t.Errorf("label = %q", state.Label)
			}
		}))

	if err := m.Tick(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Tick() error = %v, want io.EOF", err)
	}

	if st.Len() != 1 {
		t.Fatalf("store len = %d, want 1", st.Len())
	}
	if len(commits) != 1 || commits[0] != 0 {
		t.Errorf("commits = %v, want [0]", commits)
	}
	if lastSnap.Health != store.HealthAlert {
		t.Errorf("health = %s, want alert", lastSnap.Health)
	}
	if lastSnap.Values[parser.FieldAccelZ] != 9.81 {
		t.Errorf("az = %v", lastSnap.Values[parser.FieldAccelZ])
	}

	want := Stats{Lines: 3, Updates: 2, Commits: 1}
	if got := m.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestTick_RespectsLineLimit(t *testing.T) {
	var texts []string
	for i := 0; i < 3; i++ {
		texts = append(texts, cycle...)
	}
	src := &scriptedSource{steps: lines(texts...)}
	st := store.New()
	m := New(src, parser.New(parser.DefaultGrammar()), st, WithMaxLinesPerTick(3))

	if err := m.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("after one tick len = %d, want 1", st.Len())
	}
}

func TestTick_NoDataAndReadErrors(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{err: errors.New("glitch")},
		{text: "garbage"},
		{err: parser.ErrNoData},
		{text: cycle[2]},
	}}
	st := store.New()
	m := New(src, parser.New(parser.DefaultGrammar()), st)

	if err := m.Tick(context.Background()); err != nil {
		t.Fatalf("first Tick() error = %v", err)
	}
	if err := m.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick() error = %v", err)
	}
	if got := m.Stats(); got.ReadErrors != 1 || got.Skipped != 1 || got.Lines != 1 {
		t.Errorf("Stats() = %+v", got)
	}
	if st.Len() != 0 {
		t.Errorf("store len = %d, want 0", st.Len())
	}

	if err := m.Tick(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("third Tick() error = %v, want io.EOF", err)
	}
	if st.Len() != 1 {
		t.Errorf("store len = %d, want 1", st.Len())
	}
}

func TestRun_ClosesSourceOnExhaustion(t *testing.T) {
	src := &scriptedSource{steps: lines(cycle...)}
	m := New(src, parser.New(parser.DefaultGrammar()), store.New(), WithPollInterval(time.Millisecond))

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if src.closed != 1 {
		t.Errorf("closed = %d, want 1", src.closed)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	var steps []step
	for i := 0; i < 1000; i++ {
		steps = append(steps, step{err: parser.ErrNoData})
	}
	src := &scriptedSource{steps: steps}
	m := New(src, parser.New(parser.DefaultGrammar()), store.New(), WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if src.closed != 1 {
		t.Errorf("closed = %d, want 1", src.closed)
	}
}

func TestDrain_FileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "serial.log")
	content := ""
	for i := 0; i < 60; i++ {
		for _, l := range cycle {
			content += l + "\n"
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	st := store.New()
	m := New(parser.NewFileSource([]string{path}), parser.New(parser.DefaultGrammar()), st)
	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if st.Len() != store.DefaultMaxPoints {
		t.Errorf("len = %d, want %d", st.Len(), store.DefaultMaxPoints)
	}
	if st.Evicted() != 10 {
		t.Errorf("evicted = %d, want 10", st.Evicted())
	}
	if m.Stats().Commits != 60 {
		t.Errorf("commits = %d, want 60", m.Stats().Commits)
	}
}

func TestDrain_StopsOnReadError(t *testing.T) {
	boom := errors.New("disk gone")
	src := &scriptedSource{steps: []step{{text: cycle[0]}, {err: boom}, {text: cycle[2]}}}
	m := New(src, parser.New(parser.DefaultGrammar()), store.New())

	if err := m.Drain(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Drain() error = %v, want %v", err, boom)
	}
	if src.closed != 1 {
		t.Errorf("closed = %d, want 1", src.closed)
	}
}

func TestDrain_OversizedLineIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.log")
	content := cycle[0] + "\n" +
		strings.Repeat("#", 2*1024*1024) + "\n" +
		cycle[1] + "\n" + cycle[2] + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	st := store.New()
	m := New(parser.NewFileSource([]string{path}), parser.New(parser.DefaultGrammar()), st)
	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	stats := m.Stats()
	if stats.Commits != 1 || st.Len() != 1 {
		t.Errorf("commits = %d, len = %d, want 1", stats.Commits, st.Len())
	}
	if stats.Skipped != 1 || stats.ReadErrors != 0 {
		t.Errorf("skipped = %d, read errors = %d, want 1 and 0", stats.Skipped, stats.ReadErrors)
	}
	if got := st.Snapshot().Values[parser.FieldNDVI]; got != 0.15 {
		t.Errorf("NDVI = %v, want 0.15", got)
	}
}
