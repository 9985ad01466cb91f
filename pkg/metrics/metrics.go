// Package metrics provides the per-iteration recording sinks: structured
// log output, the experiment stats CSV, an in-memory collector for
// summaries and tests, and a tee for fanning a run out to several sinks.
package metrics

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/fieldscout/fieldscout/pkg/core"
)

// Sink records one StepRecord per planning iteration.
type Sink = core.Sink

// LogSink writes one Info line per iteration.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink builds a LogSink. A nil logger falls back to slog.Default().
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{logger: l}
}

func (s *LogSink) Record(rec core.StepRecord) error {
	s.logger.Info("iteration complete",
		slog.String("run", rec.Run),
		slog.Int("iteration", rec.Iteration),
		slog.Float64("pose_x", rec.Pose.X),
		slog.Float64("pose_y", rec.Pose.Y),
		slog.Float64("value", rec.Value),
		slog.Float64("predicted_value", rec.PredictedVal),
		slog.Float64("running_max", rec.RunningMax),
		slog.Float64("distance", rec.Distance),
	)
	return nil
}

const csvHeader = "iteration,pose_x,pose_y,heading,value,predicted_x,predicted_y,predicted_value,running_max,distance\n"

// CSVSink writes a header plus one row per iteration. Rows are buffered;
// Close flushes them and closes the underlying file when the sink owns one.
type CSVSink struct {
	mu   sync.Mutex
	w    *bufio.Writer
	file *os.File
}

// NewCSVSink wraps an existing writer. The header goes out with the first
// flush.
func NewCSVSink(w io.Writer) *CSVSink {
	s := &CSVSink{w: bufio.NewWriter(w)}
	s.w.WriteString(csvHeader)
	return s
}

// NewCSVFile creates path and returns a sink that owns the file handle.
func NewCSVFile(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("metrics: create stats file: %w", err)
	}
	s := NewCSVSink(f)
	s.file = f
	return s, nil
}

func (s *CSVSink) Record(rec core.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("%d,%.6g,%.6g,%.6g,%.6g,%.6g,%.6g,%.6g,%.6g,%.6g\n",
		rec.Iteration,
		rec.Pose.X, rec.Pose.Y, rec.Pose.Heading,
		rec.Value,
		coord(rec.PredictedLoc, 0), coord(rec.PredictedLoc, 1), rec.PredictedVal,
		rec.RunningMax,
		rec.Distance,
	)
	if _, err := s.w.WriteString(line); err != nil {
		return fmt.Errorf("metrics: write stats row: %w", err)
	}
	return nil
}

// Close flushes buffered rows and releases the file, if any.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("metrics: flush stats file: %w", err)
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// coord reads one axis of a prediction location, which may be absent.
func coord(loc []float64, i int) float64 {
	if i < len(loc) {
		return loc[i]
	}
	return math.NaN()
}

type tee struct {
	sinks []core.Sink
}

// Tee fans each record out to every sink in order. Every sink is attempted
// even after a failure; the first error is returned.
func Tee(sinks ...core.Sink) core.Sink {
	return tee{sinks: sinks}
}

func (t tee) Record(rec core.StepRecord) error {
	var firstErr error
	for _, s := range t.sinks {
		if err := s.Record(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ core.Sink = (*LogSink)(nil)
	_ core.Sink = (*CSVSink)(nil)
	_ core.Sink = tee{}
)
