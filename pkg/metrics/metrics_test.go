package metrics

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldscout/fieldscout/pkg/core"
)

func stepRecord(i int, value float64) core.StepRecord {
	return core.StepRecord{
		Run:          "run-test",
		Iteration:    i,
		Pose:         core.Pose{X: float64(i), Y: 2},
		Value:        value,
		PredictedLoc: []float64{5, 5},
		PredictedVal: 7,
		RunningMax:   value,
		Distance:     float64(i) * 1.5,
	}
}

func TestCollector(t *testing.T) {
	t.Run("drops oldest past capacity", func(t *testing.T) {
		c := NewCollector(3)
		for i := 0; i < 5; i++ {
			if err := c.Record(stepRecord(i, float64(i))); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}
		recs := c.Records()
		if len(recs) != 3 {
			t.Fatalf("held %d records, want 3", len(recs))
		}
		for i, rec := range recs {
			if rec.Iteration != i+2 {
				t.Errorf("record %d has iteration %d, want %d", i, rec.Iteration, i+2)
			}
		}
	})

	t.Run("unbounded without capacity", func(t *testing.T) {
		c := NewCollector(0)
		for i := 0; i < 100; i++ {
			c.Record(stepRecord(i, 1))
		}
		if c.Len() != 100 {
			t.Errorf("held %d records, want 100", c.Len())
		}
	})

	t.Run("records returns a copy", func(t *testing.T) {
		c := NewCollector(0)
		c.Record(stepRecord(0, 1))
		recs := c.Records()
		recs[0].Iteration = 99
		if got := c.Records()[0].Iteration; got != 0 {
			t.Errorf("mutating the returned slice changed the collector: iteration = %d", got)
		}
	})
}

func TestCSVSink(t *testing.T) {
	t.Run("header and row layout", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewCSVSink(&buf)
		if err := s.Record(stepRecord(0, 3)); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if err := s.Record(stepRecord(1, 4)); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		if len(lines) != 3 {
			t.Fatalf("got %d lines, want header plus 2 rows", len(lines))
		}
		if lines[0] != strings.TrimRight(csvHeader, "\n") {
			t.Errorf("header = %q", lines[0])
		}
		if lines[1] != "0,0,2,0,3,5,5,7,3,0" {
			t.Errorf("first row = %q", lines[1])
		}
		if got, want := len(strings.Split(lines[2], ",")), len(strings.Split(lines[0], ",")); got != want {
			t.Errorf("row has %d fields, header has %d", got, want)
		}
	})

	t.Run("file sink flushes on close", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stats.csv")
		s, err := NewCSVFile(path)
		if err != nil {
			t.Fatalf("NewCSVFile: %v", err)
		}
		if err := s.Record(stepRecord(0, 1)); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if !strings.HasPrefix(string(data), "iteration,") {
			t.Errorf("file does not start with the header: %q", string(data))
		}
		if got := strings.Count(string(data), "\n"); got != 2 {
			t.Errorf("file has %d lines, want 2", got)
		}
	})
}

type failSink struct {
	err error
}

func (f failSink) Record(core.StepRecord) error { return f.err }

func TestTee(t *testing.T) {
	boom := errors.New("sink down")
	before := NewCollector(0)
	after := NewCollector(0)
	sink := Tee(before, failSink{err: boom}, after)

	err := sink.Record(stepRecord(0, 1))
	if !errors.Is(err, boom) {
		t.Fatalf("Record error = %v, want the failing sink's error", err)
	}
	if before.Len() != 1 || after.Len() != 1 {
		t.Errorf("sinks after the failure were skipped: before=%d after=%d", before.Len(), after.Len())
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := NewLogSink(logger)
	if err := s.Record(stepRecord(2, 6)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "run=run-test") || !strings.Contains(out, "iteration=2") {
		t.Errorf("log line missing run fields: %q", out)
	}
}
