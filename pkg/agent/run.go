package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fieldscout/fieldscout/internal/grid"
	"github.com/fieldscout/fieldscout/pkg/config"
	"github.com/fieldscout/fieldscout/pkg/core"
)

// predictGridSide is the resolution of the posterior-mean grid scanned by
// PredictMax.
const predictGridSide = 30

// ErrAlreadyRan reports a second Run call on the same agent.
var ErrAlreadyRan = errors.New("agent: run already consumed")

// Result summarizes a completed run.
type Result struct {
	RunID          string
	Termination    core.Termination
	Iterations     int
	Distance       float64
	RunningMax     float64
	RunningMaxLoc  core.Pose
	Observations   [][]float64
	ObservedValues []float64
	History        []core.Trajectory
}

// Run executes the planning loop until the iteration budget is exhausted or
// the generator produces no admissible candidate. Both are normal
// terminations; the observed locations and values are exported either way.
// Run is one-shot: a second call returns ErrAlreadyRan.
func (a *Agent) Run(ctx context.Context) (*Result, error) {
	if a.state != stateIdle {
		return nil, ErrAlreadyRan
	}
	a.state = stateRunning

	term := core.TerminatedExhausted
	executed := 0
	for t := 0; t < a.cfg.Iterations; t++ {
		if err := ctx.Err(); err != nil {
			a.state = stateDone
			return nil, fmt.Errorf("agent: iteration %d: %w", t, err)
		}

		predLoc, predVal, err := a.PredictMax(t)
		if err != nil {
			a.state = stateDone
			return nil, fmt.Errorf("agent: iteration %d: predict max: %w", t, err)
		}

		var chosen core.Trajectory
		var value float64
		if a.cfg.Planning.Mode == config.ModeLookahead {
			chosen, value, err = a.lookahead(t)
		} else {
			chosen, value, _, err = a.ChooseTrajectory(t)
		}
		if errors.Is(err, core.ErrNoCandidates) {
			a.logger.Info("no admissible candidates, stopping early",
				slog.Int("iteration", t),
				slog.Float64("pose_x", a.pose.X),
				slog.Float64("pose_y", a.pose.Y),
			)
			term = core.TerminatedNoCandidates
			break
		}
		if err != nil {
			a.state = stateDone
			return nil, fmt.Errorf("agent: iteration %d: %w", t, err)
		}

		a.record(t, chosen, value, predLoc, predVal)

		if err := a.collectObservations(chosen, t); err != nil {
			a.state = stateDone
			return nil, fmt.Errorf("agent: iteration %d: %w", t, err)
		}
		a.history = append(a.history, chosen)
		a.distance += chosen.PathLength(a.pose)
		a.pose = chosen.Last()
		executed++
	}
	a.state = stateDone

	locs := a.bel.Locations()
	vals := a.bel.Values()
	if a.exporter != nil {
		if err := a.exporter.Export(locs, vals); err != nil {
			return nil, fmt.Errorf("agent: export observations: %w", err)
		}
	}
	a.logger.Info("run finished",
		slog.String("run", a.id),
		slog.String("termination", term.String()),
		slog.Int("iterations", executed),
		slog.Float64("distance", a.distance),
		slog.Float64("running_max", a.maxVal),
	)
	return &Result{
		RunID:          a.id,
		Termination:    term,
		Iterations:     executed,
		Distance:       a.distance,
		RunningMax:     a.maxVal,
		RunningMaxLoc:  a.maxLoc,
		Observations:   locs,
		ObservedValues: vals,
		History:        a.history,
	}, nil
}

// collectObservations samples the environment at every waypoint after the
// first, which the agent already occupies, and folds the whole batch into
// the belief. The running max accepts strict improvements only, in sample
// order, so it ends up at the true maximum seen regardless of order.
func (a *Agent) collectObservations(traj core.Trajectory, t int) error {
	if len(traj) < 2 {
		return nil
	}
	locs := make([][]float64, 0, len(traj)-1)
	for _, wp := range traj[1:] {
		if a.cfg.Dimension == 3 {
			locs = append(locs, []float64{wp.X, wp.Y, float64(t)})
		} else {
			locs = append(locs, []float64{wp.X, wp.Y})
		}
	}
	vals, err := a.sampler.Sample(locs, t)
	if err != nil {
		return fmt.Errorf("sample environment: %w", err)
	}
	if len(vals) != len(locs) {
		return fmt.Errorf("sampler returned %d values for %d locations", len(vals), len(locs))
	}
	if err := a.bel.Add(locs, vals); err != nil {
		return fmt.Errorf("update belief: %w", err)
	}
	for i, v := range vals {
		if v > a.maxVal {
			a.maxVal = v
			a.maxLoc = traj[i+1]
			a.maxHist = append(a.maxHist, v)
		}
	}
	return nil
}

// PredictMax scans the posterior mean over a fixed grid spanning the extent
// and returns the best grid point and its mean. An empty belief answers
// with the origin at value zero without touching the predictor.
func (a *Agent) PredictMax(t int) ([]float64, float64, error) {
	if a.bel.Len() == 0 {
		return make([]float64, a.cfg.Dimension), 0, nil
	}
	pts := grid.Mesh2D(a.cfg.Extent, predictGridSide, predictGridSide)
	if a.cfg.Dimension == 3 {
		pts = grid.WithTime(pts, t)
	}
	mean, _, err := a.bel.Predict(pts)
	if err != nil {
		return nil, 0, err
	}
	best := 0
	for i, m := range mean {
		if m > mean[best] {
			best = i
		}
	}
	return pts[best], mean[best], nil
}

// record hands the iteration's bookkeeping to the sink. Sink failures are
// warnings, never run-fatal.
func (a *Agent) record(t int, chosen core.Trajectory, value float64, predLoc []float64, predVal float64) {
	if a.sink == nil {
		return
	}
	rec := core.StepRecord{
		Run:           a.id,
		Iteration:     t,
		Belief:        a.bel.Clone(),
		Pose:          a.pose,
		Chosen:        chosen,
		Value:         value,
		PredictedLoc:  predLoc,
		PredictedVal:  predVal,
		RunningMax:    a.maxVal,
		RunningMaxLoc: a.maxLoc,
		Distance:      a.distance,
	}
	if a.maxima != nil {
		rec.MaximaValues = a.maxima.Values
		rec.MaximaLocations = a.maxima.Locations
	}
	if err := a.sink.Record(rec); err != nil {
		a.logger.Warn("metrics sink failed",
			slog.Int("iteration", t),
			slog.String("error", err.Error()),
		)
	}
}
