package common

import (
	"context"

	"go.uber.org/zap"

	"github.com/meenmo/hedgeassign/config"
	"github.com/meenmo/hedgeassign/mip"
	"github.com/meenmo/hedgeassign/mip/relax"
	"github.com/meenmo/hedgeassign/table"
)

// SolveOutput describes one solve.
type SolveOutput struct {
	Solver         string   `json:"solver" yaml:"solver"`
	Status         string   `json:"status" yaml:"status"`
	Delta          *float64 `json:"delta,omitempty" yaml:"delta,omitempty"`
	WallTime       float64  `json:"wall_time" yaml:"wall_time"`
	RelaxedBound   *float64 `json:"relaxed_bound,omitempty" yaml:"relaxed_bound,omitempty"`
	LPPath         string   `json:"lp_path,omitempty" yaml:"lp_path,omitempty"`
	AssignmentPath string   `json:"assignment_path,omitempty" yaml:"assignment_path,omitempty"`
	Message        string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// SolveModel exports the LP when configured, computes the relaxation bound when
// asked, solves m and writes the assignment CSV on success.
func SolveModel(ctx context.Context, cfg config.Config, s mip.Solver, m *mip.Model, withBound bool, log *zap.Logger) (mip.Result, SolveOutput, error) {
	var out SolveOutput

	if cfg.Export.LPDir != "" {
		path, err := m.ExportLP(cfg.Export.LPDir, cfg.Experiment)
		if err != nil {
			return mip.Result{}, out, err
		}
		out.LPPath = path
		log.Info("model exported", zap.String("path", path))
	}

	if withBound {
		b, err := relax.Bound(m)
		switch {
		case err != nil:
			log.Warn("relaxation failed", zap.Error(err))
		case b.Status == mip.StatusOptimal:
			out.RelaxedBound = &b.Delta
			log.Info("relaxation bound", zap.Float64("delta", b.Delta))
		default:
			log.Warn("relaxation not optimal", zap.String("status", string(b.Status)))
		}
	}

	log.Info("solving",
		zap.String("solver", s.Name()),
		zap.Int("vars", len(m.Vars())),
		zap.Int("rows", len(m.Constraints())),
		zap.Duration("time_limit", cfg.Solver.TimeLimit))

	res, err := mip.Solve(ctx, s, m, cfg.SolveOptions())
	if err != nil {
		return mip.Result{}, out, err
	}
	out.Solver = res.Solver
	out.Status = string(res.Status)
	out.WallTime = res.WallTime.Seconds()
	out.Message = res.Message

	if !res.OK() {
		log.Warn("no assignment", zap.String("status", out.Status), zap.String("message", res.Message))
		return res, out, nil
	}
	delta := res.Delta
	out.Delta = &delta
	log.Info("solved", zap.String("status", out.Status), zap.Float64("delta", delta), zap.Duration("wall_time", res.WallTime))

	path, err := OutPath(cfg, "assignment")
	if err != nil {
		return res, out, err
	}
	if err := table.WriteFile(path, res.Assignment, table.WriteAssignment); err != nil {
		return res, out, err
	}
	out.AssignmentPath = path
	return res, out, nil
}
