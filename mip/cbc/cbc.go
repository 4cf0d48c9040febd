// Package cbc runs the COIN-OR cbc executable as a mip.Solver.
package cbc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meenmo/hedgeassign/mip"
)

// DefaultGrace is added to the time limit before the process is killed.
const DefaultGrace = 10 * time.Second

// Config locates the executable and controls its scratch files.
type Config struct {
	// Path is the cbc executable; "cbc" resolves through PATH.
	Path string
	// Dir holds the LP and solution files; empty means a fresh temp dir.
	Dir string
	// KeepFiles leaves the scratch files behind after Solve.
	KeepFiles bool
	// Grace is added to Options.TimeLimit for the process deadline.
	Grace time.Duration
}

// Solver is a mip.Solver backed by the cbc command line.
type Solver struct {
	cfg Config
	log *zap.Logger
}

// New returns a cbc solver. A nil logger disables logging.
func New(cfg Config, log *zap.Logger) *Solver {
	if cfg.Path == "" {
		cfg.Path = "cbc"
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{cfg: cfg, log: log.Named("cbc")}
}

// Available reports whether the executable can be found.
func (s *Solver) Available() bool {
	_, err := exec.LookPath(s.cfg.Path)
	return err == nil
}

func (s *Solver) Name() string { return "cbc" }

func (s *Solver) Solve(ctx context.Context, m *mip.Model, opts mip.Options) (mip.Solution, error) {
	dir, cleanup, err := s.workDir()
	if err != nil {
		return mip.Solution{}, err
	}
	defer cleanup()

	lpPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "model.sol")
	if err := writeModel(m, lpPath); err != nil {
		return mip.Solution{}, err
	}

	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit+s.cfg.Grace)
		defer cancel()
	}

	args := Args(lpPath, solPath, opts)
	s.log.Debug("running", zap.String("path", s.cfg.Path), zap.Strings("args", args))

	start := time.Now()
	out, err := exec.CommandContext(ctx, s.cfg.Path, args...).CombinedOutput()
	elapsed := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.log.Warn("killed at deadline", zap.Duration("elapsed", elapsed))
		return mip.Solution{Status: mip.StatusTimeLimitReached, Message: "cbc killed at deadline"}, nil
	}
	if err != nil {
		return mip.Solution{}, fmt.Errorf("cbc: %w\n%s", err, out)
	}
	s.log.Debug("finished", zap.Duration("elapsed", elapsed), zap.Int("output_bytes", len(out)))

	f, err := os.Open(solPath)
	if err != nil {
		return mip.Solution{}, fmt.Errorf("cbc: no solution file: %w", err)
	}
	defer f.Close()

	sol, err := ParseSolution(f, m)
	if err != nil {
		return mip.Solution{}, err
	}
	s.log.Info("solved", zap.String("status", string(sol.Status)), zap.Duration("elapsed", elapsed))
	return sol, nil
}

// Args builds the cbc command line for one solve.
func Args(lpPath, solPath string, opts mip.Options) []string {
	args := []string{lpPath}
	if opts.TimeLimit > 0 {
		args = append(args, "-sec", strconv.FormatFloat(opts.TimeLimit.Seconds(), 'f', -1, 64))
	}
	if opts.Workers > 0 {
		args = append(args, "-threads", strconv.Itoa(opts.Workers))
	}
	if opts.RelativeGap > 0 {
		args = append(args, "-ratio", strconv.FormatFloat(opts.RelativeGap, 'f', -1, 64))
	}
	return append(args,
		"-timeMode", "elapsed",
		"-branch",
		"-printingOptions", "all",
		"-solution", solPath,
	)
}

// ParseSolution reads a cbc solution file.
//
// The first line carries the status. "Stopped on ..." with an objective value
// means a feasible incumbent was found before the limit. Variables missing from
// the file are reported as zero; rows are ignored.
func ParseSolution(r io.Reader, m *mip.Model) (mip.Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return mip.Solution{}, fmt.Errorf("ParseSolution: %w", err)
		}
		return mip.Solution{}, errors.New("ParseSolution: empty solution file")
	}
	header := strings.TrimSpace(sc.Text())
	status := parseStatus(header)
	sol := mip.Solution{Status: status, Message: header}
	if !status.HasSolution() {
		return sol, nil
	}

	sol.Values = make(map[string]float64)
	for _, v := range m.Vars() {
		sol.Values[v.Name] = 0
	}
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sc.Text()), "**"))
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if _, ok := sol.Values[fields[1]]; !ok {
			continue
		}
		val, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return mip.Solution{}, fmt.Errorf("ParseSolution: %s: %w", fields[1], err)
		}
		sol.Values[fields[1]] = val
	}
	if err := sc.Err(); err != nil {
		return mip.Solution{}, fmt.Errorf("ParseSolution: %w", err)
	}
	return sol, nil
}

func parseStatus(header string) mip.Status {
	words := strings.Fields(header)
	if len(words) == 0 {
		return mip.StatusError
	}
	switch words[0] {
	case "Optimal":
		return mip.StatusOptimal
	case "Infeasible", "Integer":
		return mip.StatusInfeasible
	case "Unbounded":
		return mip.StatusUnbounded
	case "Stopped":
		if len(words) >= 5 && words[4] == "objective" {
			return mip.StatusFeasible
		}
		return mip.StatusTimeLimitReached
	}
	return mip.StatusError
}

func (s *Solver) workDir() (string, func(), error) {
	if s.cfg.Dir != "" {
		if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("cbc: %w", err)
		}
		dir, err := os.MkdirTemp(s.cfg.Dir, "solve-")
		if err != nil {
			return "", nil, fmt.Errorf("cbc: %w", err)
		}
		return dir, s.cleanup(dir), nil
	}
	dir, err := os.MkdirTemp("", "hedgeassign-cbc-")
	if err != nil {
		return "", nil, fmt.Errorf("cbc: %w", err)
	}
	return dir, s.cleanup(dir), nil
}

func (s *Solver) cleanup(dir string) func() {
	if s.cfg.KeepFiles {
		return func() { s.log.Info("kept scratch files", zap.String("dir", dir)) }
	}
	return func() { os.RemoveAll(dir) }
}

func writeModel(m *mip.Model, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cbc: %w", err)
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		return fmt.Errorf("cbc: %w", err)
	}
	return f.Close()
}
