package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/meenmo/hedgeassign/mip"
	"github.com/meenmo/hedgeassign/validate"
)

// Run is one solve of one scenario.
type Run struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Experiment string `gorm:"type:varchar(100);not null;index"`
	Seed       int64  `gorm:"not null"`

	NumCredits int `gorm:"not null"`
	NumSwaps   int `gorm:"not null"`

	Solver     string `gorm:"type:varchar(30);not null"`
	Status     string `gorm:"type:varchar(30);not null;index"`
	WallTimeMS int64  `gorm:"not null"`

	// ObjectiveDelta and RelaxedBound are null when no value was produced.
	ObjectiveDelta decimal.NullDecimal `gorm:"type:numeric(20,10)"`
	RelaxedBound   decimal.NullDecimal `gorm:"type:numeric(20,10)"`

	AllDeltaOK     bool `gorm:"not null;default:false"`
	AllPrincipalOK bool `gorm:"not null;default:false"`
	AllMaturityOK  bool `gorm:"not null;default:false"`

	Report datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Run) TableName() string {
	return "hedge_runs"
}

// Report is the JSON document kept with every run.
type Report struct {
	Summary validate.Summary      `json:"summary" yaml:"summary"`
	Swaps   []validate.SwapReport `json:"swaps" yaml:"swaps"`
	Message string                `json:"message,omitempty" yaml:"message,omitempty"`
}

// NewRun records a solve outcome. reports and summary may be empty when the solve
// produced no assignment; bound is nil when no relaxation was computed.
func NewRun(experiment string, seed uint64, numCredits, numSwaps int, res mip.Result, summary validate.Summary, reports []validate.SwapReport, bound *float64) (*Run, error) {
	if seed > math.MaxInt64 {
		return nil, fmt.Errorf("NewRun: seed %d does not fit a bigint column", seed)
	}
	body, err := json.Marshal(Report{Summary: summary, Swaps: reports, Message: res.Message})
	if err != nil {
		return nil, fmt.Errorf("NewRun: %w", err)
	}
	run := &Run{
		ID:             uuid.NewString(),
		Experiment:     experiment,
		Seed:           int64(seed),
		NumCredits:     numCredits,
		NumSwaps:       numSwaps,
		Solver:         res.Solver,
		Status:         string(res.Status),
		WallTimeMS:     res.WallTime.Milliseconds(),
		AllDeltaOK:     summary.AllDeltaOK,
		AllPrincipalOK: summary.AllPrincipalOK,
		AllMaturityOK:  summary.AllMaturityOK,
		Report:         datatypes.JSON(body),
	}
	if res.OK() {
		run.ObjectiveDelta = decimal.NewNullDecimal(decimal.NewFromFloat(res.Delta))
	}
	if bound != nil {
		run.RelaxedBound = decimal.NewNullDecimal(decimal.NewFromFloat(*bound))
	}
	return run, nil
}
