package credit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid credit generator configuration")
)

// ConfigurationError reports a malformed generator configuration.
type ConfigurationError struct {
	Reasons []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, strings.Join(e.Reasons, "; "))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// RatePath is the benchmark rate at the two valuation dates.
//
// Rates are annual decimals (e.g., 0.04 == 4%).
type RatePath struct {
	T0 float64
	T1 float64
}

// Credit is a single amortizing loan in the hedged portfolio.
type Credit struct {
	ID           int
	Type         string
	Principal    float64
	Maturity     int // installment periods
	CreditSpread float64
	DeltaFV      float64
}

// IntRange is a half-open integer interval [Min, Max).
type IntRange struct {
	Min int
	Max int
}

// FloatRange is a half-open real interval [Min, Max).
type FloatRange struct {
	Min float64
	Max float64
}

// CreditTypeSpec describes one credit category of a synthetic portfolio.
type CreditTypeSpec struct {
	Name      string
	Principal IntRange
	Maturity  IntRange
	Spread    FloatRange
	Weight    float64
}
