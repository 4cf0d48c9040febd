package credit

import (
	"math"

	"github.com/meenmo/hedgeassign/utils"
)

// FairValueDelta returns the change in fair value of an amortizing credit when the
// benchmark moves from rates.T0 to rates.T1.
//
// The level monthly payment is fixed at inception from (spread + T0)/12. At t=1 the
// remaining maturity-1 payments are valued twice, once per effective annual rate used
// directly as the per-period rate, and the delta is FV(rate1) - FV(rate0) rounded to cents.
//
// Callers must pass principal > 0 and maturity >= 1.
func FairValueDelta(principal float64, maturity int, spread float64, rates RatePath) float64 {
	rate0 := spread + rates.T0
	rate1 := spread + rates.T1

	payment := levelPayment(principal, rate0/12, maturity)
	remaining := maturity - 1

	fv0 := -annuityPV(rate0, remaining, payment)
	fv1 := -annuityPV(rate1, remaining, payment)

	return utils.RoundHalfUp(fv1-fv0, 2)
}

// levelPayment is the annuity installment repaying principal over n periods at rate r.
func levelPayment(principal, r float64, n int) float64 {
	if r == 0 {
		return principal / float64(n)
	}
	return principal * r / (1 - math.Pow(1+r, -float64(n)))
}

// annuityPV is the present value of n payments of pay at period rate r, signed as an outflow.
//
//	PV = -pay * (1 - (1+r)^-n) / r,   r != 0
//	PV = -pay * n,                    r == 0
func annuityPV(r float64, n int, pay float64) float64 {
	if n <= 0 {
		return 0
	}
	if r == 0 {
		return -pay * float64(n)
	}
	return -pay * (1 - math.Pow(1+r, -float64(n))) / r
}
