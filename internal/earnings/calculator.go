package earnings

import (
	"refward/internal/code"
	"refward/internal/tracking"
	domain "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
)

// Calculator computes commission amounts. It is pure configuration plus
// arithmetic; persistence and orchestration live with the caller.
type Calculator struct {
	signupFallback domain.Money
	cascadeRateBP  int64
	cascadeMinimum domain.Money
}

// NewCalculator constructs a calculator. signupFallback is paid for
// signup conversions that carry no monetary value; cascadeRateBP (basis
// points) and cascadeMinimum govern the one-level tier bonus.
func NewCalculator(signupFallback domain.Money, cascadeRateBP int64, cascadeMinimum domain.Money) *Calculator {
	return &Calculator{
		signupFallback: signupFallback,
		cascadeRateBP:  cascadeRateBP,
		cascadeMinimum: cascadeMinimum,
	}
}

// PrimaryResult is the computed primary commission before persistence.
type PrimaryResult struct {
	Amount domain.Money
	Type   Type

	// CommissionRateBP and SourceAmount are set only for rate-based
	// amounts.
	CommissionRateBP *int64
	SourceAmount     *domain.Money
}

// Primary computes the referrer-of-record's commission for a conversion
// settled under the given code.
//
// Percentage codes floor toward zero; fixed and credits codes pay the
// reward value verbatim in minor units. Signup conversions always
// classify as a signup bonus, and fall back to a flat amount when the
// conversion carries no value.
func (c *Calculator) Primary(referralCode *code.ReferralCode, conv tracking.Conversion) (PrimaryResult, error) {
	result := PrimaryResult{Type: classify(referralCode.RewardType, conv.Type)}

	switch referralCode.RewardType {
	case code.RewardPercentage:
		if conv.Value.IsZero() {
			if !conv.Type.IsSignup() {
				return PrimaryResult{}, dErrors.New(dErrors.CodeInvalidInput,
					"percentage commission requires a conversion value")
			}
			result.Amount = c.signupFallback
			return result, nil
		}
		rateBP := referralCode.RewardValue * 100
		result.Amount = conv.Value.Percent(rateBP)
		result.CommissionRateBP = &rateBP
		source := conv.Value
		result.SourceAmount = &source
		return result, nil

	case code.RewardFixed, code.RewardCredits:
		result.Amount = domain.NewMoney(domain.DefaultCurrency, referralCode.RewardValue)
		return result, nil

	default:
		return PrimaryResult{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"unknown reward type %q", referralCode.RewardType)
	}
}

// Cascade computes the level-2 tier bonus derived from a primary amount.
// Sub-threshold cascades are skipped outright, never rounded up; ok is
// false when no bonus should be created.
func (c *Calculator) Cascade(primary domain.Money) (amount domain.Money, ok bool) {
	bonus := primary.Percent(c.cascadeRateBP)
	if bonus.Amount < c.cascadeMinimum.Amount {
		return domain.Money{}, false
	}
	return bonus, true
}

func classify(reward code.RewardType, conv tracking.ConversionType) Type {
	if conv.IsSignup() {
		return TypeSignupBonus
	}
	if reward == code.RewardPercentage {
		return TypePercentageCommission
	}
	return TypeFixedCommission
}
