package annotate

import (
	"time"

	"kredilakay/internal/domain"

	"github.com/shopspring/decimal"
)

// PenaltyPolicy turns an overdue position into a penalty amount.
// Days late are whole calendar days past the due date minus the grace
// period, floored at zero.
type PenaltyPolicy struct {
	GraceDays int
	Currency  string
}

type PenaltyAssessment struct {
	DaysLate int
	Penalty  decimal.Decimal
	Total    decimal.Decimal
}

func (p PenaltyPolicy) Assess(info domain.PenaltyInfo) PenaltyAssessment {
	days := calendarDays(info.DueDate, info.AsOfDate) - p.GraceDays
	if days <= 0 {
		return PenaltyAssessment{Penalty: decimal.Zero, Total: info.PrincipalDue}
	}
	penalty := info.PrincipalDue.
		Mul(info.DailyPenaltyRate).
		Mul(decimal.NewFromInt(int64(days))).
		Round(2)
	return PenaltyAssessment{
		DaysLate: days,
		Penalty:  penalty,
		Total:    info.PrincipalDue.Add(penalty),
	}
}

func calendarDays(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func (p PenaltyPolicy) currency() string {
	if p.Currency == "" {
		return "HTG"
	}
	return p.Currency
}
