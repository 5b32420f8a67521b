package annotate

import (
	"testing"
	"time"

	"kredilakay/internal/domain"

	"github.com/shopspring/decimal"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPenaltyAssess(t *testing.T) {
	cases := []struct {
		name      string
		grace     int
		due, asOf string
		principal string
		rate      string
		days      int
		penalty   string
		total     string
	}{
		{"grace reduces days", 5, "2024-01-01", "2024-01-10", "1000", "0.02", 4, "80.00", "1080.00"},
		{"paid on due date", 0, "2024-01-01", "2024-01-01", "1000", "0.02", 0, "0.00", "1000.00"},
		{"within grace", 10, "2024-01-01", "2024-01-10", "1000", "0.02", 0, "0.00", "1000.00"},
		{"as of before due", 0, "2024-01-10", "2024-01-01", "1000", "0.02", 0, "0.00", "1000.00"},
		{"rounds half up", 0, "2024-01-01", "2024-01-03", "1", "0.0025", 2, "0.01", "1.01"},
		{"crosses month", 0, "2024-01-30", "2024-02-02", "2500", "0.02", 3, "150.00", "2650.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PenaltyPolicy{GraceDays: tc.grace}.Assess(domain.PenaltyInfo{
				DueDate:          date(tc.due),
				AsOfDate:         date(tc.asOf),
				PrincipalDue:     decimal.RequireFromString(tc.principal),
				DailyPenaltyRate: decimal.RequireFromString(tc.rate),
			})
			if got.DaysLate != tc.days {
				t.Fatalf("days late: got %d want %d", got.DaysLate, tc.days)
			}
			if got.Penalty.StringFixed(2) != tc.penalty {
				t.Fatalf("penalty: got %s want %s", got.Penalty.StringFixed(2), tc.penalty)
			}
			if got.Total.StringFixed(2) != tc.total {
				t.Fatalf("total: got %s want %s", got.Total.StringFixed(2), tc.total)
			}
		})
	}
}

func TestCalendarDaysIgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	asOf := time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC)
	if got := calendarDays(due, asOf); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
}

func TestPenaltyText(t *testing.T) {
	a := New(nil, PenaltyPolicy{})
	text := a.penaltyText(PenaltyAssessment{DaysLate: 4, Penalty: decimal.RequireFromString("80"), Total: decimal.RequireFromString("1080")})
	want := "RETARD DE PAIEMENT: 4 jour(s) - Penalite: 80.00 HTG - Total du: 1080.00 HTG"
	if text != want {
		t.Fatalf("got %q want %q", text, want)
	}
}

func TestPenaltyTextCurrency(t *testing.T) {
	a := New(nil, PenaltyPolicy{Currency: "USD"})
	text := a.penaltyText(PenaltyAssessment{DaysLate: 1, Penalty: decimal.RequireFromString("2.5"), Total: decimal.RequireFromString("102.5")})
	want := "RETARD DE PAIEMENT: 1 jour(s) - Penalite: 2.50 USD - Total du: 102.50 USD"
	if text != want {
		t.Fatalf("got %q want %q", text, want)
	}
}
