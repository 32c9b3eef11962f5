package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GoalInProgress = "em_andamento"
	GoalCompleted  = "concluida"
	GoalLate       = "atrasada"
)

type Goal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Title         string          `json:"title"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	DueDate       *Date           `json:"due_date,omitempty"`
	Color         string          `json:"color"`
	Icon          string          `json:"icon"`
	Contributions []Contribution  `json:"contributions"`
	Progress      decimal.Decimal `json:"progress"`
	Remaining     decimal.Decimal `json:"remaining"`
	MonthlyNeeded decimal.Decimal `json:"monthly_needed"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Contribution is an aporte into a goal. Negative amounts are withdrawals.
type Contribution struct {
	ID        string          `json:"id"`
	GoalID    string          `json:"goal_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      Date            `json:"date"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Compute fills the derived fields from the contributions as of today.
func (g *Goal) Compute(today Date) {
	current := decimal.Zero
	for _, c := range g.Contributions {
		current = current.Add(c.Amount)
	}
	g.CurrentAmount = current
	g.Remaining = decimal.Max(decimal.Zero, g.TargetAmount.Sub(current))

	g.Progress = Percent(current, g.TargetAmount)
	if g.Progress.GreaterThan(hundred) {
		g.Progress = hundred
	}

	g.MonthlyNeeded = decimal.Zero
	if g.DueDate != nil && g.Remaining.IsPositive() {
		months := monthsUntil(today, *g.DueDate)
		g.MonthlyNeeded = RoundMoney(g.Remaining.Div(decimal.NewFromInt(int64(months))))
	}

	switch {
	case !current.LessThan(g.TargetAmount):
		g.Status = GoalCompleted
	case g.DueDate != nil && today.After(*g.DueDate):
		g.Status = GoalLate
	default:
		g.Status = GoalInProgress
	}
	if g.Contributions == nil {
		g.Contributions = []Contribution{}
	}
}

// monthsUntil counts the months left to save, including the current one, never
// less than one.
func monthsUntil(from, to Date) int {
	months := (to.Year()-from.Year())*12 + int(to.Time.Month()) - int(from.Time.Month())
	if to.Day() >= from.Day() {
		months++
	}
	if months < 1 {
		return 1
	}
	return months
}

type GoalRequest struct {
	Title        string          `json:"title" binding:"required,max=100"`
	TargetAmount decimal.Decimal `json:"target_amount" binding:"required,gt=0"`
	DueDate      *Date           `json:"due_date"`
	Color        string          `json:"color"`
	Icon         string          `json:"icon" binding:"max=40"`
}

func (r *GoalRequest) Normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return NewValidationError("title", "cannot be empty")
	}
	if err := validMoney("target_amount", r.TargetAmount); err != nil {
		return err
	}
	if r.DueDate != nil && r.DueDate.IsZero() {
		r.DueDate = nil
	}
	if r.Color == "" {
		r.Color = DefaultCategoryColor
	}
	if !hexColor.MatchString(r.Color) {
		return NewValidationError("color", "must be a #RRGGBB hex color")
	}
	return nil
}

type ContributionRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Date   Date            `json:"date"`
	Note   string          `json:"note" binding:"max=200"`
}

func (r *ContributionRequest) Normalize(today Date) error {
	if r.Amount.IsZero() {
		return NewValidationError("amount", "cannot be zero")
	}
	if !r.Amount.Equal(RoundMoney(r.Amount)) {
		return NewValidationError("amount", "must have at most two decimal places")
	}
	if r.Date.IsZero() {
		r.Date = today
	}
	r.Note = strings.TrimSpace(r.Note)
	return nil
}

type GoalsSummary struct {
	Count     int             `json:"count"`
	Completed int             `json:"completed"`
	Saved     decimal.Decimal `json:"saved"`
	Target    decimal.Decimal `json:"target"`
	Progress  decimal.Decimal `json:"progress"`
}

func SummarizeGoals(goals []Goal) GoalsSummary {
	s := GoalsSummary{Count: len(goals), Saved: decimal.Zero, Target: decimal.Zero}
	for _, g := range goals {
		s.Saved = s.Saved.Add(g.CurrentAmount)
		s.Target = s.Target.Add(g.TargetAmount)
		if g.Status == GoalCompleted {
			s.Completed++
		}
	}
	s.Progress = Percent(s.Saved, s.Target)
	return s
}
