package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RankingItem is one row of a category, card or payment method ranking. Only the
// key matching the ranking is set.
type RankingItem struct {
	CategoryID    string          `json:"category_id,omitempty"`
	CardID        string          `json:"card_id,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Name          string          `json:"name"`
	Color         string          `json:"color,omitempty"`
	Type          string          `json:"type,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Percent       decimal.Decimal `json:"percent"`
	Count         int             `json:"count"`
}

type MonthlyPoint struct {
	Month   Month           `json:"month"`
	Income  decimal.Decimal `json:"receitas"`
	Expense decimal.Decimal `json:"despesas"`
	Balance decimal.Decimal `json:"saldo"`
}

type ReportTotals struct {
	Income  decimal.Decimal `json:"receitas"`
	Expense decimal.Decimal `json:"despesas"`
	Balance decimal.Decimal `json:"saldo"`
}

type Report struct {
	Start           Month          `json:"inicio"`
	End             Month          `json:"fim"`
	Type            string         `json:"tipo,omitempty"`
	Totals          ReportTotals   `json:"totals"`
	ByCategory      []RankingItem  `json:"by_category"`
	ByCard          []RankingItem  `json:"by_card"`
	ByPaymentMethod []RankingItem  `json:"by_payment_method"`
	Monthly         []MonthlyPoint `json:"monthly"`
	Transactions    []Transaction  `json:"-"`
}

type ReportQuery struct {
	Start Month
	End   Month
	Type  string
}

// Normalize fills the current month for missing bounds and rejects inverted ranges.
func (q *ReportQuery) Normalize(current Month) error {
	if q.Start.IsZero() && q.End.IsZero() {
		q.Start, q.End = current, current
	} else if q.Start.IsZero() {
		q.Start = q.End
	} else if q.End.IsZero() {
		q.End = q.Start
	}
	if q.End.Before(q.Start) {
		return NewValidationError("fim", "must not be before inicio")
	}
	if len(MonthsBetween(q.Start, q.End)) > 36 {
		return NewValidationError("fim", "range cannot exceed 36 months")
	}
	if q.Type != "" && q.Type != TypeIncome && q.Type != TypeExpense {
		return NewValidationError("tipo", "must be receita or despesa")
	}
	return nil
}

// BuildReport aggregates txs that fall in the query range. Category percentages
// are shares of the total of the same type; card and payment method rankings only
// count expenses.
func BuildReport(q ReportQuery, txs []Transaction, categories []Category, cards []Card) Report {
	report := Report{
		Start:           q.Start,
		End:             q.End,
		Type:            q.Type,
		Totals:          ReportTotals{Income: decimal.Zero, Expense: decimal.Zero, Balance: decimal.Zero},
		ByCategory:      []RankingItem{},
		ByCard:          []RankingItem{},
		ByPaymentMethod: []RankingItem{},
		Transactions:    []Transaction{},
	}

	monthly := map[Month]*MonthlyPoint{}
	for _, m := range MonthsBetween(q.Start, q.End) {
		p := &MonthlyPoint{Month: m, Income: decimal.Zero, Expense: decimal.Zero, Balance: decimal.Zero}
		monthly[m] = p
	}

	catInfo := make(map[string]Category, len(categories))
	for _, c := range categories {
		catInfo[c.ID] = c
	}
	cardInfo := make(map[string]Card, len(cards))
	for _, c := range cards {
		cardInfo[c.ID] = c
	}

	byCategory := map[string]*RankingItem{}
	byCard := map[string]*RankingItem{}
	byMethod := map[string]*RankingItem{}

	for _, t := range txs {
		point, ok := monthly[t.Date.YearMonth()]
		if !ok {
			continue
		}
		if q.Type != "" && t.Type != q.Type {
			continue
		}
		report.Transactions = append(report.Transactions, t)

		if t.Type == TypeIncome {
			report.Totals.Income = report.Totals.Income.Add(t.Amount)
			point.Income = point.Income.Add(t.Amount)
		} else {
			report.Totals.Expense = report.Totals.Expense.Add(t.Amount)
			point.Expense = point.Expense.Add(t.Amount)
		}

		cat := catInfo[t.CategoryID]
		addRanking(byCategory, t.CategoryID, RankingItem{CategoryID: t.CategoryID, Name: cat.Name, Color: cat.Color, Type: t.Type}, t.Amount)

		if t.Type != TypeExpense {
			continue
		}
		if t.CardID != nil {
			card := cardInfo[*t.CardID]
			addRanking(byCard, *t.CardID, RankingItem{CardID: *t.CardID, Name: card.Name, Color: card.Color}, t.Amount)
		}
		addRanking(byMethod, t.PaymentMethod, RankingItem{PaymentMethod: t.PaymentMethod, Name: t.PaymentMethod}, t.Amount)
	}

	report.Totals.Balance = report.Totals.Income.Sub(report.Totals.Expense)

	for _, item := range byCategory {
		whole := report.Totals.Expense
		if item.Type == TypeIncome {
			whole = report.Totals.Income
		}
		item.Percent = Percent(item.Total, whole)
		report.ByCategory = append(report.ByCategory, *item)
	}
	report.ByCard = finishRanking(byCard, report.Totals.Expense)
	report.ByPaymentMethod = finishRanking(byMethod, report.Totals.Expense)
	sortRanking(report.ByCategory)

	for _, m := range MonthsBetween(q.Start, q.End) {
		p := monthly[m]
		p.Balance = p.Income.Sub(p.Expense)
		report.Monthly = append(report.Monthly, *p)
	}
	return report
}

func addRanking(items map[string]*RankingItem, key string, proto RankingItem, amount decimal.Decimal) {
	item, ok := items[key]
	if !ok {
		if proto.Name == "" {
			proto.Name = "Sem nome"
		}
		proto.Total = decimal.Zero
		item = &proto
		items[key] = item
	}
	item.Total = item.Total.Add(amount)
	item.Count++
}

func finishRanking(items map[string]*RankingItem, whole decimal.Decimal) []RankingItem {
	out := make([]RankingItem, 0, len(items))
	for _, item := range items {
		item.Percent = Percent(item.Total, whole)
		out = append(out, *item)
	}
	sortRanking(out)
	return out
}

// sortRanking orders by total desc, then by name for a stable output.
func sortRanking(items []RankingItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Total.Equal(items[j].Total) {
			return items[i].Total.GreaterThan(items[j].Total)
		}
		return items[i].Name < items[j].Name
	})
}
