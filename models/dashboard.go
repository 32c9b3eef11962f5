package models

import "github.com/shopspring/decimal"

// DashboardUpcomingDays is how far ahead the dashboard looks for bills to pay.
const DashboardUpcomingDays = 7

type CardInvoiceOverview struct {
	CardID  string          `json:"card_id"`
	Name    string          `json:"name"`
	Color   string          `json:"color"`
	Month   Month           `json:"reference_month"`
	DueDate Date            `json:"due_date"`
	Total   decimal.Decimal `json:"total"`
	Status  string          `json:"status"`
}

type Dashboard struct {
	Month    Month                 `json:"mes"`
	Totals   TransactionTotals     `json:"totals"`
	Recent   []Transaction         `json:"recent"`
	Upcoming []Transaction         `json:"upcoming"`
	Invoices []CardInvoiceOverview `json:"invoices"`
	Goals    GoalsSummary          `json:"goals"`
	Shared   SharedBalance         `json:"shared"`
	Points   []PointsBalance       `json:"points"`
}
