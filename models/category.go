package models

import (
	"regexp"
	"strings"
	"time"
)

const (
	TypeIncome  = "receita"
	TypeExpense = "despesa"

	DefaultCategoryColor = "#6B7280"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryRequest struct {
	Name  string `json:"name" binding:"required,max=60"`
	Type  string `json:"type" binding:"required,oneof=receita despesa"`
	Color string `json:"color"`
	Icon  string `json:"icon" binding:"max=40"`
}

// Normalize trims the request and fills the default color.
func (r *CategoryRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return NewValidationError("name", "cannot be empty")
	}
	if r.Color == "" {
		r.Color = DefaultCategoryColor
	}
	if !hexColor.MatchString(r.Color) {
		return NewValidationError("color", "must be a #RRGGBB hex color")
	}
	return nil
}

// SameName compares category names the way uniqueness is enforced.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// DefaultCategories are seeded for every new account.
var DefaultCategories = []CategoryRequest{
	{Name: "Salário", Type: TypeIncome, Color: "#16A34A", Icon: "briefcase"},
	{Name: "Investimentos", Type: TypeIncome, Color: "#0EA5E9", Icon: "trending-up"},
	{Name: "Outras receitas", Type: TypeIncome, Color: "#22C55E", Icon: "plus-circle"},
	{Name: "Alimentação", Type: TypeExpense, Color: "#F97316", Icon: "utensils"},
	{Name: "Moradia", Type: TypeExpense, Color: "#8B5CF6", Icon: "home"},
	{Name: "Transporte", Type: TypeExpense, Color: "#3B82F6", Icon: "car"},
	{Name: "Saúde", Type: TypeExpense, Color: "#EF4444", Icon: "heart-pulse"},
	{Name: "Educação", Type: TypeExpense, Color: "#EAB308", Icon: "graduation-cap"},
	{Name: "Lazer", Type: TypeExpense, Color: "#EC4899", Icon: "party-popper"},
	{Name: "Outras despesas", Type: TypeExpense, Color: DefaultCategoryColor, Icon: "ellipsis"},
}
