package models

import "time"

const (
	PlanFree    = "free"
	PlanPremium = "premium"

	SubscriptionActive  = "ativa"
	SubscriptionExpired = "expirada"
)

// Unlimited marks a plan limit that does not apply.
const Unlimited = -1

type PlanLimits struct {
	MaxCards int  `json:"max_cards"`
	MaxGoals int  `json:"max_goals"`
	Export   bool `json:"export"`
}

func LimitsFor(plan string) PlanLimits {
	if plan == PlanPremium {
		return PlanLimits{MaxCards: Unlimited, MaxGoals: Unlimited, Export: true}
	}
	return PlanLimits{MaxCards: 2, MaxGoals: 3, Export: false}
}

// Allows reports whether one more item fits under limit given the current count.
func (l PlanLimits) Allows(limit, current int) bool {
	return limit == Unlimited || current < limit
}

// EffectivePlan is the plan the user is entitled to right now. A lapsed premium
// plan falls back to free.
func (u *User) EffectivePlan(now time.Time) string {
	if u.Plan == PlanPremium && (u.PlanExpiresAt == nil || now.Before(*u.PlanExpiresAt)) {
		return PlanPremium
	}
	return PlanFree
}

type SubscriptionUsage struct {
	Cards int `json:"cards"`
	Goals int `json:"goals"`
}

type Subscription struct {
	Plan      string            `json:"plan"`
	Status    string            `json:"status"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Limits    PlanLimits        `json:"limits"`
	Usage     SubscriptionUsage `json:"usage"`
}

// SubscriptionFor describes the user's plan as of now.
func SubscriptionFor(u *User, now time.Time, usage SubscriptionUsage) Subscription {
	plan := u.EffectivePlan(now)
	status := SubscriptionActive
	if u.Plan == PlanPremium && plan == PlanFree {
		status = SubscriptionExpired
	}
	return Subscription{
		Plan:      plan,
		Status:    status,
		ExpiresAt: u.PlanExpiresAt,
		Limits:    LimitsFor(plan),
		Usage:     usage,
	}
}

type UpdateSubscriptionRequest struct {
	Plan   string `json:"plan" binding:"required,oneof=free premium"`
	Months int    `json:"months" binding:"omitempty,min=1,max=36"`
}
