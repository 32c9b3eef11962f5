package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
)

// clock is embedded by every service so tests can pin "now".
type clock struct {
	now func() time.Time
}

func (c clock) Now() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

func (c clock) Today() models.Date {
	return models.DateOf(c.Now())
}

func newID() string {
	return uuid.NewString()
}

// publish sends e and only logs failures: a lost notification never fails the
// mutation that caused it.
func publish(ctx context.Context, pub events.Publisher, e events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "event not delivered", "type", e.Type, "error", err)
	}
}

// partnerOf returns the partner id of userID, or "" when unlinked.
func partnerOf(ctx context.Context, repo repository.Repository, userID string) (string, error) {
	u, err := repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if !u.HasPartner() {
		return "", nil
	}
	return *u.PartnerID, nil
}

// notFoundAs turns ErrNotFound into a validation error on field. Used when an id in
// a request body points at nothing the user owns.
func notFoundAs(err error, field, msg string) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewValidationError(field, "%s", msg)
	}
	return err
}

// checkPlanLimit returns ErrPlanLimit when the user's plan has no room for one more
// card or goal.
func checkPlanLimit(ctx context.Context, repo repository.Repository, userID string, now time.Time, kind string) error {
	u, err := repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	limits := models.LimitsFor(u.EffectivePlan(now))

	var limit, current int
	switch kind {
	case "cards":
		limit = limits.MaxCards
		current, err = repo.CountCards(ctx, userID)
	case "goals":
		limit = limits.MaxGoals
		current, err = repo.CountGoals(ctx, userID)
	default:
		return fmt.Errorf("unknown plan resource %q", kind)
	}
	if err != nil {
		return fmt.Errorf("count %s: %w", kind, err)
	}
	if !limits.Allows(limit, current) {
		return fmt.Errorf("%w: %s", models.ErrPlanLimit, kind)
	}
	return nil
}
