package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/financas-api/models"
)

func TestGoalContributions(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ana", "ana@example.com")
	svc := f.goals()

	due := date("2025-06-10")
	g, err := svc.Create(ctx, "ana", models.GoalRequest{Title: "Viagem", TargetAmount: dec("1000"), DueDate: &due})
	if err != nil {
		t.Fatal(err)
	}
	if g.Status != models.GoalInProgress || !g.MonthlyNeeded.Equal(dec("250")) {
		t.Fatalf("new goal status %s monthly %s", g.Status, g.MonthlyNeeded)
	}

	g, err = svc.AddContribution(ctx, "ana", g.ID, models.ContributionRequest{Amount: dec("400")})
	if err != nil {
		t.Fatal(err)
	}
	if !g.CurrentAmount.Equal(dec("400")) || !g.Progress.Equal(dec("40")) || !g.MonthlyNeeded.Equal(dec("150")) {
		t.Fatalf("after aporte current %s progress %s monthly %s", g.CurrentAmount, g.Progress, g.MonthlyNeeded)
	}
	deposit := g.Contributions[0].ID

	_, err = svc.AddContribution(ctx, "ana", g.ID, models.ContributionRequest{Amount: dec("-500")})
	assertValidation(t, err, "amount")

	g, err = svc.AddContribution(ctx, "ana", g.ID, models.ContributionRequest{Amount: dec("-100"), Note: "resgate"})
	if err != nil {
		t.Fatal(err)
	}
	if !g.CurrentAmount.Equal(dec("300")) {
		t.Fatalf("after withdrawal current %s", g.CurrentAmount)
	}

	_, err = svc.DeleteContribution(ctx, "ana", g.ID, deposit)
	assertIs(t, err, models.ErrConflict)

	_, err = svc.DeleteContribution(ctx, "ana", g.ID, "missing")
	assertIs(t, err, models.ErrNotFound)

	g, err = svc.AddContribution(ctx, "ana", g.ID, models.ContributionRequest{Amount: dec("700")})
	if err != nil {
		t.Fatal(err)
	}
	if g.Status != models.GoalCompleted || !g.Remaining.IsZero() {
		t.Fatalf("status %s remaining %s", g.Status, g.Remaining)
	}
}

func TestGoalStatusAndOwnership(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ana", "ana@example.com")
	f.user(t, "bob", "bob@example.com")
	svc := f.goals()

	past := date("2025-03-01")
	g, err := svc.Create(ctx, "ana", models.GoalRequest{Title: "Reserva", TargetAmount: dec("500"), DueDate: &past})
	if err != nil {
		t.Fatal(err)
	}
	if g.Status != models.GoalLate {
		t.Fatalf("status = %s, want atrasada", g.Status)
	}

	_, err = svc.Get(ctx, "bob", g.ID)
	assertIs(t, err, models.ErrNotFound)
	err = svc.Delete(ctx, "bob", g.ID)
	assertIs(t, err, models.ErrNotFound)

	_, err = svc.Update(ctx, "ana", g.ID, models.GoalRequest{Title: " ", TargetAmount: dec("10")})
	assertValidation(t, err, "title")

	updated, err := svc.Update(ctx, "ana", g.ID, models.GoalRequest{Title: "Reserva", TargetAmount: dec("800")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.DueDate != nil || updated.Status != models.GoalInProgress {
		t.Fatalf("updated due %v status %s", updated.DueDate, updated.Status)
	}
}

func TestGoalPlanLimit(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ana", "ana@example.com")
	svc := f.goals()
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, "ana", models.GoalRequest{Title: "Meta", TargetAmount: dec("100")}); err != nil {
			t.Fatal(err)
		}
	}
	_, err := svc.Create(ctx, "ana", models.GoalRequest{Title: "Meta", TargetAmount: dec("100")})
	assertIs(t, err, models.ErrPlanLimit)
}

func TestPointsBalanceRules(t *testing.T) {
	f := newFixture(t)
	f.user(t, "ana", "ana@example.com")
	svc := f.points()

	earned, err := svc.Create(ctx, "ana", models.PointEntryRequest{Program: "Livelo", Quantity: 10000, Type: models.PointsEarned})
	if err != nil {
		t.Fatal(err)
	}
	if earned.Date.String() != "2025-03-10" {
		t.Fatalf("date defaults to today, got %s", earned.Date)
	}

	_, err = svc.Create(ctx, "ana", models.PointEntryRequest{Program: "Livelo", Quantity: 12000, Type: models.PointsRedeemed})
	assertValidation(t, err, "quantity")

	value := decimal.NewNullDecimal(dec("210"))
	if _, err := svc.Create(ctx, "ana", models.PointEntryRequest{Program: "Livelo", Quantity: 6000, Type: models.PointsRedeemed, RedemptionValue: value}); err != nil {
		t.Fatal(err)
	}

	list, err := svc.List(ctx, "ana", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 2 || len(list.Balances) != 1 {
		t.Fatalf("items %d balances %d", len(list.Items), len(list.Balances))
	}
	b := list.Balances[0]
	if b.Balance != 4000 || !b.AvgValuePerThousand.Equal(dec("35")) {
		t.Fatalf("balance %d avg %s", b.Balance, b.AvgValuePerThousand)
	}

	err = svc.Delete(ctx, "ana", earned.ID)
	assertIs(t, err, models.ErrConflict)

	f.user(t, "bob", "bob@example.com")
	err = svc.Delete(ctx, "bob", earned.ID)
	assertIs(t, err, models.ErrNotFound)
}
