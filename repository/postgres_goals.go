package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/utils"
)

// ============================================================================
// GOALS
// ============================================================================

const goalColumns = `id, user_id, title, target_amount, due_date, color, icon, created_at, updated_at`

func scanGoal(row interface{ Scan(...interface{}) error }) (*models.Goal, error) {
	var g models.Goal
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.TargetAmount, &g.DueDate, &g.Color, &g.Icon, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	g.Contributions = []models.Contribution{}
	return &g, nil
}

// attachContributions loads the aportes of every goal in one query.
func (p *Postgres) attachContributions(ctx context.Context, goals []models.Goal) error {
	if len(goals) == 0 {
		return nil
	}
	index := make(map[string]int, len(goals))
	ids := make([]string, 0, len(goals))
	for i := range goals {
		index[goals[i].ID] = i
		ids = append(ids, goals[i].ID)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, goal_id, amount, date, note, created_at FROM goal_contributions
		WHERE goal_id = ANY($1) ORDER BY date, created_at
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Contribution
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Amount, &c.Date, &c.Note, &c.CreatedAt); err != nil {
			return err
		}
		g := &goals[index[c.GoalID]]
		g.Contributions = append(g.Contributions, c)
	}
	return rows.Err()
}

func (p *Postgres) ListGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachContributions(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) GetGoal(ctx context.Context, id string) (*models.Goal, error) {
	g, err := scanGoal(p.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	goals := []models.Goal{*g}
	if err := p.attachContributions(ctx, goals); err != nil {
		return nil, err
	}
	return &goals[0], nil
}

func (p *Postgres) CountGoals(ctx context.Context, userID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM goals WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (p *Postgres) CreateGoal(ctx context.Context, g *models.Goal) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, g.ID, g.UserID, g.Title, g.TargetAmount, g.DueDate, g.Color, g.Icon, g.CreatedAt, g.UpdatedAt)
	return mapError(err)
}

func (p *Postgres) UpdateGoal(ctx context.Context, g *models.Goal) error {
	return expectRows(p.db.ExecContext(ctx, `
		UPDATE goals SET title = $2, target_amount = $3, due_date = $4, color = $5, icon = $6, updated_at = $7
		WHERE id = $1
	`, g.ID, g.Title, g.TargetAmount, g.DueDate, g.Color, g.Icon, g.UpdatedAt))
}

func (p *Postgres) DeleteGoal(ctx context.Context, id string) error {
	return expectRows(p.db.ExecContext(ctx, `DELETE FROM goals WHERE id = $1`, id))
}

func (p *Postgres) AddContribution(ctx context.Context, c *models.Contribution) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		// Lock the goal so concurrent withdrawals see each other.
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM goals WHERE id = $1 FOR UPDATE`, c.GoalID).Scan(&id); err != nil {
			return mapError(err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO goal_contributions (id, goal_id, amount, date, note, created_at) VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID, c.GoalID, c.Amount, c.Date, c.Note, c.CreatedAt)
		return mapError(err)
	})
}

func (p *Postgres) DeleteContribution(ctx context.Context, goalID, id string) error {
	return expectRows(p.db.ExecContext(ctx, `DELETE FROM goal_contributions WHERE id = $1 AND goal_id = $2`, id, goalID))
}

// ============================================================================
// POINTS
// ============================================================================

const pointColumns = `id, user_id, program, quantity, type, redemption_value, date, description, created_at`

func scanPointEntry(row interface{ Scan(...interface{}) error }) (*models.PointEntry, error) {
	var e models.PointEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Program, &e.Quantity, &e.Type, &e.RedemptionValue, &e.Date, &e.Description, &e.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &e, nil
}

func (p *Postgres) ListPointEntries(ctx context.Context, userID, program string) ([]models.PointEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+pointColumns+` FROM point_entries
		WHERE user_id = $1 AND ($2::text = '' OR LOWER(program) = LOWER($2))
		ORDER BY date DESC, created_at DESC
	`, userID, program)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.PointEntry{}
	for rows.Next() {
		e, err := scanPointEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (p *Postgres) GetPointEntry(ctx context.Context, id string) (*models.PointEntry, error) {
	return scanPointEntry(p.db.QueryRowContext(ctx, `SELECT `+pointColumns+` FROM point_entries WHERE id = $1`, id))
}

func (p *Postgres) CreatePointEntry(ctx context.Context, e *models.PointEntry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO point_entries (`+pointColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.UserID, e.Program, e.Quantity, e.Type, e.RedemptionValue, e.Date, e.Description, e.CreatedAt)
	return mapError(err)
}

func (p *Postgres) DeletePointEntry(ctx context.Context, id string) error {
	return expectRows(p.db.ExecContext(ctx, `DELETE FROM point_entries WHERE id = $1`, id))
}
