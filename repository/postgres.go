package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/utils"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *Postgres) Close() error                   { return p.db.Close() }

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// mapError turns driver errors into the repository's sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503":
			return models.ErrConflict
		}
	}
	return err
}

// expectRows reports ErrNotFound when an UPDATE or DELETE touched nothing.
func expectRows(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ============================================================================
// USERS
// ============================================================================

const userColumns = `id, email, password_hash, name, avatar, totp_secret, totp_enabled,
	partner_id, plan, plan_expires_at, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var partner sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Avatar, &u.TOTPSecret, &u.TOTPEnabled,
		&partner, &u.Plan, &u.PlanExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if partner.Valid {
		u.PartnerID = &partner.String
	}
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *models.User, categories []models.Category) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, name, avatar, totp_secret, totp_enabled, plan, plan_expires_at, created_at, updated_at)
			VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, u.ID, u.Email, u.PasswordHash, u.Name, u.Avatar, u.TOTPSecret, u.TOTPEnabled, u.Plan, u.PlanExpiresAt, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		for i := range categories {
			if err := insertCategory(ctx, tx, &categories[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email))
}

func (p *Postgres) UpdateUser(ctx context.Context, u *models.User) error {
	return expectRows(p.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, avatar = $3, password_hash = $4, totp_secret = $5, totp_enabled = $6,
		    plan = $7, plan_expires_at = $8, updated_at = $9
		WHERE id = $1
	`, u.ID, u.Name, u.Avatar, u.PasswordHash, u.TOTPSecret, u.TOTPEnabled, u.Plan, u.PlanExpiresAt, u.UpdatedAt))
}

// DeleteUser removes the account. Rows the partner shared with the user go back
// to being private to the partner.
func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE transactions SET shared = FALSE, split_mode = '', split_value = 0, updated_at = NOW()
			WHERE user_id <> $1 AND shared
			  AND id IN (SELECT transaction_id FROM transaction_splits WHERE user_id = $1)
		`, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM transaction_splits
			WHERE transaction_id IN (SELECT transaction_id FROM transaction_splits WHERE user_id = $1)
		`, id)
		if err != nil {
			return err
		}
		// Categories and cards are referenced without cascade, so the rows that
		// point at them go first.
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, id); err != nil {
			return err
		}
		return expectRows(tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
	})
}

func (p *Postgres) LinkPartners(ctx context.Context, inviterID, inviteeID, invitationID string, now time.Time) error {
	return utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET partner_id = CASE WHEN id = $1 THEN $2::uuid ELSE $1::uuid END, updated_at = $3
			WHERE id IN ($1, $2) AND partner_id IS NULL
		`, inviterID, inviteeID, now)
		if err != nil {
			return mapError(err)
		}
		if n, _ := res.RowsAffected(); n != 2 {
			return models.ErrConflict
		}
		return expectRows(tx.ExecContext(ctx, `
			UPDATE invitations SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4
		`, invitationID, models.InvitationAccepted, now, models.InvitationPending))
	})
}

func (p *Postgres) UnlinkPartners(ctx context.Context, userID, partnerID string, now time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE users SET partner_id = NULL, updated_at = $3 WHERE id IN ($1, $2)
	`, userID, partnerID, now)
	return mapError(err)
}

// ============================================================================
// SESSIONS
// ============================================================================

func (p *Postgres) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.UserID, s.RefreshToken, s.ExpiresAt, s.CreatedAt)
	return mapError(err)
}

func (p *Postgres) GetSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	var s models.Session
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, refresh_token, expires_at, created_at FROM sessions WHERE refresh_token = $1
	`, refreshToken).Scan(&s.ID, &s.UserID, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (p *Postgres) DeleteSession(ctx context.Context, refreshToken string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken)
	return err
}

func (p *Postgres) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (p *Postgres) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ============================================================================
// INVITATIONS
// ============================================================================

const invitationColumns = `id, inviter_id, email, token, status, expires_at, created_at, updated_at`

func scanInvitation(row interface{ Scan(...interface{}) error }) (*models.Invitation, error) {
	var inv models.Invitation
	err := row.Scan(&inv.ID, &inv.InviterID, &inv.Email, &inv.Token, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &inv, nil
}

func (p *Postgres) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO invitations (`+invitationColumns+`)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8)
	`, inv.ID, inv.InviterID, inv.Email, inv.Token, inv.Status, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt)
	return mapError(err)
}

func (p *Postgres) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	return scanInvitation(p.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token))
}

func (p *Postgres) FindPendingInvitation(ctx context.Context, inviterID, email string, now time.Time) (*models.Invitation, error) {
	return scanInvitation(p.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations
		WHERE inviter_id = $1 AND LOWER(email) = LOWER($2) AND status = $3 AND expires_at > $4
		ORDER BY created_at DESC LIMIT 1
	`, inviterID, strings.TrimSpace(email), models.InvitationPending, now))
}

func (p *Postgres) ListInvitations(ctx context.Context, inviterID string) ([]models.Invitation, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations WHERE inviter_id = $1 ORDER BY created_at DESC
	`, inviterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (p *Postgres) SetInvitationStatus(ctx context.Context, id, status string, now time.Time) error {
	return expectRows(p.db.ExecContext(ctx, `
		UPDATE invitations SET status = $2, updated_at = $3 WHERE id = $1
	`, id, status, now))
}

func (p *Postgres) DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM invitations WHERE status = $1 AND expires_at <= $2
	`, models.InvitationPending, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Repository = (*Postgres)(nil)
