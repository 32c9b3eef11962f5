// Package repository persists the finance data. Postgres is the production
// backend; Memory backs tests and the demo mode.
package repository

import (
	"context"
	"time"

	"github.com/LovationAdmin/financas-api/models"
)

// Repository returns models.ErrNotFound for missing rows and models.ErrConflict
// for uniqueness or reference violations. Methods that touch several rows are
// atomic.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	// Users, sessions and partner invitations.
	CreateUser(ctx context.Context, u *models.User, categories []models.Category) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id string) error
	LinkPartners(ctx context.Context, inviterID, inviteeID, invitationID string, now time.Time) error
	UnlinkPartners(ctx context.Context, userID, partnerID string, now time.Time) error

	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	DeleteUserSessions(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error)
	FindPendingInvitation(ctx context.Context, inviterID, email string, now time.Time) (*models.Invitation, error)
	ListInvitations(ctx context.Context, inviterID string) ([]models.Invitation, error)
	SetInvitationStatus(ctx context.Context, id, status string, now time.Time) error
	DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error)

	// Categories.
	ListCategories(ctx context.Context, userID, typ string) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error

	// Cards and invoices.
	ListCards(ctx context.Context, userID string) ([]models.Card, error)
	ListAllCards(ctx context.Context) ([]models.Card, error)
	GetCard(ctx context.Context, id string) (*models.Card, error)
	CountCards(ctx context.Context, userID string) (int, error)
	CreateCard(ctx context.Context, c *models.Card) error
	UpdateCard(ctx context.Context, c *models.Card, rebill []models.Transaction) error
	DeleteCard(ctx context.Context, id string) error

	GetInvoice(ctx context.Context, cardID string, month models.Month) (*models.Invoice, error)
	EnsureInvoice(ctx context.Context, inv *models.Invoice) (*models.Invoice, error)
	ListInvoices(ctx context.Context, cardID string) ([]models.Invoice, error)
	SetInvoiceClosed(ctx context.Context, invoiceID string, closedAt *time.Time) error
	ListInvoicePayments(ctx context.Context, invoiceID string) ([]models.InvoicePayment, error)
	AddInvoicePayment(ctx context.Context, p *models.InvoicePayment, settle []string, now time.Time) error
	DeleteInvoicePayment(ctx context.Context, invoiceID, paymentID string, reopen []string) error

	// Transactions and their splits.
	ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	CreateTransactions(ctx context.Context, txs []models.Transaction) error
	UpdateTransactions(ctx context.Context, txs []models.Transaction) error
	DeleteTransactions(ctx context.Context, ids []string) error
	SetTransactionsPaid(ctx context.Context, ids []string, paid bool, at *time.Time) error
	UpdateSplits(ctx context.Context, splits []models.Split) error
	// ClaimReminder records the reminder for a transaction's due date. It
	// returns false when that reminder was already claimed.
	ClaimReminder(ctx context.Context, transactionID string, due models.Date, now time.Time) (bool, error)

	// Goals.
	ListGoals(ctx context.Context, userID string) ([]models.Goal, error)
	GetGoal(ctx context.Context, id string) (*models.Goal, error)
	CountGoals(ctx context.Context, userID string) (int, error)
	CreateGoal(ctx context.Context, g *models.Goal) error
	UpdateGoal(ctx context.Context, g *models.Goal) error
	DeleteGoal(ctx context.Context, id string) error
	AddContribution(ctx context.Context, c *models.Contribution) error
	DeleteContribution(ctx context.Context, goalID, id string) error

	// Loyalty points.
	ListPointEntries(ctx context.Context, userID, program string) ([]models.PointEntry, error)
	GetPointEntry(ctx context.Context, id string) (*models.PointEntry, error)
	CreatePointEntry(ctx context.Context, p *models.PointEntry) error
	DeletePointEntry(ctx context.Context, id string) error
}
