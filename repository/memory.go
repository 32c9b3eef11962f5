package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LovationAdmin/financas-api/models"
)

// Memory keeps everything in maps guarded by one mutex. Values are copied in
// and out so callers never share state with the store.
type Memory struct {
	mu sync.RWMutex

	users         map[string]models.User
	sessions      map[string]models.Session
	invitations   map[string]models.Invitation
	categories    map[string]models.Category
	cards         map[string]models.Card
	invoices      map[string]models.Invoice
	payments      map[string]models.InvoicePayment
	transactions  map[string]models.Transaction
	goals         map[string]models.Goal
	contributions map[string]models.Contribution
	points        map[string]models.PointEntry
	reminders     map[reminderKey]time.Time
}

type reminderKey struct {
	transactionID string
	due           string
}

func NewMemory() *Memory {
	return &Memory{
		users:         map[string]models.User{},
		sessions:      map[string]models.Session{},
		invitations:   map[string]models.Invitation{},
		categories:    map[string]models.Category{},
		cards:         map[string]models.Card{},
		invoices:      map[string]models.Invoice{},
		payments:      map[string]models.InvoicePayment{},
		transactions:  map[string]models.Transaction{},
		goals:         map[string]models.Goal{},
		contributions: map[string]models.Contribution{},
		points:        map[string]models.PointEntry{},
		reminders:     map[reminderKey]time.Time{},
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

// ============================================================================
// USERS
// ============================================================================

func (m *Memory) CreateUser(ctx context.Context, u *models.User, categories []models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return models.ErrConflict
		}
	}
	m.users[u.ID] = *u
	for _, c := range categories {
		m.categories[c.ID] = c
	}
	return nil
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return models.ErrNotFound
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.ErrNotFound
	}
	if u.HasPartner() {
		if p, ok := m.users[*u.PartnerID]; ok {
			p.PartnerID = nil
			m.users[p.ID] = p
		}
	}
	for tid, t := range m.transactions {
		if t.UserID == id {
			delete(m.transactions, tid)
			continue
		}
		if t.Shared && t.SplitOf(id) != nil {
			unshare(&t)
			m.transactions[tid] = t
		}
	}
	for k, s := range m.sessions {
		if s.UserID == id {
			delete(m.sessions, k)
		}
	}
	for k, inv := range m.invitations {
		if inv.InviterID == id {
			delete(m.invitations, k)
		}
	}
	for k, c := range m.categories {
		if c.UserID == id {
			delete(m.categories, k)
		}
	}
	for k, c := range m.cards {
		if c.UserID == id {
			m.deleteCardLocked(k)
		}
	}
	for k, g := range m.goals {
		if g.UserID == id {
			m.deleteGoalLocked(k)
		}
	}
	for k, p := range m.points {
		if p.UserID == id {
			delete(m.points, k)
		}
	}
	delete(m.users, id)
	return nil
}

// unshare turns a shared row back into a private one when the partner is gone.
func unshare(t *models.Transaction) {
	t.Shared = false
	t.SplitMode = ""
	t.Splits = nil
}

func (m *Memory) LinkPartners(ctx context.Context, inviterID, inviteeID, invitationID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inviter, ok1 := m.users[inviterID]
	invitee, ok2 := m.users[inviteeID]
	if !ok1 || !ok2 {
		return models.ErrNotFound
	}
	if inviter.HasPartner() || invitee.HasPartner() {
		return models.ErrConflict
	}
	inv, ok := m.invitations[invitationID]
	if !ok || inv.Status != models.InvitationPending {
		return models.ErrNotFound
	}
	a, b := inviterID, inviteeID
	inviter.PartnerID, inviter.UpdatedAt = &b, now
	invitee.PartnerID, invitee.UpdatedAt = &a, now
	m.users[inviterID], m.users[inviteeID] = inviter, invitee
	inv.Status, inv.UpdatedAt = models.InvitationAccepted, now
	m.invitations[invitationID] = inv
	return nil
}

func (m *Memory) UnlinkPartners(ctx context.Context, userID, partnerID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range []string{userID, partnerID} {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		u.PartnerID, u.UpdatedAt = nil, now
		m.users[id] = u
	}
	return nil
}

// ============================================================================
// SESSIONS & INVITATIONS
// ============================================================================

func (m *Memory) CreateSession(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.RefreshToken]; ok {
		return models.ErrConflict
	}
	m.sessions[s.RefreshToken] = *s
	return nil
}

func (m *Memory) GetSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[refreshToken]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (m *Memory) DeleteSession(ctx context.Context, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, refreshToken)
	return nil
}

func (m *Memory) DeleteUserSessions(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, k)
		}
	}
	return nil
}

func (m *Memory) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations[inv.ID] = *inv
	return nil
}

func (m *Memory) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invitations {
		if inv.Token == token {
			return &inv, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) FindPendingInvitation(ctx context.Context, inviterID, email string, now time.Time) (*models.Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invitations {
		if inv.InviterID == inviterID && strings.EqualFold(inv.Email, email) && inv.Usable(now) {
			return &inv, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) ListInvitations(ctx context.Context, inviterID string) ([]models.Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Invitation{}
	for _, inv := range m.invitations {
		if inv.InviterID == inviterID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SetInvitationStatus(ctx context.Context, id, status string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return models.ErrNotFound
	}
	inv.Status, inv.UpdatedAt = status, now
	m.invitations[id] = inv
	return nil
}

func (m *Memory) DeleteExpiredInvitations(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, inv := range m.invitations {
		if inv.Status == models.InvitationPending && !inv.ExpiresAt.After(now) {
			delete(m.invitations, k)
			n++
		}
	}
	return n, nil
}

// ============================================================================
// CATEGORIES
// ============================================================================

func (m *Memory) ListCategories(ctx context.Context, userID, typ string) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Category{}
	for _, c := range m.categories {
		if c.UserID == userID && (typ == "" || c.Type == typ) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (m *Memory) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) categoryNameTaken(c *models.Category) bool {
	for _, other := range m.categories {
		if other.ID != c.ID && other.UserID == c.UserID && other.Type == c.Type && models.SameName(other.Name, c.Name) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateCategory(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.categoryNameTaken(c) {
		return models.ErrConflict
	}
	m.categories[c.ID] = *c
	return nil
}

func (m *Memory) UpdateCategory(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; !ok {
		return models.ErrNotFound
	}
	if m.categoryNameTaken(c) {
		return models.ErrConflict
	}
	m.categories[c.ID] = *c
	return nil
}

func (m *Memory) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return models.ErrNotFound
	}
	for _, t := range m.transactions {
		if t.CategoryID == id {
			return models.ErrConflict
		}
	}
	delete(m.categories, id)
	return nil
}

// ============================================================================
// CARDS & INVOICES
// ============================================================================

func (m *Memory) ListCards(ctx context.Context, userID string) ([]models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Card{}
	for _, c := range m.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sortCards(out)
	return out, nil
}

func (m *Memory) ListAllCards(ctx context.Context) ([]models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Card, 0, len(m.cards))
	for _, c := range m.cards {
		out = append(out, c)
	}
	sortCards(out)
	return out, nil
}

func sortCards(cards []models.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].CreatedAt.Before(cards[j].CreatedAt)
		}
		return cards[i].ID < cards[j].ID
	})
}

func (m *Memory) GetCard(ctx context.Context, id string) (*models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) CountCards(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.cards {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateCard(ctx context.Context, c *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID] = *c
	return nil
}

func (m *Memory) UpdateCard(ctx context.Context, c *models.Card, rebill []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[c.ID]; !ok {
		return models.ErrNotFound
	}
	m.cards[c.ID] = *c
	for _, t := range rebill {
		if stored, ok := m.transactions[t.ID]; ok {
			stored.InvoiceMonth, stored.DueDate = t.InvoiceMonth, t.DueDate
			m.transactions[t.ID] = stored
		}
	}
	return nil
}

func (m *Memory) DeleteCard(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return models.ErrNotFound
	}
	for _, t := range m.transactions {
		if t.CardID != nil && *t.CardID == id {
			return models.ErrConflict
		}
	}
	m.deleteCardLocked(id)
	return nil
}

func (m *Memory) deleteCardLocked(id string) {
	for k, inv := range m.invoices {
		if inv.CardID != id {
			continue
		}
		for pk, p := range m.payments {
			if p.InvoiceID == k {
				delete(m.payments, pk)
			}
		}
		delete(m.invoices, k)
	}
	delete(m.cards, id)
}

func (m *Memory) GetInvoice(ctx context.Context, cardID string, month models.Month) (*models.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invoices {
		if inv.CardID == cardID && inv.ReferenceMonth == month {
			return &inv, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) EnsureInvoice(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.invoices {
		if existing.CardID == inv.CardID && existing.ReferenceMonth == inv.ReferenceMonth {
			return &existing, nil
		}
	}
	m.invoices[inv.ID] = *inv
	stored := *inv
	return &stored, nil
}

func (m *Memory) ListInvoices(ctx context.Context, cardID string) ([]models.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Invoice{}
	for _, inv := range m.invoices {
		if inv.CardID == cardID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceMonth.Before(out[j].ReferenceMonth) })
	return out, nil
}

func (m *Memory) SetInvoiceClosed(ctx context.Context, invoiceID string, closedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return models.ErrNotFound
	}
	inv.ClosedAt = closedAt
	m.invoices[invoiceID] = inv
	return nil
}

func (m *Memory) ListInvoicePayments(ctx context.Context, invoiceID string) ([]models.InvoicePayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.InvoicePayment{}
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AddInvoicePayment(ctx context.Context, p *models.InvoicePayment, settle []string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[p.InvoiceID]; !ok {
		return models.ErrNotFound
	}
	m.payments[p.ID] = *p
	m.setPaidLocked(settle, true, &now)
	return nil
}

func (m *Memory) DeleteInvoicePayment(ctx context.Context, invoiceID, paymentID string, reopen []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok || p.InvoiceID != invoiceID {
		return models.ErrNotFound
	}
	delete(m.payments, paymentID)
	m.setPaidLocked(reopen, false, nil)
	return nil
}

// ============================================================================
// TRANSACTIONS
// ============================================================================

func copyTransaction(t models.Transaction) models.Transaction {
	if t.Splits != nil {
		splits := make([]models.Split, len(t.Splits))
		copy(splits, t.Splits)
		t.Splits = splits
	}
	return t
}

func (m *Memory) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Transaction{}
	for _, t := range m.transactions {
		if f.Matches(&t) {
			out = append(out, copyTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	t = copyTransaction(t)
	return &t, nil
}

func (m *Memory) checkReferencesLocked(t *models.Transaction) error {
	if _, ok := m.categories[t.CategoryID]; !ok {
		return models.ErrConflict
	}
	if t.CardID != nil {
		if _, ok := m.cards[*t.CardID]; !ok {
			return models.ErrConflict
		}
	}
	return nil
}

func (m *Memory) CreateTransactions(ctx context.Context, txs []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range txs {
		if _, ok := m.transactions[txs[i].ID]; ok {
			return models.ErrConflict
		}
		if err := m.checkReferencesLocked(&txs[i]); err != nil {
			return err
		}
	}
	for _, t := range txs {
		m.transactions[t.ID] = copyTransaction(t)
	}
	return nil
}

func (m *Memory) UpdateTransactions(ctx context.Context, txs []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range txs {
		if _, ok := m.transactions[txs[i].ID]; !ok {
			return models.ErrNotFound
		}
		if err := m.checkReferencesLocked(&txs[i]); err != nil {
			return err
		}
	}
	for _, t := range txs {
		m.transactions[t.ID] = copyTransaction(t)
	}
	return nil
}

func (m *Memory) DeleteTransactions(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.transactions, id)
	}
	for k := range m.reminders {
		if slices.Contains(ids, k.transactionID) {
			delete(m.reminders, k)
		}
	}
	return nil
}

func (m *Memory) ClaimReminder(ctx context.Context, transactionID string, due models.Date, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[transactionID]; !ok {
		return false, models.ErrConflict
	}
	k := reminderKey{transactionID, due.String()}
	if _, ok := m.reminders[k]; ok {
		return false, nil
	}
	m.reminders[k] = now
	return true, nil
}

func (m *Memory) SetTransactionsPaid(ctx context.Context, ids []string, paid bool, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPaidLocked(ids, paid, at)
	return nil
}

func (m *Memory) setPaidLocked(ids []string, paid bool, at *time.Time) {
	for _, id := range ids {
		t, ok := m.transactions[id]
		if !ok {
			continue
		}
		t.Paid = paid
		t.PaidAt = nil
		if paid && at != nil {
			stamp := *at
			t.PaidAt = &stamp
		}
		m.transactions[id] = t
	}
}

func (m *Memory) UpdateSplits(ctx context.Context, splits []models.Split) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range splits {
		t, ok := m.transactions[s.TransactionID]
		if !ok {
			return models.ErrNotFound
		}
		found := false
		for i := range t.Splits {
			if t.Splits[i].ID == s.ID {
				found = true
			}
		}
		if !found {
			return models.ErrNotFound
		}
	}
	for _, s := range splits {
		t := copyTransaction(m.transactions[s.TransactionID])
		for i := range t.Splits {
			if t.Splits[i].ID == s.ID {
				t.Splits[i] = s
			}
		}
		m.transactions[s.TransactionID] = t
	}
	return nil
}

// ============================================================================
// GOALS
// ============================================================================

func (m *Memory) goalWithContributionsLocked(g models.Goal) models.Goal {
	g.Contributions = []models.Contribution{}
	for _, c := range m.contributions {
		if c.GoalID == g.ID {
			g.Contributions = append(g.Contributions, c)
		}
	}
	sort.Slice(g.Contributions, func(i, j int) bool {
		a, b := g.Contributions[i], g.Contributions[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return g
}

func (m *Memory) ListGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Goal{}
	for _, g := range m.goals {
		if g.UserID == userID {
			out = append(out, m.goalWithContributionsLocked(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetGoal(ctx context.Context, id string) (*models.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	g = m.goalWithContributionsLocked(g)
	return &g, nil
}

func (m *Memory) CountGoals(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, g := range m.goals {
		if g.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateGoal(ctx context.Context, g *models.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *g
	stored.Contributions = nil
	m.goals[g.ID] = stored
	return nil
}

func (m *Memory) UpdateGoal(ctx context.Context, g *models.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.goals[g.ID]; !ok {
		return models.ErrNotFound
	}
	stored := *g
	stored.Contributions = nil
	m.goals[g.ID] = stored
	return nil
}

func (m *Memory) DeleteGoal(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.goals[id]; !ok {
		return models.ErrNotFound
	}
	m.deleteGoalLocked(id)
	return nil
}

func (m *Memory) deleteGoalLocked(id string) {
	for k, c := range m.contributions {
		if c.GoalID == id {
			delete(m.contributions, k)
		}
	}
	delete(m.goals, id)
}

func (m *Memory) AddContribution(ctx context.Context, c *models.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.goals[c.GoalID]; !ok {
		return models.ErrNotFound
	}
	m.contributions[c.ID] = *c
	return nil
}

func (m *Memory) DeleteContribution(ctx context.Context, goalID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contributions[id]
	if !ok || c.GoalID != goalID {
		return models.ErrNotFound
	}
	delete(m.contributions, id)
	return nil
}

// ============================================================================
// POINTS
// ============================================================================

func (m *Memory) ListPointEntries(ctx context.Context, userID, program string) ([]models.PointEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.PointEntry{}
	for _, p := range m.points {
		if p.UserID == userID && (program == "" || strings.EqualFold(p.Program, program)) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetPointEntry(ctx context.Context, id string) (*models.PointEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (m *Memory) CreatePointEntry(ctx context.Context, p *models.PointEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[p.ID] = *p
	return nil
}

func (m *Memory) DeletePointEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.points[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.points, id)
	return nil
}

var _ Repository = (*Memory)(nil)
