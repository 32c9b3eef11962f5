package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/utils"
)

const resendEndpoint = "https://api.resend.com/emails"

// EmailService sends transactional email through the Resend API. Without an API
// key it only logs what it would have sent.
type EmailService struct {
	apiKey      string
	fromEmail   string
	frontendURL string
	endpoint    string
	client      *http.Client
}

func NewEmailService(apiKey, fromEmail, frontendURL string) *EmailService {
	if fromEmail == "" {
		fromEmail = "noreply@financas.app"
	}
	return &EmailService{
		apiKey:      apiKey,
		fromEmail:   fromEmail,
		frontendURL: frontendURL,
		endpoint:    resendEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ============================================================================
// TEMPLATES
// ============================================================================

var invitationTemplate = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background-color: #f3f4f6;">
    <table role="presentation" style="max-width: 600px; margin: 40px auto; background-color: #ffffff; border-radius: 12px;">
        <tr>
            <td style="padding: 40px;">
                <h2 style="margin: 0 0 20px 0; color: #1f2937;">Convite para dividir despesas</h2>
                <p style="color: #4b5563; font-size: 16px; line-height: 1.6;">
                    <strong>{{.Inviter}}</strong> quer compartilhar lançamentos com você no Finanças.
                </p>
                <a href="{{.Link}}" style="display: inline-block; padding: 16px 32px; background: #16A34A; color: #ffffff; text-decoration: none; border-radius: 8px; font-weight: 600;">
                    Aceitar convite
                </a>
                <p style="color: #9ca3af; font-size: 13px; margin-top: 30px;">Este link expira em 7 dias.</p>
            </td>
        </tr>
    </table>
</body>
</html>`))

var reminderTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background-color: #f3f4f6;">
    <table role="presentation" style="max-width: 600px; margin: 40px auto; background-color: #ffffff; border-radius: 12px;">
        <tr>
            <td style="padding: 40px;">
                <h2 style="margin: 0 0 20px 0; color: #1f2937;">Olá {{.Name}}, tem conta vencendo</h2>
                <p style="color: #4b5563; font-size: 16px; line-height: 1.6;">
                    <strong>{{.Description}}</strong> no valor de <strong>R$ {{.Amount}}</strong> vence em <strong>{{.DueDate}}</strong>.
                </p>
                <a href="{{.Link}}" style="display: inline-block; padding: 16px 32px; background: #2563EB; color: #ffffff; text-decoration: none; border-radius: 8px; font-weight: 600;">
                    Ver lançamentos
                </a>
            </td>
        </tr>
    </table>
</body>
</html>`))

// ============================================================================
// MESSAGES
// ============================================================================

// InvitationLink is the frontend URL that accepts a partner invitation.
func (s *EmailService) InvitationLink(token string) string {
	return fmt.Sprintf("%s/parceiro/aceitar?token=%s", s.frontendURL, token)
}

func (s *EmailService) SendPartnerInvitation(ctx context.Context, to, inviterName, token string) error {
	var body bytes.Buffer
	err := invitationTemplate.Execute(&body, struct{ Inviter, Link string }{inviterName, s.InvitationLink(token)})
	if err != nil {
		return fmt.Errorf("render invitation: %w", err)
	}
	return s.send(ctx, to, fmt.Sprintf("%s quer dividir despesas com você", inviterName), body.String())
}

func (s *EmailService) SendDueReminder(ctx context.Context, r *events.Reminder) error {
	var body bytes.Buffer
	data := struct{ Name, Description, Amount, DueDate, Link string }{
		Name:        r.Name,
		Description: r.Description,
		Amount:      r.Amount.StringFixed(2),
		DueDate:     r.DueDate,
		Link:        s.frontendURL + "/lancamentos",
	}
	if err := reminderTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("render reminder: %w", err)
	}
	return s.send(ctx, r.Email, "Lembrete de vencimento: "+r.Description, body.String())
}

func (s *EmailService) send(ctx context.Context, to, subject, html string) error {
	if s.apiKey == "" {
		slog.InfoContext(ctx, "RESEND_API_KEY not set, email not sent", "to", utils.MaskEmail(to), "subject", subject)
		return nil
	}

	payload, err := json.Marshal(emailRequest{
		From:    fmt.Sprintf("Finanças <%s>", s.fromEmail),
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if rejected(resp.StatusCode) {
			return fmt.Errorf("email API returned status: %d: %w", resp.StatusCode, events.ErrPermanent)
		}
		return fmt.Errorf("email API returned status: %d", resp.StatusCode)
	}

	slog.InfoContext(ctx, "email sent", "to", utils.MaskEmail(to))
	return nil
}

// rejected reports whether the email API refused the request itself, so
// sending it again cannot succeed.
func rejected(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}
