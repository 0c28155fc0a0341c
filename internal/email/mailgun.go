package email

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/tphummel/fit-drive/internal/emailutil"
	"github.com/tphummel/fit-drive/internal/log"
)

// MailgunSender delivers messages through the Mailgun API.
type MailgunSender struct {
	From   string
	Client *mailgun.MailgunImpl
}

// NewMailgunSender builds a sender for domain. apiBase is optional and
// selects a regional endpoint such as mailgun.APIBaseEU.
func NewMailgunSender(domain, apiKey, from, apiBase string) (*MailgunSender, error) {
	if domain == "" || apiKey == "" || from == "" {
		return nil, fmt.Errorf("mailgun domain, api key and from address are required")
	}
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &MailgunSender{From: from, Client: mg}, nil
}

func (m *MailgunSender) Send(ctx context.Context, msg Message) error {
	mgMsg := m.Client.NewMessage(m.From, msg.Subject, msg.Body, msg.To)
	mgMsg.SetTracking(false)
	if msg.HTMLBody != "" {
		mgMsg.SetHtml(msg.HTMLBody)
	}

	_, id, err := m.Client.Send(ctx, mgMsg)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}

	log.LogDebugWithFields("email", "Sent email", map[string]any{
		"domain":         emailutil.ExtractDomain(msg.To),
		"mailgun_msg_id": id,
	})
	return nil
}
