// Package email delivers login links. The transport is picked once at
// startup; the login flow only sees the Sender interface.
package email

import (
	"context"
	"fmt"
	htmltmpl "html/template"
	"net/url"
	"strings"
	texttmpl "text/template"
)

// Message is an outbound email.
type Message struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// Sender delivers a message or returns an error. Implementations must not
// retry on their own.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const loginSubject = "Your fit-drive login link"

var (
	loginTextTmpl = texttmpl.Must(texttmpl.New("login.txt").Parse(
		"Click here to log in: {{.Link}}\n\nThis link expires in {{.TTL}} and can be used once.\n"))
	loginHTMLTmpl = htmltmpl.Must(htmltmpl.New("login.html").Parse(
		`<p><a href="{{.Link}}">Click here to log in</a></p><p>This link expires in {{.TTL}} and can be used once.</p>`))
)

type loginData struct {
	Link string
	TTL  string
}

// LoginLink builds <baseURL>/login-verify?token=<token>.
func LoginLink(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/login-verify")
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// LoginMessage composes the email carrying a login link.
func LoginMessage(to, link, ttl string) (Message, error) {
	data := loginData{Link: link, TTL: ttl}

	var text, html strings.Builder
	if err := loginTextTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("rendering text body: %w", err)
	}
	if err := loginHTMLTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("rendering html body: %w", err)
	}

	return Message{
		To:       to,
		Subject:  loginSubject,
		Body:     text.String(),
		HTMLBody: html.String(),
	}, nil
}
