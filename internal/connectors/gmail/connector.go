package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"clinicreport/internal"
	"clinicreport/internal/config"
	"clinicreport/internal/connectors"
)

const provider = "gmail"

type Connector struct {
	service *gmail.Service
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc}, nil
}

// FetchReports lists matching messages and downloads each in raw form.
// Subject, sender and date come from the raw headers.
func (c *Connector) FetchReports(ctx context.Context, q connectors.Query) ([]internal.FetchedMailMessage, error) {
	call := c.service.Users.Messages.List("me").MaxResults(int64(q.Max)).Context(ctx)
	if q.Label != "" {
		call = call.LabelIds(q.Label)
	}
	if search := q.GmailSearch(); search != "" {
		call = call.Q(search)
	}
	listResp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}

		msg, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get %s: %w", ref.Id, err)
		}
		if msg.Raw == "" {
			continue
		}

		raw, err := decodeBase64URL(msg.Raw)
		if err != nil {
			return nil, err
		}

		fetched := internal.FetchedMailMessage{
			Provider:   provider,
			MessageID:  ref.Id,
			ReceivedAt: time.UnixMilli(msg.InternalDate).UTC().Format(time.RFC3339),
			Raw:        raw,
		}
		if parsed, err := mail.ReadMessage(bytes.NewReader(raw)); err == nil {
			h := parsed.Header
			if id := h.Get("Message-ID"); id != "" {
				fetched.MessageID = id
			}
			fetched.Subject = decodeHeader(h.Get("Subject"))
			fetched.From = h.Get("From")
			if msg.InternalDate == 0 {
				if t, err := h.Date(); err == nil {
					fetched.ReceivedAt = t.UTC().Format(time.RFC3339)
				}
			}
		}
		out = append(out, fetched)
	}

	return out, nil
}

func decodeHeader(v string) string {
	dec := new(mime.WordDecoder)
	if s, err := dec.DecodeHeader(v); err == nil {
		return s
	}
	return v
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
