package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"labelrecon/internal"
	"labelrecon/internal/config"
)

const provider = "gmail"

type Connector struct {
	service *gmail.Service
	limiter *RateLimiter
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	for _, req := range []struct{ name, value string }{
		{"GMAIL_CLIENT_ID", cfg.GmailClientID},
		{"GMAIL_CLIENT_SECRET", cfg.GmailClientSecret},
		{"GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken},
	} {
		if err := cfg.Require(req.name, req.value); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	tokens := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &Connector{service: svc, limiter: NewRateLimiter(cfg.GmailRateLimitRPS)}, nil
}

// FetchInbox lists messages under a label that carry attachments and downloads
// them in raw RFC 822 form.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	if err := c.limiter.WaitTurn(ctx); err != nil {
		return nil, err
	}
	list, err := c.service.Users.Messages.List("me").
		LabelIds(label).
		Q("has:attachment").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		if ref.Id == "" {
			continue
		}
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}
		msg, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", ref.Id, err)
		}
		if msg.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(msg.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, toFetched(ref.Id, msg.InternalDate, raw))
	}
	return out, nil
}

// toFetched reads the envelope headers from the raw message itself.
func toFetched(gmailID string, internalDateMs int64, raw []byte) internal.FetchedMailMessage {
	fetched := internal.FetchedMailMessage{Provider: provider, MessageID: gmailID, Raw: raw}
	received := time.Now().UTC()
	if internalDateMs > 0 {
		received = time.UnixMilli(internalDateMs).UTC()
	}

	if env, err := enmime.ReadEnvelope(bytes.NewReader(raw)); err == nil {
		fetched.Subject = env.GetHeader("Subject")
		fetched.From = env.GetHeader("From")
		if id := strings.TrimSpace(env.GetHeader("Message-ID")); id != "" {
			fetched.MessageID = id
		}
		if internalDateMs <= 0 {
			if t, err := mailDate(env.GetHeader("Date")); err == nil {
				received = t.UTC()
			}
		}
	}
	fetched.ReceivedAt = received.Format(time.RFC3339)
	return fetched
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

func mailDate(value string) (time.Time, error) {
	if t, err := mail.ParseDate(value); err == nil {
		return t, nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", value)
}
