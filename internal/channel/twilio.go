package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aimessage/internal/config"
	"aimessage/internal/models"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioAdapter sends replies as SMS or WhatsApp messages through the Twilio
// REST API.
type TwilioAdapter struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

func NewTwilioAdapter(cfg config.TwilioConfig) *TwilioAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	return &TwilioAdapter{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts the message to Twilio. WhatsApp conversations keep the
// whatsapp: prefix on both numbers; plain SMS strips it.
func (t *TwilioAdapter) Send(ctx context.Context, dispatch models.DispatchContext, body string) error {
	if t.accountSID == "" || t.authToken == "" || t.fromNumber == "" {
		return fmt.Errorf("twilio adapter not configured")
	}

	to := dispatch.OriginalFrom
	from := t.fromNumber
	if dispatch.IsWhatsApp {
		to = ensurePrefix(to, "whatsapp:")
		from = ensurePrefix(from, "whatsapp:")
	} else {
		to = strings.TrimPrefix(to, "whatsapp:")
		from = strings.TrimPrefix(from, "whatsapp:")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("twilio send to %s: %s: %s", to, resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}

func ensurePrefix(number, prefix string) string {
	if strings.HasPrefix(number, prefix) {
		return number
	}
	return prefix + number
}
