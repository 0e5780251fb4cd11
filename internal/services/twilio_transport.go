package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CyberwizD/smart-agro-advisor/internal/delivery"
)

// twilioBodyTooLongCode is Twilio's "concatenated message body exceeds the 1600 character limit".
const twilioBodyTooLongCode = 21617

// TwilioTransport sends WhatsApp messages through the Twilio Messages REST API.
// It holds no per-call state and is safe for concurrent use.
type TwilioTransport struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
	logger     *slog.Logger
}

func NewTwilioTransport(accountSID, authToken, from, baseURL string, timeout time.Duration, logger *slog.Logger) *TwilioTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &TwilioTransport{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Send posts one message body. Failures come back as *delivery.TransportError.
func (t *TwilioTransport) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("From", t.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &delivery.TransportError{Kind: delivery.KindOther, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return &delivery.TransportError{Kind: delivery.KindOther, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var msg twilioMessage
		if err := json.Unmarshal(raw, &msg); err == nil && t.logger != nil {
			t.logger.Debug("twilio accepted message", slog.String("sid", msg.SID), slog.String("status", msg.Status))
		}
		return nil
	}

	var apiErr twilioError
	_ = json.Unmarshal(raw, &apiErr)
	detail := apiErr.Message
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}
	return &delivery.TransportError{
		Kind:       classifyTwilio(resp.StatusCode, apiErr.Code, detail),
		StatusCode: resp.StatusCode,
		Code:       apiErr.Code,
		Detail:     detail,
	}
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func classifyTwilio(status, code int, detail string) delivery.ErrorKind {
	if status == http.StatusTooManyRequests {
		return delivery.KindRateLimited
	}
	if code == twilioBodyTooLongCode || strings.Contains(strings.ToLower(detail), "exceeds the 1600") {
		return delivery.KindBodyTooLong
	}
	return delivery.KindOther
}
