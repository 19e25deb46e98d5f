package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioNotifier sends SMS through the Twilio Messages API
type TwilioNotifier struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

// NewTwilioNotifier creates a notifier for the given account. baseURL is
// normally https://api.twilio.com.
func NewTwilioNotifier(baseURL, accountSID, authToken, from string) *TwilioNotifier {
	return &TwilioNotifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Send posts a form-encoded message request
func (n *TwilioNotifier) Send(ctx context.Context, destination, message string) (SendResult, error) {
	form := url.Values{}
	form.Set("To", destination)
	form.Set("From", n.from)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.baseURL, url.PathEscape(n.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(n.accountSID, n.authToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SendResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr twilioError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
			return SendResult{Success: false, ErrorMessage: fmt.Sprintf("status %d", resp.StatusCode)}, nil
		}
		return SendResult{Success: false, ErrorMessage: fmt.Sprintf("%s (code %d)", apiErr.Message, apiErr.Code)}, nil
	}

	var msg twilioMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return SendResult{}, fmt.Errorf("decode response: %w", err)
	}
	if msg.Status == "failed" || msg.Status == "undelivered" {
		return SendResult{Success: false, ID: msg.SID, ErrorMessage: msg.ErrorMessage}, nil
	}

	return SendResult{Success: true, ID: msg.SID}, nil
}
