package telephony

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearskymed/voicedesk/internal/messaging"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

const (
	defaultTwilioBaseURL = "https://api.twilio.com"
	twilioCallTimeout    = 15 * time.Second
)

// TwilioVoiceClient drives live call legs through the Twilio call-control API:
// redirecting an answered call into a conference and originating the staff leg
// that completes a warm transfer.
type TwilioVoiceClient struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// TwilioVoiceClientConfig configures the call-control client.
type TwilioVoiceClientConfig struct {
	// AccountSID is the Twilio account identifier.
	AccountSID string
	// AuthToken is the Twilio API secret.
	AuthToken string
	// FromNumber is the office's Twilio number used for outbound legs (E.164).
	FromNumber string
	// BaseURL overrides the Twilio API base URL (for testing).
	BaseURL string
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewTwilioVoiceClient creates a client for manipulating live call legs.
func NewTwilioVoiceClient(cfg TwilioVoiceClientConfig) (*TwilioVoiceClient, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, fmt.Errorf("twilio voice client: account SID required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, fmt.Errorf("twilio voice client: auth token required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: twilioCallTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioVoiceClient{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// AnnounceAndJoinConference speaks the announcement on the live leg and then
// re-parents it into the named conference.
func (c *TwilioVoiceClient) AnnounceAndJoinConference(ctx context.Context, callSID, announcement, conference string) error {
	if callSID == "" {
		return fmt.Errorf("twilio voice: call SID required")
	}
	if conference == "" {
		return fmt.Errorf("twilio voice: conference name required")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, url.PathEscape(callSID))
	form := url.Values{}
	form.Set("Twiml", conferenceTwiML(announcement, conference))

	if _, err := c.postForm(ctx, endpoint, form); err != nil {
		return fmt.Errorf("twilio voice: redirect call %s: %w", callSID, err)
	}

	c.logger.Info("twilio voice: call joined conference",
		"call_sid", callSID,
		"conference", conference,
	)
	return nil
}

// DialIntoConference originates a new leg to the given number, announces the
// transfer reason, and joins it to the same conference. Returns the new leg's
// call SID.
func (c *TwilioVoiceClient) DialIntoConference(ctx context.Context, to, announcement, conference string) (string, error) {
	to = messaging.NormalizeE164(to)
	if to == "" {
		return "", fmt.Errorf("twilio voice: to number required")
	}
	if c.fromNumber == "" {
		return "", fmt.Errorf("twilio voice: from number required")
	}
	if conference == "" {
		return "", fmt.Errorf("twilio voice: conference name required")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Twiml", conferenceTwiML(announcement, conference))

	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return "", fmt.Errorf("twilio voice: originate leg to %s: %w", messaging.MaskPhone(to), err)
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("twilio voice: decode originate response: %w", err)
	}

	c.logger.Info("twilio voice: staff leg originated",
		"to", messaging.MaskPhone(to),
		"leg_sid", parsed.SID,
		"conference", conference,
	)
	return parsed.SID, nil
}

func (c *TwilioVoiceClient) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("twilio voice: API error",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// conferenceTwiML renders the instruction document that optionally speaks an
// announcement and then parks the leg in the named conference.
func conferenceTwiML(announcement, conference string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><Response>`)
	if strings.TrimSpace(announcement) != "" {
		b.WriteString("<Say>")
		_ = xml.EscapeText(&b, []byte(announcement))
		b.WriteString("</Say>")
	}
	b.WriteString("<Dial><Conference>")
	_ = xml.EscapeText(&b, []byte(conference))
	b.WriteString("</Conference></Dial></Response>")
	return b.String()
}
