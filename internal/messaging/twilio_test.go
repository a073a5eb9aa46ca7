package messaging

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestValidateTwilioSignature(t *testing.T) {
	authToken := "12345"
	webhookURL := "https://example.com/webhooks/twilio/voice"

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "+15551234567")

	payload := buildSignaturePayload(webhookURL, form)
	signature := computeSignature(payload, authToken)

	req := httptest.NewRequest("POST", webhookURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", signature)

	if !ValidateTwilioSignature(req, authToken, webhookURL) {
		t.Error("expected valid signature to pass")
	}
}

func TestValidateTwilioSignatureRejects(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")

	req := httptest.NewRequest("POST", "https://example.com/webhooks/twilio/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "bogus")

	if ValidateTwilioSignature(req, "12345", "https://example.com/webhooks/twilio/voice") {
		t.Error("expected bogus signature to fail")
	}

	req = httptest.NewRequest("POST", "https://example.com/webhooks/twilio/voice", nil)
	if ValidateTwilioSignature(req, "12345", "https://example.com/webhooks/twilio/voice") {
		t.Error("expected missing signature to fail")
	}
}

func TestParseVoiceWebhook(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA999")
	form.Set("From", "+15557654321")
	form.Set("To", "+15550001111")
	form.Set("CallStatus", "ringing")

	req := httptest.NewRequest("POST", "/webhooks/twilio/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	webhook, err := ParseVoiceWebhook(req)
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if webhook.CallSid != "CA999" || webhook.From != "+15557654321" || webhook.CallStatus != "ringing" {
		t.Errorf("webhook: got %+v", webhook)
	}
}
