package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendSMS(t *testing.T) {
	var gotTo, gotFrom, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("basic auth: %q %q %v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC123", "secret", "+15550001111", nil).WithBaseURL(server.URL)
	if err := sender.SendSMS(context.Background(), "+15551234567", "Your appointment has been confirmed"); err != nil {
		t.Fatalf("send sms: %v", err)
	}
	if gotTo != "+15551234567" || gotFrom != "+15550001111" || gotBody == "" {
		t.Errorf("form values: to=%q from=%q body=%q", gotTo, gotFrom, gotBody)
	}
}

func TestSendSMSNormalizesTo(t *testing.T) {
	var gotTo string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotTo = r.PostFormValue("To")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM3"}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC123", "secret", "+15550001111", nil).WithBaseURL(server.URL)
	if err := sender.SendSMS(context.Background(), "555 123 4567", "hello"); err != nil {
		t.Fatalf("send sms: %v", err)
	}
	if gotTo != "+5551234567" {
		t.Errorf("to not normalized: got %q", gotTo)
	}

	if err := sender.SendSMS(context.Background(), "---", "hello"); err == nil {
		t.Error("expected error for number with no digits")
	}
}

func TestSendSMSClientErrorNoRetry(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC123", "secret", "+15550001111", nil).WithBaseURL(server.URL)
	err := sender.SendSMS(context.Background(), "+1555", "hello")
	if err == nil {
		t.Fatal("expected error on 400 response")
	}
	if calls != 1 {
		t.Errorf("4xx retried: %d calls, want 1", calls)
	}
}

func TestSendSMSRetriesOn500(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM2"}`))
	}))
	defer server.Close()

	sender := NewTwilioSender("AC123", "secret", "+15550001111", nil).WithBaseURL(server.URL)
	if err := sender.SendSMS(context.Background(), "+15551234567", "hello"); err != nil {
		t.Fatalf("send sms after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestSendSMSValidation(t *testing.T) {
	sender := NewTwilioSender("", "", "", nil)
	if err := sender.SendSMS(context.Background(), "+15551234567", "hi"); err == nil {
		t.Error("expected error for missing credentials")
	}

	sender = NewTwilioSender("AC123", "secret", "+15550001111", nil)
	if err := sender.SendSMS(context.Background(), "", "hi"); err == nil {
		t.Error("expected error for missing to")
	}
	if err := sender.SendSMS(context.Background(), "+15551234567", "  "); err == nil {
		t.Error("expected error for empty body")
	}
}
