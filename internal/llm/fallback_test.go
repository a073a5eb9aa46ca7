package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type stubCaller struct {
	raw   json.RawMessage
	err   error
	calls int
}

func (s *stubCaller) Invoke(context.Context, Invocation) (json.RawMessage, error) {
	s.calls++
	return s.raw, s.err
}

func TestFallbackUsesPrimaryFirst(t *testing.T) {
	primary := &stubCaller{raw: json.RawMessage(`{"action":"new_appointment"}`)}
	fallback := &stubCaller{raw: json.RawMessage(`{"action":"reschedule"}`)}
	caller := NewFallbackFunctionCaller(primary, fallback, nil)

	raw, err := caller.Invoke(context.Background(), Invocation{Prompt: "x", Tool: testTool()})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if string(raw) != `{"action":"new_appointment"}` {
		t.Errorf("unexpected payload: %s", raw)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	primary := &stubCaller{err: errors.New("unavailable")}
	fallback := &stubCaller{raw: json.RawMessage(`{"ok":true}`)}
	caller := NewFallbackFunctionCaller(primary, fallback, nil)

	raw, err := caller.Invoke(context.Background(), Invocation{Prompt: "x", Tool: testTool()})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("unexpected payload: %s", raw)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestFallbackBothFail(t *testing.T) {
	primary := &stubCaller{err: errors.New("primary down")}
	fallback := &stubCaller{err: errors.New("fallback down")}
	caller := NewFallbackFunctionCaller(primary, fallback, nil)

	if _, err := caller.Invoke(context.Background(), Invocation{Prompt: "x", Tool: testTool()}); err == nil {
		t.Fatal("expected error when both providers fail")
	}
}

func TestFallbackNilFallback(t *testing.T) {
	primary := &stubCaller{err: errors.New("primary down")}
	caller := NewFallbackFunctionCaller(primary, nil, nil)

	if _, err := caller.Invoke(context.Background(), Invocation{Prompt: "x", Tool: testTool()}); err == nil {
		t.Fatal("expected primary error to surface")
	}
}
