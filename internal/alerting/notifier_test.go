package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	if err := notifier.Send(context.Background(), "chat42", "Copper is at 550.00"); err != nil {
		t.Fatalf("Send should succeed: %v", err)
	}

	if received["chat_id"] != "chat42" {
		t.Fatalf("chat_id mismatch: %#v", received)
	}
	if received["text"] == "" {
		t.Fatal("text should be non-empty")
	}
}

func TestTelegramNotifierNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	if err := notifier.Send(context.Background(), "chat42", "body"); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

func TestMailRelayNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	notifier := NewMailRelayNotifier(srv.URL, "secret", "alerts@matpulse.example", "", time.Second, testLogger())
	if err := notifier.Send(context.Background(), "ops@example.com", "Steel is at 120.00"); err != nil {
		t.Fatalf("Send should succeed: %v", err)
	}

	if auth != "Bearer secret" {
		t.Fatalf("missing bearer auth, got %q", auth)
	}
	if received["to"] != "ops@example.com" {
		t.Fatalf("recipient mismatch: %#v", received)
	}
	if received["subject"] == "" {
		t.Fatal("an empty configured subject should fall back to a default")
	}
}

func TestMailRelayNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewMailRelayNotifier(srv.URL, "secret", "alerts@matpulse.example", "Price alert", time.Second, testLogger())
	if err := notifier.Send(context.Background(), "ops@example.com", "body"); err == nil {
		t.Fatal("HTTP 502 should be an error")
	}
}

func TestWhatsAppNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/send") {
			t.Fatalf("path should end in /send, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWhatsAppNotifier(srv.URL, "token", time.Second, testLogger())
	if err := notifier.Send(context.Background(), "+15550001111", "Diesel moved down 6.00%"); err != nil {
		t.Fatalf("Send should succeed: %v", err)
	}

	if received["phone"] != "+15550001111" {
		t.Fatalf("phone mismatch: %#v", received)
	}
}

func TestWhatsAppNotifierGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	notifier := NewWhatsAppNotifier(srv.URL, "token", time.Second, testLogger())
	if err := notifier.Send(context.Background(), "+15550001111", "body"); err == nil {
		t.Fatal("HTTP 429 should be an error")
	}
}
