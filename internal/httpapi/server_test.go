package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/robun/internal/bus"
	"github.com/nextlevelbuilder/robun/internal/config"
	"github.com/nextlevelbuilder/robun/internal/cron"
	"github.com/nextlevelbuilder/robun/internal/session"
)

func newTestServer(t *testing.T) (*Server, *bus.Bus) {
	t.Helper()
	b := bus.New()
	sessStore, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cronSvc := cron.NewService(filepath.Join(t.TempDir(), "cron.json"), nil)
	if err := cronSvc.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(cronSvc.Stop)
	cfg := config.Default()
	return NewServer(b, sessStore, cronSvc, cfg), b
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandleAgentMessagePublishesInbound(t *testing.T) {
	srv, b := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"channel": "cli", "chatId": "u1", "content": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/agent/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	evt, err := b.ConsumeInbound(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if evt.Channel != "cli" || evt.ChatID != "u1" || evt.Content != "hello" {
		t.Fatalf("got %+v", evt)
	}
}

func TestHandleAgentMessageRejectsMissingFields(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"channel": "cli"})
	req := httptest.NewRequest(http.MethodPost, "/agent/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandleConfigRedactsCredentials(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Config.Providers.Providers["anthropic"] = config.ProviderCreds{APIKey: "secret"}

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	if bytesContains(rec.Body.Bytes(), "secret") {
		t.Fatalf("expected credentials redacted from /config response, got %s", rec.Body.String())
	}
}

func TestCronJobCRUDOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	addBody, _ := json.Marshal(map[string]interface{}{
		"name":     "reminder",
		"schedule": map[string]interface{}{"kind": "every", "everyMs": 60000},
	})
	req := httptest.NewRequest(http.MethodPost, "/cron/jobs", bytes.NewReader(addBody))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: got status %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("expected an id in the created job")
	}

	req = httptest.NewRequest(http.MethodGet, "/cron/jobs", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/cron/jobs/"+id, nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got status %d: %s", rec.Code, rec.Body.String())
	}
}

func bytesContains(haystack []byte, needle string) bool {
	return bytes.Contains(haystack, []byte(needle))
}
