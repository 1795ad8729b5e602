package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/service/llm"
	"github.com/miryas-ai/backend/internal/service/quota"
	relayservice "github.com/miryas-ai/backend/internal/service/relay"
	"github.com/miryas-ai/backend/internal/storage"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(context.Context, string, string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func setupRouter(gen relayservice.Generator) *chi.Mux {
	store := storage.NewMemoryStorage()
	ledger := quota.NewLedger(store, quota.DefaultDailyLimit, zap.NewNop())
	prompt := relayservice.LoadSystemPrompt("testdata/absent.txt")
	svc := relayservice.NewService(store, gen, ledger, prompt, zap.NewNop())

	r := chi.NewRouter()
	New(svc, zap.NewNop()).RegisterRoutes(r)
	return r
}

func postSend(r http.Handler, userID int64, message string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(map[string]any{"user_id": userID, "message": message})
	req := httptest.NewRequest(http.MethodPost, "/chat/send", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSendMessageOK(t *testing.T) {
	r := setupRouter(&stubGenerator{reply: "hi there"})

	resp := postSend(r, 1, "hello")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["reply"] != "hi there" {
		t.Fatalf("body = %v", body)
	}
}

func TestSendMessageLimitAfterFiveMessages(t *testing.T) {
	r := setupRouter(&stubGenerator{reply: "ack"})

	for i := 1; i <= quota.DefaultDailyLimit; i++ {
		resp := postSend(r, 1, fmt.Sprintf("message %d", i))
		if resp.Code != http.StatusOK {
			t.Fatalf("message %d: status = %d, want 200", i, resp.Code)
		}
		var body map[string]string
		json.Unmarshal(resp.Body.Bytes(), &body)
		if body["status"] != "ok" {
			t.Fatalf("message %d rejected early: %v", i, body)
		}
	}

	resp := postSend(r, 1, "one too many")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var body map[string]string
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["result"] != "limit" {
		t.Fatalf("body = %v, want limit result", body)
	}
	if body["message"] == "" {
		t.Fatal("limit result carries no message")
	}
}

func TestSendMessageValidation(t *testing.T) {
	r := setupRouter(&stubGenerator{reply: "ack"})

	for name, payload := range map[string]string{
		"empty body":      `{}`,
		"missing message": `{"user_id":1}`,
		"blank message":   `{"user_id":1,"message":"  "}`,
		"bad json":        `{`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/chat/send", bytes.NewReader([]byte(payload)))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", name, resp.Code)
		}
	}
}

func TestSendMessageUpstreamExhausted(t *testing.T) {
	r := setupRouter(&stubGenerator{err: llm.ErrKeysExhausted})

	resp := postSend(r, 1, "hello")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.Code)
	}
}

func TestSendMessageUpstreamMalformed(t *testing.T) {
	r := setupRouter(&stubGenerator{err: fmt.Errorf("%w: bad payload", llm.ErrMalformedRequest)})

	resp := postSend(r, 1, "hello")
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.Code)
	}
	var body map[string]string
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["error"] == "" {
		t.Fatal("malformed-request error not surfaced")
	}
}

func TestSendMessageStorageFailure(t *testing.T) {
	r := setupRouter(&stubGenerator{err: errors.New("plain failure")})

	resp := postSend(r, 1, "hello")
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.Code)
	}
}

func TestHistoryAfterTwoSends(t *testing.T) {
	r := setupRouter(&stubGenerator{reply: "ack"})

	postSend(r, 1, "first")
	postSend(r, 1, "second")

	req := httptest.NewRequest(http.MethodGet, "/chat/history?user_id=1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var turns []struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &turns); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("len(turns) = %d, want 4", len(turns))
	}
	wantRoles := []string{"assistant", "user", "assistant", "user"}
	for i, role := range wantRoles {
		if turns[i].Role != role {
			t.Fatalf("turns[%d].role = %q, want %q", i, turns[i].Role, role)
		}
		if turns[i].CreatedAt == "" {
			t.Fatalf("turns[%d] missing created_at", i)
		}
	}
	if turns[1].Content != "second" || turns[3].Content != "first" {
		t.Fatalf("unexpected ordering: %+v", turns)
	}
}

func TestHistoryRequiresUserID(t *testing.T) {
	r := setupRouter(&stubGenerator{reply: "ack"})

	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}
