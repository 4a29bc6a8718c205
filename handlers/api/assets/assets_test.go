package assets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nocap-editor/auth"
	"nocap-editor/core"
	"nocap-editor/middleware"
	"nocap-editor/stores/memory"

	"github.com/golang-jwt/jwt/v5"
)

func do(t *testing.T, h http.Handler, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		claims := &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: user}}
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreate_Success(t *testing.T) {
	store := memory.NewStore()
	h := Routes(store)

	rec := do(t, h, "user-1", http.MethodPost, "/", `{"url":"https://cdn.example.com/cat.png","name":"cat.png","size":1024,"type":"image/png"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusCreated)
	}

	var a core.Asset
	if err := json.NewDecoder(rec.Body).Decode(&a); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if a.UserID != "user-1" || a.URL != "https://cdn.example.com/cat.png" || a.Size != 1024 {
		t.Errorf("created asset = %+v", a)
	}
}

func TestHandleCreate_Rejects(t *testing.T) {
	h := Routes(memory.NewStore())

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"url":`},
		{"missing url", `{"name":"x"}`},
		{"bad scheme", `{"url":"javascript:alert(1)"}`},
		{"negative size", `{"url":"https://x/y.png","size":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "user-1", http.MethodPost, "/", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleList_ScopedToUser(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	store.CreateAsset(ctx, core.NewAsset{UserID: "user-1", URL: "https://x/a.png"})
	store.CreateAsset(ctx, core.NewAsset{UserID: "user-2", URL: "https://x/b.png"})
	h := Routes(store)

	rec := do(t, h, "user-1", http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	var list []core.Asset
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list) != 1 || list[0].URL != "https://x/a.png" {
		t.Errorf("list = %+v, want only a.png", list)
	}
}

func TestHandleDelete(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	mine, _ := store.CreateAsset(ctx, core.NewAsset{UserID: "user-1", URL: "https://x/a.png"})
	theirs, _ := store.CreateAsset(ctx, core.NewAsset{UserID: "user-2", URL: "https://x/b.png"})
	h := Routes(store)

	rec := do(t, h, "user-1", http.MethodDelete, "/"+theirs.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = do(t, h, "user-1", http.MethodDelete, "/"+mine.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("own delete: got %d, want %d", rec.Code, http.StatusNoContent)
	}

	left, _ := store.ListAssets(ctx, "user-2")
	if len(left) != 1 {
		t.Errorf("foreign asset was deleted")
	}
}

func TestHandlers_NoClaims(t *testing.T) {
	h := Routes(memory.NewStore())

	rec := do(t, h, "", http.MethodGet, "/", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
