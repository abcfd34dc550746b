package tokenclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockIDP создаёт token endpoint, возвращающий body и считающий запросы.
func setupMockIDP(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("client_id") != "gw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestToken_Static(t *testing.T) {
	s := New(Config{StaticToken: "static", TokenURL: "http://unused"}, nil, testLogger())
	got, err := s.Token(context.Background())
	if err != nil || got != "static" {
		t.Errorf("Token() = %q, %v", got, err)
	}
}

func TestToken_Disabled(t *testing.T) {
	s := New(Config{}, nil, testLogger())
	if s.Enabled() {
		t.Error("Enabled() = true без настроек")
	}
	got, err := s.Token(context.Background())
	if err != nil || got != "" {
		t.Errorf("Token() = %q, %v", got, err)
	}
}

func TestToken_CachedUntilExpiry(t *testing.T) {
	srv, calls := setupMockIDP(t, `{"access_token":"t1","expires_in":3600,"token_type":"bearer"}`)
	s := New(Config{TokenURL: srv.URL, ClientID: "gw", ClientSecret: "secret"}, srv.Client(), testLogger())

	now := time.Now()
	s.now = func() time.Time { return now }

	for range 3 {
		got, err := s.Token(context.Background())
		if err != nil || got != "t1" {
			t.Fatalf("Token() = %q, %v", got, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("запросов к IdP %d, ожидался 1", calls.Load())
	}

	// За 30 секунд до истечения токен обновляется.
	now = now.Add(3600*time.Second - 29*time.Second)
	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("Token(): %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("запросов к IdP %d, ожидалось 2", calls.Load())
	}
}

func TestToken_ExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("key"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	srv, _ := setupMockIDP(t, `{"access_token":"`+raw+`"}`)
	s := New(Config{TokenURL: srv.URL, ClientID: "gw"}, srv.Client(), testLogger())

	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("Token(): %v", err)
	}
	want := exp.Add(-expiryMargin)
	if !s.token.expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, ожидалось %v", s.token.expiresAt, want)
	}
}

func TestToken_OpaqueWithoutExpiry(t *testing.T) {
	srv, _ := setupMockIDP(t, `{"access_token":"opaque"}`)
	s := New(Config{TokenURL: srv.URL, ClientID: "gw"}, srv.Client(), testLogger())
	now := time.Now()
	s.now = func() time.Time { return now }

	if _, err := s.Token(context.Background()); err != nil {
		t.Fatalf("Token(): %v", err)
	}
	if want := now.Add(fallbackTTL - expiryMargin); !s.token.expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, ожидалось %v", s.token.expiresAt, want)
	}
}

func TestToken_Errors(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		body     string
	}{
		{"401", "other", ``},
		{"пустой токен", "gw", `{"access_token":""}`},
		{"не JSON", "gw", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := setupMockIDP(t, tt.body)
			s := New(Config{TokenURL: srv.URL, ClientID: tt.clientID}, srv.Client(), testLogger())
			if _, err := s.Token(context.Background()); err == nil {
				t.Error("ожидалась ошибка")
			}
		})
	}
}

func TestInvalidate(t *testing.T) {
	srv, calls := setupMockIDP(t, `{"access_token":"t","expires_in":3600}`)
	s := New(Config{TokenURL: srv.URL, ClientID: "gw"}, srv.Client(), testLogger())
	_, _ = s.Token(context.Background())
	s.Invalidate()
	_, _ = s.Token(context.Background())
	if calls.Load() != 2 {
		t.Errorf("запросов %d, ожидалось 2", calls.Load())
	}
}
