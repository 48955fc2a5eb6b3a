package profile

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestIssueAndParse(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.New()
	token, err := iss.Issue(id)
	if err != nil {
		t.Fatal(err)
	}
	got, err := iss.Parse(token)
	if err != nil || got != id {
		t.Fatalf("Parse = %s %v, want %s", got, err, id)
	}

	other, _ := NewIssuer("other-secret", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}
	if _, err := iss.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	iss, _ := NewIssuer("test-secret", time.Hour)
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return issuedAt }
	token, err := iss.Issue(uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	iss.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	if _, err := iss.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry to be enforced, got %v", err)
	}
}

func TestEphemeralSecret(t *testing.T) {
	a, err := NewIssuer("  ", 0)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewIssuer("", 0)
	if a.TTL() != DefaultTTL {
		t.Fatalf("expected default ttl, got %s", a.TTL())
	}
	token, _ := a.Issue(uuid.New())
	if _, err := b.Parse(token); err == nil {
		t.Fatal("ephemeral secrets must differ between issuers")
	}
}

func serve(t *testing.T, iss *Issuer, req *http.Request) (*httptest.ResponseRecorder, uuid.UUID) {
	t.Helper()
	e := echo.New()
	var seen uuid.UUID
	e.GET("/", func(c echo.Context) error {
		id, err := FromContext(c)
		if err != nil {
			return err
		}
		seen = id
		return c.NoContent(http.StatusNoContent)
	}, Middleware(iss))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware(t *testing.T) {
	iss, _ := NewIssuer("test-secret", time.Hour)

	t.Run("mints a profile when absent", func(t *testing.T) {
		rec, id := serve(t, iss, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent || id == uuid.Nil {
			t.Fatalf("unexpected response %d id=%s", rec.Code, id)
		}
		cookie := rec.Header().Get("Set-Cookie")
		if !strings.HasPrefix(cookie, CookieName+"=") {
			t.Fatalf("expected profile cookie, got %q", cookie)
		}
	})

	t.Run("bearer token", func(t *testing.T) {
		want := uuid.New()
		token, _ := iss.Issue(want)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec, id := serve(t, iss, req)
		if rec.Code != http.StatusNoContent || id != want {
			t.Fatalf("unexpected response %d id=%s", rec.Code, id)
		}
		if rec.Header().Get("Set-Cookie") != "" {
			t.Fatal("known profiles must not get a new cookie")
		}
	})

	t.Run("cookie", func(t *testing.T) {
		want := uuid.New()
		token, _ := iss.Issue(want)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		_, id := serve(t, iss, req)
		if id != want {
			t.Fatalf("cookie profile = %s, want %s", id, want)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
		rec, _ := serve(t, iss, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}
