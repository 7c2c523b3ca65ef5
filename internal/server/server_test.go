package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

type fakeExchanger struct {
	err   error
	codes []string
}

func (f *fakeExchanger) Name() string { return "Spotify" }

func (f *fakeExchanger) ExchangeCode(_ context.Context, code string) (*models.AuthSession, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return nil, f.err
	}
	return &models.AuthSession{AccessToken: "access-" + code, Expiry: time.Now().Add(time.Hour)}, nil
}

func TestBasicRouter(t *testing.T) {
	t.Run("method patterns and path values", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/api/{platform}/auth", func(w http.ResponseWriter, req *http.Request) {
			io.WriteString(w, req.PathValue("platform"))
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/spotify/auth", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "spotify" {
			t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/spotify/auth", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, req)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.HandleFunc("", "/", func(w http.ResponseWriter, req *http.Request) {
			order = append(order, "handler")
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := shared.NewLogger(&buf)

	t.Run("logging records status", func(t *testing.T) {
		buf.Reset()
		r := NewBasicRouter()
		r.Use(Logging(logger), Metrics())
		r.HandleFunc(http.MethodGet, "/missing", func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if !strings.Contains(buf.String(), "status=404") {
			t.Errorf("expected status in log, got %q", buf.String())
		}
	})

	t.Run("recover", func(t *testing.T) {
		buf.Reset()
		r := NewBasicRouter()
		r.Use(Recover(logger))
		r.HandleFunc(http.MethodGet, "/boom", func(w http.ResponseWriter, req *http.Request) {
			panic("boom")
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(buf.String(), "handler panic") {
			t.Errorf("expected panic to be logged, got %q", buf.String())
		}
	})

	t.Run("flush passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrapped := record(rec)
		wrapped.Flush()
		if !rec.Flushed {
			t.Error("expected underlying writer to be flushed")
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	t.Run("exchanges the code", func(t *testing.T) {
		client := &fakeExchanger{}
		h := NewOAuthHandler(client, "state-123")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-123&code=abc", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Spotify authorization successful") {
			t.Errorf("unexpected response %d", rec.Code)
		}

		res := <-h.Result()
		if res.Error() != nil || res.Session.AccessToken != "access-abc" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("rejects a bad state", func(t *testing.T) {
		client := &fakeExchanger{}
		h := NewOAuthHandler(client, "state-123")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if res := <-h.Result(); !errors.Is(res.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", res.Error())
		}
		if !strings.Contains(rec.Body.String(), "Spotify authorization failed") {
			t.Errorf("expected failure page, got %q", rec.Body.String())
		}
		if len(client.codes) != 0 {
			t.Error("code must not be exchanged with a bad state")
		}
	})

	t.Run("provider error", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{}, "s")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&error=access_denied", nil))

		res := <-h.Result()
		if res.Error() == nil || !strings.Contains(res.Error().Error(), "access_denied") {
			t.Errorf("unexpected result %v", res.Error())
		}
	})

	t.Run("invalid grant", func(t *testing.T) {
		grant := &shared.AuthError{Platform: "Spotify", Reason: shared.ReasonInvalidGrant}
		h := NewOAuthHandler(&fakeExchanger{err: grant}, "s")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=old", nil))

		if !strings.Contains(rec.Body.String(), shared.InvalidGrantMessage) {
			t.Errorf("expected invalid grant message, got %q", rec.Body.String())
		}
		if res := <-h.Result(); !shared.IsReauthenticate(res.Error()) {
			t.Errorf("expected reauthenticate error, got %v", res.Error())
		}
	})

	t.Run("only the first callback is processed", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{}, "s")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=a", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=b", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})

	t.Run("routes", func(t *testing.T) {
		routes := NewOAuthHandler(&fakeExchanger{}, "s").Routes()
		if len(routes) != 2 || routes[1] != "/auth/callback" {
			t.Errorf("unexpected routes %v", routes)
		}
	})
}
