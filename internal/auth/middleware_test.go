package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitbook/splitbook/internal/shared"
)

func TestRequireAccountWithoutCookie(t *testing.T) {
	mw := Middleware{Service: newTestService(newMemRepo(), nil, time.Now())}
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAccountClearsInvalidCookie(t *testing.T) {
	mw := Middleware{Service: newTestService(newMemRepo(), nil, time.Now())}
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: uuid.NewString()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestRequireAccountStoresIdentity(t *testing.T) {
	repo := newMemRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mw := Middleware{Service: newTestService(repo, nil, now)}

	token := uuid.NewString()
	repo.sessions[token] = Session{
		Token: token, AccountID: 7,
		Created: now.Add(-time.Hour),
		Expires: now.Add(23 * time.Hour),
	}

	var gotAccount int64
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = shared.AccountID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), gotAccount)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}
