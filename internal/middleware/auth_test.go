package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"doc-podcaster/internal/models"
	"doc-podcaster/internal/test"
)

const botToken = "dummy-token"

// signInitData builds initData signed the way Telegram signs it.
func signInitData(t *testing.T, fields map[string]string) string {
	t.Helper()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	values := url.Values{}
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
		values.Set(k, fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func validInitData(t *testing.T) string {
	return signInitData(t, map[string]string{
		"query_id":  "AAHdF614AAAAAN0Xrhom_pA",
		"user":      `{"id":123,"first_name":"Test","last_name":"User","username":"testuser","language_code":"en"}`,
		"auth_date": fmt.Sprint(time.Now().Unix()),
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("valid auth data", func(t *testing.T) {
		_, mock := test.NewMockDB(t)
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "username", "rss_uuid", "created_at", "updated_at"}).
			AddRow(int64(123), "testuser", "some-uuid", now, now)
		mock.ExpectQuery(`INSERT INTO users`).WithArgs(int64(123), "testuser").WillReturnRows(rows)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "tma "+validInitData(t))
		rr := httptest.NewRecorder()

		mockHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dbUser, ok := UserFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, int64(123), dbUser.ID)
			assert.Equal(t, "some-uuid", dbUser.RSSUUID)
			w.WriteHeader(http.StatusOK)
		})

		AuthMiddleware(botToken)(mockHandler).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no authorization header", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		AuthMiddleware(botToken)(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid authorization header format", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rr := httptest.NewRecorder()
		AuthMiddleware(botToken)(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid init data hash", func(t *testing.T) {
		_, mock := test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "tma "+validInitData(t))
		rr := httptest.NewRecorder()
		AuthMiddleware("another-token")(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing bot token", func(t *testing.T) {
		test.NewMockDB(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "tma "+validInitData(t))
		rr := httptest.NewRecorder()
		AuthMiddleware("")(nil).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiterMiddleware(0, 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(userID int64) int {
		req := httptest.NewRequest(http.MethodPost, "/api/progress", nil)
		req = req.WithContext(WithUser(req.Context(), &models.User{ID: userID}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, call(1))
	assert.Equal(t, http.StatusOK, call(1))
	assert.Equal(t, http.StatusTooManyRequests, call(1))
	assert.Equal(t, http.StatusOK, call(2))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/progress", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
