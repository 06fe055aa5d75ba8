package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyl19970726/Code3/models"
	"github.com/cyl19970726/Code3/security"
)

func signed(t *testing.T, method, path string, ts int64, body []byte) *http.Request {
	t.Helper()
	priv, err := security.GenerateKey()
	require.NoError(t, err)
	return signedBy(t, priv, method, path, ts, body)
}

func signedBy(t *testing.T, priv *btcec.PrivateKey, method, path string, ts int64, body []byte) *http.Request {
	t.Helper()
	sig, err := security.SignRequest(priv, method, path, ts, body)
	require.NoError(t, err)

	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(security.HeaderIdentity, security.Identity(priv).String())
	r.Header.Set(security.HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(security.HeaderSignature, sig)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestSignatureAuth(t *testing.T) {
	now := time.Unix(1700000000, 0)
	auth := NewSignatureAuth(5 * time.Minute)
	auth.now = func() time.Time { return now }

	var gotBody []byte
	calls := 0
	h := auth.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		caller, ok := CallerFrom(r.Context())
		require.True(t, ok)
		w.Header().Set("X-Caller", caller.String())
		gotBody, _ = io.ReadAll(r.Body)
	}))

	body := []byte(`{"worker":"x"}`)
	r := signed(t, http.MethodPost, "/api/bounties/1/accept", now.Unix(), body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, r.Header.Get(security.HeaderIdentity), w.Header().Get("X-Caller"))
	assert.Equal(t, body, gotBody)

	t.Run("replayed", func(t *testing.T) {
		again := httptest.NewRequest(http.MethodPost, "/api/bounties/1/accept", bytes.NewReader(body))
		again.Header = r.Header.Clone()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, again)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "signature_replayed", decodeError(t, w).Error)
	})

	t.Run("replayed with recased signature", func(t *testing.T) {
		before := calls
		again := httptest.NewRequest(http.MethodPost, "/api/bounties/1/accept", bytes.NewReader(body))
		again.Header = r.Header.Clone()
		again.Header.Set(security.HeaderSignature, strings.ToUpper(r.Header.Get(security.HeaderSignature)))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, again)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, before, calls)
	})

	t.Run("missing headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bounties/1/confirm", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "signature_required", decodeError(t, w).Error)
	})

	t.Run("stale", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, signed(t, http.MethodPost, "/api/bounties/1/confirm", now.Add(-10*time.Minute).Unix(), nil))
		assert.Equal(t, "signature_expired", decodeError(t, w).Error)
	})

	t.Run("body swapped", func(t *testing.T) {
		r := signed(t, http.MethodPost, "/api/bounties/2/accept", now.Unix(), body)
		r.Body = io.NopCloser(bytes.NewReader([]byte(`{"worker":"y"}`)))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "signature_invalid", decodeError(t, w).Error)
	})
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRateLimiter(2, 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.CheckRateLimit("a", 1))
	assert.True(t, rl.CheckRateLimit("a", 1))
	assert.False(t, rl.CheckRateLimit("a", 1))
	assert.True(t, rl.CheckRateLimit("b", 1))

	now = now.Add(time.Second)
	assert.True(t, rl.CheckRateLimit("a", 1))
	assert.False(t, rl.CheckRateLimit("a", 1))

	h := rl.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	r := httptest.NewRequest(http.MethodGet, "/api/bounties", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRateLimiter(2, 1)
	rl.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		assert.True(t, rl.CheckRateLimit("ip:10.0.0."+strconv.Itoa(i), 1))
	}
	require.Equal(t, 50, rl.Len())

	now = now.Add(2 * sweepInterval)
	assert.True(t, rl.CheckRateLimit("ip:10.0.1.1", 2))
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiterKeysSignedRequestsByIdentity(t *testing.T) {
	now := time.Unix(1700000000, 0)
	auth := NewSignatureAuth(5 * time.Minute)
	auth.now = func() time.Time { return now }
	rl := NewRateLimiter(1, 1)
	rl.now = auth.now

	h := auth.Require(rl.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))
	alice, err := security.GenerateKey()
	require.NoError(t, err)
	bob, err := security.GenerateKey()
	require.NoError(t, err)

	send := func(priv *btcec.PrivateKey, path string) int {
		r := signedBy(t, priv, http.MethodPost, path, now.Unix(), nil)
		r.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send(alice, "/api/bounties/1/confirm"))
	assert.Equal(t, http.StatusTooManyRequests, send(alice, "/api/bounties/2/confirm"))
	assert.Equal(t, http.StatusOK, send(bob, "/api/bounties/3/confirm"))
}

func TestRecoveryAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/registry", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_server_error", decodeError(t, w).Error)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), `"status":500`)
}

func TestJSONBodyAndCORS(t *testing.T) {
	h := CORS(JSONBody(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/bounties", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), security.HeaderSignature)

	r := httptest.NewRequest(http.MethodPost, "/api/bounties", bytes.NewReader([]byte("x=1")))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}
