package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/security"
)

// MaxSignedBody caps the body read for signature verification.
const MaxSignedBody = 1 << 20

// CallerFrom returns the verified signer of the request.
func CallerFrom(ctx context.Context) (bounty.Address, bool) {
	a, ok := ctx.Value(callerKey).(bounty.Address)
	return a, ok
}

// WithCaller stores a verified caller in ctx.
func WithCaller(ctx context.Context, caller bounty.Address) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// SignatureAuth verifies BIP-340 request signatures. The signer becomes the
// caller identity of the request.
type SignatureAuth struct {
	maxSkew time.Duration
	replay  *security.ReplayCache
	now     func() time.Time
}

// NewSignatureAuth accepts timestamps within maxSkew of the server clock.
func NewSignatureAuth(maxSkew time.Duration) *SignatureAuth {
	return &SignatureAuth{
		maxSkew: maxSkew,
		replay:  security.NewReplayCache(2 * maxSkew),
		now:     time.Now,
	}
}

// Require rejects requests without a valid, fresh, unseen signature.
func (a *SignatureAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.verify(r)
		if err != nil {
			status := http.StatusUnauthorized
			kind := "signature_invalid"
			switch {
			case errors.Is(err, errMissingAuth):
				kind = "signature_required"
			case errors.Is(err, errStale):
				kind = "signature_expired"
			case errors.Is(err, errReplayed):
				kind = "signature_replayed"
			case errors.Is(err, errBodyTooLarge):
				status = http.StatusRequestEntityTooLarge
				kind = "body_too_large"
			}
			writeError(w, status, kind, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

var (
	errMissingAuth  = errors.New("request must carry identity, timestamp and signature headers")
	errStale        = errors.New("request timestamp outside the accepted window")
	errReplayed     = errors.New("request signature already used")
	errBodyTooLarge = errors.New("request body too large")
)

func (a *SignatureAuth) verify(r *http.Request) (bounty.Address, error) {
	idHeader := r.Header.Get(security.HeaderIdentity)
	tsHeader := r.Header.Get(security.HeaderTimestamp)
	sig := r.Header.Get(security.HeaderSignature)
	if idHeader == "" || tsHeader == "" || sig == "" {
		return bounty.Address{}, errMissingAuth
	}

	identity, err := bounty.ParseAddress(idHeader)
	if err != nil {
		return bounty.Address{}, err
	}
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return bounty.Address{}, errors.New("malformed timestamp header")
	}
	now := a.now()
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.maxSkew {
		return bounty.Address{}, errStale
	}

	body, err := readBody(r)
	if err != nil {
		return bounty.Address{}, err
	}
	if err := security.VerifyRequest(identity, r.Method, r.URL.Path, ts, body, sig); err != nil {
		return bounty.Address{}, err
	}
	if !a.replay.Remember(identity.String()+":"+strings.ToLower(sig), now) {
		return bounty.Address{}, errReplayed
	}
	return identity, nil
}

// readBody consumes the body and puts it back for the handler.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxSignedBody+1))
	r.Body.Close()
	if err != nil {
		return nil, err
	}
	if len(body) > MaxSignedBody {
		return nil, errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
