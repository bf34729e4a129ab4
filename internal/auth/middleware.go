package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-go/internal/credential"
	"github.com/ovaphlow/pitchfork/service-blog-go/internal/status"
	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/utilities"
)

// TokenHeader is the request and response header carrying the access token.
const TokenHeader = "x-auth-token"

const (
	MsgNoToken      = "401: Access denied. No token provided."
	MsgInvalidToken = "400: Invalid token."
	MsgNoAccount    = "401: Access denied. Account not found."
)

// Verifier checks a token against the secret of the given tier.
type Verifier interface {
	Verify(tier credential.Tier, token string) (*credential.Claims, error)
}

// AccountChecker reports whether an active account of tier still exists
// under id. When a Verifier also implements it, Middleware consults it after
// every successful verification.
type AccountChecker interface {
	Active(ctx context.Context, tier credential.Tier, id int64) (bool, error)
}

// Sessions verifies tokens with Keys and then re-checks the account behind
// them with Accounts, so deleted or downgraded accounts lose access before
// their token expires.
type Sessions struct {
	Keys     Verifier
	Accounts AccountChecker
}

func (s Sessions) Verify(tier credential.Tier, token string) (*credential.Claims, error) {
	return s.Keys.Verify(tier, token)
}

func (s Sessions) Active(ctx context.Context, tier credential.Tier, id int64) (bool, error) {
	return s.Accounts.Active(ctx, tier, id)
}

type ctxKey struct{ tier credential.Tier }

// WithClaims stores claims in the slot of tier.
func WithClaims(ctx context.Context, tier credential.Tier, c *credential.Claims) context.Context {
	return context.WithValue(ctx, ctxKey{tier}, c)
}

// FromContext reads the claims of tier only. A user slot never satisfies an
// admin lookup and the reverse.
func FromContext(ctx context.Context, tier credential.Tier) (*credential.Claims, bool) {
	c, ok := ctx.Value(ctxKey{tier}).(*credential.Claims)
	return c, ok && c != nil
}

// TokenFromRequest returns the x-auth-token header or, failing that, a
// bearer token from Authorization.
func TokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TokenHeader)); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > len("bearer ") && strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return ""
}

// Middleware rejects requests without a valid token of tier and attaches the
// decoded claims to the request context otherwise.
func Middleware(tier credential.Tier, v Verifier, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				utilities.WriteMessage(w, http.StatusUnauthorized, MsgNoToken)
				return
			}
			claims, err := v.Verify(tier, token)
			if err == nil && claims.IsAdmin != tier.IsAdmin() {
				err = credential.ErrInvalidToken
			}
			if err != nil {
				logger.Debugw("token rejected", "tier", tier.String(), "path", r.URL.Path, "err", err)
				utilities.WriteMessage(w, http.StatusBadRequest, MsgInvalidToken)
				return
			}
			if checker, ok := v.(AccountChecker); ok {
				active, err := checker.Active(r.Context(), tier, claims.ID)
				if err != nil {
					logger.Errorw("account check failed", "tier", tier.String(), "id", claims.ID, "err", err)
					utilities.WriteMessage(w, http.StatusInternalServerError, status.MsgStorageFailure)
					return
				}
				if !active {
					logger.Debugw("token for missing account", "tier", tier.String(), "id", claims.ID)
					utilities.WriteMessage(w, http.StatusUnauthorized, MsgNoAccount)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), tier, claims)))
		})
	}
}

// Require wraps a single handler func, for per-route registration on a ServeMux.
func Require(tier credential.Tier, v Verifier, logger *zap.SugaredLogger, h http.HandlerFunc) http.Handler {
	return Middleware(tier, v, logger)(h)
}
