package credential

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tier separates ordinary users from admins. It selects which accounts a
// query may match and which secret signs and verifies a token.
type Tier int

const (
	TierUser Tier = iota
	TierAdmin
)

func (t Tier) String() string {
	if t == TierAdmin {
		return "admin"
	}
	return "user"
}

func (t Tier) IsAdmin() bool { return t == TierAdmin }

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoExpiry     = errors.New("token ttl must be positive")
	ErrNoSecret     = errors.New("token secret is empty")
	ErrSameSecrets  = errors.New("user and admin token secrets must differ")
)

// Claims is the identity embedded in an access token.
type Claims struct {
	ID       int64  `json:"id"`
	IsAdmin  bool   `json:"is_admin"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Identity returns the claims without the registered (iat/exp/aud) part.
func (c Claims) Identity() Claims {
	return Claims{ID: c.ID, IsAdmin: c.IsAdmin, FullName: c.FullName, Email: c.Email}
}

// IssueToken signs claims for tier with secret. Every token expires; a
// non-positive ttl is refused.
func IssueToken(tier Tier, claims Claims, secret []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrNoExpiry
	}
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(claims.ID, 10),
		Audience:  jwt.ClaimStrings{tier.String()},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyToken checks signature, expiry and tier audience. On any failure the
// error wraps ErrInvalidToken and no claims are returned.
func VerifyToken(tier Tier, token string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrNoSecret)
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(tier.String()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// KeyConfig carries one secret and lifetime per tier.
type KeyConfig struct {
	UserSecret  string
	AdminSecret string
	UserTTL     time.Duration
	AdminTTL    time.Duration
}

// ConfigFromEnv reads JWT_PRIVATE_KEY_USER / JWT_PRIVATE_KEY_ADMIN and the
// optional JWT_TTL_USER / JWT_TTL_ADMIN (seconds, default 3600).
func ConfigFromEnv() KeyConfig {
	return KeyConfig{
		UserSecret:  os.Getenv("JWT_PRIVATE_KEY_USER"),
		AdminSecret: os.Getenv("JWT_PRIVATE_KEY_ADMIN"),
		UserTTL:     secondsFromEnv("JWT_TTL_USER", 3600),
		AdminTTL:    secondsFromEnv("JWT_TTL_ADMIN", 3600),
	}
}

func secondsFromEnv(key string, def int) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return time.Duration(def) * time.Second
}

// Keyring issues and verifies tokens with the secret of the requested tier.
type Keyring struct {
	secrets map[Tier][]byte
	ttls    map[Tier]time.Duration
}

func NewKeyring(cfg KeyConfig) (*Keyring, error) {
	if cfg.UserSecret == "" || cfg.AdminSecret == "" {
		return nil, ErrNoSecret
	}
	if cfg.UserSecret == cfg.AdminSecret {
		return nil, ErrSameSecrets
	}
	if cfg.UserTTL <= 0 || cfg.AdminTTL <= 0 {
		return nil, ErrNoExpiry
	}
	return &Keyring{
		secrets: map[Tier][]byte{TierUser: []byte(cfg.UserSecret), TierAdmin: []byte(cfg.AdminSecret)},
		ttls:    map[Tier]time.Duration{TierUser: cfg.UserTTL, TierAdmin: cfg.AdminTTL},
	}, nil
}

func (k *Keyring) Issue(tier Tier, claims Claims) (string, error) {
	return IssueToken(tier, claims, k.secrets[tier], k.ttls[tier])
}

func (k *Keyring) Verify(tier Tier, token string) (*Claims, error) {
	return VerifyToken(tier, token, k.secrets[tier])
}
