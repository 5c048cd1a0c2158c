package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/parley/internal/app/system/jsonresp"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Identity claims                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// ClaimsVersion is bumped whenever the claim layout changes. Tokens carrying
// another version are rejected.
const ClaimsVersion = 1

// Token kinds. An access token is never accepted where a refresh token is
// expected and vice versa.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the fixed identity carried by every token this service issues.
type Claims struct {
	Version int    `json:"ver"`
	Kind    string `json:"kind"`
	UserID  string `json:"uid"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is what handlers see for the authenticated caller.
type Identity struct {
	ID    primitive.ObjectID
	Email string
}

// TokenManager signs and verifies access and refresh tokens (HS256).
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager builds a TokenManager. Both secrets are required.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("jwt secrets must not be empty")
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// IssueAccess signs a short-lived access token for the user.
func (m *TokenManager) IssueAccess(userID primitive.ObjectID, email string) (string, error) {
	return m.sign(KindAccess, userID, email, m.accessTTL, m.accessSecret)
}

// IssueRefresh signs a long-lived refresh token for the user.
func (m *TokenManager) IssueRefresh(userID primitive.ObjectID, email string) (string, error) {
	return m.sign(KindRefresh, userID, email, m.refreshTTL, m.refreshSecret)
}

// RefreshTTL is the lifetime of refresh tokens (used for the cookie MaxAge).
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) sign(kind string, userID primitive.ObjectID, email string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		Version: ClaimsVersion,
		Kind:    kind,
		UserID:  userID.Hex(),
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyAccess validates an access token and returns the caller identity.
func (m *TokenManager) VerifyAccess(token string) (Identity, error) {
	return m.verify(token, KindAccess, m.accessSecret)
}

// VerifyRefresh validates a refresh token and returns the caller identity.
func (m *TokenManager) VerifyRefresh(token string) (Identity, error) {
	return m.verify(token, KindRefresh, m.refreshSecret)
}

func (m *TokenManager) verify(token, kind string, secret []byte) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Version != ClaimsVersion || claims.Kind != kind {
		return Identity{}, ErrInvalidToken
	}
	oid, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ID: oid, Email: claims.Email}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request context                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const identityKey ctxKey = "identity"

// CurrentUser returns the caller identity & "found?" flag.
func CurrentUser(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// WithTestUser injects id into the request context. Handler tests use it to
// call handlers directly without the RequireBearer middleware.
func WithTestUser(r *http.Request, id Identity) *http.Request {
	return r.WithContext(WithIdentity(r.Context(), id))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// RequireBearer rejects requests without a valid access token with a 401 JSON
// envelope and stores the caller identity in the context otherwise. The token
// is always verified; an identity already in the context is replaced.
func (m *TokenManager) RequireBearer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				jsonresp.Fail(w, http.StatusUnauthorized, "Unauthorized: No token provided")
				return
			}
			id, err := m.VerifyAccess(token)
			if err != nil {
				log.Debug("bearer token rejected", zap.Error(err), zap.String("path", r.URL.Path))
				jsonresp.Fail(w, http.StatusUnauthorized, "Unauthorized: Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
