// internal/app/features/login/handler.go
package login

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	userstore "github.com/dalemusser/parley/internal/app/store/users"
	"github.com/dalemusser/parley/internal/app/system/auth"
	"github.com/dalemusser/parley/internal/app/system/inputval"
	"github.com/dalemusser/parley/internal/app/system/jsonresp"
	"github.com/dalemusser/parley/internal/app/system/limits"
	"github.com/dalemusser/parley/internal/app/system/ratelimit"
	"github.com/dalemusser/parley/internal/app/system/timeouts"
	"github.com/dalemusser/parley/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// RefreshCookie is the name of the httpOnly cookie holding the refresh token.
const RefreshCookie = "refreshToken"

// dummyHash keeps the unknown-user path as slow as a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type Handler struct {
	Users        *userstore.Store
	Tokens       *auth.TokenManager
	Cookies      *securecookie.SecureCookie
	Limiter      *ratelimit.LoginLimiter
	SecureCookie bool // set the Secure flag; off only for plain-HTTP development
	Log          *zap.Logger
}

// NewHandler wires the auth endpoints. hashKey signs and blockKey encrypts
// the refresh cookie.
func NewHandler(db *mongo.Database, tokens *auth.TokenManager, hashKey, blockKey []byte, secure bool, logger *zap.Logger) *Handler {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(tokens.RefreshTTL() / time.Second))
	return &Handler{
		Users:        userstore.New(db),
		Tokens:       tokens,
		Cookies:      sc,
		Limiter:      ratelimit.NewLoginLimiter(),
		SecureCookie: secure,
		Log:          logger,
	}
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type sessionUser struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tokenResponse struct {
	Success     bool        `json:"success"`
	AccessToken string      `json:"accessToken"`
	User        sessionUser `json:"user"`
}

func userView(u *models.User) sessionUser {
	return sessionUser{ID: u.ID.Hex(), Name: u.Name(), Email: u.Email}
}

// readLogin accepts a JSON body or a urlencoded form.
func readLogin(w http.ResponseWriter, r *http.Request) (loginInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)
	var in loginInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return in, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return in, err
		}
		in.Email = r.PostFormValue("email")
		in.Password = r.PostFormValue("password")
	}
	in.Email = strings.TrimSpace(in.Email)
	return in, nil
}

// HandleLogin handles POST /auth.
//
// 200 { success, accessToken, user } and sets the refresh cookie.
// 400 on malformed input, 401 on unknown user or wrong password, 429 when
// rate limited.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	in, err := readLogin(w, r)
	if err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonresp.Invalid(w, res)
		return
	}
	if err := h.Limiter.Check(r, in.Email); err != nil {
		h.Log.Warn("login rate limited", zap.String("ip", ratelimit.ClientIP(r)), zap.String("email", in.Email))
		jsonresp.Fail(w, http.StatusTooManyRequests, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login lookup")
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, in.Email)
	if errors.Is(err, userstore.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
		jsonresp.Fail(w, http.StatusUnauthorized, "Authentication failed: User not found")
		return
	}
	if err != nil {
		jsonresp.ServerError(w, h.Log, "Server error", err, zap.String("email", in.Email))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		res := &inputval.Result{}
		res.Add("password", "INVALID PASSWORD")
		jsonresp.Write(w, http.StatusUnauthorized, jsonresp.Envelope{
			Success: false,
			Message: "Authentication failed: Incorrect password",
			Errors:  res.Errors,
		})
		return
	}

	refresh, err := h.Tokens.IssueRefresh(u.ID, u.Email)
	if err != nil {
		jsonresp.ServerError(w, h.Log, "Server error", err, zap.String("user_id", u.ID.Hex()))
		return
	}
	if err := h.setRefreshCookie(w, refresh); err != nil {
		jsonresp.ServerError(w, h.Log, "Server error", err, zap.String("user_id", u.ID.Hex()))
		return
	}
	h.Limiter.ResetEmail(in.Email)
	h.Log.Info("user logged in", zap.String("user_id", u.ID.Hex()))
	h.writeAccess(w, u)
}

// HandleRefresh handles POST /auth/refresh-token.
// 401 without a cookie, 403 when the cookie or token is invalid.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.reissue(w, r, "Unauthorized")
}

// ServeSession handles GET /auth/session. It behaves like refresh so a
// reloaded client can recover its access token.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	h.reissue(w, r, "No active session")
}

func (h *Handler) reissue(w http.ResponseWriter, r *http.Request, missingMsg string) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		jsonresp.Fail(w, http.StatusUnauthorized, missingMsg)
		return
	}

	var token string
	if err := h.Cookies.Decode(RefreshCookie, c.Value, &token); err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			h.Log.Warn("refresh cookie invalid", zap.Error(err))
		}
		h.clearRefreshCookie(w)
		jsonresp.Fail(w, http.StatusForbidden, "Forbidden")
		return
	}
	id, err := h.Tokens.VerifyRefresh(token)
	if err != nil {
		h.clearRefreshCookie(w)
		jsonresp.Fail(w, http.StatusForbidden, "Forbidden")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "session lookup")
	defer cancel()

	u, err := h.Users.GetByID(ctx, id.ID)
	if errors.Is(err, userstore.ErrNotFound) {
		h.clearRefreshCookie(w)
		jsonresp.Fail(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		jsonresp.ServerError(w, h.Log, "Server error", err, zap.String("user_id", id.ID.Hex()))
		return
	}
	h.writeAccess(w, u)
}

// HandleLogout handles POST /auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearRefreshCookie(w)
	jsonresp.Write(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (h *Handler) writeAccess(w http.ResponseWriter, u *models.User) {
	access, err := h.Tokens.IssueAccess(u.ID, u.Email)
	if err != nil {
		jsonresp.ServerError(w, h.Log, "Server error", err, zap.String("user_id", u.ID.Hex()))
		return
	}
	jsonresp.Write(w, http.StatusOK, tokenResponse{Success: true, AccessToken: access, User: userView(u)})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) error {
	encoded, err := h.Cookies.Encode(RefreshCookie, token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    encoded,
		Path:     "/auth",
		MaxAge:   int(h.Tokens.RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
