// Package authgoogle implements sign-in with Google. The callback is
// where identity provisioning happens: the Google profile is
// reconciled against the admin allow-list, the durable admin grants,
// and any pre-added record before the session is created.
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	adminstore "github.com/dalemusser/studytrack/internal/app/store/admins"
	preaddedstore "github.com/dalemusser/studytrack/internal/app/store/preadded"
	userstore "github.com/dalemusser/studytrack/internal/app/store/users"
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/dalemusser/studytrack/internal/app/system/authz"
	"github.com/dalemusser/studytrack/internal/app/system/timeouts"
	"github.com/dalemusser/studytrack/internal/domain/apperr"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const stateCookie = "oauth_state"

// Handler handles Google OAuth authentication.
type Handler struct {
	Users      *userstore.Store
	PreAdded   *preaddedstore.Store
	Admins     *adminstore.Store
	SessionMgr *auth.SessionManager
	Log        *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string

	// AdminAllowList is the startup list of admin emails, lower-cased.
	AdminAllowList []string

	stateCodec *securecookie.SecureCookie
}

func NewHandler(
	users *userstore.Store,
	preAdded *preaddedstore.Store,
	admins *adminstore.Store,
	sessionMgr *auth.SessionManager,
	clientID, clientSecret, baseURL string,
	adminAllowList []string,
	stateKey []byte,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:          users,
		PreAdded:       preAdded,
		Admins:         admins,
		SessionMgr:     sessionMgr,
		Log:            logger,
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		RedirectURL:    baseURL + "/auth/google/callback",
		AdminAllowList: adminAllowList,
		stateCodec:     securecookie.New(stateKey, nil),
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// ServeLogin handles GET /auth/google: it stores a signed state cookie
// and redirects to Google's consent screen.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		http.Redirect(w, r, "/?error=google_not_configured", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/?error=internal", http.StatusSeeOther)
		return
	}

	encoded, err := h.stateCodec.Encode(stateCookie, state)
	if err != nil {
		h.Log.Error("failed to sign OAuth state", zap.Error(err))
		http.Redirect(w, r, "/?error=internal", http.StatusSeeOther)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// ServeCallback handles GET /auth/google/callback: it validates state,
// exchanges the code, reconciles the identity, and signs the user in.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Redirect(w, r, "/?error=google_denied", http.StatusSeeOther)
		return
	}

	if !h.validState(r) {
		h.Log.Warn("invalid or expired OAuth state")
		http.Redirect(w, r, "/?error=invalid_state", http.StatusSeeOther)
		return
	}
	clearStateCookie(w)

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		http.Redirect(w, r, "/?error=invalid_code", http.StatusSeeOther)
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		http.Redirect(w, r, "/?error=token_exchange", http.StatusSeeOther)
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		http.Redirect(w, r, "/?error=user_info", http.StatusSeeOther)
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	user, err := h.reconcileIdentity(ctxTimeout, googleUser)
	if err != nil {
		h.Log.Error("identity reconciliation failed",
			zap.String("email", googleUser.Email), zap.Error(err))
		http.Redirect(w, r, "/?error=internal", http.StatusSeeOther)
		return
	}

	sessionUser := &auth.SessionUser{
		ID:    user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
	}
	if err := h.SessionMgr.SignIn(w, r, sessionUser); err != nil {
		h.Log.Error("failed to create session", zap.Error(err))
		http.Redirect(w, r, "/?error=internal", http.StatusSeeOther)
		return
	}

	h.Log.Info("user signed in",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", user.Role))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// reconcileIdentity resolves the user's role from the allow-list, the
// durable admin grants, and any pre-added record, then upserts the
// user document. A pending pre-added record is activated on this
// first login.
func (h *Handler) reconcileIdentity(ctx context.Context, g *googleUserInfo) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(g.Email))

	preAddedRole := ""
	wasPreAdded := false
	pre, err := h.PreAdded.GetByEmail(ctx, email)
	switch {
	case err == nil:
		preAddedRole = pre.Role
		wasPreAdded = true
		if err := h.PreAdded.MarkActive(ctx, email); err != nil {
			h.Log.Error("failed to activate pre-added record",
				zap.String("email", email), zap.Error(err))
		}
	case errors.Is(err, apperr.ErrNotFound):
		// Not provisioned; sign-in proceeds with the default role.
	default:
		return models.User{}, err
	}

	adminGrant, err := h.Admins.Exists(ctx, email)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:          g.ID,
		Email:       email,
		DisplayName: g.Name,
		PhotoURL:    g.Picture,
		Role:        authz.ResolveRole(email, h.AdminAllowList, preAddedRole, adminGrant),
		WasPreAdded: wasPreAdded,
	}
	if err := h.Users.Upsert(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (h *Handler) validState(r *http.Request) bool {
	state := r.URL.Query().Get("state")
	if state == "" {
		return false
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		return false
	}
	var stored string
	if err := h.stateCodec.Decode(stateCookie, cookie.Value, &stored); err != nil {
		return false
	}
	return stored == state
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &info, nil
}
