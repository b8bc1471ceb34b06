package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/squaresync/internal/auth/config"
	"github.com/iurnickita/squaresync/internal/credential"
	serviceconfig "github.com/iurnickita/squaresync/internal/service/config"
	"github.com/iurnickita/squaresync/internal/service/squareclient"
)

// Auth ведет продавца через OAuth Square и сохраняет полученный токен
type Auth interface {
	Connect(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
}

// DefaultScopes are requested when no scopes are configured.
var DefaultScopes = []string{
	"ITEMS_READ",
	"ITEMS_WRITE",
	"ORDERS_READ",
	"ORDERS_WRITE",
	"PAYMENTS_READ",
	"PAYMENTS_WRITE",
	"MERCHANT_PROFILE_READ",
}

type auth struct {
	cfg        config.Config
	square     serviceconfig.SquareConfig
	client     squareclient.SquareClient
	credential credential.Credential
	zaplog     *zap.Logger
}

func NewAuth(cfg config.Config, square serviceconfig.SquareConfig, client squareclient.SquareClient, credential credential.Credential, zaplog *zap.Logger) Auth {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	return &auth{
		cfg:        cfg,
		square:     square,
		client:     client,
		credential: credential,
		zaplog:     zaplog,
	}
}

// Connect перенаправляет браузер на страницу согласия Square
func (a *auth) Connect(w http.ResponseWriter, r *http.Request) {
	if a.square.ClientID == "" || a.square.RedirectURL == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Missing Square env vars",
			"details": map[string]bool{
				"SQUARE_CLIENT_ID":    a.square.ClientID != "",
				"SQUARE_REDIRECT_URL": a.square.RedirectURL != "",
			},
		})
		return
	}

	state, err := newState(a.cfg.StateSecret, a.cfg.StateTTL, time.Now())
	if err != nil {
		a.zaplog.Error("failed to sign OAuth state", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Missing OAuth state secret",
			"details": err.Error(),
		})
		return
	}

	http.Redirect(w, r, a.client.AuthorizeURL(a.square.ClientID, a.cfg.Scopes, state, a.square.RedirectURL), http.StatusFound)
}

// Callback обменивает код авторизации на токены
func (a *auth) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": `Missing "code" from Square OAuth callback`,
		})
		return
	}

	if a.square.ClientID == "" || a.square.ClientSecret == "" || a.square.RedirectURL == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Missing Square env vars",
			"details": map[string]bool{
				"SQUARE_CLIENT_ID":     a.square.ClientID != "",
				"SQUARE_CLIENT_SECRET": a.square.ClientSecret != "",
				"SQUARE_REDIRECT_URL":  a.square.RedirectURL != "",
			},
		})
		return
	}

	err := checkState(a.cfg.StateSecret, r.URL.Query().Get("state"))
	switch {
	case errors.Is(err, ErrNoStateSecret):
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Missing OAuth state secret",
			"details": err.Error(),
		})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid or expired OAuth state",
		})
		return
	}

	tokens, err := a.client.ObtainToken(r.Context(), squareclient.TokenRequest{
		ClientID:     a.square.ClientID,
		ClientSecret: a.square.ClientSecret,
		Code:         code,
		GrantType:    squareclient.GrantAuthorizationCode,
		RedirectURI:  a.square.RedirectURL,
	})
	if err != nil {
		var body any = err.Error()
		var upstream *squareclient.UpstreamError
		if errors.As(err, &upstream) {
			body = upstream.Body
		}
		a.zaplog.Warn("failed to exchange OAuth code", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to exchange code for token",
			"body":  body,
		})
		return
	}
	tokens.Errors = nil

	if !a.cfg.PersistCredential || !a.credential.Configured() {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Square OAuth successful (store not configured)",
			"tokens":  tokens,
		})
		return
	}

	// Сохраняем последний токен продавца
	if err := a.credential.Save(r.Context(), tokens.Credential()); err != nil {
		a.zaplog.Error("failed to save Square tokens", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to save tokens",
			"details": err.Error(),
		})
		return
	}

	a.zaplog.Info("Square OAuth completed", zap.String("merchant_id", tokens.MerchantID))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Square OAuth successful",
		"tokens":  tokens,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
