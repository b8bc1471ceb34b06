package squareclient

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/squaresync/internal/metrics"
	"github.com/iurnickita/squaresync/internal/model"
	"github.com/iurnickita/squaresync/internal/service/config"
)

const (
	ProductionBaseURL = "https://connect.squareup.com"
	SandboxBaseURL    = "https://connect.squareupsandbox.com"
	DefaultAPIVersion = "2024-08-21"

	// максимальный размер страницы списка платежей
	pageLimit = 100
)

// Названия API для ошибок
const (
	APIOAuth     = "OAuth"
	APIPayments  = "Payments"
	APIOrders    = "Orders"
	APIMerchants = "Merchants"
)

// UpstreamError is a non-success answer from Square. Status and Body are
// passed to the caller as received.
type UpstreamError struct {
	API        string
	Status     int
	LocationID string
	Body       json.RawMessage
}

func (e *UpstreamError) Error() string {
	if e.LocationID != "" {
		return fmt.Sprintf("square %s API status %d (location %s)", strings.ToLower(e.API), e.Status, e.LocationID)
	}
	return fmt.Sprintf("square %s API status %d", strings.ToLower(e.API), e.Status)
}

type SquareClient interface {
	AuthorizeURL(clientID string, scopes []string, state string, redirectURL string) string
	ObtainToken(ctx context.Context, req TokenRequest) (TokenResponse, error)
	Payments(ctx context.Context, accessToken string, locationID string, begin, end time.Time) iter.Seq2[model.Payment, error]
	SearchOrders(ctx context.Context, accessToken string, query OrdersQuery) iter.Seq2[model.SalesOrder, error]
	Merchant(ctx context.Context, accessToken string) (json.RawMessage, error)
}

type squareClient struct {
	baseURL string
	resty   *resty.Client
}

func NewSquareClient(cfg config.SquareConfig) SquareClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ProductionBaseURL
		if cfg.Environment == config.EnvironmentSandbox {
			baseURL = SandboxBaseURL
		}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Square-Version", version)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &squareClient{baseURL: baseURL, resty: client}
}

func (client *squareClient) AuthorizeURL(clientID string, scopes []string, state string, redirectURL string) string {
	query := url.Values{}
	query.Set("client_id", clientID)
	query.Set("scope", strings.Join(scopes, " "))
	query.Set("session", "false")
	query.Set("state", state)
	query.Set("redirect_uri", redirectURL)

	return client.baseURL + "/oauth2/authorize?" + query.Encode()
}

// Обмен кода авторизации или refresh токена

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	GrantType    string `json:"grant_type"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

type TokenResponse struct {
	AccessToken  string          `json:"access_token"`
	TokenType    string          `json:"token_type"`
	ExpiresAt    string          `json:"expires_at"`
	MerchantID   string          `json:"merchant_id"`
	RefreshToken string          `json:"refresh_token"`
	ShortLived   bool            `json:"short_lived"`
	Errors       json.RawMessage `json:"errors,omitempty"`
}

// Credential converts the answer into a storable row.
func (token TokenResponse) Credential() model.Credential {
	credential := model.Credential{
		MerchantID:   token.MerchantID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ShortLived:   token.ShortLived,
	}
	if t, err := time.Parse(time.RFC3339, token.ExpiresAt); err == nil {
		credential.ExpiresAt = t
	}
	return credential
}

func (client *squareClient) ObtainToken(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	resp, err := client.do("oauth2_token",
		client.resty.R().
			SetContext(ctx).
			SetBody(req),
		http.MethodPost, "/oauth2/token")
	if err != nil {
		return TokenResponse{}, err
	}

	var token TokenResponse
	decodeErr := json.Unmarshal(resp.Body(), &token)
	if !resp.IsSuccess() || decodeErr != nil || hasErrors(token.Errors) {
		return TokenResponse{}, &UpstreamError{API: APIOAuth, Status: resp.StatusCode(), Body: rawBody(resp.Body())}
	}
	return token, nil
}

func (client *squareClient) Merchant(ctx context.Context, accessToken string) (json.RawMessage, error) {
	resp, err := client.do("merchants_me",
		client.resty.R().
			SetContext(ctx).
			SetAuthToken(accessToken),
		http.MethodGet, "/v2/merchants/me")
	if err != nil {
		return nil, err
	}

	switch {
	case resp.IsSuccess():
		return rawBody(resp.Body()), nil
	default:
		return nil, &UpstreamError{API: APIMerchants, Status: resp.StatusCode(), Body: rawBody(resp.Body())}
	}
}

// do отправляет запрос и снимает метрики
func (client *squareClient) do(endpoint string, req *resty.Request, method, path string) (*resty.Response, error) {
	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		metrics.ObserveUpstream(endpoint, "transport_error", time.Since(start))
		return nil, fmt.Errorf("square %s request: %w", endpoint, err)
	}
	metrics.ObserveUpstream(endpoint, strconv.Itoa(resp.StatusCode()), time.Since(start))
	return resp, nil
}

// rawBody возвращает тело как JSON; не-JSON тело оборачивается в строку
func rawBody(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

// populated повторяет проверку "поле заполнено" для деталей платежа
func populated(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}

func hasErrors(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "[]":
		return false
	default:
		return true
	}
}
