// Пакет tokenclient — источник Bearer-токена для запросов к сервису генерации.
// Статический токен (GW_SERVICE_TOKEN) либо client_credentials grant
// (GW_TOKEN_URL, GW_CLIENT_ID, GW_CLIENT_SECRET) с кэшированием.
package tokenclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// expiryMargin — запас до истечения, после которого токен обновляется
	expiryMargin = 30 * time.Second
	// fallbackTTL — время жизни, если ни expires_in, ни exp не известны
	fallbackTTL = 5 * time.Minute
)

// Config — параметры источника токена.
type Config struct {
	// StaticToken — фиксированный токен; имеет приоритет над TokenURL
	StaticToken string
	// TokenURL — OAuth2 token endpoint
	TokenURL     string
	ClientID     string
	ClientSecret string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
}

// tokenInfo — закэшированный токен с временем истечения.
type tokenInfo struct {
	accessToken string
	expiresAt   time.Time
}

// Source — потокобезопасный источник токена.
type Source struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.RWMutex
	token *tokenInfo
}

// New создаёт источник токена. httpClient может быть nil.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Source {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Source{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "token_client")),
		now:        time.Now,
	}
}

// Enabled — запросы к сервису нужно авторизовать.
func (s *Source) Enabled() bool {
	return s.cfg.StaticToken != "" || s.cfg.TokenURL != ""
}

// Token возвращает токен для заголовка Authorization. Пустая строка —
// авторизация не настроена. Полученный токен кэшируется до истечения
// с запасом 30 секунд.
func (s *Source) Token(ctx context.Context) (string, error) {
	if s.cfg.StaticToken != "" {
		return s.cfg.StaticToken, nil
	}
	if s.cfg.TokenURL == "" {
		return "", nil
	}

	s.mu.RLock()
	if s.token != nil && s.now().Before(s.token.expiresAt) {
		token := s.token.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check после получения write lock
	if s.token != nil && s.now().Before(s.token.expiresAt) {
		return s.token.accessToken, nil
	}

	return s.requestToken(ctx)
}

// Invalidate сбрасывает закэшированный токен.
func (s *Source) Invalidate() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}

// requestToken запрашивает новый токен через client_credentials grant.
// Вызывается под write lock.
func (s *Source) requestToken(ctx context.Context) (string, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("создание запроса token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return "", fmt.Errorf("запрос token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		Token     string `json:"access_token"` //nolint:gosec // G117: JSON-маппинг OAuth2 ответа
		ExpiresIn int    `json:"expires_in"`
		TokenType string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("декодирование token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", fmt.Errorf("пустой access_token в ответе")
	}

	expiresAt := s.expiresAt(tokenResp.Token, tokenResp.ExpiresIn)
	s.token = &tokenInfo{
		accessToken: tokenResp.Token,
		expiresAt:   expiresAt.Add(-expiryMargin),
	}

	s.logger.Debug("Токен сервиса получен",
		slog.Int("expires_in", tokenResp.ExpiresIn),
		slog.Time("expires_at", expiresAt),
	)
	return tokenResp.Token, nil
}

// expiresAt определяет время истечения: expires_in из ответа, иначе
// claim exp токена (без проверки подписи), иначе fallbackTTL.
func (s *Source) expiresAt(token string, expiresIn int) time.Time {
	now := s.now()
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(fallbackTTL)
}
