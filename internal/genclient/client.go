// Пакет genclient — HTTP-клиент сервиса анализа и генерации документов.
// Поддерживает TLS с кастомным CA (GW_SERVICE_CA_CERT_PATH) и Bearer-токен
// через TokenProvider.
package genclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
)

// Пути API сервиса.
const (
	pathPreview     = "/api/attachment-generation/preview"
	pathGenerate    = "/api/attachment-generation/generate"
	pathLists       = "/api/candidate-lists"
	pathSettings    = "/api/settings"
	pathDownloadOne = "/api/download-answer-sheet"
	pathDownloadZip = "/api/download-answer-sheets-zip"
	pathSample      = "/api/download-sample"
)

// maxBodyBytes — ограничение размера читаемого ответа.
const maxBodyBytes int64 = 256 << 20

// TokenProvider — функция, возвращающая Bearer-токен для запросов к сервису.
// Пустая строка — запрос без заголовка Authorization.
type TokenProvider func(ctx context.Context) (string, error)

// Client — HTTP-клиент сервиса генерации.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// NewHTTPClient создаёт http.Client с таймаутом и, при заданном
// caCertPath, с дополнительным CA-сертификатом в пуле доверия.
func NewHTTPClient(caCertPath string, timeout time.Duration, logger *slog.Logger) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата сервиса: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
		logger.Info("CA-сертификат сервиса добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// New создаёт клиент сервиса генерации.
// baseURL — базовый URL сервиса (например, https://exams.example.com).
// httpClient — клиент из NewHTTPClient (nil — http.DefaultClient).
// tokenProvider — источник Bearer-токена (может быть nil).
func New(baseURL string, httpClient *http.Client, tokenProvider TokenProvider, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:    httpClient,
		baseURL:       normalizeURL(baseURL),
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", "gen_client")),
	}
}

// BaseURL возвращает базовый URL сервиса.
func (c *Client) BaseURL() string { return c.baseURL }

// Analyze отправляет основной документ на структурный анализ.
// POST /api/attachment-generation/preview (multipart, поле pdf).
func (c *Client) Analyze(ctx context.Context, doc model.SourceDocument) ([]model.PreviewItem, error) {
	const op = "анализ документа"

	body, contentType, err := buildMultipart(func(w *multipartWriter) error {
		return w.file("pdf", doc.Name, doc.MediaType, doc.Content)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: формирование тела: %w", op, err)
	}

	status, raw, err := c.do(ctx, op, http.MethodPost, pathPreview, body, contentType)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Questions []model.PreviewItem `json:"questions"`
	}
	if err := decodeSuccess(op, status, raw, &resp); err != nil {
		return nil, err
	}
	if resp.Questions == nil {
		return nil, missingField(op, status, raw)
	}

	c.logger.Debug("Документ проанализирован",
		slog.String("name", doc.Name),
		slog.Int("items", len(resp.Questions)),
	)
	return resp.Questions, nil
}

// ListGroups возвращает доступные группы получателей.
// GET /api/candidate-lists
func (c *Client) ListGroups(ctx context.Context) ([]model.RecipientGroup, error) {
	const op = "загрузка групп"

	status, raw, err := c.do(ctx, op, http.MethodGet, pathLists, nil, "")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Lists []model.RecipientGroup `json:"lists"`
	}
	if err := decodeSuccess(op, status, raw, &resp); err != nil {
		return nil, err
	}
	if resp.Lists == nil {
		resp.Lists = []model.RecipientGroup{}
	}
	return resp.Lists, nil
}

// ListMembers возвращает участников группы.
// GET /api/candidate-lists/{id}
func (c *Client) ListMembers(ctx context.Context, groupID string) ([]model.Recipient, error) {
	const op = "загрузка участников группы"

	status, raw, err := c.do(ctx, op, http.MethodGet, pathLists+"/"+pathEscape(groupID), nil, "")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Candidates []model.Recipient `json:"candidates"`
	}
	if err := decodeSuccess(op, status, raw, &resp); err != nil {
		return nil, err
	}
	if resp.Candidates == nil {
		resp.Candidates = []model.Recipient{}
	}
	return resp.Candidates, nil
}

// Settings возвращает шаблоны промптов из настроек сервиса.
// GET /api/settings
func (c *Client) Settings(ctx context.Context) (model.PromptFragments, error) {
	const op = "загрузка настроек"

	status, raw, err := c.do(ctx, op, http.MethodGet, pathSettings, nil, "")
	if err != nil {
		return model.PromptFragments{}, err
	}

	var resp struct {
		Settings struct {
			System string `json:"attachmentSystemPrompt"`
			User   string `json:"attachmentUserPrompt"`
		} `json:"settings"`
	}
	if err := decodeSuccess(op, status, raw, &resp); err != nil {
		return model.PromptFragments{}, err
	}
	return model.PromptFragments{System: resp.Settings.System, User: resp.Settings.User}, nil
}

// GenerateResult — результат запроса генерации.
type GenerateResult struct {
	Artifacts []model.GeneratedArtifact
	// Count — количество из ответа сервиса, иначе len(Artifacts)
	Count int
}

// Generate отправляет единый пакетный запрос генерации.
// POST /api/attachment-generation/generate (multipart).
func (c *Client) Generate(ctx context.Context, req model.GenerationRequest) (*GenerateResult, error) {
	const op = "генерация"

	body, contentType, err := buildMultipart(func(w *multipartWriter) error {
		return writeGenerateForm(w, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: формирование тела: %w", op, err)
	}

	start := time.Now()
	status, raw, err := c.do(ctx, op, http.MethodPost, pathGenerate, body, contentType)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Generated []model.GeneratedArtifact `json:"generated"`
		Count     *int                      `json:"count"`
	}
	if err := decodeSuccess(op, status, raw, &resp); err != nil {
		return nil, err
	}
	if resp.Generated == nil {
		return nil, missingField(op, status, raw)
	}

	result := &GenerateResult{Artifacts: resp.Generated, Count: len(resp.Generated)}
	if resp.Count != nil {
		result.Count = *resp.Count
	}

	c.logger.Info("Генерация завершена",
		slog.String("request_id", req.ID()),
		slog.Int("count", result.Count),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// FetchArtifact скачивает один сгенерированный документ.
// POST /api/download-answer-sheet {"storageId": id}
func (c *Client) FetchArtifact(ctx context.Context, id string) ([]byte, error) {
	return c.fetchBinary(ctx, "скачивание документа", http.MethodPost, pathDownloadOne,
		map[string]any{"storageId": id})
}

// FetchBundle скачивает архив со всеми перечисленными документами.
// POST /api/download-answer-sheets-zip {"storageIds": [...]}
func (c *Client) FetchBundle(ctx context.Context, ids []string) ([]byte, error) {
	return c.fetchBinary(ctx, "скачивание архива", http.MethodPost, pathDownloadZip,
		map[string]any{"storageIds": ids})
}

// FetchSample скачивает образец бланка ответов.
// GET /api/download-sample
func (c *Client) FetchSample(ctx context.Context) ([]byte, error) {
	return c.fetchBinary(ctx, "скачивание образца", http.MethodGet, pathSample, nil)
}

func (c *Client) fetchBinary(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var (
		body        io.Reader
		contentType string
	)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: кодирование тела: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	status, raw, err := c.do(ctx, op, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, parseRemoteError(op, status, raw)
	}
	return raw, nil
}

// do выполняет запрос и читает тело ответа целиком. Возвращает
// *NetworkError, если ответ не получен.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (int, []byte, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: создание запроса: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, application/octet-stream")

	if c.tokenProvider != nil {
		token, tokenErr := c.tokenProvider(ctx)
		if tokenErr != nil {
			return 0, nil, fmt.Errorf("%s: получение токена: %w", op, tokenErr)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return 0, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &NetworkError{Op: op, Err: fmt.Errorf("чтение ответа: %w", err)}
	}

	c.logger.Debug("Ответ сервиса",
		slog.String("op", op),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
	)
	return resp.StatusCode, raw, nil
}

// decodeSuccess проверяет статус и декодирует JSON-тело в out.
// Тело, которое не удалось разобрать, даёт *RemoteError без сообщения.
func decodeSuccess(op string, status int, raw []byte, out any) error {
	if status < 200 || status > 299 {
		return parseRemoteError(op, status, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteError{
			Op:         op,
			StatusCode: status,
			Body:       truncate(string(raw), 512),
			Err:        fmt.Errorf("декодирование ответа: %w", err),
		}
	}
	return nil
}

// missingField — успешный статус без ожидаемого поля; сообщение
// берётся из поля error, если оно есть.
func missingField(op string, status int, raw []byte) *RemoteError {
	e := parseRemoteError(op, status, raw)
	if e.Message == "" {
		e.Err = fmt.Errorf("в ответе нет ожидаемых данных")
	}
	return e
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в %s нет PEM-сертификатов", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
