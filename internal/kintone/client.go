// Пакет kintone — хранилище гарантийных записей в приложении kintone (REST API).
// Поиск: GET /k/v1/records.json с фильтром по полю номера управления.
// Регистрация: PUT /k/v1/record.json по $id с проверкой ревизии.
// Аутентификация — API-токен приложения (X-Cybozu-API-Token).
package kintone

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
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/store"
)

// tokenHeader — заголовок API-токена kintone.
const tokenHeader = "X-Cybozu-API-Token"

// Коды ошибок kintone, которые сервис различает.
const (
	codeRevisionConflict = "GAIA_CO02"
	codeRecordNotFound   = "GAIA_RE01"
)

// Options — параметры клиента kintone.
type Options struct {
	// BaseURL — https://{domain} или явный адрес (тесты, прокси)
	BaseURL string
	AppID   string
	// APIToken — токен приложения с правами просмотра и редактирования записей
	APIToken string
	// Timeout — таймаут HTTP-запроса
	Timeout time.Duration
	// CACertPath — дополнительный CA для TLS (пусто — системный пул)
	CACertPath string
	// Fields — коды полей приложения
	Fields FieldMap
	// Location — часовой пояс для полей даты/времени (nil — UTC)
	Location *time.Location
}

// Client — HTTP-клиент kintone, реализует store.RecordStore.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	apiToken   string
	fields     FieldMap
	loc        *time.Location
	logger     *slog.Logger
}

// BaseURLForDomain формирует базовый адрес по домену kintone (example.cybozu.com).
func BaseURLForDomain(domain string) string {
	return "https://" + strings.TrimRight(domain, "/")
}

// New создаёт клиент kintone.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.BaseURL == "" || opts.AppID == "" || opts.APIToken == "" {
		return nil, fmt.Errorf("kintone: не заданы адрес, ID приложения или API-токен")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	if opts.CACertPath != "" {
		tlsConfig, err := buildTLSConfig(opts.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата kintone: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат kintone добавлен в пул доверия",
			slog.String("ca_cert", opts.CACertPath),
		)
	}

	fields := opts.Fields
	if fields == nil {
		fields = DefaultFieldMap()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		appID:      opts.AppID,
		apiToken:   opts.APIToken,
		fields:     fields,
		loc:        loc,
		logger:     logger.With(slog.String("component", "kintone_client")),
	}, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// Backend возвращает "kintone".
func (c *Client) Backend() string {
	return store.BackendKintone
}

// --- Ответы API ---

// recordsResponse — ответ GET /k/v1/records.json.
type recordsResponse struct {
	Records []rawRecord `json:"records"`
}

// updateResponse — ответ PUT /k/v1/record.json.
type updateResponse struct {
	Revision string `json:"revision"`
}

// APIError — ошибка, возвращённая kintone (не-2xx).
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kintone вернул статус %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("kintone вернул статус %d: %s", e.StatusCode, e.Body)
}

// FindByKey ищет запись по номеру управления.
// GET /k/v1/records.json?app=&query=<код> = "<id>" limit 1
func (c *Client) FindByKey(ctx context.Context, managementID string) (*model.WarrantyRecord, error) {
	keyCode, _ := c.fields.code(FieldManagementID)

	q := url.Values{}
	q.Set("app", c.appID)
	q.Set("query", fmt.Sprintf(`%s = "%s" limit 1`, keyCode, escapeQuery(managementID)))
	q.Set("totalCount", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/k/v1/records.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса поиска kintone: %w", err)
	}
	req.Header.Set(tokenHeader, c.apiToken)

	var resp recordsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("поиск записи %s в kintone: %w", managementID, err)
	}

	if len(resp.Records) == 0 {
		return nil, store.ErrNotFound
	}

	rec, err := c.decodeRecord(resp.Records[0])
	if err != nil {
		return nil, fmt.Errorf("разбор записи %s из kintone: %w", managementID, err)
	}
	return rec, nil
}

// UpdateByInternalID записывает регистрацию в запись по $id.
// Ревизия expectedRevision передаётся kintone: если запись изменилась
// после чтения, kintone отвечает GAIA_CO02 → store.ErrConflict.
func (c *Client) UpdateByInternalID(ctx context.Context, internalID, expectedRevision string, upd model.RegistrationUpdate) (string, error) {
	body := map[string]any{
		"app":    c.appID,
		"id":     internalID,
		"record": c.encodeUpdate(upd),
	}
	if expectedRevision != "" {
		body["revision"] = expectedRevision
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("сериализация обновления kintone: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/k/v1/record.json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("создание запроса обновления kintone: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.apiToken)

	var resp updateResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("обновление записи %s в kintone: %w", internalID, err)
	}

	c.logger.Debug("Запись kintone обновлена",
		slog.String("id", internalID),
		slog.String("revision", resp.Revision),
	)
	return resp.Revision, nil
}

// CheckReady проверяет доступность приложения: GET /k/v1/app.json?id=.
// Реализует интерфейс handlers.ReadinessChecker.
func (c *Client) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/k/v1/app.json?id="+url.QueryEscape(c.appID), nil)
	if err != nil {
		return "fail", fmt.Sprintf("создание запроса: %v", err)
	}
	req.Header.Set(tokenHeader, c.apiToken)

	var discard map[string]any
	if err := c.do(req, &discard); err != nil {
		return "fail", fmt.Sprintf("kintone недоступен: %v", err)
	}
	return "ok", "приложение доступно"
}

// do выполняет запрос и декодирует JSON-ответ в out.
// Не-2xx ответы превращаются в *APIError; конфликт ревизии и
// отсутствие записи — в ошибки пакета store.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к kintone: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		var parsed struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &parsed) == nil {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		}

		switch {
		case resp.StatusCode == http.StatusConflict && apiErr.Code == codeRevisionConflict:
			return fmt.Errorf("%w: %v", store.ErrConflict, apiErr)
		case apiErr.Code == codeRecordNotFound:
			return fmt.Errorf("%w: %v", store.ErrNotFound, apiErr)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("некорректный JSON от kintone: %w", err)
	}
	return nil
}

// escapeQuery экранирует строковый литерал языка запросов kintone.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
