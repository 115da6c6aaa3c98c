// Пакет config — загрузка и валидация конфигурации сервиса гарантийной
// регистрации из переменных окружения (префикс WR_).
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // WR_TIMEZONE в образах без системной базы часовых поясов
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранилища гарантийных записей.
const (
	BackendAuto     = "auto"
	BackendKintone  = "kintone"
	BackendPostgres = "postgres"
	BackendMock     = "mock"
)

// Варианты формы регистрации.
const (
	FormVariantFurigana   = "furigana"
	FormVariantPassphrase = "passphrase"
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Имя сервиса (метки dephealth, health endpoints)
	ServiceName string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration

	// --- Поведение ---

	// DevMode — в ответах 500 возвращается текст исходной ошибки (details)
	DevMode bool
	// FormVariant — обязательное поле формы: furigana или passphrase
	FormVariant string
	// Location — часовой пояс для расчёта дат гарантии
	Location *time.Location

	// --- Хранилище ---

	// StoreBackend — итоговый бэкенд после разрешения auto (kintone, postgres, mock)
	StoreBackend string
	// StoreFallbackReason — причина перехода в mock (пусто, если mock не включён)
	StoreFallbackReason string

	// --- kintone ---

	// KintoneBaseURL — https://{WR_KINTONE_DOMAIN} или WR_KINTONE_BASE_URL
	KintoneBaseURL    string
	KintoneAppID      string
	KintoneAPIToken   string
	KintoneTimeout    time.Duration
	KintoneCACertPath string
	// KintoneFieldMap — переопределения кодов полей "field=code,..."
	KintoneFieldMap string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// DBMigrate — применять миграции при старте
	DBMigrate bool

	// --- Ограничение попыток запроса статуса ---

	// StatusMaxFailures — неудачных попыток на номер управления (0 — без ограничения, по умолчанию)
	StatusMaxFailures int
	// StatusFailureWindow — окно подсчёта неудачных попыток
	StatusFailureWindow time.Duration

	// --- JWT (служебный endpoint сотрудников) ---

	// JWTJWKSURL — URL JWKS Keycloak; пусто — служебный endpoint не монтируется
	JWTJWKSURL string
	// JWTCACertPath — CA для TLS до Keycloak (пусто — системный пул)
	JWTCACertPath       string
	JWTIssuer           string
	JWTLeeway           time.Duration
	JWKSRefreshInterval time.Duration
	JWKSClientTimeout   time.Duration
	// Группы Keycloak, дающие роль admin
	RoleAdminGroups []string
	// Группы Keycloak, дающие роль readonly
	RoleReadonlyGroups []string

	// --- topologymetrics ---

	DephealthEnabled       bool
	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и разрешает бэкенд хранилища.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// WR_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("WR_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("WR_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("WR_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// WR_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("WR_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("WR_LOG_LEVEL: %w", err)
	}

	// WR_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("WR_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("WR_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// WR_SERVICE_NAME — имя сервиса (по умолчанию warranty-service)
	cfg.ServiceName = getEnvDefault("WR_SERVICE_NAME", "warranty-service")

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("WR_HTTP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("WR_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("WR_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// WR_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("WR_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Поведение ---

	// WR_DEV_MODE — отладочные подробности ошибок в ответах (по умолчанию false)
	cfg.DevMode, err = getEnvBool("WR_DEV_MODE", false)
	if err != nil {
		return nil, fmt.Errorf("WR_DEV_MODE: %w", err)
	}

	// WR_FORM_VARIANT — вариант формы (по умолчанию furigana)
	cfg.FormVariant = getEnvDefault("WR_FORM_VARIANT", FormVariantFurigana)
	if cfg.FormVariant != FormVariantFurigana && cfg.FormVariant != FormVariantPassphrase {
		return nil, fmt.Errorf("WR_FORM_VARIANT: недопустимое значение %q, допустимые: furigana, passphrase", cfg.FormVariant)
	}

	// WR_TIMEZONE — часовой пояс дат гарантии (по умолчанию Asia/Tokyo)
	tz := getEnvDefault("WR_TIMEZONE", "Asia/Tokyo")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("WR_TIMEZONE: неизвестный часовой пояс %q", tz)
	}

	// --- kintone ---

	cfg.KintoneBaseURL = strings.TrimRight(getEnvDefault("WR_KINTONE_BASE_URL", ""), "/")
	if domain := getEnvDefault("WR_KINTONE_DOMAIN", ""); cfg.KintoneBaseURL == "" && domain != "" {
		cfg.KintoneBaseURL = "https://" + strings.TrimRight(domain, "/")
	}
	cfg.KintoneAppID = getEnvDefault("WR_KINTONE_APP_ID", "")
	cfg.KintoneAPIToken = getEnvDefault("WR_KINTONE_API_TOKEN", "")
	cfg.KintoneCACertPath = getEnvDefault("WR_KINTONE_CA_CERT_PATH", "")
	cfg.KintoneFieldMap = getEnvDefault("WR_KINTONE_FIELD_MAP", "")

	// WR_KINTONE_TIMEOUT — таймаут запросов к kintone (по умолчанию 30s)
	cfg.KintoneTimeout, err = getEnvDuration("WR_KINTONE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_KINTONE_TIMEOUT: %w", err)
	}

	kintoneMock, err := getEnvBool("WR_KINTONE_MOCK_MODE", false)
	if err != nil {
		return nil, fmt.Errorf("WR_KINTONE_MOCK_MODE: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("WR_DB_HOST", "")
	cfg.DBPort, err = getEnvInt("WR_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("WR_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("WR_DB_NAME", "warranty")
	cfg.DBUser = getEnvDefault("WR_DB_USER", "warranty")
	cfg.DBPassword = getEnvDefault("WR_DB_PASSWORD", "")

	// WR_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("WR_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("WR_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// WR_DB_MIGRATE — применять миграции при старте (по умолчанию true)
	cfg.DBMigrate, err = getEnvBool("WR_DB_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("WR_DB_MIGRATE: %w", err)
	}

	// --- Выбор хранилища ---

	backend := strings.ToLower(getEnvDefault("WR_STORE_BACKEND", BackendAuto))
	if err := cfg.resolveBackend(backend, kintoneMock); err != nil {
		return nil, err
	}

	// --- Ограничение попыток ---

	// WR_STATUS_MAX_FAILURES — по умолчанию 0 (ограничение выключено)
	cfg.StatusMaxFailures, err = getEnvInt("WR_STATUS_MAX_FAILURES", 0)
	if err != nil {
		return nil, fmt.Errorf("WR_STATUS_MAX_FAILURES: %w", err)
	}
	if cfg.StatusMaxFailures < 0 {
		return nil, fmt.Errorf("WR_STATUS_MAX_FAILURES: значение должно быть >= 0")
	}

	cfg.StatusFailureWindow, err = getEnvDuration("WR_STATUS_FAILURE_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("WR_STATUS_FAILURE_WINDOW: %w", err)
	}
	if cfg.StatusFailureWindow <= 0 {
		return nil, fmt.Errorf("WR_STATUS_FAILURE_WINDOW: значение должно быть > 0")
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("WR_JWT_JWKS_URL", "")
	cfg.JWTCACertPath = getEnvDefault("WR_JWT_CA_CERT_PATH", "")
	cfg.JWTIssuer = getEnvDefault("WR_JWT_ISSUER", "")

	cfg.JWTLeeway, err = getEnvDuration("WR_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("WR_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("WR_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("WR_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	cfg.RoleAdminGroups = parseCSV(getEnvDefault("WR_ROLE_ADMIN_GROUPS", "warranty-admins"))
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("WR_ROLE_READONLY_GROUPS", "warranty-staff"))

	// --- topologymetrics ---

	cfg.DephealthEnabled, err = getEnvBool("WR_DEPHEALTH_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("WR_DEPHEALTH_ENABLED: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("WR_DEPHEALTH_GROUP", "honpokun")
	cfg.DephealthCheckInterval, err = getEnvDuration("WR_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WR_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// resolveBackend выбирает хранилище. Явно заданный бэкенд требует полной
// конфигурации; auto выбирает kintone, затем postgres, иначе mock
// с записью причины в StoreFallbackReason.
func (c *Config) resolveBackend(backend string, kintoneMock bool) error {
	kintoneReady := c.KintoneBaseURL != "" && c.KintoneAppID != "" && c.KintoneAPIToken != ""
	postgresReady := c.DBHost != ""

	switch backend {
	case BackendKintone:
		if kintoneMock {
			c.StoreBackend = BackendMock
			c.StoreFallbackReason = "WR_KINTONE_MOCK_MODE=true"
			return nil
		}
		if !kintoneReady {
			return fmt.Errorf("WR_STORE_BACKEND=kintone: требуются WR_KINTONE_DOMAIN (или WR_KINTONE_BASE_URL), WR_KINTONE_APP_ID и WR_KINTONE_API_TOKEN")
		}
		c.StoreBackend = BackendKintone

	case BackendPostgres:
		if !postgresReady {
			return fmt.Errorf("WR_STORE_BACKEND=postgres: требуется WR_DB_HOST")
		}
		c.StoreBackend = BackendPostgres

	case BackendMock:
		c.StoreBackend = BackendMock
		c.StoreFallbackReason = "WR_STORE_BACKEND=mock"

	case BackendAuto:
		switch {
		case kintoneMock:
			c.StoreBackend = BackendMock
			c.StoreFallbackReason = "WR_KINTONE_MOCK_MODE=true"
		case kintoneReady:
			c.StoreBackend = BackendKintone
		case postgresReady:
			c.StoreBackend = BackendPostgres
		default:
			c.StoreBackend = BackendMock
			c.StoreFallbackReason = "не заданы параметры kintone и PostgreSQL"
		}

	default:
		return fmt.Errorf("WR_STORE_BACKEND: недопустимое значение %q, допустимые: auto, kintone, postgres, mock", backend)
	}
	return nil
}

// StaffAPIEnabled — служебный endpoint сотрудников включён (задан JWKS URL).
func (c *Config) StaffAPIEnabled() bool {
	return c.JWTJWKSURL != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает адрес PostgreSQL в виде URL без учётных данных
// (метки topologymetrics).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
