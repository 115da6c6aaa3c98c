// auth.go — JWT middleware служебного endpoint сотрудников.
// Извлекает claims из Keycloak JWT, определяет тип субъекта (User / Service Account),
// маппит группы в роли admin/readonly. Подпись проверяется по JWKS Keycloak.
// Клиентские endpoints (форма регистрации, статус) аутентификации не требуют.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/api/errors"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/i18n"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// SubjectType — тип субъекта JWT.
type SubjectType string

const (
	// SubjectTypeUser — сотрудник (аутентифицирован через OIDC).
	SubjectTypeUser SubjectType = "user"
	// SubjectTypeSA — Service Account (Client Credentials).
	SubjectTypeSA SubjectType = "service_account"
)

// Роли в порядке возрастания привилегий.
const (
	RoleReadonly = "readonly"
	RoleAdmin    = "admin"
)

// ScopeWarrantyRead — scope Service Account для чтения гарантийных записей.
const ScopeWarrantyRead = "warranty:read"

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleReadonly: 1,
	RoleAdmin:    2,
}

// AuthClaims — извлечённые и обработанные claims из Keycloak JWT.
type AuthClaims struct {
	// Subject — sub из JWT (Keycloak user ID или SA client UUID).
	Subject string
	// SubjectType — тип субъекта (user или service_account).
	SubjectType SubjectType
	// PreferredUsername — preferred_username из JWT.
	PreferredUsername string

	// --- Для User ---

	// Groups — группы из JWT.
	Groups []string
	// EffectiveRole — роль, вычисленная из групп IdP или realm_access.roles (admin, readonly, "").
	EffectiveRole string

	// --- Для Service Account ---

	// Scopes — scopes из claim "scope" (space-separated в JWT).
	Scopes []string
	// ClientID — client_id из JWT.
	ClientID string
}

// HasAnyRole проверяет, совпадает ли effective роль с одной из указанных.
func (c *AuthClaims) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.EffectiveRole == r {
			return true
		}
	}
	return false
}

// HasScope проверяет наличие указанного scope.
func (c *AuthClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope проверяет наличие хотя бы одного из указанных scopes.
func (c *AuthClaims) HasAnyScope(scopes ...string) bool {
	for _, scope := range scopes {
		if c.HasScope(scope) {
			return true
		}
	}
	return false
}

// keycloakClaims — raw claims из Keycloak JWT для парсинга.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
	Groups            []string     `json:"groups,omitempty"`
	// Scope — scopes через пробел (для Service Account).
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// realmAccess — вложенная структура realm_access в Keycloak JWT.
type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS Keycloak.
type JWTAuth struct {
	jwks           keyfunc.Keyfunc
	messages       *i18n.Bundle
	logger         *slog.Logger
	adminGroups    []string
	readonlyGroups []string
	issuer         string
	jwtLeeway      time.Duration
}

// JWTAuthOptions — параметры JWTAuth.
type JWTAuthOptions struct {
	// JWKSURL — URL к JWKS endpoint Keycloak.
	JWKSURL string
	// CACertPath — опциональный путь к CA-сертификату для TLS.
	CACertPath string
	// Issuer — ожидаемый issuer JWT (пусто — не проверяется).
	Issuer string
	// AdminGroups, ReadonlyGroups — группы для маппинга в роли.
	AdminGroups    []string
	ReadonlyGroups []string
	// ClientTimeout — таймаут HTTP-клиента JWKS.
	ClientTimeout time.Duration
	// RefreshInterval — интервал обновления JWKS-ключей.
	RefreshInterval time.Duration
	// Leeway — допустимое отклонение времени при проверке JWT.
	Leeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из Keycloak.
func NewJWTAuth(opts JWTAuthOptions, messages *i18n.Bundle, logger *slog.Logger) (*JWTAuth, error) {
	httpClient := &http.Client{Timeout: opts.ClientTimeout}
	if opts.CACertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(opts.CACertPath, opts.ClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", opts.CACertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", opts.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq — стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(opts.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           opts.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", opts.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	auth := NewJWTAuthWithKeyfunc(k, opts.Issuer, opts.AdminGroups, opts.ReadonlyGroups, messages, logger)
	auth.jwtLeeway = opts.Leeway
	return auth, nil
}

// NewJWTAuthWithKeyfunc создаёт JWTAuth с готовым keyfunc (для тестов).
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	adminGroups, readonlyGroups []string,
	messages *i18n.Bundle,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:           kf,
		messages:       messages,
		logger:         logger.With(slog.String("component", "jwt_auth")),
		adminGroups:    adminGroups,
		readonlyGroups: readonlyGroups,
		issuer:         issuer,
	}
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), вычисляет
// effective role и помещает claims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, reason := bearerToken(r.Header.Get("Authorization"))
			if reason != "" {
				j.reject(w, r, reason)
				return
			}

			rawClaims := &keycloakClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				reason := "невалидный токен"
				if err != nil {
					reason = err.Error()
				}
				j.reject(w, r, reason)
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				j.reject(w, r, "отсутствует sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, j.buildAuthClaims(rawClaims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
// При ошибке возвращает причину для лога.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "отсутствует заголовок Authorization"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "неверный формат Authorization: ожидается Bearer <token>"
	}
	if parts[1] == "" {
		return "", "пустой Bearer token"
	}
	return parts[1], ""
}

// reject отвечает 401; причина пишется только в лог.
func (j *JWTAuth) reject(w http.ResponseWriter, r *http.Request, reason string) {
	j.logger.Debug("JWT валидация не пройдена",
		slog.String("reason", reason),
		slog.String("remote_addr", r.RemoteAddr),
	)
	apierrors.Unauthorized(w, j.messages.T(r.Context(), i18n.MsgUnauthorized))
}

// buildAuthClaims формирует AuthClaims из raw Keycloak claims.
// Service Account в Keycloak имеет client_id и scope.
func (j *JWTAuth) buildAuthClaims(raw *keycloakClaims) *AuthClaims {
	claims := &AuthClaims{
		Subject:           raw.Subject,
		PreferredUsername: raw.PreferredUsername,
	}

	if raw.ClientID != "" && raw.Scope != "" {
		claims.SubjectType = SubjectTypeSA
		claims.ClientID = raw.ClientID
		claims.Scopes = strings.Fields(raw.Scope)
		return claims
	}

	claims.SubjectType = SubjectTypeUser
	claims.Groups = raw.Groups
	claims.EffectiveRole = mapGroupsToRole(claims.Groups, j.adminGroups, j.readonlyGroups)

	// Если роль не определена через группы, пробуем через realm_access.roles
	if claims.EffectiveRole == "" && raw.RealmAccess != nil {
		var validRoles []string
		for _, r := range raw.RealmAccess.Roles {
			if _, ok := roleWeight[r]; ok {
				validRoles = append(validRoles, r)
			}
		}
		claims.EffectiveRole = highestRole(validRoles)
	}
	return claims
}

// mapGroupsToRole определяет роль пользователя на основе его групп IdP.
func mapGroupsToRole(groups, adminGroups, readonlyGroups []string) string {
	adminSet := toSet(adminGroups)
	readonlySet := toSet(readonlyGroups)

	var roles []string
	for _, g := range groups {
		if adminSet[g] {
			roles = append(roles, RoleAdmin)
		}
		if readonlySet[g] {
			roles = append(roles, RoleReadonly)
		}
	}
	return highestRole(roles)
}

// highestRole возвращает максимальную роль из набора.
func highestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		if roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

// RequireRoleOrScope возвращает middleware, пропускающий Users с одной
// из указанных ролей или Service Accounts с одним из указанных scopes.
// Должен использоваться после JWTAuth.Middleware().
func (j *JWTAuth) RequireRoleOrScope(roles, scopes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, j.messages.T(r.Context(), i18n.MsgUnauthorized))
				return
			}

			allowed := false
			switch claims.SubjectType {
			case SubjectTypeUser:
				allowed = claims.HasAnyRole(roles...)
			case SubjectTypeSA:
				allowed = claims.HasAnyScope(scopes...)
			}
			if !allowed {
				j.logger.Warn("Доступ запрещён",
					slog.String("subject", claims.Subject),
					slog.String("subject_type", string(claims.SubjectType)),
					slog.String("role", claims.EffectiveRole),
					slog.String("path", r.URL.Path),
				)
				apierrors.Forbidden(w, j.messages.T(r.Context(), i18n.MsgForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}
