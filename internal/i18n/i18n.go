// Пакет i18n — сообщения для клиентов сервиса.
// Все сообщения API и ошибки валидации переводятся по ключу.
// Поддерживаемые языки: 日本語 (ja, по умолчанию), English (en).
// Язык определяется middleware: cookie "lang" → Accept-Language → "ja".
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"
)

// Коды языков.
const (
	LangJapanese = "ja"
	LangEnglish  = "en"

	// DefaultLang — язык по умолчанию и язык fallback.
	DefaultLang = LangJapanese
)

// Ключи сообщений API.
const (
	MsgCheckOK             = "message.check_ok"
	MsgRegisterOK          = "message.register_ok"
	MsgValidation          = "error.validation"
	MsgMalformedBody       = "error.malformed_body"
	MsgNotFound            = "error.not_found"
	MsgAlreadyRegistered   = "error.already_registered"
	MsgPhoneMismatch       = "error.phone_mismatch"
	MsgNeedsRegistration   = "error.needs_registration"
	MsgTooManyAttempts     = "error.too_many_attempts"
	MsgCheckFailed         = "error.check_failed"
	MsgInternal            = "error.internal"
	MsgUnauthorized        = "error.unauthorized"
	MsgForbidden           = "error.forbidden"
)

// MsgUnregisteredPlaceholder — заглушка для пустых полей на странице статуса.
const MsgUnregisteredPlaceholder = "placeholder.unregistered"

var (
	// SupportedLanguages — поддерживаемые теги; первый — язык по умолчанию для matcher.
	SupportedLanguages = []language.Tag{
		language.Japanese,
		language.English,
	}

	matcher = language.NewMatcher(SupportedLanguages)
)

// contextKey — тип ключа для контекста (избегаем коллизий).
type contextKey string

const contextKeyLang contextKey = "i18n_lang"

// Bundle — хранилище переводов для всех языков.
// Загружается один раз при старте приложения.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string // lang → key → translation
	logger   *slog.Logger
}

// NewBundle создаёт пустой Bundle.
func NewBundle(logger *slog.Logger) *Bundle {
	return &Bundle{
		catalogs: make(map[string]map[string]string),
		logger:   logger,
	}
}

// LoadMessages загружает JSON-каталог переводов для указанного языка.
// JSON формат: {"key": "translation", ...} (плоский).
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogs[lang] = messages

	if b.logger != nil {
		b.logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return nil
}

// Translate возвращает перевод по ключу для указанного языка.
// Fallback — японский каталог; если ключа нет нигде, возвращается сам ключ.
func (b *Bundle) Translate(lang, key string) string {
	if b == nil {
		return key
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if catalog, ok := b.catalogs[lang]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}

	if lang != DefaultLang {
		if catalog, ok := b.catalogs[DefaultLang]; ok {
			if msg, ok := catalog[key]; ok {
				return msg
			}
		}
	}

	return key
}

// T переводит ключ на язык из контекста запроса.
func (b *Bundle) T(ctx context.Context, key string) string {
	return b.Translate(LangFromContext(ctx), key)
}

// TranslateAll переводит списки ключей (ошибки валидации по полям).
func (b *Bundle) TranslateAll(ctx context.Context, fields map[string][]string) map[string][]string {
	lang := LangFromContext(ctx)
	out := make(map[string][]string, len(fields))
	for field, keys := range fields {
		msgs := make([]string, len(keys))
		for i, k := range keys {
			msgs[i] = b.Translate(lang, k)
		}
		out[field] = msgs
	}
	return out
}

// Keys возвращает ключи каталога языка (для проверки полноты каталогов).
func (b *Bundle) Keys(lang string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.catalogs[lang]))
	for k := range b.catalogs[lang] {
		keys = append(keys, k)
	}
	return keys
}

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// LangFromContext извлекает язык из контекста. Default: "ja".
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// MatchLanguage определяет лучший язык из Accept-Language заголовка.
// Возвращает "ja" или "en".
func MatchLanguage(acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()

	if base.String() == LangEnglish {
		return LangEnglish
	}
	return LangJapanese
}
