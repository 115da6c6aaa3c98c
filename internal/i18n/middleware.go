// middleware.go — HTTP middleware для определения языка клиента.
// Приоритет: cookie "lang" → заголовок Accept-Language → "ja".
package i18n

import (
	"net/http"
)

// LangCookieName — имя cookie с выбранным языком.
const LangCookieName = "lang"

// Middleware определяет язык и помещает его в контекст запроса.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLang(r.Context(), detectLanguage(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// detectLanguage определяет язык из запроса.
func detectLanguage(r *http.Request) string {
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if cookie.Value == LangJapanese || cookie.Value == LangEnglish {
			return cookie.Value
		}
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}

	return DefaultLang
}
