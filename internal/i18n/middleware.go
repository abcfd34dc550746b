// middleware.go — определение языка запроса.
package i18n

import (
	"net/http"
)

// LangCookieName — имя cookie с выбранным языком.
const LangCookieName = "lang"

// Middleware помещает язык запроса в контекст.
// Приоритет: query "lang" → cookie "lang" → Accept-Language → defaultLang.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	if Normalize(defaultLang) == "" {
		defaultLang = DefaultLang
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLang(r.Context(), detectLanguage(r, defaultLang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLanguage(r *http.Request, defaultLang string) string {
	if lang := Normalize(r.URL.Query().Get("lang")); lang != "" {
		return lang
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if lang := Normalize(cookie.Value); lang != "" {
			return lang
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return MatchLanguage(accept)
	}
	return defaultLang
}
