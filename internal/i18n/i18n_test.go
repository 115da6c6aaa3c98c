package i18n

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"testing"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func loadBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := Load(testLogger())
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}
	return b
}

// TestCatalogs_SameKeys проверяет, что каталоги ja и en содержат одинаковые ключи.
func TestCatalogs_SameKeys(t *testing.T) {
	b := loadBundle(t)

	ja := b.Keys(LangJapanese)
	en := b.Keys(LangEnglish)
	sort.Strings(ja)
	sort.Strings(en)

	if len(ja) != len(en) {
		t.Fatalf("ja: %d ключей, en: %d ключей", len(ja), len(en))
	}
	for i := range ja {
		if ja[i] != en[i] {
			t.Errorf("расхождение ключей: ja=%q en=%q", ja[i], en[i])
		}
	}
}

// TestCatalogs_CoverAllKeys проверяет наличие перевода для каждого используемого ключа.
func TestCatalogs_CoverAllKeys(t *testing.T) {
	b := loadBundle(t)

	keys := []string{
		MsgCheckOK, MsgRegisterOK, MsgValidation, MsgMalformedBody, MsgNotFound,
		MsgAlreadyRegistered, MsgPhoneMismatch, MsgNeedsRegistration, MsgTooManyAttempts,
		MsgCheckFailed, MsgInternal, MsgUnauthorized, MsgForbidden, MsgUnregisteredPlaceholder,
		validation.MsgManagementIDFormat, validation.MsgPhoneRequired, validation.MsgPhoneLast4Format,
		validation.MsgPostalCodeRequired, validation.MsgFullNameRequired, validation.MsgFuriganaRequired,
		validation.MsgPassphraseRequired, validation.MsgAddressRequired, validation.MsgPlanInvalid,
		validation.MsgReviewPledgeType, validation.MsgTermsAgreed,
	}

	for _, lang := range []string{LangJapanese, LangEnglish} {
		for _, k := range keys {
			if got := b.Translate(lang, k); got == k {
				t.Errorf("%s: нет перевода для %q", lang, k)
			}
		}
	}
}

func TestTranslate(t *testing.T) {
	b := NewBundle(nil)
	if err := b.LoadMessages(LangJapanese, []byte(`{"a":"あ","b":"び"}`)); err != nil {
		t.Fatal(err)
	}
	if err := b.LoadMessages(LangEnglish, []byte(`{"a":"A"}`)); err != nil {
		t.Fatal(err)
	}

	if got := b.Translate(LangEnglish, "a"); got != "A" {
		t.Errorf("Translate(en, a) = %q", got)
	}
	// fallback на японский
	if got := b.Translate(LangEnglish, "b"); got != "び" {
		t.Errorf("Translate(en, b) = %q, ожидался fallback び", got)
	}
	if got := b.Translate(LangEnglish, "missing"); got != "missing" {
		t.Errorf("Translate(en, missing) = %q", got)
	}

	if err := b.LoadMessages("xx", []byte(`{broken`)); err == nil {
		t.Error("ожидалась ошибка парсинга")
	}

	var nilBundle *Bundle
	if got := nilBundle.Translate(LangJapanese, "a"); got != "a" {
		t.Errorf("nil Bundle: Translate = %q", got)
	}
}

func TestTranslateAll(t *testing.T) {
	b := loadBundle(t)
	ctx := WithLang(context.Background(), LangJapanese)

	got := b.TranslateAll(ctx, map[string][]string{
		"phone": {validation.MsgPhoneRequired},
	})
	if len(got["phone"]) != 1 || got["phone"][0] != "電話番号を入力してください" {
		t.Errorf("TranslateAll() = %v", got)
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := map[string]string{
		"en-US,en;q=0.9": LangEnglish,
		"ja,en;q=0.8":    LangJapanese,
		"ja-JP":          LangJapanese,
		"ru-RU":          LangJapanese,
		"":               LangJapanese,
		"fr-FR,en;q=0.5": LangEnglish,
	}
	for in, want := range tests {
		if got := MatchLanguage(in); got != want {
			t.Errorf("MatchLanguage(%q) = %q, ожидался %q", in, got, want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	var got string
	h := Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = LangFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		cookie string
		accept string
		want   string
	}{
		{"по умолчанию", "", "", LangJapanese},
		{"Accept-Language", "", "en-US", LangEnglish},
		{"cookie важнее заголовка", "ja", "en-US", LangJapanese},
		{"неизвестная cookie", "de", "en", LangEnglish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("язык = %q, ожидался %q", got, tt.want)
			}
		})
	}
}
