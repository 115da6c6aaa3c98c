// loader.go — загрузка каталогов переводов из embed.FS.
package i18n

import (
	"fmt"
	"log/slog"
)

// Load создаёт Bundle и загружает все встроенные каталоги.
// Ожидаемые файлы: locales/ja.json, locales/en.json.
func Load(logger *slog.Logger) (*Bundle, error) {
	bundle := NewBundle(logger)
	langs := []string{LangJapanese, LangEnglish}

	for _, lang := range langs {
		path := fmt.Sprintf("locales/%s.json", lang)
		data, err := LocaleFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}

		if err := bundle.LoadMessages(lang, data); err != nil {
			return nil, err
		}
	}

	logger.Info("i18n каталоги загружены", slog.Int("languages", len(langs)))
	return bundle, nil
}
