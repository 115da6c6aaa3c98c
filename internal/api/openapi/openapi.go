// Пакет openapi — встроенный контракт API.
// Контракт загружается и валидируется kin-openapi при старте
// (невалидный контракт — ошибка запуска) и отдаётся на /api/openapi.yaml.
package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var contractYAML []byte

// Document — загруженный и проверенный контракт.
type Document struct {
	doc *openapi3.T
	raw []byte
}

// Load разбирает и валидирует встроенный контракт.
func Load(ctx context.Context) (*Document, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(contractYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор openapi.yaml: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация openapi.yaml: %w", err)
	}
	return &Document{doc: doc, raw: contractYAML}, nil
}

// Version возвращает версию API из info.version.
func (d *Document) Version() string {
	return d.doc.Info.Version
}

// HasOperation сообщает, описана ли операция method+path в контракте.
// path — шаблон пути в нотации контракта ("/api/v1/staff/records/{managementId}").
func (d *Document) HasOperation(method, path string) bool {
	item := d.doc.Paths.Value(path)
	if item == nil {
		return false
	}
	return item.GetOperation(method) != nil
}

// ServeHTTP отдаёт контракт в YAML.
func (d *Document) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.raw)
}
