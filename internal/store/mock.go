// mock.go — явный офлайн-режим: любая запись отсутствует.
package store

import (
	"context"
	"log/slog"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
)

// Mock — хранилище без данных. Каждое обращение логируется на уровне WARN,
// чтобы ошибка конфигурации не осталась незамеченной.
type Mock struct {
	logger *slog.Logger
	reason string
}

// NewMock создаёт Mock. reason — причина включения офлайн-режима.
func NewMock(reason string, logger *slog.Logger) *Mock {
	return &Mock{
		logger: logger.With(slog.String("component", "mock_store")),
		reason: reason,
	}
}

// FindByKey всегда возвращает ErrNotFound.
func (m *Mock) FindByKey(_ context.Context, managementID string) (*model.WarrantyRecord, error) {
	m.logger.Warn("Офлайн-режим хранилища: запись считается отсутствующей",
		slog.String("management_id", managementID),
		slog.String("reason", m.reason),
	)
	return nil, ErrNotFound
}

// UpdateByInternalID всегда возвращает ErrNotFound.
func (m *Mock) UpdateByInternalID(_ context.Context, internalID, _ string, _ model.RegistrationUpdate) (string, error) {
	m.logger.Warn("Офлайн-режим хранилища: обновление не выполнено",
		slog.String("internal_id", internalID),
		slog.String("reason", m.reason),
	)
	return "", ErrNotFound
}

// Backend возвращает "mock".
func (m *Mock) Backend() string {
	return BackendMock
}

// CheckReady — офлайн-режим всегда готов, но помечен как degraded.
func (m *Mock) CheckReady() (status string, message string) {
	return "degraded", "офлайн-режим хранилища: " + m.reason
}
