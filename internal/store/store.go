// Пакет store — общий контракт хранилища гарантийных записей.
// Реализации: kintone (удалённое приложение), repository (PostgreSQL), Mock.
// Реализация выбирается один раз при старте процесса.
package store

import (
	"context"
	"errors"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
)

// Имена бэкендов (метка backend в метриках и логах).
const (
	BackendKintone  = "kintone"
	BackendPostgres = "postgres"
	BackendMock     = "mock"
)

// Ошибки слоя хранилища.
var (
	// ErrNotFound — записи с таким номером управления (или внутренним ID) нет.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — условное обновление не применено: запись изменилась
	// или уже не является незарегистрированной.
	ErrConflict = errors.New("конфликт — запись изменена другим запросом")
)

// RecordStore — хранилище гарантийных записей.
type RecordStore interface {
	// FindByKey возвращает единственную запись по номеру управления.
	// Отсутствие записи — ErrNotFound.
	FindByKey(ctx context.Context, managementID string) (*model.WarrantyRecord, error)
	// UpdateByInternalID применяет регистрацию к записи с внутренним ID.
	// Обновление условное: запись должна иметь ревизию expectedRevision
	// и оставаться незарегистрированной, иначе ErrConflict.
	// Возвращает новую ревизию записи.
	UpdateByInternalID(ctx context.Context, internalID, expectedRevision string, upd model.RegistrationUpdate) (string, error)
	// Backend — имя бэкенда.
	Backend() string
}
