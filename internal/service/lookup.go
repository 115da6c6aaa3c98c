// Пакет service — бизнес-логика сервиса гарантийной регистрации:
// поиск и классификация записи, регистрация клиента, запрос статуса.
// Каждая операция выполняет не более одного чтения и одной записи в хранилище.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/store"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

// LookupResult — запись и её классификация. Record == nil при NOT_FOUND.
type LookupResult struct {
	Record         *model.WarrantyRecord
	Classification model.Classification
}

// CheckResult — результат проверки незарегистрированного номера.
type CheckResult struct {
	ManagementID string
	// PurchaseAmount — сумма покупки, если известна
	PurchaseAmount *int64
}

// LookupService — поиск записи по номеру управления и классификация.
type LookupService struct {
	store  store.RecordStore
	logger *slog.Logger
}

// NewLookupService создаёт сервис поиска.
func NewLookupService(st store.RecordStore, logger *slog.Logger) *LookupService {
	return &LookupService{
		store:  st,
		logger: logger.With(slog.String("component", "lookup_service")),
	}
}

// Lookup читает запись и классифицирует её. Отсутствие записи — не ошибка:
// возвращается классификация NOT_FOUND. Ошибки хранилища — *UpstreamError.
func (s *LookupService) Lookup(ctx context.Context, managementID string) (*LookupResult, error) {
	backend := s.store.Backend()

	start := time.Now()
	rec, err := s.store.FindByKey(ctx, managementID)
	storeRequestDuration.WithLabelValues(backend, "find").Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("Ошибка поиска записи",
			slog.String("management_id", managementID),
			slog.String("backend", backend),
			slog.String("error", err.Error()),
		)
		return nil, &UpstreamError{Op: "find", Backend: backend, Err: err}
	}
	if err != nil {
		rec = nil
	}

	cls := model.Classify(rec)
	lookupTotal.WithLabelValues(backend, string(cls)).Inc()

	s.logger.Debug("Запись классифицирована",
		slog.String("management_id", managementID),
		slog.String("classification", string(cls)),
	)
	return &LookupResult{Record: rec, Classification: cls}, nil
}

// Check проверяет номер управления перед заполнением формы.
//   - NOT_FOUND → ErrNotFound
//   - REGISTERED и переданный телефон не совпадает с сохранённым по последним
//     4 цифрам → ErrPhoneMismatch
//   - REGISTERED иначе → ErrAlreadyRegistered
//   - UNREGISTERED → CheckResult
func (s *LookupService) Check(ctx context.Context, p validation.CheckPayload) (*CheckResult, error) {
	res, err := s.Lookup(ctx, p.ManagementID)
	if err != nil {
		return nil, err
	}

	switch res.Classification {
	case model.ClassificationNotFound:
		return nil, ErrNotFound

	case model.ClassificationRegistered:
		stored := res.Record.Phone
		if p.Phone != "" && stored != "" &&
			validation.PhoneSuffix(stored) != validation.PhoneSuffix(p.Phone) {
			return nil, ErrPhoneMismatch
		}
		return nil, ErrAlreadyRegistered
	}

	return &CheckResult{
		ManagementID:   p.ManagementID,
		PurchaseAmount: res.Record.PurchaseAmount,
	}, nil
}
