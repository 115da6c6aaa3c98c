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

// RegistrationResult — результат успешной регистрации.
type RegistrationResult struct {
	// InternalID — внутренний ID записи в хранилище
	InternalID string
	// Revision — ревизия записи после обновления
	Revision string
}

// RegistrationService — перевод незарегистрированной записи в зарегистрированную.
type RegistrationService struct {
	lookup *LookupService
	store  store.RecordStore
	now    func() time.Time
	logger *slog.Logger
}

// NewRegistrationService создаёт сервис регистрации.
func NewRegistrationService(lookup *LookupService, st store.RecordStore, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{
		lookup: lookup,
		store:  st,
		now:    time.Now,
		logger: logger.With(slog.String("component", "registration_service")),
	}
}

// Register повторно читает запись и, если она не зарегистрирована,
// записывает данные клиента одним условным обновлением по внутреннему ID.
// Повторная регистрация с теми же данными также отклоняется (ErrAlreadyRegistered).
func (s *RegistrationService) Register(ctx context.Context, p validation.RegistrationPayload) (*RegistrationResult, error) {
	res, err := s.lookup.Lookup(ctx, p.ManagementID)
	if err != nil {
		registrationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	switch res.Classification {
	case model.ClassificationNotFound:
		registrationsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	case model.ClassificationRegistered:
		registrationsTotal.WithLabelValues("already_registered").Inc()
		return nil, ErrAlreadyRegistered
	}

	rec := res.Record
	upd := BuildRegistrationUpdate(rec, p, s.now())

	backend := s.store.Backend()
	start := time.Now()
	revision, err := s.store.UpdateByInternalID(ctx, rec.InternalID, rec.Revision, upd)
	storeRequestDuration.WithLabelValues(backend, "update").Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		s.logger.Warn("Запись изменена параллельным запросом, регистрация отклонена",
			slog.String("management_id", p.ManagementID),
			slog.String("internal_id", rec.InternalID),
		)
		registrationsTotal.WithLabelValues("already_registered").Inc()
		return nil, ErrAlreadyRegistered
	case errors.Is(err, store.ErrNotFound):
		registrationsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	default:
		s.logger.Error("Ошибка записи регистрации",
			slog.String("management_id", p.ManagementID),
			slog.String("backend", backend),
			slog.String("error", err.Error()),
		)
		registrationsTotal.WithLabelValues("error").Inc()
		return nil, &UpstreamError{Op: "update", Backend: backend, Err: err}
	}

	registrationsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Гарантия зарегистрирована",
		slog.String("management_id", p.ManagementID),
		slog.String("plan", string(p.Plan)),
		slog.String("revision", revision),
	)

	return &RegistrationResult{InternalID: rec.InternalID, Revision: revision}, nil
}

// BuildRegistrationUpdate сливает форму с существующей записью.
// Дата окончания гарантии вычисляется от даты покупки, только если
// дата покупки известна, а дата окончания ещё не задана.
func BuildRegistrationUpdate(rec *model.WarrantyRecord, p validation.RegistrationPayload, now time.Time) model.RegistrationUpdate {
	upd := model.RegistrationUpdate{
		Phone:          p.Phone,
		FullName:       p.FullName,
		Furigana:       p.Furigana,
		Passphrase:     p.Passphrase,
		PostalCode:     p.PostalCode,
		Address:        p.Address,
		WarrantyPlan:   p.Plan.Label(),
		WarrantyPeriod: p.Plan.PeriodLabel(),
		ReviewPledge:   p.ReviewPledge,
		TermsAgreed:    p.TermsAgreed,
		RegisteredAt:   now,
	}

	if rec.PurchaseDate != nil && rec.WarrantyEndDate == nil {
		end := p.Plan.EndDate(*rec.PurchaseDate)
		upd.WarrantyEndDate = &end
	}
	return upd
}
