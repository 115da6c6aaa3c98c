package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

// projectionDateLayout — формат дат в проекции.
const projectionDateLayout = "2006-01-02"

// Projection — данные зарегистрированной записи для страницы статуса.
// Пустые текстовые поля заполняются заглушкой через WithPlaceholder.
type Projection struct {
	ManagementID string `json:"managementId"`
	FullName     string `json:"fullName"`
	Furigana     string `json:"furigana,omitempty"`
	Phone        string `json:"phone"`
	PostalCode   string `json:"postalCode"`
	Address      string `json:"address"`

	Maker          string `json:"maker"`
	Model          string `json:"model"`
	Serial         string `json:"serial"`
	PurchaseSite   string `json:"purchaseSite"`
	PurchaseDate   string `json:"purchaseDate"`
	PurchaseAmount *int64 `json:"purchaseAmount,omitempty"`

	WarrantyPlan    string `json:"warrantyPlan"`
	WarrantyPeriod  string `json:"warrantyPeriod"`
	WarrantyEndDate string `json:"warrantyEndDate"`
	RegisteredAt    string `json:"registeredAt"`
	ReviewPledge    bool   `json:"reviewPledge"`

	// RemainingDays — дней до окончания гарантии (nil — дата окончания неизвестна)
	RemainingDays *int                `json:"remainingDays"`
	WarrantyState model.WarrantyState `json:"warrantyState"`
}

// StaffView — запись для сотрудников: классификация и проекция без проверки телефона.
type StaffView struct {
	Classification model.Classification `json:"classification"`
	Data           Projection           `json:"data"`
}

// StatusService — запрос статуса гарантии клиентом и сотрудниками.
type StatusService struct {
	lookup  *LookupService
	limiter *AttemptLimiter
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
}

// NewStatusService создаёт сервис статуса.
// limiter может быть nil (без ограничения попыток).
// loc — часовой пояс для «сегодня» при расчёте оставшихся дней.
func NewStatusService(lookup *LookupService, limiter *AttemptLimiter, loc *time.Location, logger *slog.Logger) *StatusService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatusService{
		lookup:  lookup,
		limiter: limiter,
		loc:     loc,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "status_service")),
	}
}

// Status возвращает проекцию зарегистрированной записи, если последние
// 4 цифры телефона совпадают. Незарегистрированная или отсутствующая
// запись — ErrNeedsRegistration. Несовпадение (в том числе когда телефон
// не сохранён) — ErrPhoneMismatch без уточнения причины.
func (s *StatusService) Status(ctx context.Context, p validation.StatusPayload) (*Projection, error) {
	if s.limiter.Blocked(p.ManagementID) {
		statusQueriesTotal.WithLabelValues("too_many_attempts").Inc()
		s.logger.Warn("Лимит неудачных запросов статуса исчерпан",
			slog.String("management_id", p.ManagementID),
		)
		return nil, ErrTooManyAttempts
	}

	res, err := s.lookup.Lookup(ctx, p.ManagementID)
	if err != nil {
		statusQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if res.Classification != model.ClassificationRegistered {
		statusQueriesTotal.WithLabelValues("needs_registration").Inc()
		return nil, ErrNeedsRegistration
	}

	stored := res.Record.Phone
	if stored == "" || validation.PhoneSuffix(stored) != p.PhoneLast4 {
		s.limiter.Fail(p.ManagementID)
		statusQueriesTotal.WithLabelValues("phone_mismatch").Inc()
		return nil, ErrPhoneMismatch
	}

	s.limiter.Reset(p.ManagementID)
	statusQueriesTotal.WithLabelValues("success").Inc()

	proj := BuildProjection(res.Record, s.now().In(s.loc))
	return &proj, nil
}

// StaffView возвращает запись любой классификации, кроме NOT_FOUND.
// Доступ проверяется на уровне HTTP (JWT, роли admin/readonly).
func (s *StatusService) StaffView(ctx context.Context, managementID string) (*StaffView, error) {
	res, err := s.lookup.Lookup(ctx, managementID)
	if err != nil {
		return nil, err
	}
	if res.Classification == model.ClassificationNotFound {
		return nil, ErrNotFound
	}

	return &StaffView{
		Classification: res.Classification,
		Data:           BuildProjection(res.Record, s.now().In(s.loc)),
	}, nil
}

// BuildProjection строит проекцию записи на момент now.
func BuildProjection(rec *model.WarrantyRecord, now time.Time) Projection {
	days, state := model.RemainingDays(rec.WarrantyEndDate, now)

	return Projection{
		ManagementID:    rec.ManagementID,
		FullName:        rec.FullName,
		Furigana:        rec.Furigana,
		Phone:           rec.Phone,
		PostalCode:      rec.PostalCode,
		Address:         rec.Address,
		Maker:           rec.Maker,
		Model:           rec.Model,
		Serial:          rec.Serial,
		PurchaseSite:    rec.PurchaseSite,
		PurchaseDate:    formatDate(rec.PurchaseDate),
		PurchaseAmount:  rec.PurchaseAmount,
		WarrantyPlan:    rec.WarrantyPlan,
		WarrantyPeriod:  rec.WarrantyPeriod,
		WarrantyEndDate: formatDate(rec.WarrantyEndDate),
		RegisteredAt:    formatTime(rec.RegisteredAt),
		ReviewPledge:    rec.ReviewPledge,
		RemainingDays:   days,
		WarrantyState:   state,
	}
}

// WithPlaceholder возвращает копию проекции, в которой пустые текстовые
// поля товара и гарантии заменены заглушкой (например, «未登録»).
// Даты остаются пустыми строками.
func (p Projection) WithPlaceholder(placeholder string) Projection {
	for _, f := range []*string{
		&p.FullName, &p.PostalCode, &p.Address,
		&p.Maker, &p.Model, &p.Serial, &p.PurchaseSite,
		&p.WarrantyPlan, &p.WarrantyPeriod,
	} {
		if *f == "" {
			*f = placeholder
		}
	}
	return p
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(projectionDateLayout)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
