// handler.go — основной обработчик API: клиентские операции формы
// (проверка номера, регистрация, статус) и служебный просмотр записи.
// Преобразует ошибки сервисного слоя в ответы по единому формату.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/api/errors"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/i18n"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/service"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

// maxBodyBytes — максимальный размер JSON-тела запроса.
const maxBodyBytes = 64 << 10

// devDetailsPrefix — префикс текста ошибки в режиме разработки.
const devDetailsPrefix = "エラー: "

// Options — поведение обработчиков.
type Options struct {
	// FormVariant — обязательное поле формы (furigana или passphrase)
	FormVariant validation.FormVariant
	// DevMode — в ответах 500 возвращается текст исходной ошибки
	DevMode bool
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	lookup       *service.LookupService
	registration *service.RegistrationService
	status       *service.StatusService
	messages     *i18n.Bundle
	opts         Options
	logger       *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	lookup *service.LookupService,
	registration *service.RegistrationService,
	status *service.StatusService,
	messages *i18n.Bundle,
	opts Options,
	logger *slog.Logger,
) *APIHandler {
	if opts.FormVariant == "" {
		opts.FormVariant = validation.VariantFurigana
	}
	return &APIHandler{
		lookup:       lookup,
		registration: registration,
		status:       status,
		messages:     messages,
		opts:         opts,
		logger:       logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса (не более maxBodyBytes) в dst.
// При ошибке пишет 400 и возвращает false.
func (h *APIHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("Некорректное тело запроса",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.ValidationError(w, h.messages.T(r.Context(), i18n.MsgMalformedBody), nil)
		return false
	}
	return true
}

// errorMapping — коды ответа, различающиеся между endpoints.
type errorMapping struct {
	// phoneMismatchStatus — 403 на проверке номера, 401 на запросе статуса;
	// 0 — endpoint не проверяет телефон, ошибка считается внутренней
	phoneMismatchStatus int
	// internalMsg — ключ сообщения для 500
	internalMsg string
}

// writeServiceError преобразует ошибку валидации или сервисного слоя в ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, m errorMapping) {
	ctx := r.Context()

	var ve *validation.Errors
	if errors.As(err, &ve) {
		apierrors.ValidationError(w, h.messages.T(ctx, i18n.MsgValidation), h.messages.TranslateAll(ctx, ve.Fields))
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, h.messages.T(ctx, i18n.MsgNotFound))
	case errors.Is(err, service.ErrAlreadyRegistered):
		apierrors.Conflict(w, h.messages.T(ctx, i18n.MsgAlreadyRegistered))
	case errors.Is(err, service.ErrPhoneMismatch) && m.phoneMismatchStatus != 0:
		apierrors.PhoneMismatch(w, m.phoneMismatchStatus, h.messages.T(ctx, i18n.MsgPhoneMismatch))
	case errors.Is(err, service.ErrNeedsRegistration):
		apierrors.NeedsRegistration(w, h.messages.T(ctx, i18n.MsgNeedsRegistration))
	case errors.Is(err, service.ErrTooManyAttempts):
		apierrors.TooManyAttempts(w, h.messages.T(ctx, i18n.MsgTooManyAttempts))
	default:
		var ue *service.UpstreamError
		if !errors.As(err, &ue) {
			h.logger.Error("Необработанная ошибка",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		details := ""
		if h.opts.DevMode {
			details = devDetailsPrefix + err.Error()
		}
		msgKey := m.internalMsg
		if msgKey == "" {
			msgKey = i18n.MsgInternal
		}
		apierrors.InternalError(w, h.messages.T(ctx, msgKey), details)
	}
}
