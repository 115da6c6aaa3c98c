// status.go — обработчики POST /api/status и GET /api/v1/staff/records/{managementId}.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/i18n"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/service"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

type statusResponse struct {
	OK   bool               `json:"ok"`
	Data service.Projection `json:"data"`
}

type staffRecordResponse struct {
	OK             bool                 `json:"ok"`
	Classification model.Classification `json:"classification"`
	Data           service.Projection   `json:"data"`
}

var statusErrors = errorMapping{
	phoneMismatchStatus: http.StatusUnauthorized,
	internalMsg:         i18n.MsgInternal,
}

// Status возвращает данные зарегистрированной гарантии по номеру управления
// и последним 4 цифрам телефона.
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	var in validation.StatusInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	payload, err := validation.ValidateStatus(in)
	if err != nil {
		h.writeServiceError(w, r, err, statusErrors)
		return
	}

	proj, err := h.status.Status(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, r, err, statusErrors)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		OK:   true,
		Data: proj.WithPlaceholder(h.messages.T(r.Context(), i18n.MsgUnregisteredPlaceholder)),
	})
}

// StaffRecord — просмотр записи сотрудником без проверки телефона.
// Авторизация: RequireRoleOrScope (admin, readonly / warranty:read) — на уровне middleware.
func (h *APIHandler) StaffRecord(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateManagementID(chi.URLParam(r, "managementId"))
	if err != nil {
		h.writeServiceError(w, r, err, statusErrors)
		return
	}

	view, err := h.status.StaffView(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, statusErrors)
		return
	}

	writeJSON(w, http.StatusOK, staffRecordResponse{
		OK:             true,
		Classification: view.Classification,
		Data:           view.Data,
	})
}
