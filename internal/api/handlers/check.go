// check.go — обработчик POST /api/check-management-id.
package handlers

import (
	"net/http"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/i18n"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

// checkResponse — номер управления свободен для регистрации.
type checkResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	// PurchaseAmount — сумма покупки, если известна
	PurchaseAmount *int64 `json:"purchaseAmount,omitempty"`
}

var checkErrors = errorMapping{
	phoneMismatchStatus: http.StatusForbidden,
	internalMsg:         i18n.MsgCheckFailed,
}

// CheckManagementID проверяет номер управления до заполнения формы.
// 200 — можно регистрировать; 404 — нет записи; 409 — уже зарегистрирован;
// 403 — зарегистрирован и телефон не совпадает.
func (h *APIHandler) CheckManagementID(w http.ResponseWriter, r *http.Request) {
	var in validation.CheckInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	payload, err := validation.ValidateCheck(in)
	if err != nil {
		h.writeServiceError(w, r, err, checkErrors)
		return
	}

	res, err := h.lookup.Check(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, r, err, checkErrors)
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		OK:             true,
		Message:        h.messages.T(r.Context(), i18n.MsgCheckOK),
		PurchaseAmount: res.PurchaseAmount,
	})
}
