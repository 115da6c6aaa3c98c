// register.go — обработчик POST /api/register.
package handlers

import (
	"net/http"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/i18n"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

type registerResponse struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
	Revision string `json:"revision,omitempty"`
}

var registerErrors = errorMapping{
	internalMsg: i18n.MsgInternal,
}

// Register регистрирует гарантию по номеру управления.
// Ответы: 200, 400, 404, 409 (в том числе проигранная параллельная регистрация), 500.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in validation.RegistrationInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	payload, err := validation.ValidateRegistration(in, h.opts.FormVariant)
	if err != nil {
		h.writeServiceError(w, r, err, registerErrors)
		return
	}

	res, err := h.registration.Register(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, r, err, registerErrors)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		OK:       true,
		Message:  h.messages.T(r.Context(), i18n.MsgRegisterOK),
		Revision: res.Revision,
	})
}
