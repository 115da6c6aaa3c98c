// Пакет errors — конструкторы ответов с ошибками.
// Единый формат: {"ok": false, "code": "...", "message": "...", ...}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodePhoneMismatch      = "PHONE_MISMATCH"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNeedsRegistration  = "NEEDS_REGISTRATION"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Body — тело ответа с ошибкой.
type Body struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Issues — сообщения по полям формы (только VALIDATION_ERROR)
	Issues map[string][]string `json:"issues,omitempty"`
	// NeedsRegistration — клиента нужно направить на форму регистрации
	NeedsRegistration bool `json:"needsRegistration,omitempty"`
	// Details — текст исходной ошибки (только в режиме разработки)
	Details string `json:"details,omitempty"`
}

// Write записывает произвольное тело ошибки.
func Write(w http.ResponseWriter, statusCode int, body Body) {
	body.OK = false
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — текст для клиента.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	Write(w, statusCode, Body{Code: code, Message: message})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные; issues может быть nil.
func ValidationError(w http.ResponseWriter, message string, issues map[string][]string) {
	Write(w, http.StatusBadRequest, Body{Code: CodeValidationError, Message: message, Issues: issues})
}

// NotFound — 404 номер управления не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// NeedsRegistration — 404 запись не зарегистрирована, клиент направляется на регистрацию.
func NeedsRegistration(w http.ResponseWriter, message string) {
	Write(w, http.StatusNotFound, Body{Code: CodeNeedsRegistration, Message: message, NeedsRegistration: true})
}

// Conflict — 409 запись уже зарегистрирована.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// PhoneMismatch — несовпадение телефона. statusCode: 403 (проверка) или 401 (статус).
func PhoneMismatch(w http.ResponseWriter, statusCode int, message string) {
	WriteError(w, statusCode, CodePhoneMismatch, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// TooManyAttempts — 429 превышен лимит неудачных попыток.
func TooManyAttempts(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeTooManyAttempts, message)
}

// InternalError — 500 внутренняя ошибка. details заполняется только в режиме разработки.
func InternalError(w http.ResponseWriter, message, details string) {
	Write(w, http.StatusInternalServerError, Body{Code: CodeInternalError, Message: message, Details: details})
}
