// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — номер управления отсутствует в хранилище.
	ErrNotFound = errors.New("номер управления не найден")
	// ErrAlreadyRegistered — запись уже зарегистрирована (или регистрация
	// проиграла параллельному запросу).
	ErrAlreadyRegistered = errors.New("номер управления уже зарегистрирован")
	// ErrPhoneMismatch — последние 4 цифры телефона не совпадают.
	ErrPhoneMismatch = errors.New("номер управления и телефон не совпадают")
	// ErrNeedsRegistration — запись отсутствует или ещё не зарегистрирована
	// (запрос статуса перенаправляется на регистрацию).
	ErrNeedsRegistration = errors.New("требуется регистрация")
	// ErrTooManyAttempts — превышен лимит неудачных запросов статуса.
	ErrTooManyAttempts = errors.New("слишком много неудачных попыток")
)

// UpstreamError — хранилище недоступно или вернуло некорректный ответ.
// Полный текст логируется; клиент получает общее сообщение.
type UpstreamError struct {
	// Op — операция хранилища (find, update)
	Op string
	// Backend — имя бэкенда
	Backend string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("хранилище %s, операция %s: %v", e.Backend, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
