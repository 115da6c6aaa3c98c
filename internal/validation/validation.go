// Пакет validation — проверка формы до любого обращения к хранилищу.
// Результат — нормализованный типизированный payload либо *Errors
// (поле → список ключей сообщений). Частичного успеха нет.
// Ключи сообщений переводятся на уровне HTTP (пакет i18n).
package validation

import (
	"sort"
	"strings"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
)

// Ключи сообщений валидации (каталоги internal/i18n/locales).
const (
	MsgManagementIDFormat = "validation.management_id_format"
	MsgPhoneRequired      = "validation.phone_required"
	MsgPhoneLast4Format   = "validation.phone_last4_format"
	MsgPostalCodeRequired = "validation.postal_code_required"
	MsgFullNameRequired   = "validation.full_name_required"
	MsgFuriganaRequired   = "validation.furigana_required"
	MsgPassphraseRequired = "validation.passphrase_required"
	MsgAddressRequired    = "validation.address_required"
	MsgPlanInvalid        = "validation.plan_invalid"
	MsgReviewPledgeType   = "validation.review_pledge_required"
	MsgTermsAgreed        = "validation.terms_agreed"
)

// Минимальные длины в цифрах.
const (
	managementPrefix      = "URC"
	managementDigitLength = 7
	minPhoneDigits        = 10
	minPostalDigits       = 7
)

// Errors — ошибки валидации по полям формы.
type Errors struct {
	Fields map[string][]string
}

// Add добавляет ключ сообщения к полю.
func (e *Errors) Add(field, msgKey string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msgKey)
}

// Empty возвращает true, если ошибок нет.
func (e *Errors) Empty() bool {
	return len(e.Fields) == 0
}

// Error реализует error: перечисляет поля с ошибками.
func (e *Errors) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "ошибка валидации полей: " + strings.Join(fields, ", ")
}

// err возвращает nil при отсутствии ошибок.
func (e *Errors) err() error {
	if e.Empty() {
		return nil
	}
	return e
}

// FormVariant — вариант формы развёртывания.
type FormVariant string

const (
	// VariantFurigana — форма с фуриганой (по умолчанию).
	VariantFurigana FormVariant = "furigana"
	// VariantPassphrase — форма с кодовым словом вместо фуриганы.
	VariantPassphrase FormVariant = "passphrase"
)

// --- Входные данные (JSON-тела запросов) ---

// CheckInput — тело POST /api/check-management-id.
type CheckInput struct {
	ManagementID string  `json:"managementId"`
	Phone        *string `json:"phone,omitempty"`
}

// CheckPayload — нормализованный запрос проверки.
type CheckPayload struct {
	ManagementID string
	// Phone — только цифры; пусто, если телефон не передан
	Phone string
}

// RegistrationInput — тело POST /api/register.
type RegistrationInput struct {
	ManagementID string `json:"managementId"`
	FullName     string `json:"fullName"`
	Furigana     string `json:"furigana"`
	Passphrase   string `json:"passphrase,omitempty"`
	PostalCode   string `json:"postalCode"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	WarrantyPlan string `json:"warrantyPlan"`
	ReviewPledge *bool  `json:"reviewPledge"`
	TermsAgreed  *bool  `json:"termsAgreed"`
}

// RegistrationPayload — нормализованная форма регистрации.
type RegistrationPayload struct {
	ManagementID string
	FullName     string
	Furigana     string
	Passphrase   string
	// PostalCode — в формате 123-4567
	PostalCode string
	Address    string
	// Phone — в формате 090-1234-5678
	Phone        string
	Plan         model.Plan
	ReviewPledge bool
	TermsAgreed  bool
}

// StatusInput — тело POST /api/status.
type StatusInput struct {
	ManagementID string `json:"managementId"`
	PhoneLast4   string `json:"phoneLast4"`
}

// StatusPayload — нормализованный запрос статуса.
type StatusPayload struct {
	ManagementID string
	PhoneLast4   string
}

// --- Проверки ---

// ValidateCheck проверяет запрос проверки номера управления.
// Телефон необязателен; если передан — не менее 10 цифр.
func ValidateCheck(in CheckInput) (CheckPayload, error) {
	var errs Errors
	var out CheckPayload

	id, ok := NormalizeManagementID(in.ManagementID)
	if !ok {
		errs.Add("managementId", MsgManagementIDFormat)
	}
	out.ManagementID = id

	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" {
		digits := Digits(*in.Phone)
		if len(digits) < minPhoneDigits {
			errs.Add("phone", MsgPhoneRequired)
		}
		out.Phone = digits
	}

	if err := errs.err(); err != nil {
		return CheckPayload{}, err
	}
	return out, nil
}

// ValidateRegistration проверяет форму регистрации.
// variant определяет, какое из полей furigana/passphrase обязательно.
func ValidateRegistration(in RegistrationInput, variant FormVariant) (RegistrationPayload, error) {
	var errs Errors

	id, ok := NormalizeManagementID(in.ManagementID)
	if !ok {
		errs.Add("managementId", MsgManagementIDFormat)
	}

	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		errs.Add("fullName", MsgFullNameRequired)
	}

	furigana := strings.TrimSpace(in.Furigana)
	passphrase := strings.TrimSpace(in.Passphrase)
	switch variant {
	case VariantPassphrase:
		if passphrase == "" {
			errs.Add("passphrase", MsgPassphraseRequired)
		}
	default:
		if furigana == "" {
			errs.Add("furigana", MsgFuriganaRequired)
		}
	}

	if len(Digits(in.PostalCode)) < minPostalDigits {
		errs.Add("postalCode", MsgPostalCodeRequired)
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		errs.Add("address", MsgAddressRequired)
	}

	if len(Digits(in.Phone)) < minPhoneDigits {
		errs.Add("phone", MsgPhoneRequired)
	}

	plan, ok := model.ParsePlan(in.WarrantyPlan)
	if !ok {
		errs.Add("warrantyPlan", MsgPlanInvalid)
	}

	if in.ReviewPledge == nil {
		errs.Add("reviewPledge", MsgReviewPledgeType)
	}

	// Согласие должно быть буквально true
	if in.TermsAgreed == nil || !*in.TermsAgreed {
		errs.Add("termsAgreed", MsgTermsAgreed)
	}

	if err := errs.err(); err != nil {
		return RegistrationPayload{}, err
	}

	return RegistrationPayload{
		ManagementID: id,
		FullName:     fullName,
		Furigana:     furigana,
		Passphrase:   passphrase,
		PostalCode:   FormatPostalCode(in.PostalCode),
		Address:      address,
		Phone:        FormatPhone(in.Phone),
		Plan:         plan,
		ReviewPledge: *in.ReviewPledge,
		TermsAgreed:  true,
	}, nil
}

// ValidateStatus проверяет запрос статуса: номер управления и ровно 4 цифры телефона.
func ValidateStatus(in StatusInput) (StatusPayload, error) {
	var errs Errors

	id, ok := NormalizeManagementID(in.ManagementID)
	if !ok {
		errs.Add("managementId", MsgManagementIDFormat)
	}

	last4 := strings.TrimSpace(in.PhoneLast4)
	if len(last4) != 4 || Digits(last4) != last4 {
		errs.Add("phoneLast4", MsgPhoneLast4Format)
	}

	if err := errs.err(); err != nil {
		return StatusPayload{}, err
	}
	return StatusPayload{ManagementID: id, PhoneLast4: last4}, nil
}

// ValidateManagementID проверяет одиночный номер управления (path-параметр).
func ValidateManagementID(raw string) (string, error) {
	id, ok := NormalizeManagementID(raw)
	if !ok {
		var errs Errors
		errs.Add("managementId", MsgManagementIDFormat)
		return "", &errs
	}
	return id, nil
}
