// fieldmap.go — соответствие семантических полей кодам полей приложения kintone.
// Коды полей kintone за пределы этого пакета не выходят.
package kintone

import (
	"fmt"
	"strings"
)

// Семантические имена полей гарантийной записи.
const (
	FieldManagementID    = "managementId"
	FieldPhone           = "phone"
	FieldFullName        = "fullName"
	FieldFurigana        = "furigana"
	FieldPassphrase      = "passphrase"
	FieldPostalCode      = "postalCode"
	FieldAddress         = "address"
	FieldMaker           = "maker"
	FieldModel           = "model"
	FieldSerial          = "serial"
	FieldPurchaseSite    = "purchaseSite"
	FieldPurchaseDate    = "purchaseDate"
	FieldPurchaseAmount  = "purchaseAmount"
	FieldWarrantyPlan    = "warrantyPlan"
	FieldWarrantyPeriod  = "warrantyPeriod"
	FieldWarrantyEndDate = "warrantyEndDate"
	FieldReviewPledge    = "reviewPledge"
	FieldTermsAgreed     = "termsAgreed"
	FieldRegisteredAt    = "registeredAt"
)

// FieldMap — семантическое поле → код поля kintone.
// Пустой код означает, что поле в приложении отсутствует:
// оно не читается и не записывается.
type FieldMap map[string]string

// DefaultFieldMap возвращает коды полей рабочего приложения.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		FieldManagementID:    "文字列__1行__14",
		FieldPhone:           "文字列__1行__4",
		FieldFullName:        "name_1",
		FieldPostalCode:      "文字列__1行__5",
		FieldAddress:         "address_1",
		FieldFurigana:        "furigana",
		FieldPassphrase:      "passphrase",
		FieldMaker:           "maker",
		FieldModel:           "model",
		FieldSerial:          "serial_number",
		FieldPurchaseSite:    "purchase_site",
		FieldPurchaseDate:    "purchase_date",
		FieldPurchaseAmount:  "purchase_amount",
		FieldWarrantyPlan:    "warranty_plan",
		FieldWarrantyPeriod:  "warranty_period",
		FieldWarrantyEndDate: "warranty_end_date",
		FieldReviewPledge:    "review_pledge",
		FieldTermsAgreed:     "terms_agreed",
		FieldRegisteredAt:    "registered_at",
	}
}

// ParseFieldMap накладывает переопределения вида "phone=code,fullName=code"
// на DefaultFieldMap. "field=" отключает поле.
// managementId, fullName и phone отключить нельзя: без них невозможна классификация.
func ParseFieldMap(overrides string) (FieldMap, error) {
	fm := DefaultFieldMap()
	if strings.TrimSpace(overrides) == "" {
		return fm, nil
	}

	for _, pair := range strings.Split(overrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, code, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("некорректная пара %q: ожидается field=code", pair)
		}
		name = strings.TrimSpace(name)
		if _, known := fm[name]; !known {
			return nil, fmt.Errorf("неизвестное поле %q", name)
		}
		fm[name] = strings.TrimSpace(code)
	}

	for _, required := range []string{FieldManagementID, FieldFullName, FieldPhone} {
		if fm[required] == "" {
			return nil, fmt.Errorf("поле %s обязательно и не может быть отключено", required)
		}
	}
	return fm, nil
}

// code возвращает код поля и признак его наличия в приложении.
func (fm FieldMap) code(field string) (string, bool) {
	c := fm[field]
	return c, c != ""
}
