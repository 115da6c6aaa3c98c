// record.go — преобразование записей kintone в доменную модель и обратно.
package kintone

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
)

// Форматы дат kintone.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05Z"
)

// fieldValue — значение поля записи kintone: {"type": "...", "value": ...}.
type fieldValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// rawRecord — запись kintone: код поля → значение.
type rawRecord map[string]fieldValue

// value — значение для записи: {"value": ...}.
type value struct {
	Value any `json:"value"`
}

// decodeRecord собирает WarrantyRecord из записи kintone.
func (c *Client) decodeRecord(raw rawRecord) (*model.WarrantyRecord, error) {
	rec := &model.WarrantyRecord{
		InternalID: c.textOf(raw, "$id"),
		Revision:   c.textOf(raw, "$revision"),
	}
	if rec.InternalID == "" {
		return nil, fmt.Errorf("в записи отсутствует $id")
	}

	rec.ManagementID = c.text(raw, FieldManagementID)
	rec.FullName = c.text(raw, FieldFullName)
	rec.Furigana = c.text(raw, FieldFurigana)
	rec.Passphrase = c.text(raw, FieldPassphrase)
	rec.Phone = c.text(raw, FieldPhone)
	rec.PostalCode = c.text(raw, FieldPostalCode)
	rec.Address = c.text(raw, FieldAddress)

	rec.Maker = c.text(raw, FieldMaker)
	rec.Model = c.text(raw, FieldModel)
	rec.Serial = c.text(raw, FieldSerial)
	rec.PurchaseSite = c.text(raw, FieldPurchaseSite)
	rec.WarrantyPlan = c.text(raw, FieldWarrantyPlan)
	rec.WarrantyPeriod = c.text(raw, FieldWarrantyPeriod)
	rec.ReviewPledge = c.flag(raw, FieldReviewPledge)
	rec.TermsAgreed = c.flag(raw, FieldTermsAgreed)

	var err error
	if rec.PurchaseDate, err = c.date(raw, FieldPurchaseDate); err != nil {
		return nil, err
	}
	if rec.WarrantyEndDate, err = c.date(raw, FieldWarrantyEndDate); err != nil {
		return nil, err
	}
	if rec.RegisteredAt, err = c.date(raw, FieldRegisteredAt); err != nil {
		return nil, err
	}
	if rec.PurchaseAmount, err = c.number(raw, FieldPurchaseAmount); err != nil {
		return nil, err
	}

	return rec, nil
}

// encodeUpdate формирует объект record для PUT /k/v1/record.json.
// Поля, отключённые в FieldMap, пропускаются.
func (c *Client) encodeUpdate(upd model.RegistrationUpdate) map[string]value {
	out := make(map[string]value)
	set := func(field string, v any) {
		if code, ok := c.fields.code(field); ok {
			out[code] = value{Value: v}
		}
	}

	set(FieldPhone, upd.Phone)
	set(FieldFullName, upd.FullName)
	if upd.Furigana != "" {
		set(FieldFurigana, upd.Furigana)
	}
	if upd.Passphrase != "" {
		set(FieldPassphrase, upd.Passphrase)
	}
	set(FieldPostalCode, upd.PostalCode)
	set(FieldAddress, upd.Address)
	set(FieldWarrantyPlan, upd.WarrantyPlan)
	set(FieldWarrantyPeriod, upd.WarrantyPeriod)
	if upd.WarrantyEndDate != nil {
		set(FieldWarrantyEndDate, upd.WarrantyEndDate.Format(dateLayout))
	}
	set(FieldReviewPledge, strconv.FormatBool(upd.ReviewPledge))
	set(FieldTermsAgreed, strconv.FormatBool(upd.TermsAgreed))
	set(FieldRegisteredAt, upd.RegisteredAt.UTC().Format(dateTimeLayout))

	return out
}

// textOf возвращает значение поля по коду как строку.
// Массивы (флажки, множественный выбор) склеиваются через запятую.
func (c *Client) textOf(raw rawRecord, code string) string {
	fv, ok := raw[code]
	if !ok || len(fv.Value) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(fv.Value, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(fv.Value, &list); err == nil {
		return strings.Join(list, ",")
	}
	return ""
}

// text возвращает строковое значение семантического поля.
func (c *Client) text(raw rawRecord, field string) string {
	code, ok := c.fields.code(field)
	if !ok {
		return ""
	}
	return c.textOf(raw, code)
}

// flag интерпретирует поле как логическое: текст "true"/"1"/"はい"
// или непустой флажок.
func (c *Client) flag(raw rawRecord, field string) bool {
	v := strings.ToLower(c.text(raw, field))
	switch v {
	case "", "false", "0", "いいえ", "no", "off":
		return false
	default:
		return true
	}
}

// date разбирает поле даты (2006-01-02) или даты-времени (RFC 3339).
func (c *Client) date(raw rawRecord, field string) (*time.Time, error) {
	s := c.text(raw, field)
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, c.loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("поле %s: некорректная дата %q", field, s)
	}
	t = t.In(c.loc)
	return &t, nil
}

// number разбирает числовое поле (kintone передаёт числа строкой).
func (c *Client) number(raw rawRecord, field string) (*int64, error) {
	s := strings.ReplaceAll(c.text(raw, field), ",", "")
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n, nil
	}
	// Дробные суммы и значения за пределами int64 не приводятся молча.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("поле %s: некорректное число %q", field, s)
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("поле %s: дробное значение %q", field, s)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("поле %s: значение %q вне диапазона int64", field, s)
	}
	n := int64(f)
	return &n, nil
}
