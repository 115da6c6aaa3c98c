package model

import (
	"math"
	"time"
)

// Plan — тег гарантийного плана, выбранного клиентом.
type Plan string

// Допустимые планы.
const (
	PlanStandard Plan = "standard"
	PlanCampaign Plan = "campaign"
	PlanM        Plan = "m"
	PlanS        Plan = "s"
)

// planInfo — метка плана в хранилище, метка срока и длительность в месяцах.
type planInfo struct {
	label  string
	period string
	months int
}

var plans = map[Plan]planInfo{
	PlanStandard: {label: "通常保証（1ヶ月）", period: "1ヶ月", months: 1},
	PlanCampaign: {label: "キャンペーン保証（3ヶ月）", period: "3ヶ月", months: 3},
	PlanM:        {label: "Mプラン（6ヶ月）", period: "6ヶ月", months: 6},
	PlanS:        {label: "Sプラン（12ヶ月）", period: "12ヶ月", months: 12},
}

// ParsePlan возвращает план по тегу. ok=false для неизвестного тега.
func ParsePlan(tag string) (Plan, bool) {
	p := Plan(tag)
	_, ok := plans[p]
	return p, ok
}

// Label — метка плана, как она хранится в записи.
func (p Plan) Label() string {
	return plans[p].label
}

// PeriodLabel — метка срока гарантии.
func (p Plan) PeriodLabel() string {
	return plans[p].period
}

// Months — длительность гарантии в месяцах (0 для неизвестного плана).
func (p Plan) Months() int {
	return plans[p].months
}

// EndDate вычисляет дату окончания гарантии от даты покупки.
func (p Plan) EndDate(purchase time.Time) time.Time {
	return purchase.AddDate(0, p.Months(), 0)
}

// WarrantyState — состояние гарантии на текущую дату.
type WarrantyState string

const (
	WarrantyActive       WarrantyState = "active"
	WarrantyExpiringSoon WarrantyState = "expiring_soon"
	WarrantyExpired      WarrantyState = "expired"
	WarrantyUnknown      WarrantyState = "unknown"
)

// expiringSoonDays — порог «скоро истекает» в днях.
const expiringSoonDays = 30

// RemainingDays возвращает число дней до окончания гарантии с точностью до даты
// (округление вверх) и состояние. Без даты окончания — (nil, unknown).
// Сравниваются календарные даты: endDate — в своей зоне, now — в зоне now.
func RemainingDays(endDate *time.Time, now time.Time) (*int, WarrantyState) {
	if endDate == nil {
		return nil, WarrantyUnknown
	}

	end := civilDate(*endDate)
	today := civilDate(now)
	days := int(math.Ceil(end.Sub(today).Hours() / 24))

	switch {
	case days < 0:
		return &days, WarrantyExpired
	case days <= expiringSoonDays:
		return &days, WarrantyExpiringSoon
	default:
		return &days, WarrantyActive
	}
}

// civilDate переносит календарную дату t в полночь UTC.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
