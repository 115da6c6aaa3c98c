// Пакет model — доменные модели сервиса гарантийной регистрации.
// WarrantyRecord — одна запись на проданное устройство, общая для обоих хранилищ
// (kintone и PostgreSQL). Коды полей конкретного хранилища сюда не попадают.
package model

import "time"

// WarrantyRecord — гарантийная запись устройства.
// Запись создаётся вне сервиса (инструменты сотрудников) с заполненными
// managementId и полями товара и изменяется сервисом ровно один раз — при регистрации.
type WarrantyRecord struct {
	// InternalID — внутренний идентификатор хранилища ($id kintone или UUID строки PostgreSQL)
	InternalID string
	// Revision — ревизия записи для условного обновления
	Revision string
	// ManagementID — номер управления (URC + 7 цифр), уникальный ключ
	ManagementID string

	// --- Данные клиента (пусто до регистрации) ---

	// FullName — ФИО клиента (кандзи)
	FullName string
	// Furigana — чтение имени (катакана)
	Furigana string
	// Passphrase — кодовое слово (вариант формы без фуриганы)
	Passphrase string
	// Phone — телефон в формате 090-1234-5678
	Phone string
	// PostalCode — почтовый индекс в формате 123-4567
	PostalCode string
	// Address — адрес
	Address string

	// --- Данные товара (заполняются сотрудниками, только чтение) ---

	Maker        string
	Model        string
	Serial       string
	PurchaseSite string
	// PurchaseDate — дата покупки (nil — не указана)
	PurchaseDate *time.Time
	// PurchaseAmount — сумма покупки в иенах (nil — не указана)
	PurchaseAmount *int64

	// --- Гарантия ---

	// WarrantyPlan — название плана (метка, как хранится в хранилище)
	WarrantyPlan string
	// WarrantyPeriod — срок гарантии (метка, например «6ヶ月»)
	WarrantyPeriod string
	// WarrantyEndDate — дата окончания гарантии (nil — не рассчитана)
	WarrantyEndDate *time.Time

	ReviewPledge bool
	TermsAgreed  bool

	// RegisteredAt — момент регистрации клиентом (nil — не зарегистрирована)
	RegisteredAt *time.Time
}

// RegistrationUpdate — набор полей, которые сервис регистрации сливает
// в незарегистрированную запись. Пустые строковые поля записываются как есть.
type RegistrationUpdate struct {
	Phone      string
	FullName   string
	Furigana   string
	Passphrase string
	PostalCode string
	Address    string

	WarrantyPlan   string
	WarrantyPeriod string
	// WarrantyEndDate — nil означает «не изменять»
	WarrantyEndDate *time.Time

	ReviewPledge bool
	TermsAgreed  bool
	RegisteredAt time.Time
}
