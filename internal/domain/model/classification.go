package model

// Classification — результат поиска записи по номеру управления.
type Classification string

const (
	// ClassificationNotFound — записи с таким номером нет.
	ClassificationNotFound Classification = "NOT_FOUND"
	// ClassificationUnregistered — запись есть, имя и телефон пусты.
	ClassificationUnregistered Classification = "UNREGISTERED"
	// ClassificationRegistered — запись есть, имя или телефон заполнены.
	ClassificationRegistered Classification = "REGISTERED"
)

// Classify определяет состояние записи.
// Единственный признак регистрации — непустое имя ИЛИ непустой телефон;
// остальные поля (товар, план, даты) на результат не влияют.
func Classify(rec *WarrantyRecord) Classification {
	if rec == nil {
		return ClassificationNotFound
	}
	if rec.FullName == "" && rec.Phone == "" {
		return ClassificationUnregistered
	}
	return ClassificationRegistered
}
