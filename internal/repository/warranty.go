package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/store"
)

// selectColumns — колонки warranty_records в порядке scanRecord.
const selectColumns = `
	id::text, revision, management_id,
	full_name, furigana, passphrase, phone, postal_code, address,
	maker, model, serial, purchase_site, purchase_date, purchase_amount,
	warranty_plan, warranty_period, warranty_end_date,
	review_pledge, terms_agreed, registered_at`

// WarrantyRepository — store.RecordStore поверх таблицы warranty_records.
type WarrantyRepository struct {
	db DBTX
}

// NewWarrantyRepository создаёт репозиторий гарантийных записей.
func NewWarrantyRepository(db DBTX) *WarrantyRepository {
	return &WarrantyRepository{db: db}
}

// Backend возвращает "postgres".
func (r *WarrantyRepository) Backend() string {
	return store.BackendPostgres
}

// FindByKey возвращает запись по номеру управления.
func (r *WarrantyRepository) FindByKey(ctx context.Context, managementID string) (*model.WarrantyRecord, error) {
	query := `SELECT ` + selectColumns + `
		FROM warranty_records
		WHERE management_id = $1`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, managementID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи %s: %w", managementID, err)
	}
	return rec, nil
}

// UpdateByInternalID регистрирует клиента одним условным UPDATE:
// строка обновляется, только если имя и телефон пусты (и ревизия совпадает,
// если expectedRevision задана). Ноль строк — ErrNotFound при отсутствии id,
// иначе ErrConflict.
func (r *WarrantyRepository) UpdateByInternalID(ctx context.Context, internalID, expectedRevision string, upd model.RegistrationUpdate) (string, error) {
	id, err := uuid.Parse(internalID)
	if err != nil {
		return "", ErrNotFound
	}

	var revArg *int
	if expectedRevision != "" {
		rev, err := strconv.Atoi(expectedRevision)
		if err != nil {
			return "", fmt.Errorf("некорректная ревизия %q: %w", expectedRevision, err)
		}
		revArg = &rev
	}

	query := `
		UPDATE warranty_records
		SET phone = $2, full_name = $3,
			furigana = CASE WHEN $4::text = '' THEN furigana ELSE $4::text END,
			passphrase = CASE WHEN $5::text = '' THEN passphrase ELSE $5::text END,
			postal_code = $6, address = $7,
			warranty_plan = $8, warranty_period = $9,
			warranty_end_date = COALESCE($10::date, warranty_end_date),
			review_pledge = $11, terms_agreed = $12, registered_at = $13,
			revision = revision + 1, updated_at = NOW()
		WHERE id = $1
			AND full_name = '' AND phone = ''
			AND ($14::int IS NULL OR revision = $14)
		RETURNING revision`

	var newRev int
	err = r.db.QueryRow(ctx, query,
		id.String(),
		upd.Phone, upd.FullName, upd.Furigana, upd.Passphrase,
		upd.PostalCode, upd.Address,
		upd.WarrantyPlan, upd.WarrantyPeriod, upd.WarrantyEndDate,
		upd.ReviewPledge, upd.TermsAgreed, upd.RegisteredAt,
		revArg,
	).Scan(&newRev)
	if err == nil {
		return strconv.Itoa(newRev), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("ошибка регистрации записи %s: %w", internalID, err)
	}

	// Условие не выполнено: запись удалена или уже зарегистрирована
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM warranty_records WHERE id = $1)`, id.String(),
	).Scan(&exists); err != nil {
		return "", fmt.Errorf("ошибка проверки записи %s: %w", internalID, err)
	}
	if !exists {
		return "", ErrNotFound
	}
	return "", ErrConflict
}

// SeedRecord создаёт запись (инструменты сотрудников, тесты).
// Пустой InternalID заменяется новым UUID. Заполняет InternalID и Revision.
func (r *WarrantyRepository) SeedRecord(ctx context.Context, rec *model.WarrantyRecord) error {
	if rec.InternalID == "" {
		rec.InternalID = uuid.NewString()
	}

	query := `
		INSERT INTO warranty_records (id, management_id,
			full_name, furigana, passphrase, phone, postal_code, address,
			maker, model, serial, purchase_site, purchase_date, purchase_amount,
			warranty_plan, warranty_period, warranty_end_date,
			review_pledge, terms_agreed, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING revision`

	var rev int
	err := r.db.QueryRow(ctx, query,
		rec.InternalID, rec.ManagementID,
		rec.FullName, rec.Furigana, rec.Passphrase, rec.Phone, rec.PostalCode, rec.Address,
		rec.Maker, rec.Model, rec.Serial, rec.PurchaseSite, rec.PurchaseDate, rec.PurchaseAmount,
		rec.WarrantyPlan, rec.WarrantyPeriod, rec.WarrantyEndDate,
		rec.ReviewPledge, rec.TermsAgreed, rec.RegisteredAt,
	).Scan(&rev)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: номер управления %s уже существует", ErrConflict, rec.ManagementID)
		}
		return fmt.Errorf("ошибка создания записи %s: %w", rec.ManagementID, err)
	}

	rec.Revision = strconv.Itoa(rev)
	return nil
}

// scanRecord читает строку selectColumns в WarrantyRecord.
func scanRecord(row pgx.Row) (*model.WarrantyRecord, error) {
	rec := &model.WarrantyRecord{}
	var rev int
	err := row.Scan(
		&rec.InternalID, &rev, &rec.ManagementID,
		&rec.FullName, &rec.Furigana, &rec.Passphrase, &rec.Phone, &rec.PostalCode, &rec.Address,
		&rec.Maker, &rec.Model, &rec.Serial, &rec.PurchaseSite, &rec.PurchaseDate, &rec.PurchaseAmount,
		&rec.WarrantyPlan, &rec.WarrantyPeriod, &rec.WarrantyEndDate,
		&rec.ReviewPledge, &rec.TermsAgreed, &rec.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Revision = strconv.Itoa(rev)
	return rec, nil
}
