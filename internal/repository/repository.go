// Пакет repository — хранилище гарантийных записей в PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/store"
)

// Ошибки слоя репозиториев совпадают с ошибками пакета store,
// чтобы сервисный слой не зависел от конкретного хранилища.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = store.ErrNotFound
	// ErrConflict — нарушение уникальности или проигранное условное обновление.
	ErrConflict = store.ErrConflict
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
