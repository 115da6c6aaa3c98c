package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/config"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/database"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
)

// setupTestPool запускает PostgreSQL через testcontainers, применяет миграции
// и возвращает пул подключений.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("warranty_test"),
		postgres.WithUsername("warranty"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("WR_STORE_BACKEND", "postgres")
	t.Setenv("WR_DB_HOST", host)
	t.Setenv("WR_DB_PORT", port.Port())
	t.Setenv("WR_DB_NAME", "warranty_test")
	t.Setenv("WR_DB_USER", "warranty")
	t.Setenv("WR_DB_PASSWORD", "test-password")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// registrationUpdate возвращает типовой набор полей регистрации.
func registrationUpdate() model.RegistrationUpdate {
	end := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	return model.RegistrationUpdate{
		Phone:           "090-1234-5678",
		FullName:        "山田 太郎",
		Furigana:        "ヤマダ タロウ",
		PostalCode:      "150-0001",
		Address:         "東京都渋谷区神宮前1-1-1",
		WarrantyPlan:    model.PlanM.Label(),
		WarrantyPeriod:  model.PlanM.PeriodLabel(),
		WarrantyEndDate: &end,
		TermsAgreed:     true,
		RegisteredAt:    time.Now().UTC(),
	}
}

// TestWarrantyRepository_Lifecycle — поиск, регистрация и повторная регистрация.
func TestWarrantyRepository_Lifecycle(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewWarrantyRepository(pool)
	ctx := context.Background()

	purchase := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	amount := int64(12800)
	seed := &model.WarrantyRecord{
		ManagementID:   "URC0000002",
		Maker:          "Honpo",
		Serial:         "SN-0002",
		PurchaseDate:   &purchase,
		PurchaseAmount: &amount,
	}
	if err := repo.SeedRecord(ctx, seed); err != nil {
		t.Fatalf("SeedRecord() ошибка: %v", err)
	}
	if seed.Revision != "1" {
		t.Errorf("Revision = %q, ожидалось 1", seed.Revision)
	}

	// Повторное создание — конфликт уникальности
	if err := repo.SeedRecord(ctx, &model.WarrantyRecord{ManagementID: "URC0000002"}); !errors.Is(err, ErrConflict) {
		t.Errorf("SeedRecord() дубликат: error = %v, ожидалась ErrConflict", err)
	}

	rec, err := repo.FindByKey(ctx, "URC0000002")
	if err != nil {
		t.Fatalf("FindByKey() ошибка: %v", err)
	}
	if model.Classify(rec) != model.ClassificationUnregistered {
		t.Errorf("Classify() = %s, ожидалось UNREGISTERED", model.Classify(rec))
	}
	if rec.PurchaseAmount == nil || *rec.PurchaseAmount != 12800 {
		t.Errorf("PurchaseAmount = %v", rec.PurchaseAmount)
	}

	rev, err := repo.UpdateByInternalID(ctx, rec.InternalID, rec.Revision, registrationUpdate())
	if err != nil {
		t.Fatalf("UpdateByInternalID() ошибка: %v", err)
	}
	if rev != "2" {
		t.Errorf("revision = %q, ожидалось 2", rev)
	}

	rec, err = repo.FindByKey(ctx, "URC0000002")
	if err != nil {
		t.Fatalf("FindByKey() ошибка: %v", err)
	}
	if model.Classify(rec) != model.ClassificationRegistered {
		t.Errorf("Classify() = %s, ожидалось REGISTERED", model.Classify(rec))
	}
	if rec.Phone != "090-1234-5678" || rec.Furigana != "ヤマダ タロウ" {
		t.Errorf("Phone/Furigana = %q/%q", rec.Phone, rec.Furigana)
	}
	if rec.WarrantyEndDate == nil || rec.RegisteredAt == nil {
		t.Errorf("WarrantyEndDate/RegisteredAt = %v/%v", rec.WarrantyEndDate, rec.RegisteredAt)
	}

	// Повторная регистрация — конфликт
	_, err = repo.UpdateByInternalID(ctx, rec.InternalID, "", registrationUpdate())
	if !errors.Is(err, ErrConflict) {
		t.Errorf("повторная регистрация: error = %v, ожидалась ErrConflict", err)
	}
}

// TestWarrantyRepository_NotFound проверяет отсутствующие записи.
func TestWarrantyRepository_NotFound(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewWarrantyRepository(pool)
	ctx := context.Background()

	if _, err := repo.FindByKey(ctx, "URC0000001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByKey() error = %v, ожидалась ErrNotFound", err)
	}
	if _, err := repo.UpdateByInternalID(ctx, uuid.NewString(), "", registrationUpdate()); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateByInternalID() error = %v, ожидалась ErrNotFound", err)
	}
	if _, err := repo.UpdateByInternalID(ctx, "not-a-uuid", "", registrationUpdate()); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateByInternalID(not-a-uuid) error = %v, ожидалась ErrNotFound", err)
	}
}

// TestWarrantyRepository_ConcurrentRegistration — из параллельных
// регистраций одной записи успешна ровно одна.
func TestWarrantyRepository_ConcurrentRegistration(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewWarrantyRepository(pool)
	ctx := context.Background()

	seed := &model.WarrantyRecord{ManagementID: "URC0000005"}
	if err := repo.SeedRecord(ctx, seed); err != nil {
		t.Fatalf("SeedRecord() ошибка: %v", err)
	}

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateByInternalID(ctx, seed.InternalID, seed.Revision, registrationUpdate())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != writers-1 {
		t.Errorf("успехов = %d, конфликтов = %d, ожидалось 1 и %d", successes, conflicts, writers-1)
	}
}
