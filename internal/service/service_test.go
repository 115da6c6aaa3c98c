package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/domain/model"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/store"
	"github.com/ulunaia99-max/HONPOKUN-WARRANTY/internal/validation"
)

// testLogger создаёт логгер для тестов (вывод только ошибок).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeStore — хранилище в памяти с условным обновлением по ревизии.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*model.WarrantyRecord
	updates int
	// findErr/updateErr — принудительные ошибки
	findErr   error
	updateErr error
	// beforeUpdate вызывается перед проверкой ревизии (имитация гонки)
	beforeUpdate func()
}

func newFakeStore(recs ...*model.WarrantyRecord) *fakeStore {
	fs := &fakeStore{records: make(map[string]*model.WarrantyRecord)}
	for i, r := range recs {
		r.InternalID = strconv.Itoa(i + 1)
		r.Revision = "1"
		fs.records[r.ManagementID] = r
	}
	return fs
}

func (f *fakeStore) Backend() string { return "fake" }

func (f *fakeStore) FindByKey(_ context.Context, id string) (*model.WarrantyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	r, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) UpdateByInternalID(_ context.Context, internalID, expectedRevision string, upd model.RegistrationUpdate) (string, error) {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return "", f.updateErr
	}
	for _, r := range f.records {
		if r.InternalID != internalID {
			continue
		}
		if r.Revision != expectedRevision {
			return "", store.ErrConflict
		}
		rev, _ := strconv.Atoi(r.Revision)
		r.Revision = strconv.Itoa(rev + 1)
		r.Phone = upd.Phone
		r.FullName = upd.FullName
		r.Furigana = upd.Furigana
		r.Passphrase = upd.Passphrase
		r.PostalCode = upd.PostalCode
		r.Address = upd.Address
		r.WarrantyPlan = upd.WarrantyPlan
		r.WarrantyPeriod = upd.WarrantyPeriod
		if upd.WarrantyEndDate != nil {
			r.WarrantyEndDate = upd.WarrantyEndDate
		}
		r.ReviewPledge = upd.ReviewPledge
		r.TermsAgreed = upd.TermsAgreed
		at := upd.RegisteredAt
		r.RegisteredAt = &at
		f.updates++
		return r.Revision, nil
	}
	return "", store.ErrNotFound
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// seedRecords — записи URC0000001 (нет), URC0000002 (не зарегистрирована),
// URC0000003 (зарегистрирована, телефон 090-1111-2222).
func seedRecords() *fakeStore {
	amount := int64(39800)
	return newFakeStore(
		&model.WarrantyRecord{
			ManagementID:   "URC0000002",
			Maker:          "Honpo",
			Model:          "HP-100",
			Serial:         "SN-0002",
			PurchaseDate:   date(2025, 3, 15),
			PurchaseAmount: &amount,
		},
		&model.WarrantyRecord{
			ManagementID:    "URC0000003",
			FullName:        "山田 太郎",
			Phone:           "090-1111-2222",
			Maker:           "Honpo",
			WarrantyPlan:    model.PlanS.Label(),
			WarrantyPeriod:  model.PlanS.PeriodLabel(),
			WarrantyEndDate: date(2026, 3, 15),
			RegisteredAt:    date(2025, 3, 16),
		},
	)
}

func registrationPayload(id string) validation.RegistrationPayload {
	return validation.RegistrationPayload{
		ManagementID: id,
		FullName:     "佐藤 花子",
		Furigana:     "サトウ ハナコ",
		PostalCode:   "150-0001",
		Address:      "東京都渋谷区神宮前1-1-1",
		Phone:        "090-3333-4444",
		Plan:         model.PlanM,
		ReviewPledge: true,
		TermsAgreed:  true,
	}
}

// --- Lookup / Check ---

func TestLookup_Classification(t *testing.T) {
	svc := NewLookupService(seedRecords(), testLogger())
	ctx := context.Background()

	tests := map[string]model.Classification{
		"URC0000001": model.ClassificationNotFound,
		"URC0000002": model.ClassificationUnregistered,
		"URC0000003": model.ClassificationRegistered,
	}
	for id, want := range tests {
		res, err := svc.Lookup(ctx, id)
		if err != nil {
			t.Fatalf("Lookup(%s) ошибка: %v", id, err)
		}
		if res.Classification != want {
			t.Errorf("Lookup(%s) = %s, ожидалось %s", id, res.Classification, want)
		}
		if want == model.ClassificationNotFound && res.Record != nil {
			t.Errorf("Lookup(%s): ожидалась nil-запись", id)
		}
	}
}

func TestLookup_UpstreamError(t *testing.T) {
	fs := seedRecords()
	fs.findErr = errors.New("connection refused")
	svc := NewLookupService(fs, testLogger())

	_, err := svc.Lookup(context.Background(), "URC0000002")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("ожидалась *UpstreamError, получено %v", err)
	}
	if ue.Op != "find" || ue.Backend != "fake" {
		t.Errorf("UpstreamError = %+v", ue)
	}
}

func TestCheck(t *testing.T) {
	svc := NewLookupService(seedRecords(), testLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		payload validation.CheckPayload
		wantErr error
	}{
		{"отсутствует", validation.CheckPayload{ManagementID: "URC0000001"}, ErrNotFound},
		{"зарегистрирована без телефона", validation.CheckPayload{ManagementID: "URC0000003"}, ErrAlreadyRegistered},
		{"зарегистрирована, телефон совпадает", validation.CheckPayload{ManagementID: "URC0000003", Phone: "09011112222"}, ErrAlreadyRegistered},
		{"зарегистрирована, телефон не совпадает", validation.CheckPayload{ManagementID: "URC0000003", Phone: "09011119999"}, ErrPhoneMismatch},
		{"не зарегистрирована", validation.CheckPayload{ManagementID: "URC0000002", Phone: "09011119999"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Check(ctx, tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Check() ошибка = %v, ожидалась %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if res.ManagementID != tt.payload.ManagementID {
					t.Errorf("ManagementID = %q", res.ManagementID)
				}
				if res.PurchaseAmount == nil || *res.PurchaseAmount != 39800 {
					t.Errorf("PurchaseAmount = %v, ожидалось 39800", res.PurchaseAmount)
				}
			}
		})
	}
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	fs := seedRecords()
	lookup := NewLookupService(fs, testLogger())
	svc := NewRegistrationService(lookup, fs, testLogger())
	fixed := time.Date(2025, 4, 1, 3, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Register(context.Background(), registrationPayload("URC0000002"))
	if err != nil {
		t.Fatalf("Register() ошибка: %v", err)
	}
	if res.Revision != "2" {
		t.Errorf("Revision = %q, ожидалось 2", res.Revision)
	}

	rec := fs.records["URC0000002"]
	if rec.FullName != "佐藤 花子" || rec.Phone != "090-3333-4444" {
		t.Errorf("данные клиента не записаны: %+v", rec)
	}
	if rec.WarrantyPlan != model.PlanM.Label() || rec.WarrantyPeriod != model.PlanM.PeriodLabel() {
		t.Errorf("план = %q/%q", rec.WarrantyPlan, rec.WarrantyPeriod)
	}
	if rec.WarrantyEndDate == nil || !rec.WarrantyEndDate.Equal(*date(2025, 9, 15)) {
		t.Errorf("WarrantyEndDate = %v, ожидалось 2025-09-15", rec.WarrantyEndDate)
	}
	if rec.RegisteredAt == nil || !rec.RegisteredAt.Equal(fixed) {
		t.Errorf("RegisteredAt = %v", rec.RegisteredAt)
	}
	// Поля товара не изменяются
	if rec.Maker != "Honpo" || rec.Serial != "SN-0002" {
		t.Errorf("поля товара изменены: %+v", rec)
	}

	// Повтор с теми же данными отклоняется
	_, err = svc.Register(context.Background(), registrationPayload("URC0000002"))
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("повторная регистрация: ошибка = %v, ожидалась ErrAlreadyRegistered", err)
	}
	if fs.updates != 1 {
		t.Errorf("updates = %d, ожидалась 1 запись", fs.updates)
	}
}

func TestRegister_Rejections(t *testing.T) {
	fs := seedRecords()
	svc := NewRegistrationService(NewLookupService(fs, testLogger()), fs, testLogger())

	if _, err := svc.Register(context.Background(), registrationPayload("URC0000001")); !errors.Is(err, ErrNotFound) {
		t.Errorf("URC0000001: ошибка = %v, ожидалась ErrNotFound", err)
	}
	if _, err := svc.Register(context.Background(), registrationPayload("URC0000003")); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("URC0000003: ошибка = %v, ожидалась ErrAlreadyRegistered", err)
	}
	if fs.updates != 0 {
		t.Errorf("updates = %d, ожидалось 0", fs.updates)
	}
	if got := fs.records["URC0000003"].FullName; got != "山田 太郎" {
		t.Errorf("зарегистрированная запись изменена: FullName = %q", got)
	}
}

// TestRegister_LostRace проверяет, что регистрация, проигравшая
// параллельному запросу, отклоняется как уже зарегистрированная.
func TestRegister_LostRace(t *testing.T) {
	fs := seedRecords()
	fs.beforeUpdate = func() {
		fs.mu.Lock()
		fs.records["URC0000002"].Revision = "7"
		fs.mu.Unlock()
	}
	svc := NewRegistrationService(NewLookupService(fs, testLogger()), fs, testLogger())

	_, err := svc.Register(context.Background(), registrationPayload("URC0000002"))
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("ошибка = %v, ожидалась ErrAlreadyRegistered", err)
	}
}

// TestRegister_Concurrent проверяет, что из параллельных регистраций
// одной записи успешна ровно одна.
func TestRegister_Concurrent(t *testing.T) {
	fs := seedRecords()
	svc := NewRegistrationService(NewLookupService(fs, testLogger()), fs, testLogger())

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), registrationPayload("URC0000002"))
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, ErrAlreadyRegistered) {
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Errorf("успешных регистраций = %d, ожидалась 1", success)
	}
}

func TestRegister_UpstreamError(t *testing.T) {
	fs := seedRecords()
	fs.updateErr = errors.New("kintone: 520")
	svc := NewRegistrationService(NewLookupService(fs, testLogger()), fs, testLogger())

	_, err := svc.Register(context.Background(), registrationPayload("URC0000002"))
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Op != "update" {
		t.Fatalf("ошибка = %v, ожидалась *UpstreamError(update)", err)
	}
}

func TestBuildRegistrationUpdate_EndDate(t *testing.T) {
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	p := registrationPayload("URC0000002")

	// Без даты покупки дата окончания не вычисляется
	upd := BuildRegistrationUpdate(&model.WarrantyRecord{}, p, now)
	if upd.WarrantyEndDate != nil {
		t.Errorf("WarrantyEndDate = %v, ожидался nil", upd.WarrantyEndDate)
	}

	// Существующая дата окончания не перезаписывается
	upd = BuildRegistrationUpdate(&model.WarrantyRecord{
		PurchaseDate:    date(2025, 1, 1),
		WarrantyEndDate: date(2030, 1, 1),
	}, p, now)
	if upd.WarrantyEndDate != nil {
		t.Errorf("WarrantyEndDate = %v, ожидался nil (не изменять)", upd.WarrantyEndDate)
	}

	upd = BuildRegistrationUpdate(&model.WarrantyRecord{PurchaseDate: date(2025, 1, 31)}, p, now)
	if upd.WarrantyEndDate == nil {
		t.Fatal("WarrantyEndDate = nil")
	}
	if got := upd.WarrantyEndDate.Format("2006-01-02"); got != "2025-07-31" {
		t.Errorf("WarrantyEndDate = %s, ожидалось 2025-07-31", got)
	}
}

// --- Status ---

func newStatusService(fs *fakeStore, limiter *AttemptLimiter) *StatusService {
	svc := NewStatusService(NewLookupService(fs, testLogger()), limiter, time.UTC, testLogger())
	svc.now = func() time.Time { return time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestStatus(t *testing.T) {
	svc := newStatusService(seedRecords(), nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		payload validation.StatusPayload
		wantErr error
	}{
		{"отсутствует", validation.StatusPayload{ManagementID: "URC0000001", PhoneLast4: "2222"}, ErrNeedsRegistration},
		{"не зарегистрирована", validation.StatusPayload{ManagementID: "URC0000002", PhoneLast4: "2222"}, ErrNeedsRegistration},
		{"не совпадает", validation.StatusPayload{ManagementID: "URC0000003", PhoneLast4: "9999"}, ErrPhoneMismatch},
		{"совпадает", validation.StatusPayload{ManagementID: "URC0000003", PhoneLast4: "2222"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj, err := svc.Status(ctx, tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Status() ошибка = %v, ожидалась %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if proj.FullName != "山田 太郎" || proj.Phone != "090-1111-2222" {
				t.Errorf("проекция = %+v", proj)
			}
			if proj.WarrantyEndDate != "2026-03-15" {
				t.Errorf("WarrantyEndDate = %q", proj.WarrantyEndDate)
			}
			if proj.RemainingDays == nil || *proj.RemainingDays != 30 {
				t.Errorf("RemainingDays = %v, ожидалось 30", proj.RemainingDays)
			}
			if proj.WarrantyState != model.WarrantyExpiringSoon {
				t.Errorf("WarrantyState = %s", proj.WarrantyState)
			}
		})
	}
}

// TestStatus_EmptyStoredPhone — запись зарегистрирована только по имени:
// сравнивать не с чем, ответ — несовпадение.
func TestStatus_EmptyStoredPhone(t *testing.T) {
	fs := newFakeStore(&model.WarrantyRecord{ManagementID: "URC0000004", FullName: "山田 太郎"})
	svc := newStatusService(fs, nil)

	_, err := svc.Status(context.Background(), validation.StatusPayload{ManagementID: "URC0000004", PhoneLast4: "0000"})
	if !errors.Is(err, ErrPhoneMismatch) {
		t.Fatalf("ошибка = %v, ожидалась ErrPhoneMismatch", err)
	}
}

func TestStatus_AttemptLimit(t *testing.T) {
	limiter := NewAttemptLimiter(3, time.Minute)
	svc := newStatusService(seedRecords(), limiter)
	ctx := context.Background()
	wrong := validation.StatusPayload{ManagementID: "URC0000003", PhoneLast4: "9999"}
	right := validation.StatusPayload{ManagementID: "URC0000003", PhoneLast4: "2222"}

	for i := 0; i < 3; i++ {
		if _, err := svc.Status(ctx, wrong); !errors.Is(err, ErrPhoneMismatch) {
			t.Fatalf("попытка %d: ошибка = %v", i+1, err)
		}
	}
	// Лимит исчерпан: даже правильный ввод блокируется
	if _, err := svc.Status(ctx, right); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("ошибка = %v, ожидалась ErrTooManyAttempts", err)
	}
	// Другой номер управления не затронут
	if _, err := svc.Status(ctx, validation.StatusPayload{ManagementID: "URC0000002", PhoneLast4: "2222"}); !errors.Is(err, ErrNeedsRegistration) {
		t.Errorf("URC0000002: ошибка = %v", err)
	}
}

func TestStatus_SuccessResetsFailures(t *testing.T) {
	limiter := NewAttemptLimiter(2, time.Minute)
	svc := newStatusService(seedRecords(), limiter)
	ctx := context.Background()
	wrong := validation.StatusPayload{ManagementID: "URC0000003", PhoneLast4: "9999"}
	right := validation.StatusPayload{ManagementID: "URC0000003", PhoneLast4: "2222"}

	_, _ = svc.Status(ctx, wrong)
	if _, err := svc.Status(ctx, right); err != nil {
		t.Fatalf("Status() ошибка: %v", err)
	}
	_, _ = svc.Status(ctx, wrong)
	if _, err := svc.Status(ctx, right); err != nil {
		t.Errorf("счётчик не сброшен после успеха: %v", err)
	}
}

func TestAttemptLimiter(t *testing.T) {
	if l := NewAttemptLimiter(0, time.Minute); l != nil {
		t.Fatal("NewAttemptLimiter(0) должен возвращать nil")
	}
	var disabled *AttemptLimiter
	disabled.Fail("k")
	disabled.Reset("k")
	if disabled.Blocked("k") {
		t.Error("nil-ограничитель не должен блокировать")
	}

	l := NewAttemptLimiter(2, 50*time.Millisecond)
	l.Fail("k")
	if l.Blocked("k") {
		t.Error("заблокирован после 1 неудачи")
	}
	l.Fail("k")
	if !l.Blocked("k") {
		t.Error("не заблокирован после 2 неудач")
	}

	time.Sleep(150 * time.Millisecond)
	if l.Blocked("k") {
		t.Error("блокировка не снята после окна")
	}
}

func TestStaffView(t *testing.T) {
	svc := newStatusService(seedRecords(), nil)
	ctx := context.Background()

	if _, err := svc.StaffView(ctx, "URC0000001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("URC0000001: ошибка = %v, ожидалась ErrNotFound", err)
	}

	v, err := svc.StaffView(ctx, "URC0000002")
	if err != nil {
		t.Fatalf("StaffView() ошибка: %v", err)
	}
	if v.Classification != model.ClassificationUnregistered {
		t.Errorf("Classification = %s", v.Classification)
	}
	if v.Data.Serial != "SN-0002" || v.Data.PurchaseDate != "2025-03-15" {
		t.Errorf("Data = %+v", v.Data)
	}
	if v.Data.RemainingDays != nil || v.Data.WarrantyState != model.WarrantyUnknown {
		t.Errorf("RemainingDays/WarrantyState = %v/%s", v.Data.RemainingDays, v.Data.WarrantyState)
	}
}

func TestProjection_WithPlaceholder(t *testing.T) {
	p := BuildProjection(&model.WarrantyRecord{ManagementID: "URC0000003", FullName: "山田 太郎"}, time.Now())
	got := p.WithPlaceholder("未登録")

	if got.FullName != "山田 太郎" {
		t.Errorf("FullName = %q, заполненное поле изменено", got.FullName)
	}
	if got.Maker != "未登録" || got.WarrantyPlan != "未登録" || got.Address != "未登録" {
		t.Errorf("пустые поля не заменены: %+v", got)
	}
	if got.PurchaseDate != "" || got.WarrantyEndDate != "" {
		t.Errorf("даты должны оставаться пустыми: %q/%q", got.PurchaseDate, got.WarrantyEndDate)
	}
	if p.Maker != "" {
		t.Error("исходная проекция изменена")
	}
}
