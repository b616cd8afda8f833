package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/database"
	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv собирает сервисы поверх SQLite в памяти
type testEnv struct {
	db        *gorm.DB
	store     *database.Store
	audit     *AuditService
	items     *ItemService
	alloc     *AllocationService
	scheduler *PaymentSchedulerService
	forecast  *ForecastService
	notifier  *recordingNotifier
}

type recordingNotifier struct {
	paid []uint
}

func (n *recordingNotifier) NotifyItemPaid(ctx context.Context, item models.PaymentItem) error {
	n.paid = append(n.paid, item.ID)
	return nil
}

func setupTestEnv(t *testing.T, today time.Time) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := database.NewStore(db)
	audit := NewAuditService(store)
	notifier := &recordingNotifier{}
	env := &testEnv{
		db:        db,
		store:     store,
		audit:     audit,
		items:     NewItemService(store, audit),
		alloc:     NewAllocationService(store, audit, notifier),
		scheduler: NewPaymentSchedulerService(store, audit),
		forecast:  NewForecastService(store, 6),
		notifier:  notifier,
	}
	env.setToday(today)
	return env
}

func (e *testEnv) setToday(today time.Time) {
	clock := func() time.Time { return today.Add(9 * time.Hour) }
	e.items.SetClock(clock)
	e.alloc.SetClock(clock)
	e.scheduler.SetClock(clock)
	e.forecast.SetClock(clock)
}

func (e *testEnv) mustCreate(t *testing.T, dto CreateItemDTO) *models.PaymentItem {
	t.Helper()
	item, err := e.items.CreateItem(context.Background(), dto)
	if err != nil {
		t.Fatalf("create %q: %v", dto.Name, err)
	}
	return item
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func uintPtr(v uint) *uint {
	return &v
}

func singleItem(name, amount, start string, categoryID uint) CreateItemDTO {
	return CreateItemDTO{
		CategoryID:  uintPtr(categoryID),
		Name:        name,
		TotalAmount: dec(amount),
		PaymentType: "single",
		StartDate:   start,
		Actor:       "tester",
	}
}

func assertAmount(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}
