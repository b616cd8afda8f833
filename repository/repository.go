// Package repository описывает операции хранилища, которые используют сервисы.
// Реализация на gorm находится в пакете database.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
)

// ErrNotFound возвращается, когда запись не существует
var ErrNotFound = errors.New("запись не найдена")

// ItemFilter задает выборку позиций по области
type ItemFilter struct {
	Category       models.Category // nil - любая категория
	ProjectID      *uint
	IncludeDeleted bool
	OnlyOpen       bool // только позиции со статусом, отличным от paid
	ForUpdate      bool // блокировать строки до конца транзакции
}

// ItemStore - хранилище позиций и их записей
type ItemStore interface {
	GetItem(ctx context.Context, id uint) (*models.PaymentItem, error)
	// LockItem читает позицию с блокировкой строки до конца транзакции
	LockItem(ctx context.Context, id uint) (*models.PaymentItem, error)
	ListItemsByScope(ctx context.Context, filter ItemFilter) ([]models.PaymentItem, error)
	UpsertItem(ctx context.Context, item *models.PaymentItem) error
	InsertRecord(ctx context.Context, record *models.PaymentRecord) error
	InsertRecords(ctx context.Context, records []models.PaymentRecord) error
	ListRecords(ctx context.Context, itemID uint) ([]models.PaymentRecord, error)
	SoftDelete(ctx context.Context, id uint, at time.Time) error
	Restore(ctx context.Context, id uint) error
	Purge(ctx context.Context, id uint) error
}

// AuditStore - журнал аудита, только добавление и чтение
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error
	AuditHistory(ctx context.Context, table string, recordID uint) ([]models.AuditLogEntry, error)
}

// ForecastSource - источники данных прогноза, только чтение
type ForecastSource interface {
	ListOpenItems(ctx context.Context) ([]models.PaymentItem, error)
	ListBudgetPlans(ctx context.Context) ([]models.BudgetPlan, error)
	ListSchedules(ctx context.Context) ([]models.PaymentSchedule, error)
	ListPaidRecords(ctx context.Context, from, to time.Time) ([]models.PaymentRecord, error)
}

// Store объединяет хранилища и дает транзакционный доступ к ним
type Store interface {
	ItemStore
	AuditStore
	ForecastSource

	// WithinTx выполняет fn в одной транзакции; ошибка fn откатывает все изменения
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	// LockScope берет блокировку области до конца текущей транзакции
	LockScope(ctx context.Context, key string) error
}
