package database

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/biglong-lab/woyu-money-sub004/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store реализует repository.Store на gorm
type Store struct {
	db *gorm.DB
}

var _ repository.Store = (*Store)(nil)

// NewStore создает хранилище поверх подключения или транзакции
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithinTx выполняет fn в транзакции; вложенный вызов использует точку сохранения
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// LockScope берет advisory-блокировку PostgreSQL на время транзакции.
// Для SQLite блокировка не нужна: запись в базу и так идет одним писателем.
func (s *Store) LockScope(ctx context.Context, key string) error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	h := fnv.New64a()
	h.Write([]byte(key))
	if err := s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", int64(h.Sum64())).Error; err != nil {
		return fmt.Errorf("ошибка блокировки области %s: %w", key, err)
	}
	return nil
}

// Методы для работы с позициями

func (s *Store) GetItem(ctx context.Context, id uint) (*models.PaymentItem, error) {
	var item models.PaymentItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *Store) LockItem(ctx context.Context, id uint) (*models.PaymentItem, error) {
	query := s.db.WithContext(ctx)
	if s.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.PaymentItem
	if err := query.First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *Store) ListItemsByScope(ctx context.Context, filter repository.ItemFilter) ([]models.PaymentItem, error) {
	query := s.db.WithContext(ctx).Model(&models.PaymentItem{})

	switch c := filter.Category.(type) {
	case models.FlexibleCategory:
		query = query.Where("category_id = ?", c.ID)
	case models.FixedCategory:
		query = query.Where("fixed_category_id = ?", c.ID)
		if c.SubOptionID != 0 {
			query = query.Where("fixed_sub_option_id = ?", c.SubOptionID)
		}
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if filter.OnlyOpen {
		query = query.Where("status <> ?", models.ItemStatusPaid)
	}
	if filter.ForUpdate && s.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var items []models.PaymentItem
	if err := query.Order("start_date ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки позиций: %w", err)
	}
	return items, nil
}

func (s *Store) UpsertItem(ctx context.Context, item *models.PaymentItem) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error; err != nil {
		return fmt.Errorf("ошибка сохранения позиции: %w", err)
	}
	return nil
}

func (s *Store) InsertRecord(ctx context.Context, record *models.PaymentRecord) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("ошибка создания записи платежа: %w", err)
	}
	return nil
}

func (s *Store) InsertRecords(ctx context.Context, records []models.PaymentRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&records, 100).Error; err != nil {
		return fmt.Errorf("ошибка создания записей графика: %w", err)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, itemID uint) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if err := s.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("date ASC").Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	return records, nil
}

// SoftDelete помечает позицию удаленной, не трогая остальные поля
func (s *Store) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	return s.setDeleted(ctx, id, map[string]interface{}{"is_deleted": true, "deleted_at": at})
}

// Restore снимает пометку об удалении
func (s *Store) Restore(ctx context.Context, id uint) error {
	return s.setDeleted(ctx, id, map[string]interface{}{"is_deleted": false, "deleted_at": gorm.Expr("NULL")})
}

func (s *Store) setDeleted(ctx context.Context, id uint, columns map[string]interface{}) error {
	// UpdateColumns не вызывает хуки и не меняет updated_at
	res := s.db.WithContext(ctx).Model(&models.PaymentItem{}).Where("id = ?", id).UpdateColumns(columns)
	if res.Error != nil {
		return fmt.Errorf("ошибка обновления позиции %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Purge окончательно удаляет позицию вместе с записями
func (s *Store) Purge(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&models.PaymentRecord{}).Error; err != nil {
			return fmt.Errorf("ошибка удаления записей позиции %d: %w", id, err)
		}
		res := tx.Delete(&models.PaymentItem{}, id)
		if res.Error != nil {
			return fmt.Errorf("ошибка удаления позиции %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

// Методы для работы с журналом аудита

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID != 0 {
		return models.ErrAuditImmutable
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("ошибка записи аудита: %w", err)
	}
	return nil
}

func (s *Store) AuditHistory(ctx context.Context, table string, recordID uint) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	if err := s.db.WithContext(ctx).
		Where("table_name = ? AND record_id = ?", table, recordID).
		Order("created_at DESC").Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала аудита: %w", err)
	}
	return entries, nil
}

// Методы для прогноза

func (s *Store) ListOpenItems(ctx context.Context) ([]models.PaymentItem, error) {
	return s.ListItemsByScope(ctx, repository.ItemFilter{OnlyOpen: true})
}

func (s *Store) ListBudgetPlans(ctx context.Context) ([]models.BudgetPlan, error) {
	var plans []models.BudgetPlan
	if err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("budget_items.start_date ASC")
		}).
		Order("id ASC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки планов бюджета: %w", err)
	}
	return plans, nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]models.PaymentSchedule, error) {
	var schedules []models.PaymentSchedule
	if err := s.db.WithContext(ctx).
		Where("is_completed = ?", false).
		Order("scheduled_date ASC").Order("id ASC").
		Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки графика выплат: %w", err)
	}
	return schedules, nil
}

// ListPaidRecords возвращает фактические платежи с датой в [from, to)
func (s *Store) ListPaidRecords(ctx context.Context, from, to time.Time) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if err := s.db.WithContext(ctx).
		Where("kind <> ?", models.RecordKindPlanned).
		Where("date >= ? AND date < ?", from, to).
		Order("date ASC").Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки платежей: %w", err)
	}
	return records, nil
}

// CreateBudgetPlan сохраняет план бюджета вместе со статьями
func (s *Store) CreateBudgetPlan(ctx context.Context, plan *models.BudgetPlan) error {
	if err := s.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("ошибка создания плана бюджета: %w", err)
	}
	return nil
}

// CreateSchedule сохраняет запланированную выплату
func (s *Store) CreateSchedule(ctx context.Context, schedule *models.PaymentSchedule) error {
	if err := s.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("ошибка создания выплаты: %w", err)
	}
	return nil
}

// notFound переводит ошибку gorm в repository.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}
