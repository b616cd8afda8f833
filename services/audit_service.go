package services

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/biglong-lab/woyu-money-sub004/repository"
)

// AuditTableItems - таблица позиций в журнале аудита
const AuditTableItems = "payment_items"

// SystemActor - исполнитель фоновых изменений
const SystemActor = "system"

// AuditEntry описывает одно изменение для журнала
type AuditEntry struct {
	Table         string
	RecordID      uint
	Action        models.AuditAction
	OldValues     map[string]interface{}
	NewValues     map[string]interface{}
	ChangedFields []string // nil - вычисляются по OldValues и NewValues
	Actor         string
	Reason        string
}

// AuditService ведет журнал аудита
type AuditService struct {
	store repository.AuditStore
}

// NewAuditService создает новый экземпляр AuditService
func NewAuditService(store repository.AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Record добавляет запись в журнал через tx, в той же транзакции, что и само изменение
func (s *AuditService) Record(ctx context.Context, tx repository.AuditStore, entry AuditEntry) error {
	if entry.Actor == "" {
		entry.Actor = SystemActor
	}
	fields := entry.ChangedFields
	if fields == nil {
		fields = Diff(entry.OldValues, entry.NewValues)
	}

	log := &models.AuditLogEntry{
		Table:     entry.Table,
		RecordID:  entry.RecordID,
		Action:    entry.Action,
		OldValues: entry.OldValues,
		NewValues: entry.NewValues,
		Actor:     entry.Actor,
		Reason:    entry.Reason,
	}
	if err := log.SetChangedFields(fields); err != nil {
		return fmt.Errorf("ошибка сериализации измененных полей: %w", err)
	}
	return tx.AppendAudit(ctx, log)
}

// History возвращает историю записи, новые изменения первыми
func (s *AuditService) History(ctx context.Context, table string, recordID uint) ([]models.AuditLogEntry, error) {
	if table == "" {
		return nil, newValidationError("поле table обязательно")
	}
	return s.store.AuditHistory(ctx, table, recordID)
}

// Diff возвращает отсортированный список ключей, значения которых различаются
func Diff(oldValues, newValues map[string]interface{}) []string {
	keys := make(map[string]struct{}, len(oldValues)+len(newValues))
	for k := range oldValues {
		keys[k] = struct{}{}
	}
	for k := range newValues {
		keys[k] = struct{}{}
	}

	changed := []string{}
	for k := range keys {
		oldValue, inOld := oldValues[k]
		newValue, inNew := newValues[k]
		if inOld != inNew || !reflect.DeepEqual(oldValue, newValue) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
