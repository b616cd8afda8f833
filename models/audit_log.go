package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditAction представляет вид изменения в журнале аудита
type AuditAction string

const (
	AuditActionInsert          AuditAction = "INSERT"
	AuditActionUpdate          AuditAction = "UPDATE"
	AuditActionDelete          AuditAction = "DELETE"
	AuditActionRestore         AuditAction = "RESTORE"
	AuditActionPermanentDelete AuditAction = "PERMANENT_DELETE"
)

// ErrAuditImmutable возвращается при попытке изменить или удалить запись аудита
var ErrAuditImmutable = errors.New("записи журнала аудита неизменяемы")

// AuditLogEntry - неизменяемая запись журнала аудита.
// Внешних ключей нет: записи переживают окончательное удаление позиции.
type AuditLogEntry struct {
	ID            uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	Table         string            `gorm:"column:table_name;size:64;not null;index:idx_audit_record" json:"tableName"`
	RecordID      uint              `gorm:"column:record_id;not null;index:idx_audit_record" json:"recordId"`
	Action        AuditAction       `gorm:"column:action;type:varchar(20);not null" json:"action"`
	OldValues     datatypes.JSONMap `gorm:"column:old_values" json:"oldValues"`
	NewValues     datatypes.JSONMap `gorm:"column:new_values" json:"newValues"`
	ChangedFields datatypes.JSON    `gorm:"column:changed_fields" json:"changedFields"`
	Actor         string            `gorm:"column:actor;size:100;not null" json:"actor"`
	Reason        string            `gorm:"column:reason;size:200" json:"reason"`
	CreatedAt     time.Time         `gorm:"column:created_at;index" json:"createdAt"`
}

// TableName возвращает имя таблицы для модели AuditLogEntry
func (AuditLogEntry) TableName() string {
	return "audit_log"
}

// SetChangedFields сохраняет список измененных полей
func (e *AuditLogEntry) SetChangedFields(fields []string) error {
	if fields == nil {
		fields = []string{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	e.ChangedFields = datatypes.JSON(raw)
	return nil
}

// Fields возвращает список измененных полей
func (e *AuditLogEntry) Fields() []string {
	var fields []string
	if len(e.ChangedFields) == 0 {
		return fields
	}
	if err := json.Unmarshal(e.ChangedFields, &fields); err != nil {
		return nil
	}
	return fields
}

// BeforeUpdate хук запрещает изменение записей аудита
func (e *AuditLogEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// BeforeDelete хук запрещает удаление записей аудита
func (e *AuditLogEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
