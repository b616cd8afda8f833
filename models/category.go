package models

import (
	"errors"
	"fmt"
)

// ErrCategoryRequired возвращается, когда у позиции нет категории
var ErrCategoryRequired = errors.New("категория обязательна")

// Category - ссылка на категорию позиции: гибкая категория либо
// фиксированная категория с подвариантом. Реализации только в этом пакете.
type Category interface {
	isCategory()
	// ScopeKey - стабильный ключ области для блокировок
	ScopeKey() string
}

// FlexibleCategory - гибкая категория
type FlexibleCategory struct {
	ID uint `json:"id"`
}

// FixedCategory - фиксированная категория. SubOptionID = 0 означает всю категорию
// при выборке по области.
type FixedCategory struct {
	ID          uint `json:"id"`
	SubOptionID uint `json:"subOptionId"`
}

func (FlexibleCategory) isCategory() {}
func (FixedCategory) isCategory()    {}

func (c FlexibleCategory) ScopeKey() string {
	return fmt.Sprintf("flex:%d", c.ID)
}

func (c FixedCategory) ScopeKey() string {
	if c.SubOptionID == 0 {
		return fmt.Sprintf("fixed:%d", c.ID)
	}
	return fmt.Sprintf("fixed:%d:%d", c.ID, c.SubOptionID)
}

// categoryColumns раскладывает категорию на колонки таблицы
func categoryColumns(c Category) (flexID, fixedID, subOptionID *uint, err error) {
	switch v := c.(type) {
	case FlexibleCategory:
		if v.ID == 0 {
			return nil, nil, nil, ErrCategoryRequired
		}
		id := v.ID
		return &id, nil, nil, nil
	case FixedCategory:
		if v.ID == 0 || v.SubOptionID == 0 {
			return nil, nil, nil, errors.New("фиксированная категория требует id и подвариант")
		}
		id, sub := v.ID, v.SubOptionID
		return nil, &id, &sub, nil
	case nil:
		return nil, nil, nil, ErrCategoryRequired
	default:
		return nil, nil, nil, fmt.Errorf("неизвестный тип категории %T", c)
	}
}

// categoryFromColumns собирает категорию из колонок таблицы
func categoryFromColumns(flexID, fixedID, subOptionID *uint) (Category, error) {
	switch {
	case flexID != nil && fixedID == nil:
		return FlexibleCategory{ID: *flexID}, nil
	case flexID == nil && fixedID != nil && subOptionID != nil:
		return FixedCategory{ID: *fixedID, SubOptionID: *subOptionID}, nil
	case flexID == nil && fixedID == nil:
		return nil, ErrCategoryRequired
	default:
		return nil, errors.New("позиция ссылается одновременно на гибкую и фиксированную категорию")
	}
}
