package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/models"
	"github.com/biglong-lab/woyu-money-sub004/repository"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidationError - некорректный запрос, ничего не сохранено
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "ошибка валидации: " + strings.Join(e.Problems, "; ")
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// NotFoundError - сущность с указанным id не найдена
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d не найдена", e.Entity, e.ID)
}

// IsValidation сообщает, что ошибка вызвана некорректным запросом
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound сообщает, что запрошенная сущность не существует
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// itemNotFound переводит repository.ErrNotFound в NotFoundError позиции
func itemNotFound(id uint, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: "позиция", ID: id}
	}
	return err
}

// newValidator создает валидатор, понимающий decimal.Decimal
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateRequest валидирует DTO и возвращает ValidationError с сообщениями по полям
func validateRequest(v *validator.Validate, dto interface{}) error {
	err := v.Struct(dto)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
		case "gt":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше "+e.Param())
		case "oneof":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
		case "datetime":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть датой в формате ГГГГ-ММ-ДД")
		case "max":
			errorMessages = append(errorMessages, "поле "+e.Field()+" длиннее "+e.Param()+" символов")
		default:
			errorMessages = append(errorMessages, "поле "+e.Field()+" некорректно")
		}
	}
	return &ValidationError{Problems: errorMessages}
}

// parseDate разбирает дату ГГГГ-ММ-ДД
func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, newValidationError("поле %s должно быть датой в формате ГГГГ-ММ-ДД", field)
	}
	return t, nil
}

// checkMoney проверяет, что сумма положительна и не точнее копейки
func checkMoney(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return newValidationError("поле %s должно быть больше 0", field)
	}
	if !models.HasMoneyPrecision(amount) {
		return newValidationError("поле %s допускает не больше %d знаков после запятой", field, models.MoneyPlaces)
	}
	return nil
}

// categoryFromIDs собирает категорию из идентификаторов запроса.
// Ровно одна из категорий должна быть задана.
func categoryFromIDs(categoryID, fixedCategoryID, fixedSubOptionID *uint) (models.Category, error) {
	switch {
	case categoryID != nil && fixedCategoryID == nil:
		if *categoryID == 0 {
			return nil, newValidationError("поле CategoryID должно быть больше 0")
		}
		return models.FlexibleCategory{ID: *categoryID}, nil
	case categoryID == nil && fixedCategoryID != nil:
		if *fixedCategoryID == 0 || fixedSubOptionID == nil || *fixedSubOptionID == 0 {
			return nil, newValidationError("фиксированная категория требует FixedCategoryID и FixedSubOptionID")
		}
		return models.FixedCategory{ID: *fixedCategoryID, SubOptionID: *fixedSubOptionID}, nil
	case categoryID == nil && fixedCategoryID == nil:
		return nil, newValidationError("нужно указать CategoryID или FixedCategoryID")
	default:
		return nil, newValidationError("нельзя указывать одновременно CategoryID и FixedCategoryID")
	}
}
