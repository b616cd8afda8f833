package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces - число знаков после запятой для всех сумм
const MoneyPlaces = 2

// Tolerance - одна единица округления (0.01)
var Tolerance = decimal.New(1, -MoneyPlaces)

// RoundMoney округляет сумму до двух знаков
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// HasMoneyPrecision сообщает, что у суммы не больше двух знаков после запятой
func HasMoneyPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}

// MinDecimal возвращает меньшее из двух значений
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Date возвращает полночь UTC для указанной даты
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOnly отбрасывает время суток и часовой пояс
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// MonthStart возвращает первое число месяца даты
func MonthStart(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1)
}

// SameMonth сообщает, что обе даты в одном календарном месяце
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthsBetween считает календарные месяцы от start до end включительно.
// 2026-01-01 .. 2026-04-01 дает 4.
func MonthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
}

// AddMonths сдвигает дату на n месяцев, прижимая день к длине месяца
// (31 января + 1 месяц = 28 или 29 февраля).
func AddMonths(t time.Time, n int) time.Time {
	first := Date(t.Year(), t.Month(), 1).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return Date(first.Year(), first.Month(), day)
}
