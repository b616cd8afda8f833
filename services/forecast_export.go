package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const forecastSheet = "Прогноз"

var forecastHeaders = []string{
	"Месяц", "Бюджет", "График", "Оценка", "Ежемесячные", "Оплачено в срок", "Оплачено с опозданием", "Итого",
}

// ForecastWorkbook выгружает прогноз в книгу Excel: строка на месяц и сводка под таблицей
func ForecastWorkbook(forecast *Forecast) (*excelize.File, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(forecastSheet); err != nil {
		return nil, fmt.Errorf("ошибка создания листа: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("ошибка удаления листа по умолчанию: %w", err)
	}
	index, err := f.GetSheetIndex(forecastSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	for i, header := range forecastHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(forecastSheet, cell, header); err != nil {
			return nil, err
		}
	}

	for i, m := range forecast.Months {
		row := i + 2
		values := []interface{}{
			m.Month,
			m.Budget.InexactFloat64(),
			m.Scheduled.InexactFloat64(),
			m.Estimated.InexactFloat64(),
			m.Recurring.InexactFloat64(),
			m.PaidCurrent.InexactFloat64(),
			m.PaidCarryOver.InexactFloat64(),
			m.Total.InexactFloat64(),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(forecastSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	s := forecast.Summary
	row := len(forecast.Months) + 3
	summary := [][2]interface{}{
		{"Всего", s.GrandTotal.InexactFloat64()},
		{"В среднем за месяц", s.MonthlyAverage.InexactFloat64()},
		{"Пик", s.PeakMonth},
		{"Минимум", s.TroughMonth},
		{"Изменение", s.TrendAmount.InexactFloat64()},
		{"Изменение, %", s.TrendPercent.InexactFloat64()},
	}
	for i, pair := range summary {
		if err := f.SetCellValue(forecastSheet, fmt.Sprintf("A%d", row+i), pair[0]); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(forecastSheet, fmt.Sprintf("B%d", row+i), pair[1]); err != nil {
			return nil, err
		}
	}
	return f, nil
}
