package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/biglong-lab/woyu-money-sub004/middleware"
	"github.com/biglong-lab/woyu-money-sub004/services"
	"github.com/biglong-lab/woyu-money-sub004/utils"
	"github.com/gorilla/mux"
)

// PaymentController обрабатывает общие платежи, прогноз и журнал аудита
type PaymentController struct {
	allocationService *services.AllocationService
	forecastService   *services.ForecastService
	auditService      *services.AuditService
}

// NewPaymentController создает новый экземпляр PaymentController
func NewPaymentController(allocation *services.AllocationService, forecast *services.ForecastService, audit *services.AuditService) *PaymentController {
	return &PaymentController{
		allocationService: allocation,
		forecastService:   forecast,
		auditService:      audit,
	}
}

// PayScope распределяет общий платеж по позициям области
func (c *PaymentController) PayScope(w http.ResponseWriter, r *http.Request) {
	var dto services.PayScopeDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	dto.Actor = middleware.ActorFromContext(r.Context())

	result, err := c.allocationService.PayScope(r.Context(), dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetForecast возвращает прогноз: ?months=N&hide=budget,paid
func (c *PaymentController) GetForecast(w http.ResponseWriter, r *http.Request) {
	forecast, ok := c.loadForecast(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// ExportForecast выгружает прогноз в Excel с теми же параметрами, что и GetForecast
func (c *PaymentController) ExportForecast(w http.ResponseWriter, r *http.Request) {
	forecast, ok := c.loadForecast(w, r)
	if !ok {
		return
	}
	book, err := services.ForecastWorkbook(forecast)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer book.Close()

	fileName := fmt.Sprintf("forecast_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	if err := book.Write(w); err != nil {
		utils.LogError("Ошибка записи файла Excel: %v", err)
	}
}

// loadForecast разбирает months и hide и строит прогноз; при ошибке ответ уже отправлен
func (c *PaymentController) loadForecast(w http.ResponseWriter, r *http.Request) (*services.Forecast, bool) {
	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid months", http.StatusBadRequest)
			return nil, false
		}
		months = n
	}
	vis, err := services.ParseVisibility(r.URL.Query().Get("hide"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	forecast, err := c.forecastService.GetForecast(r.Context(), months, vis)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return forecast, true
}

// GetAuditHistory возвращает историю изменений записи, новые первыми
func (c *PaymentController) GetAuditHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}
	history, err := c.auditService.History(r.Context(), mux.Vars(r)["table"], id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// GetMetrics возвращает снимок метрик
func (c *PaymentController) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, utils.GetMetrics().GetMetricsSnapshot())
}
