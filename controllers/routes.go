package controllers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes регистрирует маршруты API на маршрутизаторе router
func RegisterRoutes(router *mux.Router, items *ItemController, payments *PaymentController) {
	// Маршруты для работы с позициями
	router.HandleFunc("/items", items.CreateItem).Methods(http.MethodPost)
	router.HandleFunc("/items", items.ListItems).Methods(http.MethodGet)
	router.HandleFunc("/items/{id}", items.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/items/{id}", items.UpdateItem).Methods(http.MethodPut)
	router.HandleFunc("/items/{id}", items.DeleteItem).Methods(http.MethodDelete)
	router.HandleFunc("/items/{id}/restore", items.RestoreItem).Methods(http.MethodPost)
	router.HandleFunc("/items/{id}/permanent", items.PurgeItem).Methods(http.MethodDelete)
	router.HandleFunc("/items/{id}/records", items.ListRecords).Methods(http.MethodGet)
	router.HandleFunc("/items/{id}/payments", items.RecordPayment).Methods(http.MethodPost)

	// Общие платежи, прогноз и аудит
	router.HandleFunc("/payments/unified", payments.PayScope).Methods(http.MethodPost)
	router.HandleFunc("/forecast", payments.GetForecast).Methods(http.MethodGet)
	router.HandleFunc("/forecast/export", payments.ExportForecast).Methods(http.MethodGet)
	router.HandleFunc("/audit/{table}/{id}", payments.GetAuditHistory).Methods(http.MethodGet)
	router.HandleFunc("/metrics", payments.GetMetrics).Methods(http.MethodGet)
}
