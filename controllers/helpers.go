package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/biglong-lab/woyu-money-sub004/services"
	"github.com/biglong-lab/woyu-money-sub004/utils"
	"github.com/gorilla/mux"
)

// writeJSON отправляет ответ в формате JSON
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		utils.LogError("Ошибка кодирования ответа: %v", err)
	}
}

// writeServiceError переводит ошибку сервиса в HTTP статус
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case services.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case services.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		utils.LogError("Внутренняя ошибка: %v", err)
		utils.GetMetrics().RecordError("internal")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// pathID читает числовой id из пути
func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// queryUint читает необязательный числовой параметр запроса
func queryUint(r *http.Request, name string) (*uint, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	u := uint(v)
	return &u, true
}

// decodeBody разбирает тело запроса в dto
func decodeBody(w http.ResponseWriter, r *http.Request, dto interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
