package controllers

import (
	"net/http"

	"github.com/biglong-lab/woyu-money-sub004/middleware"
	"github.com/biglong-lab/woyu-money-sub004/services"
)

// ItemController обрабатывает запросы, связанные с позициями к оплате
type ItemController struct {
	itemService *services.ItemService
}

// NewItemController создает новый экземпляр ItemController
func NewItemController(itemService *services.ItemService) *ItemController {
	return &ItemController{itemService: itemService}
}

// CreateItem обрабатывает запрос на создание позиции с графиком
func (c *ItemController) CreateItem(w http.ResponseWriter, r *http.Request) {
	var dto services.CreateItemDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	dto.Actor = middleware.ActorFromContext(r.Context())

	item, err := c.itemService.CreateItem(r.Context(), dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// ListItems возвращает позиции по области из параметров запроса
func (c *ItemController) ListItems(w http.ResponseWriter, r *http.Request) {
	var q services.ItemQuery
	var ok bool
	if q.CategoryID, ok = queryUint(r, "categoryId"); !ok {
		http.Error(w, "Invalid categoryId", http.StatusBadRequest)
		return
	}
	if q.FixedCategoryID, ok = queryUint(r, "fixedCategoryId"); !ok {
		http.Error(w, "Invalid fixedCategoryId", http.StatusBadRequest)
		return
	}
	if q.FixedSubOptionID, ok = queryUint(r, "fixedSubOptionId"); !ok {
		http.Error(w, "Invalid fixedSubOptionId", http.StatusBadRequest)
		return
	}
	if q.ProjectID, ok = queryUint(r, "projectId"); !ok {
		http.Error(w, "Invalid projectId", http.StatusBadRequest)
		return
	}
	q.IncludeDeleted = r.URL.Query().Get("includeDeleted") == "true"

	items, err := c.itemService.ListItems(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetItem возвращает позицию по id
func (c *ItemController) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	item, err := c.itemService.GetItem(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateItem обрабатывает изменение редактируемых полей
func (c *ItemController) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	var dto services.UpdateItemDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	dto.Actor = middleware.ActorFromContext(r.Context())

	item, err := c.itemService.UpdateItem(r.Context(), id, dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem помечает позицию удаленной
func (c *ItemController) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	item, err := c.itemService.SoftDelete(r.Context(), id, middleware.ActorFromContext(r.Context()), r.URL.Query().Get("reason"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// RestoreItem возвращает удаленную позицию
func (c *ItemController) RestoreItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	item, err := c.itemService.Restore(r.Context(), id, middleware.ActorFromContext(r.Context()), r.URL.Query().Get("reason"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// PurgeItem окончательно удаляет позицию
func (c *ItemController) PurgeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	if err := c.itemService.Purge(r.Context(), id, middleware.ActorFromContext(r.Context()), r.URL.Query().Get("reason")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRecords возвращает график и платежи позиции
func (c *ItemController) ListRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	records, err := c.itemService.ListRecords(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// RecordPayment обрабатывает ручной платеж по позиции
func (c *ItemController) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid item ID", http.StatusBadRequest)
		return
	}
	var dto services.ManualPaymentDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	dto.Actor = middleware.ActorFromContext(r.Context())

	record, err := c.itemService.RecordPayment(r.Context(), id, dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}
