package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/lock"
	"github.com/fekuna/omnipos-retail-loader/internal/model"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// InventoryHandler exposes inventory reads and threshold changes over HTTP.
// Quantities only move through recorded sales, returns and deliveries, so
// there is no endpoint that adjusts them directly.
type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/stores/{store_id:[0-9]+}/inventory/{sku}", h.GetInventory).Methods(http.MethodGet)
	router.HandleFunc("/stores/{store_id:[0-9]+}/inventory/{sku}/threshold", h.SetReorderThreshold).Methods(http.MethodPut)
	router.HandleFunc("/inventory/restock-needed", h.ListRestockNeeded).Methods(http.MethodGet)
	router.HandleFunc("/inventory/movements", h.ListMovements).Methods(http.MethodGet)
}

type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

type SetReorderThresholdRequest struct {
	ReorderThreshold *int64 `json:"reorder_threshold"`
}

func (h *InventoryHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	storeID, sku := storeAndSKU(r)

	inv, err := h.uc.GetInventory(r.Context(), storeID, sku)
	if err != nil {
		h.respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) SetReorderThreshold(w http.ResponseWriter, r *http.Request) {
	storeID, sku := storeAndSKU(r)

	var req SetReorderThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReorderThreshold == nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	inv, err := h.uc.SetReorderThreshold(r.Context(), storeID, sku, *req.ReorderThreshold)
	if err != nil {
		h.respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) ListRestockNeeded(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	storeID, err := optionalInt(q.Get("store_id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid store_id")
		return
	}

	items, total, err := h.uc.ListRestockNeeded(r.Context(), storeID, atoi(q.Get("page")), atoi(q.Get("page_size")))
	if err != nil {
		h.respondWithErr(w, err)
		return
	}
	if items == nil {
		items = []model.Inventory{}
	}
	respondWithJSON(w, http.StatusOK, ListResponse{Items: items, Total: total})
}

func (h *InventoryHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	storeID, err := optionalInt(q.Get("store_id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid store_id")
		return
	}

	filters := &dto.MovementFilters{
		StoreID:      storeID,
		SKU:          q.Get("sku"),
		MovementType: q.Get("movement_type"),
		ReferenceID:  q.Get("reference_id"),
		Page:         atoi(q.Get("page")),
		PageSize:     atoi(q.Get("page_size")),
	}
	if filters.StartDate, err = optionalTime(q.Get("start_date")); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	if filters.EndDate, err = optionalTime(q.Get("end_date")); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid end_date")
		return
	}

	mvs, total, err := h.uc.ListMovements(r.Context(), filters)
	if err != nil {
		h.respondWithErr(w, err)
		return
	}
	if mvs == nil {
		mvs = []model.InventoryMovement{}
	}
	respondWithJSON(w, http.StatusOK, ListResponse{Items: mvs, Total: total})
}

func (h *InventoryHandler) respondWithErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrInventoryNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, inventory.ErrInvalidQuantity):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lock.ErrLockTimeout):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("inventory request failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func storeAndSKU(r *http.Request) (int64, string) {
	vars := mux.Vars(r)
	// the route pattern guarantees digits
	storeID, _ := strconv.ParseInt(vars["store_id"], 10, 64)
	return storeID, vars["sku"]
}

func optionalInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("unrecognised time")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
