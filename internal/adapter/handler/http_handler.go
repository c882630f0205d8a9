package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"storecore/internal/core/domain"
	"storecore/internal/core/service"
)

type HTTPHandler struct {
	reservations *service.ReservationService
	inventory    *service.InventoryService
	orders       *service.OrderService
}

func NewHTTPHandler(reservations *service.ReservationService, inventory *service.InventoryService, orders *service.OrderService) *HTTPHandler {
	return &HTTPHandler{reservations: reservations, inventory: inventory, orders: orders}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/reserve", h.Reserve)
	mux.HandleFunc("/api/release", h.Release)
	mux.HandleFunc("/api/availability", h.Availability)
	mux.HandleFunc("/api/checkout", h.Checkout)
	mux.HandleFunc("/api/orders", h.GetOrder)
	mux.HandleFunc("/api/orders/cancel", h.CancelOrder)
	mux.HandleFunc("/api/stock/adjust", h.AdjustStock)
	mux.HandleFunc("/api/stock/status", h.StockStatus)
	mux.HandleFunc("/api/stock/history", h.StockHistory)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	HeldBy  string `json:"held_by,omitempty"`
}

type ReserveRequest struct {
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

type ReserveResponse struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id"`
}

func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if req.ProductID == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing required fields"})
		return
	}

	id, err := h.reservations.Reserve(r.Context(), req.ProductID, req.UserID, req.UserName, req.UserEmail)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReserveResponse{Success: true, ReservationID: id})
}

type ReleaseRequest struct {
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
}

func (h *HTTPHandler) Release(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if req.ProductID == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing required fields"})
		return
	}

	if err := h.reservations.Release(r.Context(), req.ProductID, req.UserID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type AvailabilityResponse struct {
	Available  bool   `json:"available"`
	HolderName string `json:"holder_name,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	ExpiresIn  string `json:"expires_in,omitempty"`
}

func (h *HTTPHandler) Availability(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "product_id is required"})
		return
	}

	av, err := h.reservations.CheckAvailability(r.Context(), productID, r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := AvailabilityResponse{Available: av.Available}
	if !av.Available {
		resp.HolderName = av.HolderName
		resp.ExpiresAt = av.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresIn = av.ExpiresIn
	}
	writeJSON(w, http.StatusOK, resp)
}

type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price,omitempty"`
}

type CheckoutRequest struct {
	RequestID       string         `json:"request_id"`
	UserID          string         `json:"user_id"`
	Items           []CheckoutItem `json:"items"`
	ShippingAddress string         `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
}

type CheckoutResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if req.RequestID == "" || req.UserID == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing required fields"})
		return
	}

	items := make([]service.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid order item"})
			return
		}
		items = append(items, service.CartItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	orderID, err := h.orders.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		RequestID:       req.RequestID,
		UserID:          req.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckoutResponse{Success: true, OrderID: orderID})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "id is required"})
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "order_id is required"})
		return
	}

	if err := h.orders.CancelOrder(r.Context(), req.OrderID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type AdjustStockRequest struct {
	ProductID string `json:"product_id"`
	Op        string `json:"op"` // increase | decrease | set
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
	ActorID   string `json:"actor_id"`
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AdjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if req.ProductID == "" || req.ActorID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing required fields"})
		return
	}

	var err error
	switch req.Op {
	case "increase":
		err = h.inventory.Increase(r.Context(), req.ProductID, req.Quantity, req.Reason, req.ActorID)
	case "decrease":
		err = h.inventory.Decrease(r.Context(), req.ProductID, req.Quantity, req.Reason, req.ActorID)
	case "set":
		err = h.inventory.SetAbsolute(r.Context(), req.ProductID, req.Quantity, req.Reason, req.ActorID)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "op must be increase, decrease, or set"})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type StockStatusResponse struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Status    string `json:"status"`
}

func (h *HTTPHandler) StockStatus(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "product_id is required"})
		return
	}

	stock, status, err := h.inventory.Status(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockStatusResponse{ProductID: productID, Stock: stock, Status: string(status)})
}

func (h *HTTPHandler) StockHistory(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "product_id is required"})
		return
	}

	history, err := h.inventory.History(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if history == nil {
		history = []domain.StockHistory{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var claimed *service.AlreadyClaimedError
	switch {
	case errors.As(err, &claimed):
		writeJSON(w, http.StatusConflict, errorResponse{Message: claimed.Error(), HeldBy: claimed.HolderName})
	case errors.Is(err, service.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "duplicate request"})
	case errors.Is(err, service.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "reservation held by another shopper"})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusGone, errorResponse{Message: "not enough stock"})
	case errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "product not found"})
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "order not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
