package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealtime/api/internal/enum"
	"github.com/mealtime/api/internal/model"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, restaurantID uuid.UUID) (*model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, state string) ([]model.Order, error)
	Transition(ctx context.Context, id uuid.UUID, target string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	SetOrderInfos(ctx context.Context, id uuid.UUID, patch model.OrderInfosPatch) (*model.Order, error)
	CreatePosition(ctx context.Context, orderID uuid.UUID, patch model.OrderPositionPatch) (*model.OrderPosition, error)
	UpdatePosition(ctx context.Context, orderID, positionID uuid.UUID, patch model.OrderPositionPatch) (*model.OrderPosition, error)
	DeletePosition(ctx context.Context, orderID, positionID uuid.UUID) error
}

// Broadcaster pushes order-updated events to connected watchers.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastOrderUpdated(orderID, version uuid.UUID)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
	hub Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/infos", h.SetInfos)

	r.Post("/{id}/open", h.transition(enum.OrderStateOpen))
	r.Post("/{id}/lock", h.transition(enum.OrderStateLocked))
	r.Post("/{id}/ordered", h.transition(enum.OrderStateOrdered))
	r.Post("/{id}/delivered", h.transition(enum.OrderStateDelivered))
	r.Post("/{id}/archive", h.transition(enum.OrderStateArchived))
	r.Post("/{id}/revoke", h.transition(enum.OrderStateRevoked))

	r.Post("/{id}/positions", h.CreatePosition)
	r.Patch("/{id}/positions/{pid}", h.UpdatePosition)
	r.Delete("/{id}/positions/{pid}", h.DeletePosition)
}

// --- Request / Response types ---

type createOrderRequest struct {
	RestaurantID string `json:"restaurant_id"`
}

type orderInfosRequest struct {
	Orderer             string `json:"orderer"`
	Fetcher             string `json:"fetcher"`
	MoneyCollectionType string `json:"money_collection_type"`
	MoneyCollector      string `json:"money_collector"`
	OrderClosingTime    string `json:"order_closing_time"`
	OrderText           string `json:"order_text"`
	MaximumMealCount    *int   `json:"maximum_meal_count"`
}

type positionRequest struct {
	Name  *string `json:"name"`
	Meal  *string `json:"meal"`
	Price *string `json:"price"`
	Paid  *string `json:"paid"`
	Tip   *string `json:"tip"`
}

type orderResponse struct {
	ID           uuid.UUID          `json:"id"`
	RestaurantID uuid.UUID          `json:"restaurant_id"`
	Version      uuid.UUID          `json:"version"`
	State        string             `json:"state"`
	Infos        orderInfosResponse `json:"infos"`
	Positions    []positionResponse `json:"positions"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

type orderInfosResponse struct {
	Orderer             string `json:"orderer"`
	Fetcher             string `json:"fetcher"`
	MoneyCollectionType string `json:"money_collection_type"`
	MoneyCollector      string `json:"money_collector"`
	OrderClosingTime    string `json:"order_closing_time"`
	OrderText           string `json:"order_text"`
	MaximumMealCount    *int   `json:"maximum_meal_count"`
}

type positionResponse struct {
	ID     uuid.UUID `json:"id"`
	Index  int       `json:"index"`
	Name   string    `json:"name"`
	Meal   string    `json:"meal"`
	Price  string    `json:"price"`
	Paid   *string   `json:"paid"`
	Tip    *string   `json:"tip"`
	IsPaid bool      `json:"is_paid"`
	Change *string   `json:"change"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		Version:      o.Version,
		State:        o.State,
		Infos: orderInfosResponse{
			Orderer:             o.Infos.Orderer,
			Fetcher:             o.Infos.Fetcher,
			MoneyCollectionType: o.Infos.MoneyCollectionType,
			MoneyCollector:      o.Infos.MoneyCollector,
			OrderClosingTime:    o.Infos.OrderClosingTime,
			OrderText:           o.Infos.OrderText,
			MaximumMealCount:    o.Infos.MaximumMealCount,
		},
		Positions: make([]positionResponse, len(o.Positions)),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for i, p := range o.Positions {
		resp.Positions[i] = toPositionResponse(p)
	}
	return resp
}

func toPositionResponse(p model.OrderPosition) positionResponse {
	return positionResponse{
		ID:     p.ID,
		Index:  p.Index,
		Name:   p.Name,
		Meal:   p.Meal,
		Price:  p.Price.String(),
		Paid:   decimalPtrString(p.Paid),
		Tip:    decimalPtrString(p.Tip),
		IsPaid: p.IsPaid(),
		Change: decimalPtrString(p.Change()),
	}
}

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	restaurantID, err := uuid.Parse(req.RestaurantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), restaurantID)
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// List handles GET /orders. An optional ?state= filters by lifecycle state.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}

	resp := orderListResponse{Orders: make([]orderResponse, len(orders))}
	for i := range orders {
		resp.Orders[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Delete handles DELETE /orders/{id}. Empty unstarted orders vanish;
// anything else is revoked and returned.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}
	order, err := h.svc.DeleteOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "delete order", err)
		return
	}
	if order == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.hub.BroadcastOrderUpdated(order.ID, order.Version)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// SetInfos handles PATCH /orders/{id}/infos.
func (h *OrderHandler) SetInfos(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}
	var req orderInfosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.SetOrderInfos(r.Context(), orderID, model.OrderInfosPatch{
		Orderer:             req.Orderer,
		Fetcher:             req.Fetcher,
		MoneyCollectionType: req.MoneyCollectionType,
		MoneyCollector:      req.MoneyCollector,
		OrderClosingTime:    req.OrderClosingTime,
		OrderText:           req.OrderText,
		MaximumMealCount:    req.MaximumMealCount,
	})
	if err != nil {
		writeServiceError(w, "set order infos", err)
		return
	}
	h.hub.BroadcastOrderUpdated(order.ID, order.Version)
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// transition builds the handler for one POST /orders/{id}/<verb> endpoint.
func (h *OrderHandler) transition(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathID(w, r, "id", "order")
		if !ok {
			return
		}
		order, err := h.svc.Transition(r.Context(), orderID, target)
		if err != nil {
			writeServiceError(w, "transition order", err)
			return
		}
		h.hub.BroadcastOrderUpdated(order.ID, order.Version)
		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

// CreatePosition handles POST /orders/{id}/positions.
func (h *OrderHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}
	patch, ok := decodePositionPatch(w, r)
	if !ok {
		return
	}

	position, err := h.svc.CreatePosition(r.Context(), orderID, patch)
	if err != nil {
		writeServiceError(w, "create position", err)
		return
	}
	h.broadcastOrder(r.Context(), orderID)
	writeJSON(w, http.StatusCreated, toPositionResponse(*position))
}

// UpdatePosition handles PATCH /orders/{id}/positions/{pid}.
func (h *OrderHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}
	positionID, ok := pathID(w, r, "pid", "position")
	if !ok {
		return
	}
	patch, ok := decodePositionPatch(w, r)
	if !ok {
		return
	}

	position, err := h.svc.UpdatePosition(r.Context(), orderID, positionID, patch)
	if err != nil {
		writeServiceError(w, "update position", err)
		return
	}
	h.broadcastOrder(r.Context(), orderID)
	writeJSON(w, http.StatusOK, toPositionResponse(*position))
}

// DeletePosition handles DELETE /orders/{id}/positions/{pid}.
func (h *OrderHandler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}
	positionID, ok := pathID(w, r, "pid", "position")
	if !ok {
		return
	}

	if err := h.svc.DeletePosition(r.Context(), orderID, positionID); err != nil {
		writeServiceError(w, "delete position", err)
		return
	}
	h.broadcastOrder(r.Context(), orderID)
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func pathID(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

func decodePositionPatch(w http.ResponseWriter, r *http.Request) (model.OrderPositionPatch, bool) {
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return model.OrderPositionPatch{}, false
	}

	patch := model.OrderPositionPatch{Name: req.Name, Meal: req.Meal}
	var ok bool
	if patch.Price, ok = parseAmountField(w, req.Price, "price"); !ok {
		return model.OrderPositionPatch{}, false
	}
	if patch.Paid, ok = parseAmountField(w, req.Paid, "paid"); !ok {
		return model.OrderPositionPatch{}, false
	}
	if patch.Tip, ok = parseAmountField(w, req.Tip, "tip"); !ok {
		return model.OrderPositionPatch{}, false
	}
	return patch, true
}

func parseAmountField(w http.ResponseWriter, s *string, label string) (*decimal.Decimal, bool) {
	if s == nil {
		return nil, true
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": label + " is not a valid amount"})
		return nil, false
	}
	return &d, true
}

// broadcastOrder looks the aggregate up again to get the bumped version.
// A failed lookup only costs the push; the mutation already committed.
func (h *OrderHandler) broadcastOrder(ctx context.Context, orderID uuid.UUID) {
	order, err := h.svc.GetOrder(ctx, orderID)
	if err != nil {
		return
	}
	h.hub.BroadcastOrderUpdated(order.ID, order.Version)
}
