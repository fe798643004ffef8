package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"lesson-booking/internal/services"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create - Place an order for one or more lessons; all line items book
// or none do.
func (h *OrderHandler) Create(e *core.RequestEvent) error {
	var req struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Lessons []struct {
			LessonID string `json:"lesson_id"`
			Seats    int    `json:"seats"`
		} `json:"lessons"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Email == "" {
		return apis.NewBadRequestError("Purchaser email is required", nil)
	}

	items := make([]services.LineItem, 0, len(req.Lessons))
	for _, item := range req.Lessons {
		items = append(items, services.LineItem{LessonID: item.LessonID, Seats: item.Seats})
	}

	order, err := h.orders.PlaceOrder(e.Request.Context(), services.PlaceOrderInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Lessons: items,
	})
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) Get(e *core.RequestEvent) error {
	orderID := e.Request.PathValue("orderId")
	if orderID == "" {
		return apis.NewBadRequestError("Order ID is required", nil)
	}

	order, err := h.orders.Get(e.Request.Context(), orderID)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, order)
}

func (h *OrderHandler) List(e *core.RequestEvent) error {
	orders, err := h.orders.List(e.Request.Context())
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"orders": orders, "total": len(orders)})
}
