package controller

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmoreland/maplecart-backend/internal/app/model"
	"github.com/tmoreland/maplecart-backend/internal/app/service"
	"github.com/tmoreland/maplecart-backend/internal/errors"
	"github.com/tmoreland/maplecart-backend/internal/middleware"
	"github.com/xuri/excelize/v2"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

type OrderItemRequest struct {
	ProductID uint  `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
	ColorID   *uint `json:"color_id"`
	SizeID    *uint `json:"size_id"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string             `json:"shipping_address" binding:"required"`
	TotalAmount     float64            `json:"total_amount"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateOrder places an order from the submitted items
// POST /api/v1/orders
func (ctrl *OrderController) CreateOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid create order request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		errors.RespondWithValidationError(c, err.Error())
		return
	}

	input := service.CreateOrderInput{
		ShippingAddress: req.ShippingAddress,
		TotalAmount:     req.TotalAmount,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			ColorID:   item.ColorID,
			SizeID:    item.SizeID,
		})
	}

	order, err := ctrl.orderService.CreateOrder(userID, input)
	if err != nil {
		ctrl.respondOrderError(c, err, userID)
		return
	}

	log.Info("Order created", map[string]interface{}{
		"user_id":  userID,
		"order_id": order.ID,
		"total":    order.TotalAmount,
	})

	c.JSON(http.StatusCreated, gin.H{
		"order": order,
	})
}

// GetOrders lists the authenticated user's orders
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	orders, err := ctrl.orderService.GetUserOrders(userID)
	if err != nil {
		log.Error("Failed to fetch orders", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Failed to fetch orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder returns one of the user's orders with its items
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrderByID(userID, id)
	if err != nil {
		ctrl.respondOrderError(c, err, userID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}

// GetAllOrders lists every order in the system
// GET /api/v1/admin/orders
func (ctrl *OrderController) GetAllOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orders, err := ctrl.orderService.GetAllOrders()
	if err != nil {
		log.Error("Failed to fetch all orders", err, nil)
		errors.InternalError(c, "Failed to fetch orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// UpdateOrderStatus sets an order's fulfillment status
// PATCH /api/v1/admin/orders/:id/status
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.RespondWithValidationError(c, err.Error())
		return
	}

	err := ctrl.orderService.UpdateOrderStatus(id, model.OrderStatus(req.Status))
	if err != nil {
		if stderrors.Is(err, service.ErrInvalidOrderStatus) {
			errors.RespondWithError(c, http.StatusBadRequest, errors.OrderInvalidStatus, "Unknown order status")
			return
		}
		if stderrors.Is(err, service.ErrOrderNotFound) {
			errors.RespondWithError(c, http.StatusNotFound, errors.OrderNotFound, "Order not found")
			return
		}
		log.Error("Failed to update order status", err, map[string]interface{}{
			"order_id": id,
		})
		errors.InternalError(c, "Failed to update order status")
		return
	}

	log.Info("Order status updated", map[string]interface{}{
		"order_id": id,
		"status":   req.Status,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
	})
}

// DeleteOrder removes an order and its items
// DELETE /api/v1/admin/orders/:id
func (ctrl *OrderController) DeleteOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	deleted, err := ctrl.orderService.DeleteOrder(id)
	if err != nil {
		log.Error("Failed to delete order", err, map[string]interface{}{
			"order_id": id,
		})
		errors.InternalError(c, "Failed to delete order")
		return
	}
	if !deleted {
		errors.RespondWithError(c, http.StatusNotFound, errors.OrderNotFound, "Order not found")
		return
	}

	log.Info("Order deleted", map[string]interface{}{
		"order_id": id,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Order deleted successfully",
	})
}

// ExportOrders streams all orders as an XLSX workbook
// GET /api/v1/admin/orders/export
func (ctrl *OrderController) ExportOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orders, err := ctrl.orderService.GetAllOrders()
	if err != nil {
		log.Error("Failed to fetch orders for export", err, nil)
		errors.InternalError(c, "Failed to export orders")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"Order ID", "User", "Status", "Payment Status", "Total", "Items", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, order := range orders {
		values := []interface{}{
			order.ID,
			order.User.Email,
			string(order.Status),
			string(order.PaymentStatus),
			order.TotalAmount,
			len(order.OrderItems),
			order.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := f.Write(c.Writer); err != nil {
		log.Error("Failed to write XLSX export", err, nil)
		return
	}

	log.Info("Orders exported", map[string]interface{}{
		"count": len(orders),
	})
}

func (ctrl *OrderController) respondOrderError(c *gin.Context, err error, userID uint) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case stderrors.Is(err, service.ErrEmptyOrder):
		errors.RespondWithError(c, http.StatusBadRequest, errors.OrderEmpty, "Order must contain at least one item")
	case stderrors.Is(err, service.ErrOrderNotFound):
		errors.RespondWithError(c, http.StatusNotFound, errors.OrderNotFound, "Order not found")
	case stderrors.Is(err, service.ErrProductNotFound):
		errors.RespondWithError(c, http.StatusNotFound, errors.ProductNotFound, "Product not found")
	case stderrors.Is(err, service.ErrInvalidVariant):
		errors.RespondWithError(c, http.StatusBadRequest, errors.ProductInvalidVariant, "Invalid product variant")
	case stderrors.Is(err, service.ErrInsufficientStock):
		errors.RespondWithError(c, http.StatusBadRequest, errors.ProductOutOfStock, "Insufficient stock")
	case stderrors.Is(err, service.ErrTotalMismatch):
		errors.RespondWithError(c, http.StatusBadRequest, errors.OrderTotalMismatch, "Submitted total does not match item prices")
	default:
		log.Error("Order operation failed", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Order operation failed")
	}
}
