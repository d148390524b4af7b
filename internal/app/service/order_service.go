package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tmoreland/maplecart-backend/internal/app/model"
	"github.com/tmoreland/maplecart-backend/internal/app/repository"
	"github.com/tmoreland/maplecart-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrTotalMismatch      = errors.New("order total does not match item prices")
	ErrInvalidOrderStatus = errors.New("invalid order status")
)

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID uint
	Quantity  int
	ColorID   *uint
	SizeID    *uint
}

// PaymentIntentInput mirrors a payment intent created ahead of the order.
type PaymentIntentInput struct {
	ExternalID   string
	Amount       int64
	Currency     string
	ClientSecret string
}

// CreateOrderInput is the full checkout payload.
type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress string
	TotalAmount     float64
	PaymentIntent   *PaymentIntentInput
}

type OrderService interface {
	CreateOrder(userID uint, input CreateOrderInput) (*model.Order, error)
	GetUserOrders(userID uint) ([]model.Order, error)
	GetOrderByID(userID, orderID uint) (*model.Order, error)
	GetAllOrders() ([]model.Order, error)
	UpdateOrderStatus(orderID uint, status model.OrderStatus) error
	UpdatePaymentStatus(orderID uint, status model.PaymentStatus) error
	DeleteOrder(orderID uint) (bool, error)
	ExpireStalePendingOrders(olderThan time.Duration) (int, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	db          *gorm.DB
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	db *gorm.DB,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		db:          db,
	}
}

// CreateOrder persists the order header, its frozen line items and an
// optional payment-intent mirror in a single transaction. Unit prices are
// resolved from the live catalog at this moment and never recomputed
// afterwards.
func (s *orderService) CreateOrder(userID uint, input CreateOrderInput) (*model.Order, error) {
	logger.Info("Creating order", map[string]interface{}{
		"user_id":    userID,
		"item_count": len(input.Items),
	})

	if len(input.Items) == 0 {
		logger.Warn("Cannot create order: no items", map[string]interface{}{
			"user_id": userID,
		})
		return nil, ErrEmptyOrder
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			logger.Error("Panic during order creation, rolling back", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"user_id": userID,
			})
		}
	}()

	var (
		totalAmount float64
		orderItems  []model.OrderItem
	)

	for _, item := range input.Items {
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}

		var product model.Product
		if err := tx.First(&product, item.ProductID).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("Product not found during order creation", map[string]interface{}{
					"user_id":    userID,
					"product_id": item.ProductID,
				})
				return nil, ErrProductNotFound
			}
			logger.Error("Failed to fetch product during order creation", err, map[string]interface{}{
				"product_id": item.ProductID,
			})
			return nil, err
		}

		if product.StockQuantity < quantity {
			tx.Rollback()
			logger.Warn("Order creation failed: insufficient stock", map[string]interface{}{
				"user_id":    userID,
				"product_id": item.ProductID,
				"requested":  quantity,
				"available":  product.StockQuantity,
			})
			return nil, ErrInsufficientStock
		}

		colorName, sizeName, err := s.resolveVariantNames(tx, item.ProductID, item.ColorID, item.SizeID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}

		orderItems = append(orderItems, model.OrderItem{
			ProductID: item.ProductID,
			Quantity:  quantity,
			Price:     product.Price,
			ColorName: colorName,
			SizeName:  sizeName,
		})
		totalAmount += product.Price * float64(quantity)

		if err := tx.Model(&model.Product{}).
			Where("id = ?", product.ID).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity)).Error; err != nil {
			tx.Rollback()
			logger.Error("Failed to update product stock", err, map[string]interface{}{
				"product_id": product.ID,
			})
			return nil, err
		}
	}

	if input.TotalAmount != 0 && math.Abs(input.TotalAmount-totalAmount) > 0.01 {
		tx.Rollback()
		logger.Warn("Order creation failed: total mismatch", map[string]interface{}{
			"user_id":  userID,
			"claimed":  input.TotalAmount,
			"computed": totalAmount,
		})
		return nil, ErrTotalMismatch
	}

	order := &model.Order{
		UserID:          userID,
		TotalAmount:     totalAmount,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		ShippingAddress: input.ShippingAddress,
		OrderItems:      orderItems,
	}

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to create order", err, map[string]interface{}{
			"user_id":      userID,
			"total_amount": totalAmount,
		})
		return nil, err
	}

	if input.PaymentIntent != nil {
		intent := &model.PaymentIntent{
			OrderID:      order.ID,
			ExternalID:   input.PaymentIntent.ExternalID,
			Amount:       input.PaymentIntent.Amount,
			Currency:     input.PaymentIntent.Currency,
			ClientSecret: input.PaymentIntent.ClientSecret,
			Status:       model.IntentStatusCreated,
		}
		if err := tx.Create(intent).Error; err != nil {
			tx.Rollback()
			logger.Error("Failed to create payment intent record", err, map[string]interface{}{
				"order_id": order.ID,
			})
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		logger.Error("Failed to commit order transaction", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("Order created successfully", map[string]interface{}{
		"user_id":      userID,
		"order_id":     order.ID,
		"total_amount": totalAmount,
		"item_count":   len(orderItems),
	})

	return s.orderRepo.FindByID(order.ID)
}

func (s *orderService) resolveVariantNames(tx *gorm.DB, productID uint, colorID, sizeID *uint) (string, string, error) {
	var colorName, sizeName string

	if colorID != nil {
		var color model.ProductColor
		if err := tx.First(&color, *colorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", ErrInvalidVariant
			}
			return "", "", err
		}
		if color.ProductID != productID {
			return "", "", ErrInvalidVariant
		}
		colorName = color.Name
	}

	if sizeID != nil {
		var size model.ProductSize
		if err := tx.First(&size, *sizeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", ErrInvalidVariant
			}
			return "", "", err
		}
		if size.ProductID != productID {
			return "", "", ErrInvalidVariant
		}
		sizeName = size.Name
	}

	return colorName, sizeName, nil
}

func (s *orderService) GetUserOrders(userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user orders", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (s *orderService) GetOrderByID(userID, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		logger.Error("Failed to fetch order", err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}

	if order.UserID != userID {
		logger.Warn("Order access denied: ownership mismatch", map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
			"owner_id": order.UserID,
		})
		return nil, ErrOrderNotFound
	}

	return order, nil
}

func (s *orderService) GetAllOrders() ([]model.Order, error) {
	return s.orderRepo.FindAll()
}

// UpdateOrderStatus sets an order's status directly. Any known status value
// is accepted; transition validity is not checked beyond the order existing.
func (s *orderService) UpdateOrderStatus(orderID uint, status model.OrderStatus) error {
	if !model.ValidOrderStatus(status) {
		return ErrInvalidOrderStatus
	}

	logger.Info("Updating order status", map[string]interface{}{
		"order_id":   orderID,
		"new_status": status,
	})

	if err := s.orderRepo.UpdateStatus(orderID, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

func (s *orderService) UpdatePaymentStatus(orderID uint, status model.PaymentStatus) error {
	logger.Info("Updating payment status", map[string]interface{}{
		"order_id":   orderID,
		"new_status": status,
	})

	if err := s.orderRepo.UpdatePaymentStatus(orderID, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

// restoreStock returns each line's reserved quantity to the catalog.
func restoreStock(tx *gorm.DB, items []model.OrderItem) error {
	for _, item := range items {
		if err := tx.Model(&model.Product{}).
			Where("id = ?", item.ProductID).
			Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteOrder removes an order and its dependents: items first, then the
// payment-intent mirror, then the order row. Stock reserved by a still
// pending order goes back to the catalog. A missing order reports
// (false, nil) rather than an error.
func (s *orderService) DeleteOrder(orderID uint) (bool, error) {
	logger.Info("Deleting order", map[string]interface{}{
		"order_id": orderID,
	})

	var order model.Order
	if err := s.db.Preload("OrderItems").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	tx := s.db.Begin()

	if order.Status == model.OrderStatusPending {
		if err := restoreStock(tx, order.OrderItems); err != nil {
			tx.Rollback()
			logger.Error("Failed to restore stock for deleted order", err, map[string]interface{}{
				"order_id": orderID,
			})
			return false, err
		}
	}

	if err := tx.Where("order_id = ?", orderID).Delete(&model.OrderItem{}).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to delete order items", err, map[string]interface{}{
			"order_id": orderID,
		})
		return false, err
	}

	if err := tx.Where("order_id = ?", orderID).Delete(&model.PaymentIntent{}).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to delete payment intent record", err, map[string]interface{}{
			"order_id": orderID,
		})
		return false, err
	}

	if err := tx.Delete(&model.Order{}, orderID).Error; err != nil {
		tx.Rollback()
		logger.Error("Failed to delete order", err, map[string]interface{}{
			"order_id": orderID,
		})
		return false, err
	}

	if err := tx.Commit().Error; err != nil {
		return false, err
	}

	logger.Info("Order deleted", map[string]interface{}{
		"order_id": orderID,
	})
	return true, nil
}

// ExpireStalePendingOrders cancels pending orders that were never paid
// within the given window, returning their reserved stock to the catalog.
// Returns the number of orders cancelled.
func (s *orderService) ExpireStalePendingOrders(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	orders, err := s.orderRepo.FindStalePending(cutoff)
	if err != nil {
		logger.Error("Failed to find stale pending orders", err, nil)
		return 0, err
	}

	cancelled := 0
	for _, order := range orders {
		tx := s.db.Begin()
		if err := restoreStock(tx, order.OrderItems); err != nil {
			tx.Rollback()
			logger.Error("Failed to restore stock for stale order", err, map[string]interface{}{
				"order_id": order.ID,
			})
			continue
		}
		if err := tx.Model(&model.Order{}).
			Where("id = ?", order.ID).
			Update("status", model.OrderStatusCancelled).Error; err != nil {
			tx.Rollback()
			logger.Error("Failed to cancel stale order", err, map[string]interface{}{
				"order_id": order.ID,
			})
			continue
		}
		if err := tx.Commit().Error; err != nil {
			logger.Error("Failed to commit stale order cancellation", err, map[string]interface{}{
				"order_id": order.ID,
			})
			continue
		}
		cancelled++
	}

	if cancelled > 0 {
		logger.Info("Cancelled stale pending orders", map[string]interface{}{
			"count": cancelled,
		})
	}
	return cancelled, nil
}
