package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/tmoreland/maplecart-backend/internal/app/model"
	"github.com/tmoreland/maplecart-backend/internal/app/repository"
	"github.com/tmoreland/maplecart-backend/pkg/logger"
	"github.com/tmoreland/maplecart-backend/pkg/payment/stripeclient"
	"gorm.io/gorm"
)

var (
	ErrNoPaymentIntent    = errors.New("order has no payment intent")
	ErrAlreadyRefunded    = errors.New("payment already refunded")
	ErrPaymentNotCaptured = errors.New("payment has not succeeded yet")
)

// PaymentProvider is the slice of the upstream payment API this service
// needs. Satisfied by stripeclient.Client in production and by fakes in
// tests.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount int64, currency string, orderID uint) (*stripeclient.Intent, error)
	Refund(ctx context.Context, intentID string) (*stripeclient.Refund, error)
}

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, userID, orderID uint) (*model.PaymentIntent, error)
	HandleEvent(event stripe.Event) error
	CreateRefund(ctx context.Context, orderID uint) (*model.PaymentIntent, error)
	GetPaymentStatus(userID, orderID uint) (*model.PaymentIntent, error)
}

type paymentService struct {
	provider  PaymentProvider
	orderRepo repository.OrderRepository
	currency  string
	db        *gorm.DB
}

func NewPaymentService(
	provider PaymentProvider,
	orderRepo repository.OrderRepository,
	currency string,
	db *gorm.DB,
) PaymentService {
	return &paymentService{
		provider:  provider,
		orderRepo: orderRepo,
		currency:  currency,
		db:        db,
	}
}

// MinorUnits converts a decimal price to the smallest currency unit,
// rounding half away from zero. 19.999 becomes 2000.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreatePaymentIntent registers an intent with the upstream provider for
// the order's full total and persists the mirror row. Calling it again for
// the same order returns the existing intent unchanged.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, userID, orderID uint) (*model.PaymentIntent, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	if order.PaymentIntent != nil {
		logger.Debug("Payment intent already exists for order", map[string]interface{}{
			"order_id":  orderID,
			"intent_id": order.PaymentIntent.ExternalID,
		})
		return order.PaymentIntent, nil
	}

	amount := MinorUnits(order.TotalAmount)

	upstream, err := s.provider.CreateIntent(ctx, amount, s.currency, orderID)
	if err != nil {
		logger.Error("Upstream payment intent creation failed", err, map[string]interface{}{
			"order_id": orderID,
			"amount":   amount,
		})
		return nil, err
	}

	intent := &model.PaymentIntent{
		OrderID:      orderID,
		ExternalID:   upstream.ID,
		Amount:       upstream.Amount,
		Currency:     upstream.Currency,
		Status:       model.IntentStatusCreated,
		ClientSecret: upstream.ClientSecret,
	}
	if err := s.db.Create(intent).Error; err != nil {
		logger.Error("Failed to persist payment intent", err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}

	logger.Info("Payment intent created", map[string]interface{}{
		"order_id":  orderID,
		"intent_id": upstream.ID,
		"amount":    amount,
	})
	return intent, nil
}

// HandleEvent applies a verified webhook event to the local payment state.
// Events for unknown intents and replays of already-applied events are
// ignored without error.
func (s *paymentService) HandleEvent(event stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		logger.Debug("Ignoring unhandled webhook event type", map[string]interface{}{
			"event_type": string(event.Type),
		})
		return nil
	}

	var upstream stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &upstream); err != nil {
		logger.Error("Failed to parse webhook payment intent", err, map[string]interface{}{
			"event_id": event.ID,
		})
		return err
	}

	intent, err := s.orderRepo.FindIntentByExternalID(upstream.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Webhook event for unknown payment intent", map[string]interface{}{
				"intent_id": upstream.ID,
			})
			return nil
		}
		return err
	}

	var (
		intentStatus  model.PaymentIntentStatus
		paymentStatus model.PaymentStatus
		orderStatus   model.OrderStatus
	)
	if event.Type == "payment_intent.succeeded" {
		intentStatus = model.IntentStatusSucceeded
		paymentStatus = model.PaymentStatusPaid
		orderStatus = model.OrderStatusProcessing
	} else {
		intentStatus = model.IntentStatusFailed
		paymentStatus = model.PaymentStatusFailed
		orderStatus = model.OrderStatusPending
	}

	if intent.Status == intentStatus {
		logger.Debug("Webhook event already applied", map[string]interface{}{
			"intent_id": upstream.ID,
			"status":    intentStatus,
		})
		return nil
	}

	tx := s.db.Begin()

	if err := tx.Model(&model.PaymentIntent{}).
		Where("id = ?", intent.ID).
		Update("status", intentStatus).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Model(&model.Order{}).
		Where("id = ?", intent.OrderID).
		Updates(map[string]interface{}{
			"payment_status": paymentStatus,
			"status":         orderStatus,
		}).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	logger.Info("Webhook event applied", map[string]interface{}{
		"intent_id":      upstream.ID,
		"order_id":       intent.OrderID,
		"payment_status": paymentStatus,
	})
	return nil
}

// CreateRefund refunds a captured payment in full and marks the order and
// intent refunded.
func (s *paymentService) CreateRefund(ctx context.Context, orderID uint) (*model.PaymentIntent, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	intent := order.PaymentIntent
	if intent == nil {
		return nil, ErrNoPaymentIntent
	}
	if intent.Status == model.IntentStatusRefunded {
		return nil, ErrAlreadyRefunded
	}
	if intent.Status != model.IntentStatusSucceeded {
		return nil, ErrPaymentNotCaptured
	}

	refund, err := s.provider.Refund(ctx, intent.ExternalID)
	if err != nil {
		logger.Error("Upstream refund failed", err, map[string]interface{}{
			"order_id":  orderID,
			"intent_id": intent.ExternalID,
		})
		return nil, err
	}

	tx := s.db.Begin()

	if err := tx.Model(&model.PaymentIntent{}).
		Where("id = ?", intent.ID).
		Update("status", model.IntentStatusRefunded).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentStatusRefunded,
			"status":         model.OrderStatusCancelled,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.Info("Refund processed", map[string]interface{}{
		"order_id":  orderID,
		"refund_id": refund.ID,
		"amount":    refund.Amount,
	})

	intent.Status = model.IntentStatusRefunded
	return intent, nil
}

func (s *paymentService) GetPaymentStatus(userID, orderID uint) (*model.PaymentIntent, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.PaymentIntent == nil {
		return nil, ErrNoPaymentIntent
	}
	return order.PaymentIntent, nil
}
