package controller

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/tmoreland/maplecart-backend/internal/app/service"
	"github.com/tmoreland/maplecart-backend/internal/errors"
	"github.com/tmoreland/maplecart-backend/internal/middleware"
	"github.com/tmoreland/maplecart-backend/pkg/payment/stripeclient"
)

// WebhookVerifier checks an event payload against its signature header.
// Satisfied by stripeclient.Client.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type PaymentController struct {
	paymentService service.PaymentService
	verifier       WebhookVerifier
}

func NewPaymentController(paymentService service.PaymentService, verifier WebhookVerifier) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		verifier:       verifier,
	}
}

// CreatePaymentIntent registers a payment intent for an order and returns
// the client secret the frontend needs to collect payment
// POST /api/v1/orders/:id/payment-intent
func (ctrl *PaymentController) CreatePaymentIntent(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	intent, err := ctrl.paymentService.CreatePaymentIntent(c.Request.Context(), userID, id)
	if err != nil {
		ctrl.respondPaymentError(c, err, id)
		return
	}

	log.Info("Payment intent issued", map[string]interface{}{
		"order_id":  id,
		"intent_id": intent.ExternalID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"payment_intent": intent,
		"client_secret":  intent.ClientSecret,
	})
}

// GetPaymentStatus returns the payment state of one of the user's orders
// GET /api/v1/orders/:id/payment
func (ctrl *PaymentController) GetPaymentStatus(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	intent, err := ctrl.paymentService.GetPaymentStatus(userID, id)
	if err != nil {
		ctrl.respondPaymentError(c, err, id)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_intent": intent,
	})
}

// HandleWebhook receives payment events from the processor. The raw body
// is verified against the signature header before any parsing.
// POST /api/v1/payments/webhook
func (ctrl *PaymentController) HandleWebhook(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn("Failed to read webhook body", map[string]interface{}{
			"error": err.Error(),
		})
		errors.BadRequest(c, "Failed to read request body")
		return
	}

	event, err := ctrl.verifier.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn("Webhook signature verification failed", map[string]interface{}{
			"error": err.Error(),
		})
		errors.RespondWithError(c, http.StatusBadRequest, errors.PaymentInvalidSignature, "Invalid webhook signature")
		return
	}

	if err := ctrl.paymentService.HandleEvent(event); err != nil {
		log.Error("Failed to process webhook event", err, map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})
		errors.InternalError(c, "Failed to process event")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
	})
}

// CreateRefund refunds an order's captured payment in full
// POST /api/v1/admin/orders/:id/refund
func (ctrl *PaymentController) CreateRefund(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	intent, err := ctrl.paymentService.CreateRefund(c.Request.Context(), id)
	if err != nil {
		// Refunding an order that never had a payment is a bad request,
		// not a missing resource.
		if stderrors.Is(err, service.ErrNoPaymentIntent) {
			errors.RespondWithError(c, http.StatusBadRequest, errors.PaymentNoIntent, "Order has no payment to refund")
			return
		}
		ctrl.respondPaymentError(c, err, id)
		return
	}

	log.Info("Refund issued", map[string]interface{}{
		"order_id":  id,
		"intent_id": intent.ExternalID,
	})

	c.JSON(http.StatusOK, gin.H{
		"payment_intent": intent,
	})
}

func (ctrl *PaymentController) respondPaymentError(c *gin.Context, err error, orderID uint) {
	log := middleware.GetLoggerFromContext(c)

	var upstream *stripeclient.UpstreamError

	switch {
	case stderrors.Is(err, service.ErrOrderNotFound):
		errors.RespondWithError(c, http.StatusNotFound, errors.OrderNotFound, "Order not found")
	case stderrors.Is(err, service.ErrNoPaymentIntent):
		errors.RespondWithError(c, http.StatusNotFound, errors.PaymentNoIntent, "Order has no payment intent")
	case stderrors.Is(err, service.ErrAlreadyRefunded):
		errors.RespondWithError(c, http.StatusConflict, errors.PaymentAlreadyProcessed, "Payment has already been refunded")
	case stderrors.Is(err, service.ErrPaymentNotCaptured):
		errors.RespondWithError(c, http.StatusConflict, errors.PaymentAlreadyProcessed, "Payment has not been captured")
	case stderrors.As(err, &upstream):
		log.Warn("Upstream payment error", map[string]interface{}{
			"order_id": orderID,
			"code":     upstream.Code,
			"message":  upstream.Message,
		})
		errors.PaymentRequired(c, "Payment was rejected by the processor")
	default:
		log.Error("Payment operation failed", err, map[string]interface{}{
			"order_id": orderID,
		})
		errors.InternalError(c, "Payment operation failed")
	}
}
