package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/tmoreland/maplecart-backend/internal/app/model"
	"github.com/tmoreland/maplecart-backend/internal/app/repository"
	"github.com/tmoreland/maplecart-backend/internal/db"
	"github.com/tmoreland/maplecart-backend/pkg/payment/stripeclient"
	"gorm.io/gorm"
)

// fakeProvider records calls instead of talking to the processor.
type fakeProvider struct {
	createCalls int
	refundCalls int
	failCreate  error
	failRefund  error
	lastAmount  int64
}

func (f *fakeProvider) CreateIntent(ctx context.Context, amount int64, currency string, orderID uint) (*stripeclient.Intent, error) {
	f.createCalls++
	f.lastAmount = amount
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	return &stripeclient.Intent{
		ID:           fmt.Sprintf("pi_fake_%d", orderID),
		ClientSecret: "secret_fake",
		Amount:       amount,
		Currency:     currency,
		Status:       "requires_payment_method",
	}, nil
}

func (f *fakeProvider) Refund(ctx context.Context, intentID string) (*stripeclient.Refund, error) {
	f.refundCalls++
	if f.failRefund != nil {
		return nil, f.failRefund
	}
	return &stripeclient.Refund{ID: "re_fake", Amount: 0, Status: "succeeded"}, nil
}

func setupPaymentServiceTest(t *testing.T) (PaymentService, *fakeProvider, *model.User, *model.Order, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	orderRepo := repository.NewOrderRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	orderService := NewOrderService(orderRepo, productRepo, testDB)

	provider := &fakeProvider{}
	paymentService := NewPaymentService(provider, orderRepo, "usd", testDB)

	user := &model.User{
		Email:        "payer@example.com",
		PasswordHash: "hash",
		Name:         "Payer",
		Role:         model.RoleUser,
	}
	testDB.Create(user)

	product := &model.Product{
		Name:          "Leather Belt",
		Price:         19.999,
		Category:      model.CategoryAccessories,
		StockQuantity: 10,
	}
	testDB.Create(product)

	order, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "12 Maple Street",
	})
	require.NoError(t, err)

	return paymentService, provider, user, order, testDB
}

func webhookEvent(t *testing.T, eventType, intentID string) stripe.Event {
	t.Helper()

	raw, err := json.Marshal(map[string]interface{}{"id": intentID})
	require.NoError(t, err)

	return stripe.Event{
		ID:   "evt_test",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2000), MinorUnits(19.999))
	assert.Equal(t, int64(4500), MinorUnits(45.00))
	assert.Equal(t, int64(1), MinorUnits(0.005))
	assert.Equal(t, int64(0), MinorUnits(0))
}

func TestPaymentService_CreatePaymentIntent(t *testing.T) {
	paymentService, provider, user, order, _ := setupPaymentServiceTest(t)

	intent, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	// 19.999 rounds to 2000 minor units
	assert.Equal(t, int64(2000), intent.Amount)
	assert.Equal(t, int64(2000), provider.lastAmount)
	assert.Equal(t, model.IntentStatusCreated, intent.Status)
	assert.Equal(t, order.ID, intent.OrderID)
}

func TestPaymentService_CreatePaymentIntent_ReusesExisting(t *testing.T) {
	paymentService, provider, user, order, _ := setupPaymentServiceTest(t)

	first, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	second, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ExternalID, second.ExternalID)
	assert.Equal(t, 1, provider.createCalls)
}

func TestPaymentService_CreatePaymentIntent_OwnershipReportedAsNotFound(t *testing.T) {
	paymentService, _, _, order, testDB := setupPaymentServiceTest(t)

	other := &model.User{
		Email:        "other@example.com",
		PasswordHash: "hash",
		Name:         "Other",
		Role:         model.RoleUser,
	}
	testDB.Create(other)

	_, err := paymentService.CreatePaymentIntent(context.Background(), other.ID, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPaymentService_HandleEvent_Succeeded(t *testing.T) {
	paymentService, _, user, order, testDB := setupPaymentServiceTest(t)

	intent, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	err = paymentService.HandleEvent(webhookEvent(t, "payment_intent.succeeded", intent.ExternalID))
	assert.NoError(t, err)

	var fresh model.Order
	testDB.First(&fresh, order.ID)
	assert.Equal(t, model.PaymentStatusPaid, fresh.PaymentStatus)
	assert.Equal(t, model.OrderStatusProcessing, fresh.Status)

	var freshIntent model.PaymentIntent
	testDB.First(&freshIntent, intent.ID)
	assert.Equal(t, model.IntentStatusSucceeded, freshIntent.Status)
}

func TestPaymentService_HandleEvent_Failed(t *testing.T) {
	paymentService, _, user, order, testDB := setupPaymentServiceTest(t)

	intent, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	err = paymentService.HandleEvent(webhookEvent(t, "payment_intent.payment_failed", intent.ExternalID))
	assert.NoError(t, err)

	var fresh model.Order
	testDB.First(&fresh, order.ID)
	assert.Equal(t, model.PaymentStatusFailed, fresh.PaymentStatus)
	assert.Equal(t, model.OrderStatusPending, fresh.Status)
}

func TestPaymentService_HandleEvent_ReplayIsIdempotent(t *testing.T) {
	paymentService, _, user, order, testDB := setupPaymentServiceTest(t)

	intent, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	event := webhookEvent(t, "payment_intent.succeeded", intent.ExternalID)
	require.NoError(t, paymentService.HandleEvent(event))
	require.NoError(t, paymentService.HandleEvent(event))

	var fresh model.Order
	testDB.First(&fresh, order.ID)
	assert.Equal(t, model.PaymentStatusPaid, fresh.PaymentStatus)
}

func TestPaymentService_HandleEvent_UnknownIntentIgnored(t *testing.T) {
	paymentService, _, _, _, _ := setupPaymentServiceTest(t)

	err := paymentService.HandleEvent(webhookEvent(t, "payment_intent.succeeded", "pi_unknown"))
	assert.NoError(t, err)
}

func TestPaymentService_HandleEvent_UnhandledTypeIgnored(t *testing.T) {
	paymentService, _, user, order, testDB := setupPaymentServiceTest(t)

	intent, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	err = paymentService.HandleEvent(webhookEvent(t, "charge.succeeded", intent.ExternalID))
	assert.NoError(t, err)

	var fresh model.Order
	testDB.First(&fresh, order.ID)
	assert.Equal(t, model.PaymentStatusPending, fresh.PaymentStatus)
}

func TestPaymentService_CreateRefund(t *testing.T) {
	paymentService, provider, user, order, testDB := setupPaymentServiceTest(t)

	intent, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)
	require.NoError(t, paymentService.HandleEvent(webhookEvent(t, "payment_intent.succeeded", intent.ExternalID)))

	refunded, err := paymentService.CreateRefund(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IntentStatusRefunded, refunded.Status)
	assert.Equal(t, 1, provider.refundCalls)

	var fresh model.Order
	testDB.First(&fresh, order.ID)
	assert.Equal(t, model.PaymentStatusRefunded, fresh.PaymentStatus)
	assert.Equal(t, model.OrderStatusCancelled, fresh.Status)

	// Refunding twice is rejected
	_, err = paymentService.CreateRefund(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrAlreadyRefunded)
	assert.Equal(t, 1, provider.refundCalls)
}

func TestPaymentService_CreateRefund_RequiresIntent(t *testing.T) {
	paymentService, _, _, order, _ := setupPaymentServiceTest(t)

	_, err := paymentService.CreateRefund(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrNoPaymentIntent)
}

func TestPaymentService_CreateRefund_RequiresCapturedPayment(t *testing.T) {
	paymentService, _, user, order, _ := setupPaymentServiceTest(t)

	_, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	_, err = paymentService.CreateRefund(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrPaymentNotCaptured)
}

func TestPaymentService_GetPaymentStatus(t *testing.T) {
	paymentService, _, user, order, _ := setupPaymentServiceTest(t)

	_, err := paymentService.GetPaymentStatus(user.ID, order.ID)
	assert.ErrorIs(t, err, ErrNoPaymentIntent)

	created, err := paymentService.CreatePaymentIntent(context.Background(), user.ID, order.ID)
	require.NoError(t, err)

	intent, err := paymentService.GetPaymentStatus(user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ExternalID, intent.ExternalID)
}
