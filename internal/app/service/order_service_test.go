package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmoreland/maplecart-backend/internal/app/model"
	"github.com/tmoreland/maplecart-backend/internal/app/repository"
	"github.com/tmoreland/maplecart-backend/internal/db"
	"gorm.io/gorm"
)

func setupOrderServiceTest(t *testing.T) (OrderService, *model.User, *model.Product, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	orderRepo := repository.NewOrderRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	orderService := NewOrderService(orderRepo, productRepo, testDB)

	user := &model.User{
		Email:        "buyer@example.com",
		PasswordHash: "hash",
		Name:         "Buyer",
		Role:         model.RoleUser,
	}
	testDB.Create(user)

	product := &model.Product{
		Name:          "Linen Shirt",
		Price:         45.00,
		Category:      model.CategoryClothing,
		StockQuantity: 10,
		Colors:        []model.ProductColor{{Name: "Navy", HexCode: "#000080"}},
		Sizes:         []model.ProductSize{{Name: "M"}, {Name: "L", SortOrder: 1}},
	}
	testDB.Create(product)

	return orderService, user, product, testDB
}

func TestOrderService_CreateOrder_Success(t *testing.T) {
	orderService, user, product, testDB := setupOrderServiceTest(t)

	colorID := product.Colors[0].ID
	sizeID := product.Sizes[0].ID

	order, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: product.ID, Quantity: 2, ColorID: &colorID, SizeID: &sizeID},
		},
		ShippingAddress: "12 Maple Street",
	})
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
	assert.InDelta(t, 90.00, order.TotalAmount, 0.001)
	require.Len(t, order.OrderItems, 1)
	assert.Equal(t, "Navy", order.OrderItems[0].ColorName)
	assert.Equal(t, "M", order.OrderItems[0].SizeName)
	assert.InDelta(t, 45.00, order.OrderItems[0].Price, 0.001)

	// Stock was decremented
	var fresh model.Product
	testDB.First(&fresh, product.ID)
	assert.Equal(t, 8, fresh.StockQuantity)
}

func TestOrderService_CreateOrder_PriceSnapshotSurvivesCatalogChanges(t *testing.T) {
	orderService, user, product, testDB := setupOrderServiceTest(t)

	order, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "12 Maple Street",
	})
	require.NoError(t, err)

	// Raise the catalog price after the fact
	testDB.Model(&model.Product{}).Where("id = ?", product.ID).Update("price", 99.99)

	fetched, err := orderService.GetOrderByID(user.ID, order.ID)
	require.NoError(t, err)
	assert.InDelta(t, 45.00, fetched.OrderItems[0].Price, 0.001)
	assert.InDelta(t, 45.00, fetched.TotalAmount, 0.001)
}

func TestOrderService_CreateOrder_Empty(t *testing.T) {
	orderService, user, _, _ := setupOrderServiceTest(t)

	_, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		ShippingAddress: "12 Maple Street",
	})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestOrderService_CreateOrder_TotalMismatch(t *testing.T) {
	orderService, user, product, testDB := setupOrderServiceTest(t)

	_, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 2}},
		ShippingAddress: "12 Maple Street",
		TotalAmount:     10.00, // server computes 90.00
	})
	assert.ErrorIs(t, err, ErrTotalMismatch)

	// Nothing was persisted and stock is untouched
	var count int64
	testDB.Model(&model.Order{}).Count(&count)
	assert.Equal(t, int64(0), count)

	var fresh model.Product
	testDB.First(&fresh, product.ID)
	assert.Equal(t, 10, fresh.StockQuantity)
}

func TestOrderService_CreateOrder_AcceptsMatchingClientTotal(t *testing.T) {
	orderService, user, product, _ := setupOrderServiceTest(t)

	order, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 2}},
		ShippingAddress: "12 Maple Street",
		TotalAmount:     90.00,
	})
	assert.NoError(t, err)
	assert.InDelta(t, 90.00, order.TotalAmount, 0.001)
}

func TestOrderService_CreateOrder_InsufficientStock(t *testing.T) {
	orderService, user, product, _ := setupOrderServiceTest(t)

	_, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 11}},
		ShippingAddress: "12 Maple Street",
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestOrderService_CreateOrder_FailureLeavesNoPartialOrder(t *testing.T) {
	orderService, user, product, testDB := setupOrderServiceTest(t)

	// Make the line-item insert fail after the order header is written
	err := testDB.Callback().Create().Before("gorm:create").Register("order_item_fault", func(tx *gorm.DB) {
		if tx.Statement.Table == "order_items" {
			tx.AddError(errors.New("simulated insert failure"))
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		testDB.Callback().Create().Remove("order_item_fault")
	})

	_, err = orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 2}},
		ShippingAddress: "12 Maple Street",
	})
	require.Error(t, err)

	// No header without items, no orphaned items, stock untouched
	var orderCount, itemCount int64
	testDB.Model(&model.Order{}).Count(&orderCount)
	testDB.Model(&model.OrderItem{}).Count(&itemCount)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, int64(0), itemCount)

	var fresh model.Product
	testDB.First(&fresh, product.ID)
	assert.Equal(t, 10, fresh.StockQuantity)
}

func TestOrderService_GetOrderByID_OwnershipReportedAsNotFound(t *testing.T) {
	orderService, user, product, testDB := setupOrderServiceTest(t)

	other := &model.User{
		Email:        "other@example.com",
		PasswordHash: "hash",
		Name:         "Other",
		Role:         model.RoleUser,
	}
	testDB.Create(other)

	order, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "12 Maple Street",
	})
	require.NoError(t, err)

	_, err = orderService.GetOrderByID(other.ID, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	orderService, user, product, _ := setupOrderServiceTest(t)

	order, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "12 Maple Street",
	})
	require.NoError(t, err)

	assert.NoError(t, orderService.UpdateOrderStatus(order.ID, model.OrderStatusShipped))

	fetched, _ := orderService.GetOrderByID(user.ID, order.ID)
	assert.Equal(t, model.OrderStatusShipped, fetched.Status)

	// Unknown status is rejected
	err = orderService.UpdateOrderStatus(order.ID, model.OrderStatus("teleported"))
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)

	// Missing order
	err = orderService.UpdateOrderStatus(99999, model.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_DeleteOrder(t *testing.T) {
	orderService, user, product, testDB := setupOrderServiceTest(t)

	order, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "12 Maple Street",
		PaymentIntent: &PaymentIntentInput{
			ExternalID: "pi_test_123",
			Amount:     4500,
			Currency:   "usd",
		},
	})
	require.NoError(t, err)

	deleted, err := orderService.DeleteOrder(order.ID)
	assert.NoError(t, err)
	assert.True(t, deleted)

	var itemCount, intentCount int64
	testDB.Model(&model.OrderItem{}).Where("order_id = ?", order.ID).Count(&itemCount)
	testDB.Model(&model.PaymentIntent{}).Where("order_id = ?", order.ID).Count(&intentCount)
	assert.Equal(t, int64(0), itemCount)
	assert.Equal(t, int64(0), intentCount)

	// The pending order's reserved stock came back
	var fresh model.Product
	testDB.First(&fresh, product.ID)
	assert.Equal(t, 10, fresh.StockQuantity)
}

func TestOrderService_DeleteOrder_KeepsStockForProgressedOrders(t *testing.T) {
	orderService, user, product, testDB := setupOrderServiceTest(t)

	order, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 3}},
		ShippingAddress: "12 Maple Street",
	})
	require.NoError(t, err)
	require.NoError(t, orderService.UpdateOrderStatus(order.ID, model.OrderStatusShipped))

	deleted, err := orderService.DeleteOrder(order.ID)
	assert.NoError(t, err)
	assert.True(t, deleted)

	// Shipped goods are gone; deleting the record does not refill the shelf
	var fresh model.Product
	testDB.First(&fresh, product.ID)
	assert.Equal(t, 7, fresh.StockQuantity)
}

func TestOrderService_DeleteOrder_MissingIsNotAnError(t *testing.T) {
	orderService, _, _, _ := setupOrderServiceTest(t)

	deleted, err := orderService.DeleteOrder(99999)
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestOrderService_ExpireStalePendingOrders(t *testing.T) {
	orderService, user, product, testDB := setupOrderServiceTest(t)

	stale, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "12 Maple Street",
	})
	require.NoError(t, err)

	fresh, err := orderService.CreateOrder(user.ID, CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: "12 Maple Street",
	})
	require.NoError(t, err)

	// Age the first order past the cutoff
	testDB.Model(&model.Order{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-48*time.Hour))

	cancelled, err := orderService.ExpireStalePendingOrders(24 * time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	staleFetched, _ := orderService.GetOrderByID(user.ID, stale.ID)
	assert.Equal(t, model.OrderStatusCancelled, staleFetched.Status)

	freshFetched, _ := orderService.GetOrderByID(user.ID, fresh.ID)
	assert.Equal(t, model.OrderStatusPending, freshFetched.Status)

	// The cancelled order's unit went back on the shelf; the live order
	// still holds its reservation
	var freshProduct model.Product
	testDB.First(&freshProduct, product.ID)
	assert.Equal(t, 9, freshProduct.StockQuantity)
}
