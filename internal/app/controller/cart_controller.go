package controller

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tmoreland/maplecart-backend/internal/app/service"
	"github.com/tmoreland/maplecart-backend/internal/errors"
	"github.com/tmoreland/maplecart-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	ProductID uint  `json:"product_id" binding:"required"`
	ColorID   *uint `json:"color_id"`
	SizeID    *uint `json:"size_id"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

type UpdateCartRequest struct {
	// Pointer so zero and negative quantities survive binding; those are
	// treated as removal requests.
	Quantity *int `json:"quantity" binding:"required"`
}

type MergeCartRequest struct {
	Items []service.GuestCartLine `json:"items" binding:"required"`
}

// GetCart returns user's cart with the computed total
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	cartItems, err := ctrl.cartService.GetUserCart(userID)
	if err != nil {
		log.Error("Failed to fetch cart", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Failed to fetch cart")
		return
	}

	var total float64
	itemCount := 0
	for _, item := range cartItems {
		total += item.Product.Price * float64(item.Quantity)
		itemCount += item.Quantity
	}

	c.JSON(http.StatusOK, gin.H{
		"cart_items": cartItems,
		"count":      len(cartItems),
		"item_count": itemCount,
		"total":      total,
	})
}

// AddToCart adds an item to the cart, merging into an existing line when
// the same product configuration is already present
// POST /api/v1/cart
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		errors.RespondWithValidationError(c, err.Error())
		return
	}

	item, err := ctrl.cartService.AddToCart(userID, req.ProductID, req.ColorID, req.SizeID, req.Quantity)
	if err != nil {
		ctrl.respondCartError(c, err, userID, req.ProductID)
		return
	}

	log.Info("Item added to cart", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": item.ID,
		"quantity":     item.Quantity,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Item added to cart successfully",
		"cart_item": item,
	})
}

// UpdateCartItem sets a cart line's quantity. Quantities at or below zero
// remove the line instead.
// PATCH /api/v1/cart/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
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

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update cart request", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": id,
			"error":        err.Error(),
		})
		errors.RespondWithValidationError(c, err.Error())
		return
	}

	if *req.Quantity <= 0 {
		if err := ctrl.cartService.RemoveFromCart(userID, id); err != nil {
			ctrl.respondCartError(c, err, userID, 0)
			return
		}
		log.Info("Cart item removed via zero quantity update", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": id,
		})
		c.JSON(http.StatusOK, gin.H{
			"message": "Cart item removed successfully",
		})
		return
	}

	item, err := ctrl.cartService.UpdateCartItem(userID, id, *req.Quantity)
	if err != nil {
		ctrl.respondCartError(c, err, userID, 0)
		return
	}

	log.Info("Cart item updated", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": id,
		"quantity":     item.Quantity,
	})

	c.JSON(http.StatusOK, gin.H{
		"message":   "Cart item updated successfully",
		"cart_item": item,
	})
}

// RemoveFromCart removes item from cart
// DELETE /api/v1/cart/:id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
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

	if err := ctrl.cartService.RemoveFromCart(userID, id); err != nil {
		ctrl.respondCartError(c, err, userID, 0)
		return
	}

	log.Info("Cart item removed", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": id,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item removed successfully",
	})
}

// ClearCart clears all items from cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	if err := ctrl.cartService.ClearCart(userID); err != nil {
		log.Error("Failed to clear cart", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Failed to clear cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}

// MergeCart folds a guest cart into the authenticated user's cart.
// Existing product configurations are kept as-is; only new ones are added.
// POST /api/v1/cart/merge
func (ctrl *CartController) MergeCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		errors.Unauthorized(c, "User not authenticated")
		return
	}

	var req MergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid merge cart request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		errors.RespondWithValidationError(c, err.Error())
		return
	}

	cartItems, err := ctrl.cartService.MergeGuestItems(userID, req.Items)
	if err != nil {
		log.Error("Failed to merge guest cart", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Failed to merge cart")
		return
	}

	var total float64
	for _, item := range cartItems {
		total += item.Product.Price * float64(item.Quantity)
	}

	log.Info("Guest cart merged", map[string]interface{}{
		"user_id": userID,
		"count":   len(cartItems),
	})

	c.JSON(http.StatusOK, gin.H{
		"cart_items": cartItems,
		"count":      len(cartItems),
		"total":      total,
	})
}

func (ctrl *CartController) respondCartError(c *gin.Context, err error, userID, productID uint) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case stderrors.Is(err, service.ErrProductNotFound):
		errors.RespondWithError(c, http.StatusNotFound, errors.ProductNotFound, "Product not found")
	case stderrors.Is(err, service.ErrCartItemNotFound):
		errors.RespondWithError(c, http.StatusNotFound, errors.CartItemNotFound, "Cart item not found")
	case stderrors.Is(err, service.ErrInvalidVariant):
		errors.RespondWithError(c, http.StatusBadRequest, errors.ProductInvalidVariant, "Invalid product variant")
	case stderrors.Is(err, service.ErrInsufficientStock):
		errors.RespondWithError(c, http.StatusBadRequest, errors.ProductOutOfStock, "Insufficient stock")
	case stderrors.Is(err, service.ErrInvalidQuantity):
		errors.RespondWithError(c, http.StatusBadRequest, errors.ValidationInvalidQuantity, "Quantity must be positive")
	default:
		log.Error("Cart operation failed", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		errors.InternalError(c, "Cart operation failed")
	}
}

// parseIDParam parses a numeric path parameter, responding with a 400 on
// failure.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	idStr := c.Param(name)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		errors.RespondWithError(c, http.StatusBadRequest, errors.ValidationInvalidID, "Invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}
