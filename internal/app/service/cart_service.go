package service

import (
	"errors"

	"github.com/tmoreland/maplecart-backend/internal/app/model"
	"github.com/tmoreland/maplecart-backend/internal/app/repository"
	"github.com/tmoreland/maplecart-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// GuestCartLine is one line of a client-held guest cart submitted for
// merging after login.
type GuestCartLine struct {
	ProductID uint  `json:"product_id"`
	ColorID   *uint `json:"color_id"`
	SizeID    *uint `json:"size_id"`
	Quantity  int   `json:"quantity"`
}

type CartService interface {
	GetUserCart(userID uint) ([]model.CartItem, error)
	AddToCart(userID, productID uint, colorID, sizeID *uint, quantity int) (*model.CartItem, error)
	UpdateCartItem(userID, cartItemID uint, quantity int) (*model.CartItem, error)
	RemoveFromCart(userID, cartItemID uint) error
	ClearCart(userID uint) error
	MergeGuestItems(userID uint, lines []GuestCartLine) ([]model.CartItem, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

func (s *cartService) GetUserCart(userID uint) ([]model.CartItem, error) {
	cartItems, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("User cart fetched", map[string]interface{}{
		"user_id": userID,
		"count":   len(cartItems),
	})
	return cartItems, nil
}

// AddToCart adds a product configuration to the cart. If a line with the
// same (product, color, size) key already exists its quantity is
// incremented; otherwise a new line is created. Stock checks are soft: they
// apply to the state known at mutation time.
func (s *cartService) AddToCart(userID, productID uint, colorID, sizeID *uint, quantity int) (*model.CartItem, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"color_id":   colorID,
		"size_id":    sizeID,
		"quantity":   quantity,
	})

	if quantity < 1 {
		quantity = 1
	}

	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cannot add to cart: product not found", map[string]interface{}{
				"user_id":    userID,
				"product_id": productID,
			})
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}

	if err := s.validateVariants(productID, colorID, sizeID); err != nil {
		return nil, err
	}

	existingItem, err := s.cartRepo.FindByKey(userID, productID, colorID, sizeID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing cart item", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
		})
		return nil, err
	}

	requestedQuantity := quantity
	if existingItem != nil {
		requestedQuantity = existingItem.Quantity + quantity
	}

	if product.StockQuantity < requestedQuantity {
		logger.Warn("Cannot add to cart: insufficient stock", map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
			"requested":  requestedQuantity,
			"available":  product.StockQuantity,
		})
		return nil, ErrInsufficientStock
	}

	if existingItem != nil {
		existingItem.Quantity = requestedQuantity
		if err := s.cartRepo.Update(existingItem); err != nil {
			return nil, err
		}
		return s.cartRepo.FindByID(existingItem.ID)
	}

	cartItem := &model.CartItem{
		UserID:    userID,
		ProductID: productID,
		ColorID:   colorID,
		SizeID:    sizeID,
		Quantity:  quantity,
	}
	if err := s.cartRepo.Create(cartItem); err != nil {
		return nil, err
	}

	logger.Info("Cart item added", map[string]interface{}{
		"cart_item_id": cartItem.ID,
	})
	return s.cartRepo.FindByID(cartItem.ID)
}

// UpdateCartItem sets the quantity of an owned cart line. Quantities of
// zero or less are rejected here; callers route those to RemoveFromCart.
func (s *cartService) UpdateCartItem(userID, cartItemID uint, quantity int) (*model.CartItem, error) {
	logger.Info("Updating cart item", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": cartItemID,
		"quantity":     quantity,
	})

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	cartItem, err := s.findOwnedItem(userID, cartItemID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(cartItem.ProductID)
	if err != nil {
		logger.Error("Failed to fetch product for stock check", err, map[string]interface{}{
			"cart_item_id": cartItemID,
			"product_id":   cartItem.ProductID,
		})
		return nil, err
	}

	if product.StockQuantity < quantity {
		logger.Warn("Cannot update cart item: insufficient stock", map[string]interface{}{
			"cart_item_id": cartItemID,
			"requested":    quantity,
			"available":    product.StockQuantity,
		})
		return nil, ErrInsufficientStock
	}

	cartItem.Quantity = quantity
	if err := s.cartRepo.Update(cartItem); err != nil {
		return nil, err
	}

	return s.cartRepo.FindByID(cartItemID)
}

func (s *cartService) RemoveFromCart(userID, cartItemID uint) error {
	logger.Info("Removing cart item", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": cartItemID,
	})

	if _, err := s.findOwnedItem(userID, cartItemID); err != nil {
		return err
	}

	return s.cartRepo.Delete(cartItemID)
}

// ClearCart removes every line for the user. Clearing an empty cart is a
// no-op, not an error.
func (s *cartService) ClearCart(userID uint) error {
	logger.Info("Clearing user cart", map[string]interface{}{
		"user_id": userID,
	})

	return s.cartRepo.DeleteByUserID(userID)
}

// MergeGuestItems folds a guest cart into the user's server cart after
// login. A guest line whose (product, color, size) key already exists in
// the server cart is skipped, never summed, so repeated merges stay
// idempotent. Lines for deleted products or invalid variants are dropped
// silently.
func (s *cartService) MergeGuestItems(userID uint, lines []GuestCartLine) ([]model.CartItem, error) {
	logger.Info("Merging guest cart into user cart", map[string]interface{}{
		"user_id":    userID,
		"line_count": len(lines),
	})

	merged, skipped := 0, 0
	for _, line := range lines {
		quantity := line.Quantity
		if quantity < 1 {
			quantity = 1
		}

		existing, err := s.cartRepo.FindByKey(userID, line.ProductID, line.ColorID, line.SizeID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if existing != nil {
			skipped++
			continue
		}

		product, err := s.productRepo.FindByID(line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				skipped++
				continue
			}
			return nil, err
		}
		if err := s.validateVariants(line.ProductID, line.ColorID, line.SizeID); err != nil {
			if errors.Is(err, ErrInvalidVariant) {
				skipped++
				continue
			}
			return nil, err
		}

		if product.StockQuantity < 1 {
			skipped++
			continue
		}
		if quantity > product.StockQuantity {
			quantity = product.StockQuantity
		}

		item := &model.CartItem{
			UserID:    userID,
			ProductID: line.ProductID,
			ColorID:   line.ColorID,
			SizeID:    line.SizeID,
			Quantity:  quantity,
		}
		if err := s.cartRepo.Create(item); err != nil {
			logger.Error("Failed to create merged cart item", err, map[string]interface{}{
				"user_id":    userID,
				"product_id": line.ProductID,
			})
			return nil, err
		}
		merged++
	}

	logger.Info("Guest cart merge completed", map[string]interface{}{
		"user_id": userID,
		"merged":  merged,
		"skipped": skipped,
	})

	return s.cartRepo.FindByUserID(userID)
}

// findOwnedItem loads a cart line and enforces ownership. A foreign line is
// reported as not found so the response does not confirm its existence.
func (s *cartService) findOwnedItem(userID, cartItemID uint) (*model.CartItem, error) {
	cartItem, err := s.cartRepo.FindByID(cartItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		logger.Error("Failed to fetch cart item", err, map[string]interface{}{
			"cart_item_id": cartItemID,
		})
		return nil, err
	}

	if cartItem.UserID != userID {
		logger.Warn("Cart item access denied: ownership mismatch", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": cartItemID,
			"owner_id":     cartItem.UserID,
		})
		return nil, ErrCartItemNotFound
	}

	return cartItem, nil
}

func (s *cartService) validateVariants(productID uint, colorID, sizeID *uint) error {
	if colorID != nil {
		color, err := s.productRepo.FindColorByID(*colorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidVariant
			}
			return err
		}
		if color.ProductID != productID {
			logger.Warn("Color variant mismatch", map[string]interface{}{
				"product_id": productID,
				"color_id":   *colorID,
			})
			return ErrInvalidVariant
		}
	}

	if sizeID != nil {
		size, err := s.productRepo.FindSizeByID(*sizeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidVariant
			}
			return err
		}
		if size.ProductID != productID {
			logger.Warn("Size variant mismatch", map[string]interface{}{
				"product_id": productID,
				"size_id":    *sizeID,
			})
			return ErrInvalidVariant
		}
	}

	return nil
}
