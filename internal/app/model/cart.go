package model

import (
	"time"

	"gorm.io/gorm"
)

// CartItem is one purchasable configuration in a user's cart. The identity
// key is (user, product, color, size); two items for the same product that
// differ only in variant selection are distinct rows.
type CartItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"not null;index;uniqueIndex:idx_cart_key" json:"user_id"`
	ProductID uint           `gorm:"not null;index;uniqueIndex:idx_cart_key" json:"product_id"`
	ColorID   *uint          `gorm:"index;uniqueIndex:idx_cart_key" json:"color_id,omitempty"`
	SizeID    *uint          `gorm:"index;uniqueIndex:idx_cart_key" json:"size_id,omitempty"`
	Quantity  int            `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User    User          `gorm:"foreignKey:UserID" json:"-"`
	Product Product       `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Color   *ProductColor `gorm:"foreignKey:ColorID" json:"color,omitempty"`
	Size    *ProductSize  `gorm:"foreignKey:SizeID" json:"size,omitempty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
