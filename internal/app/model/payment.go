package model

import (
	"time"

	"gorm.io/gorm"
)

type PaymentIntentStatus string

const (
	IntentStatusCreated   PaymentIntentStatus = "created"
	IntentStatusSucceeded PaymentIntentStatus = "succeeded"
	IntentStatusFailed    PaymentIntentStatus = "failed"
	IntentStatusRefunded  PaymentIntentStatus = "refunded"
)

// PaymentIntent mirrors the processor's payment-intent object, one per
// order. Status here is updated by webhook delivery, not by polling.
type PaymentIntent struct {
	ID           uint                `gorm:"primarykey" json:"id"`
	OrderID      uint                `gorm:"not null;uniqueIndex" json:"order_id"`
	ExternalID   string              `gorm:"type:varchar(255);index" json:"external_id"`
	Amount       int64               `gorm:"not null" json:"amount"` // minor units
	Currency     string              `gorm:"type:varchar(10)" json:"currency"`
	Status       PaymentIntentStatus `gorm:"type:varchar(20);default:'created'" json:"status"`
	ClientSecret string              `gorm:"type:varchar(255)" json:"-"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	DeletedAt    gorm.DeletedAt      `gorm:"index" json:"-"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (PaymentIntent) TableName() string {
	return "payment_intents"
}
