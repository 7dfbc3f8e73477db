package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit-card"
	PaymentPayPal     PaymentMethod = "paypal"
	PaymentApplePay   PaymentMethod = "apple-pay"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentPayPal, PaymentApplePay:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

type ShippingInfo struct {
	FirstName  string `json:"first_name" validate:"required,notblank"`
	LastName   string `json:"last_name" validate:"required,notblank"`
	Email      string `json:"email" validate:"required,notblank,email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address" validate:"required,notblank"`
	City       string `json:"city" validate:"required,notblank"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code" validate:"required,notblank"`
	Country    string `json:"country,omitempty"`
}

// PaymentInfo holds the raw payment form. Card fields only live in memory.
type PaymentInfo struct {
	Method         PaymentMethod `json:"method" validate:"required,payment_method"`
	CardNumber     string        `json:"card_number,omitempty" validate:"required_if=Method credit-card,omitempty,card_number"`
	CardholderName string        `json:"cardholder_name,omitempty" validate:"required_if=Method credit-card,omitempty,notblank"`
	Expiry         string        `json:"expiry,omitempty" validate:"required_if=Method credit-card,omitempty,card_expiry"`
	CVV            string        `json:"cvv,omitempty" validate:"required_if=Method credit-card,omitempty,numeric,min=3,max=4"`
}

// Summary drops everything that must not leave the checkout session.
func (p PaymentInfo) Summary() PaymentSummary {
	s := PaymentSummary{Method: p.Method, CardholderName: p.CardholderName}
	if n := len(p.CardNumber); n >= 4 {
		s.CardLast4 = p.CardNumber[n-4:]
	}
	return s
}

type PaymentSummary struct {
	Method         PaymentMethod `json:"method"`
	CardholderName string        `json:"cardholder_name,omitempty"`
	CardLast4      string        `json:"card_last4,omitempty"`
}

type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Order is the immutable snapshot taken when the customer places an order.
// Prices are captured here and no longer follow the catalog.
type Order struct {
	Number    string           `json:"order_number"`
	Items     []OrderItem      `json:"cart_items"`
	Shipping  ShippingInfo     `json:"shipping_info"`
	Payment   PaymentSummary   `json:"payment_method"`
	Totals    PricingBreakdown `json:"totals"`
	Currency  string           `json:"currency"`
	CreatedAt time.Time        `json:"created_at"`
}

// Confirmation is what the submission collaborator hands back: either a
// redirect to an off-site payment page or a synthesized order confirmation.
type Confirmation struct {
	OrderNumber string    `json:"order_number"`
	Timestamp   time.Time `json:"timestamp"`
	RedirectURL string    `json:"redirect_url,omitempty"`
}
