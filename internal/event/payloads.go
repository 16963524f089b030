package event

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus enumerates the lifecycle states of an Order.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "OPEN"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderHeld      OrderStatus = "HELD"
)

// Asset identifies a tradeable instrument. Identity is by SID; the struct
// is treated as immutable once constructed.
type Asset struct {
	SID             int
	Symbol          string
	Name            string
	PriceMultiplier float64
}

// NewAsset constructs an Asset with the default 1.0 price multiplier.
func NewAsset(sid int, symbol, name string) Asset {
	return Asset{SID: sid, Symbol: symbol, Name: name, PriceMultiplier: 1.0}
}

// Order represents a pending or settled order. amount > 0 is a buy,
// amount < 0 is a sell.
type Order struct {
	ID         uuid.UUID
	Asset      Asset
	Amount     int
	PlacedAt   time.Time
	Filled     int
	Commission float64
	Status     OrderStatus
}

// OrderPlacedPayload is the payload of an ORDER_PLACED event.
type OrderPlacedPayload struct {
	Order Order
}

// Transaction is an immutable record of a single execution. Commission is
// charged directly against cash at the moment of fulfillment, so it
// travels with the transaction rather than only with the originating
// order.
type Transaction struct {
	OrderID    uuid.UUID
	Asset      Asset
	Amount     int
	Dt         time.Time
	Price      float64
	Commission float64
}

// TransactionPayload is the payload of an ORDER_FULFILLED event.
type TransactionPayload struct {
	Transaction Transaction
}

// PriceChangePayload is the payload of a PRICE_CHANGE event.
type PriceChangePayload struct {
	Prices map[string]float64
}
