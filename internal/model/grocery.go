package model

import "time"

type GroceryList struct {
	ID              string        `json:"id"`
	CustomerID      *string       `json:"customer_id"`
	DesiredDelivery *time.Time    `json:"desired_delivery"`
	TotalPrice      int64         `json:"total_price"`
	GroceryItems    []GroceryItem `json:"grocery_items"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at"`
}

type GroceryItem struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	PricePerUnit int64      `json:"price_per_unit"`
	Quantity     int64      `json:"quantity"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// GroceryListFields is the construction record for a grocery list. Nil
// pointers are fields the payload did not set.
type GroceryListFields struct {
	CustomerID      *string             `json:"customer_id" validate:"omitempty,uuid"`
	DesiredDelivery *time.Time          `json:"desired_delivery"`
	TotalPrice      *int64              `json:"total_price" validate:"omitempty,gte=0"`
	GroceryItems    []GroceryItemFields `json:"grocery_items" validate:"dive"`
}

// GroceryItemFields is the construction record for a grocery item.
type GroceryItemFields struct {
	Name         *string `json:"name" validate:"omitempty,max=200"`
	Type         *string `json:"type" validate:"omitempty,max=100"`
	PricePerUnit *int64  `json:"price_per_unit" validate:"omitempty,gte=0"`
	Quantity     *int64  `json:"quantity" validate:"omitempty,gte=0"`
}

var (
	GroceryListFieldNames = []string{"customer_id", "desired_delivery", "total_price", "grocery_items"}
	GroceryItemFieldNames = []string{"name", "type", "price_per_unit", "quantity"}

	GroceryItemRequiredFields = []string{"name"}
)
