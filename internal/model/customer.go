package model

import "time"

// Customer owns its grocery lists: deleting a customer deletes them.
type Customer struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	Email        string        `json:"email"`
	Address      string        `json:"address"`
	GroceryLists []GroceryList `json:"grocery_lists"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    *time.Time    `json:"updated_at"`
}

// CustomerFields is the construction record for a customer. Password holds
// the bcrypt hash by the time it reaches the store.
type CustomerFields struct {
	Username     *string             `json:"username" validate:"omitempty,max=64"`
	Password     *string             `json:"password" validate:"omitempty,max=72"`
	Email        *string             `json:"email" validate:"omitempty,email"`
	Address      *string             `json:"address" validate:"omitempty,max=500"`
	GroceryLists []GroceryListFields `json:"grocery_lists" validate:"dive"`
}

var (
	CustomerFieldNames = []string{"username", "password", "email", "address", "grocery_lists"}

	CustomerRequiredFields = []string{"username", "password"}
)
