package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/grocer/internal/model"
	"github.com/google/uuid"
)

// CustomerStore persists customers. A customer owns its grocery lists: the
// grocery_lists.customer_id foreign key cascades on delete.
type CustomerStore struct {
	db *sql.DB
}

func NewCustomerStore(db *sql.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

func scanCustomer(sc scanner) (*model.Customer, error) {
	var c model.Customer
	var username, hash, email, address sql.NullString
	var updatedAt sql.NullTime

	err := sc.Scan(&c.ID, &username, &hash, &email, &address, &c.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Username = username.String
	c.PasswordHash = hash.String
	c.Email = email.String
	c.Address = address.String
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = timePtr(updatedAt)
	return &c, nil
}

const customerCols = `id, username, password_hash, email, address, created_at, updated_at`

func (s *CustomerStore) GetByID(id string) (*model.Customer, error) {
	row := s.db.QueryRow(`SELECT `+customerCols+` FROM customers WHERE id = ?`, id)
	return s.load(row, "get customer")
}

func (s *CustomerStore) GetByUsername(username string) (*model.Customer, error) {
	row := s.db.QueryRow(`SELECT `+customerCols+` FROM customers WHERE username = ?`, username)
	return s.load(row, "get customer by username")
}

func (s *CustomerStore) load(row *sql.Row, op string) (*model.Customer, error) {
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.GroceryLists, err = listsByCustomer(s.db, c.ID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts the customer and, in the same transaction, a new grocery
// list (with its own nested items) for every entry in f.GroceryLists.
func (s *CustomerStore) Create(f model.CustomerFields) (*model.Customer, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO customers (id, username, password_hash, email, address, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, nullString(f.Username), nullString(f.Password), nullString(f.Email), nullString(f.Address), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", classify(err))
	}

	if err := addLists(tx, id, f.GroceryLists); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Patch applies the non-nil fields of f and appends a new owned list for every
// entry in f.GroceryLists. It returns nil when no customer has the id.
func (s *CustomerStore) Patch(id string, f model.CustomerFields) (*model.Customer, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var a assignments
	if f.Username != nil {
		a.set("username", *f.Username)
	}
	if f.Password != nil {
		a.set("password_hash", *f.Password)
	}
	if f.Email != nil {
		a.set("email", *f.Email)
	}
	if f.Address != nil {
		a.set("address", *f.Address)
	}

	found, err := a.apply(tx, "customers", id)
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	if !found {
		return nil, nil
	}

	if err := addLists(tx, id, f.GroceryLists); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// AddGroceryLists creates new lists owned by the customer.
func (s *CustomerStore) AddGroceryLists(customerID string, lists []model.GroceryListFields) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := addLists(tx, customerID, lists); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the customer. Owned lists go with it; items those lists
// referenced do not.
func (s *CustomerStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

func addLists(q querier, customerID string, lists []model.GroceryListFields) error {
	for _, f := range lists {
		if _, err := insertList(q, &customerID, f); err != nil {
			return err
		}
	}
	return nil
}
