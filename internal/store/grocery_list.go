package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/grocer/internal/model"
	"github.com/google/uuid"
)

// GroceryListStore persists grocery lists. Lists reference items through the
// grocery_list_items join table and never own them.
type GroceryListStore struct {
	db *sql.DB
}

func NewGroceryListStore(db *sql.DB) *GroceryListStore {
	return &GroceryListStore{db: db}
}

func scanList(sc scanner) (*model.GroceryList, error) {
	var l model.GroceryList
	var customerID sql.NullString
	var delivery, updatedAt sql.NullTime
	var total sql.NullInt64

	err := sc.Scan(&l.ID, &customerID, &delivery, &total, &l.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		l.CustomerID = &customerID.String
	}
	l.DesiredDelivery = timePtr(delivery)
	l.TotalPrice = total.Int64
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = timePtr(updatedAt)
	return &l, nil
}

const listCols = `id, customer_id, desired_delivery, total_price, created_at, updated_at`

func (s *GroceryListStore) GetByID(id string) (*model.GroceryList, error) {
	row := s.db.QueryRow(`SELECT `+listCols+` FROM grocery_lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}

	l.GroceryItems, err = itemsByList(s.db, id)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListByCustomer returns the lists owned by a customer, oldest first.
func (s *GroceryListStore) ListByCustomer(customerID string) ([]model.GroceryList, error) {
	return listsByCustomer(s.db, customerID)
}

// Create inserts the list and a new item row for every entry in
// f.GroceryItems, all in one transaction.
func (s *GroceryListStore) Create(f model.GroceryListFields) (*model.GroceryList, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := insertList(tx, f.CustomerID, f)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Patch applies the non-nil fields of f and appends new items for every entry
// in f.GroceryItems. Existing items are left in place.
func (s *GroceryListStore) Patch(id string, f model.GroceryListFields) (*model.GroceryList, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var a assignments
	if f.CustomerID != nil {
		a.set("customer_id", *f.CustomerID)
	}
	if f.DesiredDelivery != nil {
		a.set("desired_delivery", f.DesiredDelivery.UTC())
	}
	if f.TotalPrice != nil {
		a.set("total_price", *f.TotalPrice)
	}

	found, err := a.apply(tx, "grocery_lists", id)
	if err != nil {
		return nil, fmt.Errorf("update list: %w", err)
	}
	if !found {
		return nil, nil
	}

	if err := addItems(tx, id, f.GroceryItems); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// AddItems creates new items and associates them with the list.
func (s *GroceryListStore) AddItems(listID string, items []model.GroceryItemFields) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := addItems(tx, listID, items); err != nil {
		return err
	}
	return tx.Commit()
}

// AttachItem associates an existing item with the list. Attaching an item
// that is already on the list is a no-op.
func (s *GroceryListStore) AttachItem(listID, itemID string) error {
	return linkItem(s.db, listID, itemID)
}

// DetachItem removes the association only; the item row survives. It reports
// whether the item was on the list.
func (s *GroceryListStore) DetachItem(listID, itemID string) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM grocery_list_items WHERE grocery_list_id = ? AND grocery_item_id = ?`,
		listID, itemID,
	)
	if err != nil {
		return false, fmt.Errorf("detach item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *GroceryListStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM grocery_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// insertList writes one list row owned by customerID (which may be nil) and
// cascades into its nested items.
func insertList(q querier, customerID *string, f model.GroceryListFields) (string, error) {
	id := uuid.NewString()
	_, err := q.Exec(
		`INSERT INTO grocery_lists (id, customer_id, desired_delivery, total_price, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, nullString(customerID), nullTime(f.DesiredDelivery), nullInt(f.TotalPrice), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert list: %w", classify(err))
	}
	if err := addItems(q, id, f.GroceryItems); err != nil {
		return "", err
	}
	return id, nil
}

func addItems(q querier, listID string, items []model.GroceryItemFields) error {
	for _, f := range items {
		itemID, err := insertItem(q, f)
		if err != nil {
			return err
		}
		if err := linkItem(q, listID, itemID); err != nil {
			return err
		}
	}
	return nil
}

func linkItem(q querier, listID, itemID string) error {
	_, err := q.Exec(
		`INSERT OR IGNORE INTO grocery_list_items (grocery_list_id, grocery_item_id, created_at) VALUES (?, ?, ?)`,
		listID, itemID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("link item: %w", classify(err))
	}
	return nil
}

func listsByCustomer(q querier, customerID string) ([]model.GroceryList, error) {
	rows, err := q.Query(
		`SELECT `+listCols+` FROM grocery_lists WHERE customer_id = ? ORDER BY rowid ASC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}

	lists := []model.GroceryList{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lists {
		lists[i].GroceryItems, err = itemsByList(q, lists[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return lists, nil
}
