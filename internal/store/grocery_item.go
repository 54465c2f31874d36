package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/grocer/internal/model"
	"github.com/google/uuid"
)

type GroceryItemStore struct {
	db *sql.DB
}

func NewGroceryItemStore(db *sql.DB) *GroceryItemStore {
	return &GroceryItemStore{db: db}
}

func scanItem(sc scanner) (*model.GroceryItem, error) {
	var item model.GroceryItem
	var name, typ sql.NullString
	var price, quantity sql.NullInt64
	var updatedAt sql.NullTime

	err := sc.Scan(&item.ID, &name, &typ, &price, &quantity, &item.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	item.Name = name.String
	item.Type = typ.String
	item.PricePerUnit = price.Int64
	item.Quantity = quantity.Int64
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = timePtr(updatedAt)
	return &item, nil
}

const itemCols = `id, name, type, price_per_unit, quantity, created_at, updated_at`

func (s *GroceryItemStore) GetByID(id string) (*model.GroceryItem, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM grocery_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *GroceryItemStore) Create(f model.GroceryItemFields) (*model.GroceryItem, error) {
	id, err := insertItem(s.db, f)
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Patch applies the non-nil fields of f. It returns nil when no item has the id.
func (s *GroceryItemStore) Patch(id string, f model.GroceryItemFields) (*model.GroceryItem, error) {
	var a assignments
	if f.Name != nil {
		a.set("name", *f.Name)
	}
	if f.Type != nil {
		a.set("type", *f.Type)
	}
	if f.PricePerUnit != nil {
		a.set("price_per_unit", *f.PricePerUnit)
	}
	if f.Quantity != nil {
		a.set("quantity", *f.Quantity)
	}

	found, err := a.apply(s.db, "grocery_items", id)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if !found {
		return nil, nil
	}
	return s.GetByID(id)
}

// Delete removes the item and, through the join table's foreign key, its
// membership in every list.
func (s *GroceryItemStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM grocery_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *GroceryItemStore) ListByList(listID string) ([]model.GroceryItem, error) {
	return itemsByList(s.db, listID)
}

func insertItem(q querier, f model.GroceryItemFields) (string, error) {
	id := uuid.NewString()
	_, err := q.Exec(
		`INSERT INTO grocery_items (id, name, type, price_per_unit, quantity, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, nullString(f.Name), nullString(f.Type), nullInt(f.PricePerUnit), nullInt(f.Quantity), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert item: %w", classify(err))
	}
	return id, nil
}

func itemsByList(q querier, listID string) ([]model.GroceryItem, error) {
	rows, err := q.Query(
		`SELECT i.id, i.name, i.type, i.price_per_unit, i.quantity, i.created_at, i.updated_at
		FROM grocery_items i
		JOIN grocery_list_items li ON li.grocery_item_id = i.id
		WHERE li.grocery_list_id = ?
		ORDER BY li.rowid ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.GroceryItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
