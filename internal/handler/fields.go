package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukerupert/grocer/internal/grocery"
	"github.com/dukerupert/grocer/internal/model"
	"github.com/dukerupert/grocer/internal/payload"
	"github.com/go-playground/validator/v10"
)

// mode selects which payload values are applied to a construction record.
// On create every non-null value counts; on patch only truthy ones do.
type mode int

const (
	createMode mode = iota
	patchMode
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type fieldErrors []string

func (e fieldErrors) Error() string { return strings.Join(e, ", ") }

// validateRecord runs the struct tags on a construction record and turns
// validator failures into readable messages.
func validateRecord(rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}
	var out fieldErrors
	for _, fe := range valErrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return fe.Field() + " must be a valid email address"
	case "uuid":
		return fe.Field() + " must be a UUID"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func applies(fields map[string]any, key string, m mode) bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return false
	}
	return m == createMode || payload.Truthy(v)
}

func stringField(fields map[string]any, key string, m mode) (*string, error) {
	if !applies(fields, key, m) {
		return nil, nil
	}
	s, _, err := payload.String(fields, key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func intField(fields map[string]any, key string, m mode) (*int64, error) {
	if !applies(fields, key, m) {
		return nil, nil
	}
	n, _, err := payload.Int(fields, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// decodeItem builds a GroceryItemFields from a payload object. A created item
// with a name but no type gets a category derived from the name.
func decodeItem(fields map[string]any, m mode) (model.GroceryItemFields, error) {
	var f model.GroceryItemFields
	if err := payload.CheckFields(fields, model.GroceryItemFieldNames); err != nil {
		return f, err
	}

	var err error
	if f.Name, err = stringField(fields, "name", m); err != nil {
		return f, err
	}
	if f.Type, err = stringField(fields, "type", m); err != nil {
		return f, err
	}
	if f.PricePerUnit, err = intField(fields, "price_per_unit", m); err != nil {
		return f, err
	}
	if f.Quantity, err = intField(fields, "quantity", m); err != nil {
		return f, err
	}

	if m == createMode && f.Type == nil && f.Name != nil && *f.Name != "" {
		category := grocery.Categorize(*f.Name)
		f.Type = &category
	}
	return f, nil
}

// decodeList builds a GroceryListFields. Nested grocery_items always describe
// new items, whatever the outer mode.
func decodeList(fields map[string]any, m mode) (model.GroceryListFields, error) {
	var f model.GroceryListFields
	if err := payload.CheckFields(fields, model.GroceryListFieldNames); err != nil {
		return f, err
	}

	var err error
	if f.CustomerID, err = stringField(fields, "customer_id", m); err != nil {
		return f, err
	}
	if f.TotalPrice, err = intField(fields, "total_price", m); err != nil {
		return f, err
	}
	if applies(fields, "desired_delivery", m) {
		t, _, err := payload.Time(fields, "desired_delivery")
		if err != nil {
			return f, err
		}
		f.DesiredDelivery = &t
	}

	if applies(fields, "grocery_items", m) {
		objs, err := payload.Objects(fields, "grocery_items")
		if err != nil {
			return f, err
		}
		for i, obj := range objs {
			item, err := decodeItem(obj, createMode)
			if err != nil {
				return f, fmt.Errorf("grocery_items[%d]: %w", i, err)
			}
			f.GroceryItems = append(f.GroceryItems, item)
		}
	}
	return f, nil
}

// decodeCustomer builds a CustomerFields. Password is left in clear text;
// the caller hashes it after validation.
func decodeCustomer(fields map[string]any, m mode) (model.CustomerFields, error) {
	var f model.CustomerFields
	if err := payload.CheckFields(fields, model.CustomerFieldNames); err != nil {
		return f, err
	}

	var err error
	if f.Username, err = stringField(fields, "username", m); err != nil {
		return f, err
	}
	if f.Password, err = stringField(fields, "password", m); err != nil {
		return f, err
	}
	if f.Email, err = stringField(fields, "email", m); err != nil {
		return f, err
	}
	if f.Address, err = stringField(fields, "address", m); err != nil {
		return f, err
	}

	if applies(fields, "grocery_lists", m) {
		objs, err := payload.Objects(fields, "grocery_lists")
		if err != nil {
			return f, err
		}
		for i, obj := range objs {
			list, err := decodeList(obj, createMode)
			if err != nil {
				return f, fmt.Errorf("grocery_lists[%d]: %w", i, err)
			}
			f.GroceryLists = append(f.GroceryLists, list)
		}
	}
	return f, nil
}
