package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/grocer/internal/event"
	"github.com/dukerupert/grocer/internal/model"
	"github.com/dukerupert/grocer/internal/payload"
	"github.com/dukerupert/grocer/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type CustomerHandler struct {
	store    *store.CustomerStore
	events   event.Broadcaster
	logger   *slog.Logger
	hashCost int
}

func NewCustomerHandler(s *store.CustomerStore, events event.Broadcaster, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{
		store:    s,
		events:   events,
		logger:   logger.With("component", "customer_handler"),
		hashCost: bcrypt.DefaultCost,
	}
}

func (h *CustomerHandler) load(w http.ResponseWriter, r *http.Request) (*model.Customer, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	c, err := h.store.GetByID(id)
	if err != nil {
		storeError(w, r, h.logger, "get customer", err)
		return nil, false
	}
	if c == nil {
		writeError(w, http.StatusNotFound, msgNotFound(id))
		return nil, false
	}
	return c, true
}

// hashPassword replaces the clear-text password on f with its bcrypt hash.
func (h *CustomerHandler) hashPassword(f *model.CustomerFields) error {
	if f.Password == nil {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*f.Password), h.hashCost)
	if err != nil {
		return err
	}
	s := string(hash)
	f.Password = &s
	return nil
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, msgFound(c.ID), c)
}

// Create inserts a customer. Entries under grocery_lists become new lists
// owned by the customer, each with its own nested items.
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, ok := extract(w, r)
	if !ok {
		return
	}
	if !requireAny(w, fields, model.CustomerRequiredFields) {
		return
	}

	f, err := decodeCustomer(fields, createMode)
	if err == nil {
		err = validateRecord(f)
	}
	if err != nil {
		invalidPayload(w, err)
		return
	}
	if err := h.hashPassword(&f); err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	c, err := h.store.Create(f)
	if err != nil {
		storeError(w, r, h.logger, "create customer", err)
		return
	}

	h.events.Broadcast(event.NewMessage("customer", "created", c.ID, nil))
	writeSuccess(w, http.StatusCreated, msgInserted(c.ID), c)
}

func (h *CustomerHandler) Patch(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	id := existing.ID

	fields, ok := extract(w, r)
	if !ok {
		return
	}
	f, err := decodeCustomer(fields, patchMode)
	if err == nil {
		err = validateRecord(f)
	}
	if err != nil {
		invalidPayload(w, err)
		return
	}
	if !payload.AnyTruthy(fields, model.CustomerFieldNames) {
		writeError(w, http.StatusNotFound, msgNothingToPatch(id))
		return
	}
	if err := h.hashPassword(&f); err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	c, err := h.store.Patch(id, f)
	if err != nil {
		storeError(w, r, h.logger, "patch customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, msgNotFound(id))
		return
	}

	h.events.Broadcast(event.NewMessage("customer", "updated", id, nil))
	writeSuccess(w, http.StatusOK, msgPatched(id), c)
}

// Delete removes the customer together with the lists it owns.
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(c.ID); err != nil {
		storeError(w, r, h.logger, "delete customer", err)
		return
	}

	h.events.Broadcast(event.NewMessage("customer", "deleted", c.ID, nil))
	writeSuccess(w, http.StatusOK, msgDeleted(c.ID), c)
}
