package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/grocer/internal/event"
	"github.com/dukerupert/grocer/internal/model"
	"github.com/dukerupert/grocer/internal/payload"
	"github.com/dukerupert/grocer/internal/store"
)

type GroceryItemHandler struct {
	store  *store.GroceryItemStore
	events event.Broadcaster
	logger *slog.Logger
}

func NewGroceryItemHandler(s *store.GroceryItemStore, events event.Broadcaster, logger *slog.Logger) *GroceryItemHandler {
	return &GroceryItemHandler{
		store:  s,
		events: events,
		logger: logger.With("component", "grocery_item_handler"),
	}
}

func (h *GroceryItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	item, err := h.store.GetByID(id)
	if err != nil {
		storeError(w, r, h.logger, "get grocery item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, msgNotFound(id))
		return
	}
	writeSuccess(w, http.StatusOK, msgFound(id), item)
}

func (h *GroceryItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, ok := extract(w, r)
	if !ok {
		return
	}
	if !requireAny(w, fields, model.GroceryItemRequiredFields) {
		return
	}

	f, err := decodeItem(fields, createMode)
	if err == nil {
		err = validateRecord(f)
	}
	if err != nil {
		invalidPayload(w, err)
		return
	}

	item, err := h.store.Create(f)
	if err != nil {
		storeError(w, r, h.logger, "create grocery item", err)
		return
	}

	h.events.Broadcast(event.NewMessage("grocery_item", "created", item.ID, nil))
	writeSuccess(w, http.StatusCreated, msgInserted(item.ID), item)
}

func (h *GroceryItemHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	existing, err := h.store.GetByID(id)
	if err != nil {
		storeError(w, r, h.logger, "get grocery item", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, msgNotFound(id))
		return
	}

	fields, ok := extract(w, r)
	if !ok {
		return
	}
	f, err := decodeItem(fields, patchMode)
	if err == nil {
		err = validateRecord(f)
	}
	if err != nil {
		invalidPayload(w, err)
		return
	}
	if !payload.AnyTruthy(fields, model.GroceryItemFieldNames) {
		writeError(w, http.StatusNotFound, msgNothingToPatch(id))
		return
	}

	item, err := h.store.Patch(id, f)
	if err != nil {
		storeError(w, r, h.logger, "patch grocery item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, msgNotFound(id))
		return
	}

	h.events.Broadcast(event.NewMessage("grocery_item", "updated", id, nil))
	writeSuccess(w, http.StatusOK, msgPatched(id), item)
}

func (h *GroceryItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	item, err := h.store.GetByID(id)
	if err != nil {
		storeError(w, r, h.logger, "get grocery item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, msgNotFound(id))
		return
	}

	if err := h.store.Delete(id); err != nil {
		storeError(w, r, h.logger, "delete grocery item", err)
		return
	}

	h.events.Broadcast(event.NewMessage("grocery_item", "deleted", id, nil))
	writeSuccess(w, http.StatusOK, msgDeleted(id), item)
}
