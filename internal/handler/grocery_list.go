package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/grocer/internal/event"
	"github.com/dukerupert/grocer/internal/model"
	"github.com/dukerupert/grocer/internal/payload"
	"github.com/dukerupert/grocer/internal/store"
)

type GroceryListHandler struct {
	lists  *store.GroceryListStore
	items  *store.GroceryItemStore
	events event.Broadcaster
	logger *slog.Logger
}

func NewGroceryListHandler(ls *store.GroceryListStore, is *store.GroceryItemStore, events event.Broadcaster, logger *slog.Logger) *GroceryListHandler {
	return &GroceryListHandler{
		lists:  ls,
		items:  is,
		events: events,
		logger: logger.With("component", "grocery_list_handler"),
	}
}

// load fetches the list named by the {id} path value, writing the 404 or 500
// envelope itself when it cannot.
func (h *GroceryListHandler) load(w http.ResponseWriter, r *http.Request) (*model.GroceryList, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	list, err := h.lists.GetByID(id)
	if err != nil {
		storeError(w, r, h.logger, "get grocery list", err)
		return nil, false
	}
	if list == nil {
		writeError(w, http.StatusNotFound, msgNotFound(id))
		return nil, false
	}
	return list, true
}

func (h *GroceryListHandler) Get(w http.ResponseWriter, r *http.Request) {
	list, ok := h.load(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, msgFound(list.ID), list)
}

// Create inserts a list. Entries under grocery_items become new items on it.
func (h *GroceryListHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, ok := extract(w, r)
	if !ok {
		return
	}

	f, err := decodeList(fields, createMode)
	if err == nil {
		err = validateRecord(f)
	}
	if err != nil {
		invalidPayload(w, err)
		return
	}

	list, err := h.lists.Create(f)
	if err != nil {
		storeError(w, r, h.logger, "create grocery list", err)
		return
	}

	h.events.Broadcast(event.NewMessage("grocery_list", "created", list.ID, nil))
	writeSuccess(w, http.StatusCreated, msgInserted(list.ID), list)
}

// Patch updates the truthy fields and appends any grocery_items entries as
// new items. Items already on the list stay.
func (h *GroceryListHandler) Patch(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	id := existing.ID

	fields, ok := extract(w, r)
	if !ok {
		return
	}
	f, err := decodeList(fields, patchMode)
	if err == nil {
		err = validateRecord(f)
	}
	if err != nil {
		invalidPayload(w, err)
		return
	}
	if !payload.AnyTruthy(fields, model.GroceryListFieldNames) {
		writeError(w, http.StatusNotFound, msgNothingToPatch(id))
		return
	}

	list, err := h.lists.Patch(id, f)
	if err != nil {
		storeError(w, r, h.logger, "patch grocery list", err)
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, msgNotFound(id))
		return
	}

	h.events.Broadcast(event.NewMessage("grocery_list", "updated", id, nil))
	writeSuccess(w, http.StatusOK, msgPatched(id), list)
}

func (h *GroceryListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	list, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.lists.Delete(list.ID); err != nil {
		storeError(w, r, h.logger, "delete grocery list", err)
		return
	}

	h.events.Broadcast(event.NewMessage("grocery_list", "deleted", list.ID, nil))
	writeSuccess(w, http.StatusOK, msgDeleted(list.ID), list)
}

// AttachItem puts an existing item on the list.
func (h *GroceryListHandler) AttachItem(w http.ResponseWriter, r *http.Request) {
	list, ok := h.load(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "item_id")
	if !ok {
		return
	}

	item, err := h.items.GetByID(itemID)
	if err != nil {
		storeError(w, r, h.logger, "get grocery item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, msgNotFound(itemID))
		return
	}

	if err := h.lists.AttachItem(list.ID, itemID); err != nil {
		storeError(w, r, h.logger, "attach grocery item", err)
		return
	}
	h.respondMembership(w, r, list.ID, itemID, "item_attached", "Record with id '"+itemID+"' was attached")
}

// DetachItem takes an item off the list without deleting it.
func (h *GroceryListHandler) DetachItem(w http.ResponseWriter, r *http.Request) {
	list, ok := h.load(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "item_id")
	if !ok {
		return
	}

	removed, err := h.lists.DetachItem(list.ID, itemID)
	if err != nil {
		storeError(w, r, h.logger, "detach grocery item", err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, msgNotFound(itemID))
		return
	}
	h.respondMembership(w, r, list.ID, itemID, "item_detached", "Record with id '"+itemID+"' was detached")
}

func (h *GroceryListHandler) respondMembership(w http.ResponseWriter, r *http.Request, listID, itemID, action, msg string) {
	list, err := h.lists.GetByID(listID)
	if err != nil {
		storeError(w, r, h.logger, "get grocery list", err)
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, msgNotFound(listID))
		return
	}

	h.events.Broadcast(event.NewMessage("grocery_list", action, listID, map[string]any{"item_id": itemID}))
	writeSuccess(w, http.StatusOK, msg, list)
}
