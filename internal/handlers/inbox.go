package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/websocket"
)

type linkRequest struct {
	ProductID uint   `json:"productId" validate:"required"`
	StoreID   string `json:"storeId"`
	Alias     string `json:"alias"`
}

type createRequest struct {
	StoreID string `json:"storeId"`
	catalog.ProductInput
}

type repointRequest struct {
	StoreID   string `json:"storeId" validate:"required"`
	Alias     string `json:"alias" validate:"required"`
	ProductID uint   `json:"productId" validate:"required"`
}

// listInbox returns pending review items
func (r *Router) listInbox(w http.ResponseWriter, req *http.Request) {
	limit, err := queryInt(req, "limit", 200)
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	items, err := r.svc.Catalog.ListInbox(r.db.WithContext(req.Context()), catalog.InboxFilter{
		StoreID: req.URL.Query().Get("store"),
		Limit:   limit,
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// linkInbox approves an item as an alias of an existing product
func (r *Router) linkInbox(w http.ResponseWriter, req *http.Request) {
	var body linkRequest
	if err := decodeJSON(req, &body); err != nil {
		respondServiceError(w, req, err)
		return
	}
	id := pathID(req)

	var storeID string
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		if storeID, err = r.inboxStore(tx, id); err != nil {
			return err
		}
		return r.svc.Catalog.ApproveLinkAlias(tx, id, body.ProductID, body.StoreID, body.Alias)
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	result := map[string]interface{}{"status": "linked", "inboxId": id, "productId": body.ProductID}
	r.broadcast(websocket.Event{Type: websocket.EventInboxResolved, StoreID: storeID, Data: result})
	respondJSON(w, http.StatusOK, result)
}

// createFromInbox approves an item as a new (or updated) canonical product
func (r *Router) createFromInbox(w http.ResponseWriter, req *http.Request) {
	var body createRequest
	if err := decodeJSON(req, &body); err != nil {
		respondServiceError(w, req, err)
		return
	}
	id := pathID(req)

	var (
		productID uint
		storeID   string
	)
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		if storeID, err = r.inboxStore(tx, id); err != nil {
			return err
		}
		productID, err = r.svc.Catalog.ApproveCreateProduct(tx, id, body.StoreID, body.ProductInput)
		return err
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	result := map[string]interface{}{"status": "created", "inboxId": id, "productId": productID}
	r.broadcast(websocket.Event{Type: websocket.EventInboxResolved, StoreID: storeID, Data: result})
	respondJSON(w, http.StatusOK, result)
}

// dismissInbox discards an item without linking it
func (r *Router) dismissInbox(w http.ResponseWriter, req *http.Request) {
	id := pathID(req)
	var storeID string
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		if storeID, err = r.inboxStore(tx, id); err != nil {
			return err
		}
		return r.svc.Catalog.DismissInbox(tx, id)
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	result := map[string]interface{}{"status": "dismissed", "inboxId": id}
	r.broadcast(websocket.Event{Type: websocket.EventInboxResolved, StoreID: storeID, Data: result})
	respondJSON(w, http.StatusOK, result)
}

// inboxStore returns the store an inbox item belongs to; listeners of that
// store are the ones told it was resolved.
func (r *Router) inboxStore(tx *gorm.DB, id uint) (string, error) {
	item, err := r.svc.Catalog.GetInboxItem(tx, id)
	if err != nil {
		return "", err
	}
	return item.StoreID, nil
}

// repointAlias moves a store alias to another product
func (r *Router) repointAlias(w http.ResponseWriter, req *http.Request) {
	var body repointRequest
	if err := decodeJSON(req, &body); err != nil {
		respondServiceError(w, req, err)
		return
	}

	var alias *models.ProductAlias
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		alias, err = r.svc.Catalog.RepointAlias(tx, body.StoreID, body.Alias, body.ProductID)
		return err
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, alias)
}
