package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/websocket"
)

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type resolveRequest struct {
	catalog.Line
	MinScore *int `json:"minScore,omitempty" validate:"omitempty,min=0,max=100"`
}

// listProducts returns catalog entries, optionally filtered by name or code
func (r *Router) listProducts(w http.ResponseWriter, req *http.Request) {
	limit, err := queryInt(req, "limit", 100)
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	activeOnly, err := queryBool(req, "active", false)
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	products, err := r.svc.Catalog.ListProducts(r.db.WithContext(req.Context()), catalog.ProductFilter{
		Query:      req.URL.Query().Get("q"),
		ActiveOnly: activeOnly,
		Limit:      limit,
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// upsertProduct creates or overwrites a product by code
func (r *Router) upsertProduct(w http.ResponseWriter, req *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(req, &in); err != nil {
		respondServiceError(w, req, err)
		return
	}

	var p *models.Product
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		p, err = r.svc.Catalog.UpsertByCode(tx, in)
		return err
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// getProduct returns a single product by code
func (r *Router) getProduct(w http.ResponseWriter, req *http.Request) {
	p, err := r.svc.Catalog.GetProductByCode(r.db.WithContext(req.Context()), mux.Vars(req)["code"])
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// setProductActive retires or restores a product
func (r *Router) setProductActive(w http.ResponseWriter, req *http.Request) {
	var body activeRequest
	if err := decodeJSON(req, &body); err != nil {
		respondServiceError(w, req, err)
		return
	}

	var p *models.Product
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		p, err = r.svc.Catalog.SetProductActive(tx, mux.Vars(req)["code"], *body.Active)
		return err
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// resolveLine runs one line item through the resolution pipeline
func (r *Router) resolveLine(w http.ResponseWriter, req *http.Request) {
	var body resolveRequest
	if err := decodeJSON(req, &body); err != nil {
		respondServiceError(w, req, err)
		return
	}
	minScore := r.svc.Catalog.MinFuzzyScore()
	if body.MinScore != nil {
		minScore = *body.MinScore
	}

	var res *catalog.Resolution
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		res, err = r.svc.Catalog.ResolveLineWithScore(tx, body.Line, minScore)
		return err
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	if res.Outcome == catalog.OutcomeQueuedInbox {
		r.broadcast(websocket.Event{Type: websocket.EventInboxQueued, StoreID: body.StoreID, Data: res})
	}
	respondJSON(w, http.StatusOK, res)
}

// suggest returns the closest active product without writing anything
func (r *Router) suggest(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	minScore, err := queryScore(req, "minScore", r.svc.Catalog.MinFuzzyScore())
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	sug, err := r.svc.Catalog.Suggest(r.db.WithContext(req.Context()), name, minScore)
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, sug)
}
