package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/services/clients"
)

// listClients returns clients ordered by name
func (r *Router) listClients(w http.ResponseWriter, req *http.Request) {
	limit, err := queryInt(req, "limit", 0)
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	list, err := r.svc.Clients.List(r.db.WithContext(req.Context()), limit)
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// upsertClient creates or overwrites a client by documento
func (r *Router) upsertClient(w http.ResponseWriter, req *http.Request) {
	var in clients.Input
	if err := decodeJSON(req, &in); err != nil {
		respondServiceError(w, req, err)
		return
	}

	var c *models.Client
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		c, err = r.svc.Clients.Upsert(tx, in)
		return err
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// importClientByCNPJ fills a client from the public CNPJ registry
func (r *Router) importClientByCNPJ(w http.ResponseWriter, req *http.Request) {
	var c *models.Client
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		c, err = r.svc.Clients.ImportByCNPJ(req.Context(), tx, mux.Vars(req)["cnpj"])
		return err
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// listNfe returns recently imported documents without their XML text
func (r *Router) listNfe(w http.ResponseWriter, req *http.Request) {
	limit, err := queryInt(req, "limit", 50)
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	var docs []models.NfeXml
	err = r.db.WithContext(req.Context()).
		Omit("xml_text").
		Preload("Client").
		Order("id DESC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		respondServiceError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, docs)
}
