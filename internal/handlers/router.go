package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/buildinfo"
	"github.com/xelth-com/nfecatalog/internal/database"
	"github.com/xelth-com/nfecatalog/internal/logger"
	"github.com/xelth-com/nfecatalog/internal/middleware"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/services/clients"
	"github.com/xelth-com/nfecatalog/internal/services/importer"
	"github.com/xelth-com/nfecatalog/internal/websocket"
)

// Services are the collaborators the HTTP layer drives.
type Services struct {
	Catalog     *catalog.Service
	Clients     *clients.Service
	Importer    *importer.Service
	Hub         *websocket.Hub
	MaxUploadMB int
}

// Router wraps the mux router and database
type Router struct {
	*mux.Router
	db  *database.DB
	svc Services
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, svc Services) *Router {
	if svc.MaxUploadMB <= 0 {
		svc.MaxUploadMB = 20
	}
	r := &Router{
		Router: mux.NewRouter(),
		db:     db,
		svc:    svc,
	}
	r.Use(middleware.RequestID, middleware.Metrics)

	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	if svc.Hub != nil {
		r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
			websocket.ServeWs(svc.Hub, w, req)
		})
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")

	// Catalog
	api.HandleFunc("/products", r.listProducts).Methods("GET")
	api.HandleFunc("/products", r.upsertProduct).Methods("POST")
	api.HandleFunc("/products/{code}", r.getProduct).Methods("GET")
	api.HandleFunc("/products/{code}/active", r.setProductActive).Methods("PUT")
	api.HandleFunc("/resolve", r.resolveLine).Methods("POST")
	api.HandleFunc("/suggest", r.suggest).Methods("GET")
	api.HandleFunc("/aliases/repoint", r.repointAlias).Methods("POST")

	// Review inbox
	api.HandleFunc("/inbox", r.listInbox).Methods("GET")
	api.HandleFunc("/inbox/{id:[0-9]+}/link", r.linkInbox).Methods("POST")
	api.HandleFunc("/inbox/{id:[0-9]+}/create", r.createFromInbox).Methods("POST")
	api.HandleFunc("/inbox/{id:[0-9]+}", r.dismissInbox).Methods("DELETE")

	// Imports
	api.HandleFunc("/import/xml", r.importXML).Methods("POST")
	api.HandleFunc("/import/spreadsheet", r.importSpreadsheet).Methods("POST")

	// Clients and documents
	api.HandleFunc("/clients", r.listClients).Methods("GET")
	api.HandleFunc("/clients", r.upsertClient).Methods("POST")
	api.HandleFunc("/clients/cnpj/{cnpj}", r.importClientByCNPJ).Methods("POST")
	api.HandleFunc("/nfe", r.listNfe).Methods("GET")

	return r
}

// Handler returns the root http.Handler
func (r *Router) Handler() http.Handler {
	return r.Router
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns build info and live counters
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	status := map[string]interface{}{
		"status":     "running",
		"version":    buildinfo.Version,
		"buildTime":  buildinfo.BuildTime,
		"commitHash": buildinfo.CommitHash,
		"startTime":  buildinfo.StartTime,
	}
	if r.svc.Hub != nil {
		status["listeners"] = r.svc.Hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, status)
}

// inTx runs fn in one transaction bound to the request context.
func (r *Router) inTx(req *http.Request, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(req.Context()).Transaction(fn)
}

// broadcast publishes ev to reviewers. Call only after the transaction committed.
func (r *Router) broadcast(ev websocket.Event) {
	if r.svc.Hub != nil {
		r.svc.Hub.Broadcast(ev)
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps service errors to HTTP statuses.
func respondServiceError(w http.ResponseWriter, req *http.Request, err error) {
	var ve *catalog.ValidationError
	var se *clients.StatusError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": ve.Error(),
			"field": ve.Field,
		})
	case errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrAliasConflict), errors.Is(err, catalog.ErrProductInactive):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &se):
		respondError(w, http.StatusBadGateway, se.Error())
	default:
		logger.FromContext(req.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "database unavailable, try again")
	}
}

// decodeJSON reads the body into v and validates its struct tags.
func decodeJSON(req *http.Request, v interface{}) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return catalog.NewValidationError("body", "invalid JSON payload")
	}
	return catalog.Validate(v)
}

func queryInt(req *http.Request, key string, def int) (int, error) {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, catalog.NewValidationError(key, "must be an integer")
	}
	return n, nil
}

// queryScore reads a fuzzy threshold, which must lie in 0..100.
func queryScore(req *http.Request, key string, def int) (int, error) {
	n, err := queryInt(req, key, def)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 100 {
		return 0, catalog.NewValidationError(key, "must be between 0 and 100")
	}
	return n, nil
}

func queryBool(req *http.Request, key string, def bool) (bool, error) {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, catalog.NewValidationError(key, "must be true or false")
	}
	return b, nil
}

func pathID(req *http.Request) uint {
	id, _ := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	return uint(id)
}
