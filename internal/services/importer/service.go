// Package importer feeds invoice XML and spreadsheet rows through the catalog resolver.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/config"
	"github.com/xelth-com/nfecatalog/internal/metrics"
	"github.com/xelth-com/nfecatalog/internal/models"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/services/clients"
	"github.com/xelth-com/nfecatalog/internal/services/nfe"
	"github.com/xelth-com/nfecatalog/internal/services/spreadsheet"
	"github.com/xelth-com/nfecatalog/internal/utils"
)

// Import statuses
const (
	StatusOK         = "ok"
	StatusDuplicated = "duplicated"
	StatusPartial    = "partial"
	StatusError      = "error"
)

const unnamedProduct = "Produto sem nome"

// LineStatus reports what happened to one line item.
type LineStatus struct {
	Line       int                 `json:"line,omitempty"`
	Code       string              `json:"codigo"`
	Name       string              `json:"nome"`
	Status     string              `json:"status"`
	Resolution *catalog.Resolution `json:"resolution,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// XMLResult is the outcome of ImportXML.
type XMLResult struct {
	Status     string       `json:"status"`
	Hash       string       `json:"hash"`
	Number     string       `json:"numero"`
	ClientName string       `json:"cliente,omitempty"`
	File       string       `json:"arquivo,omitempty"`
	NfeID      uint         `json:"nfeId,omitempty"`
	Cancelled  bool         `json:"cancelada,omitempty"`
	Items      []LineStatus `json:"produtosStatus,omitempty"`
}

// RowOptions tunes ImportRows.
type RowOptions struct {
	MinFuzzyScore int
	// ContinueOnError resolves each row in its own savepoint and records
	// failures instead of aborting the batch.
	ContinueOnError bool
}

// RowsResult is the outcome of ImportRows.
type RowsResult struct {
	Status  string         `json:"status"`
	StoreID string         `json:"storeId"`
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
	Failed  int            `json:"failed"`
	Lines   []LineStatus   `json:"lines"`
}

// Service orchestrates imports. It never opens or commits transactions.
type Service struct {
	catalog *catalog.Service
	clients *clients.Service
	cfg     *config.CatalogConfig
	log     *zap.Logger
}

// New creates an importer.
func New(cat *catalog.Service, cl *clients.Service, cfg *config.CatalogConfig, log *zap.Logger) *Service {
	if cfg == nil {
		cfg = &config.CatalogConfig{MinFuzzyScore: catalog.DefaultMinFuzzyScore, AliasConflict: config.AliasConflictIgnore}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{catalog: cat, clients: cl, cfg: cfg, log: log.Named("importer")}
}

// DefaultRowOptions returns the configured row import options.
func (s *Service) DefaultRowOptions() RowOptions {
	return RowOptions{MinFuzzyScore: s.cfg.MinFuzzyScore, ContinueOnError: s.cfg.ContinueOnError}
}

// ImportXML stores an NFe document, upserts its recipient and resolves every
// product line in file order. A document already imported (same SHA-256) is
// reported as duplicated and nothing is written. Any error leaves partial
// writes in tx; the caller is expected to roll back.
func (s *Service) ImportXML(tx *gorm.DB, data []byte, filename string) (*XMLResult, error) {
	hash := utils.ContentHash(data)

	var existing models.NfeXml
	err := tx.Preload("Client").Where("hash = ?", hash).Take(&existing).Error
	if err == nil {
		res := &XMLResult{Status: StatusDuplicated, Hash: hash, Number: existing.Number, File: filename}
		if existing.Client != nil {
			res.ClientName = existing.Client.Name
		}
		metrics.ImportsTotal.WithLabelValues("xml", StatusDuplicated).Inc()
		s.log.Info("NFe already imported", zap.String("hash", hash), zap.String("file", filename))
		return res, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check NFe hash: %w", err)
	}

	doc, err := nfe.Parse(data)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("xml", StatusError).Inc()
		return nil, catalog.NewValidationError("xml", err.Error())
	}
	if doc.Recipient.Document == "" {
		metrics.ImportsTotal.WithLabelValues("xml", StatusError).Inc()
		return nil, catalog.NewValidationError("documento", "Documento do destinatario nao encontrado no XML")
	}

	client, err := s.clients.Upsert(tx, recipientInput(doc.Recipient))
	if err != nil {
		return nil, err
	}
	storeID := client.StoreID()

	items := make([]LineStatus, 0, len(doc.Items))
	for i, item := range doc.Items {
		name := item.Name
		if name == "" {
			name = unnamedProduct
		}
		raw, _ := json.Marshal(item)
		res, err := s.catalog.ResolveLineWithScore(tx, catalog.Line{
			StoreID: storeID,
			Name:    name,
			Code:    utils.StringPtr(item.Code),
			NCM:     utils.StringPtr(item.NCM),
			Unit:    utils.StringPtr(item.Unit),
			CSTICMS: utils.StringPtr(item.CSTICMS),
			RawData: datatypes.JSON(raw),
		}, s.cfg.MinFuzzyScore)
		if err != nil {
			return nil, fmt.Errorf("resolve item %d of NFe %s: %w", i+1, doc.Number, err)
		}
		items = append(items, LineStatus{
			Line:       i + 1,
			Code:       item.Code,
			Name:       item.Name,
			Status:     string(res.Outcome),
			Resolution: res,
		})
	}

	row := models.NfeXml{
		ClientID:  client.ID,
		Number:    doc.Number,
		IssuedAt:  utils.StringPtr(doc.IssuedAt),
		XMLText:   strings.ToValidUTF8(string(data), ""),
		Hash:      hash,
		Cancelled: doc.Cancelled,
	}
	if total, err := decimal.NewFromString(doc.TotalValue); err == nil {
		row.TotalValue = decimal.NewNullDecimal(total)
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("store NFe %s: %w", doc.Number, err)
	}

	metrics.ImportsTotal.WithLabelValues("xml", StatusOK).Inc()
	s.log.Info("NFe imported",
		zap.Uint("nfe_id", row.ID),
		zap.String("numero", doc.Number),
		zap.String("store_id", storeID),
		zap.Int("items", len(items)),
		zap.String("file", filename),
	)
	return &XMLResult{
		Status:     StatusOK,
		Hash:       hash,
		Number:     doc.Number,
		ClientName: client.Name,
		File:       filename,
		NfeID:      row.ID,
		Cancelled:  doc.Cancelled,
		Items:      items,
	}, nil
}

// ImportRows resolves spreadsheet rows for storeID in order, so later rows
// see aliases and products created by earlier ones.
//
// By default the first failing row aborts the batch with an error and the
// caller rolls back everything. With ContinueOnError every row runs in a
// savepoint; a failing row is rolled back alone and reported in the result.
func (s *Service) ImportRows(tx *gorm.DB, storeID string, rows []spreadsheet.Row, opts RowOptions) (*RowsResult, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, catalog.NewValidationError("store_id", "store id is required")
	}

	result := &RowsResult{
		StoreID: storeID,
		Total:   len(rows),
		Counts:  make(map[string]int),
		Lines:   make([]LineStatus, 0, len(rows)),
	}
	for _, r := range rows {
		line := rowLine(storeID, r)
		status := LineStatus{Line: r.Line, Code: r.Code, Name: r.Name}

		var (
			res *catalog.Resolution
			err error
		)
		if opts.ContinueOnError {
			err = tx.Transaction(func(sp *gorm.DB) error {
				var rerr error
				res, rerr = s.catalog.ResolveLineWithScore(sp, line, opts.MinFuzzyScore)
				return rerr
			})
		} else {
			res, err = s.catalog.ResolveLineWithScore(tx, line, opts.MinFuzzyScore)
		}

		if err != nil {
			if !opts.ContinueOnError {
				metrics.ImportsTotal.WithLabelValues("spreadsheet", StatusError).Inc()
				return nil, fmt.Errorf("row %d: %w", r.Line, err)
			}
			s.log.Warn("row failed, continuing", zap.Int("line", r.Line), zap.Error(err))
			status.Status = StatusError
			status.Error = err.Error()
			result.Failed++
		} else {
			status.Status = string(res.Outcome)
			status.Resolution = res
		}
		result.Counts[status.Status]++
		result.Lines = append(result.Lines, status)
	}

	result.Status = StatusOK
	if result.Failed > 0 {
		result.Status = StatusPartial
	}
	metrics.ImportsTotal.WithLabelValues("spreadsheet", result.Status).Inc()
	s.log.Info("spreadsheet imported",
		zap.String("store_id", storeID),
		zap.Int("rows", result.Total),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func rowLine(storeID string, r spreadsheet.Row) catalog.Line {
	name := r.Name
	if strings.TrimSpace(name) == "" {
		name = unnamedProduct
	}
	var raw datatypes.JSON
	if len(r.Raw) > 0 {
		raw, _ = json.Marshal(r.Raw)
	}
	return catalog.Line{
		StoreID: storeID,
		Name:    name,
		Code:    utils.StringPtr(r.Code),
		NCM:     utils.StringPtr(r.NCM),
		Unit:    utils.StringPtr(r.Unit),
		CSTICMS: utils.StringPtr(r.CSTICMS),
		RawData: raw,
	}
}

func recipientInput(r nfe.Recipient) clients.Input {
	return clients.Input{
		Document:          r.Document,
		Name:              r.Name,
		TradeName:         utils.StringPtr(r.TradeName),
		Street:            utils.StringPtr(r.Street),
		Number:            utils.StringPtr(r.Number),
		District:          utils.StringPtr(r.District),
		StateRegistration: utils.StringPtr(r.StateRegistration),
		City:              utils.StringPtr(r.City),
		State:             utils.StringPtr(r.State),
		ZipCode:           utils.StringPtr(r.ZipCode),
		Complement:        utils.StringPtr(r.Complement),
		Country:           utils.StringPtr(r.Country),
		IBGECode:          utils.StringPtr(r.IBGECode),
		Phone:             utils.StringPtr(r.Phone),
		Email:             utils.StringPtr(r.Email),
	}
}
