package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/services/importer"
	"github.com/xelth-com/nfecatalog/internal/services/spreadsheet"
	"github.com/xelth-com/nfecatalog/internal/websocket"
)

// xmlFileResult is one entry of a multi-file XML upload.
type xmlFileResult struct {
	*importer.XMLResult
	File  string `json:"arquivo"`
	Error string `json:"error,omitempty"`
}

func (r *Router) maxUploadBytes() int64 {
	return int64(r.svc.MaxUploadMB) << 20
}

// importXML imports NFe documents. A multipart upload may carry several
// "file" parts, each imported in its own transaction; a raw body is one document.
func (r *Router) importXML(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadBytes())

	if !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/") {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		res, err := r.importOneXML(req, data, "")
		if err != nil {
			respondServiceError(w, req, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
		return
	}

	if err := req.ParseMultipartForm(r.maxUploadBytes()); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	files := req.MultipartForm.File["file"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no file part named \"file\"")
		return
	}

	results := make([]xmlFileResult, 0, len(files))
	for _, fh := range files {
		out := xmlFileResult{File: fh.Filename}
		data, err := readPart(fh)
		if err == nil {
			out.XMLResult, err = r.importOneXML(req, data, fh.Filename)
		}
		if err != nil {
			out.Error = err.Error()
		}
		results = append(results, out)
	}
	respondJSON(w, http.StatusOK, results)
}

func (r *Router) importOneXML(req *http.Request, data []byte, filename string) (*importer.XMLResult, error) {
	var res *importer.XMLResult
	err := r.inTx(req, func(tx *gorm.DB) error {
		var err error
		res, err = r.svc.Importer.ImportXML(tx, data, filename)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Status == importer.StatusOK {
		r.broadcast(websocket.Event{Type: websocket.EventImportCompleted, Data: res})
	}
	return res, nil
}

// importSpreadsheet resolves every row of an uploaded .xlsx/.csv for one store
func (r *Router) importSpreadsheet(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadBytes())

	storeID := strings.TrimSpace(req.URL.Query().Get("store"))
	if storeID == "" {
		respondServiceError(w, req, catalog.NewValidationError("store", "store is required"))
		return
	}
	opts := r.svc.Importer.DefaultRowOptions()
	var err error
	if opts.MinFuzzyScore, err = queryScore(req, "minScore", opts.MinFuzzyScore); err != nil {
		respondServiceError(w, req, err)
		return
	}
	if opts.ContinueOnError, err = queryBool(req, "continueOnError", opts.ContinueOnError); err != nil {
		respondServiceError(w, req, err)
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file part named \"file\"")
		return
	}
	defer file.Close()

	rows, err := spreadsheet.Read(header.Filename, file)
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	var res *importer.RowsResult
	err = r.inTx(req, func(tx *gorm.DB) error {
		var err error
		res, err = r.svc.Importer.ImportRows(tx, storeID, rows, opts)
		return err
	})
	if err != nil {
		respondServiceError(w, req, err)
		return
	}

	r.broadcast(websocket.Event{Type: websocket.EventImportCompleted, StoreID: storeID, Data: res})
	respondJSON(w, http.StatusOK, res)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}
