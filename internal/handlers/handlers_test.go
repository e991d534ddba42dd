package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/xelth-com/nfecatalog/internal/config"
	"github.com/xelth-com/nfecatalog/internal/database"
	"github.com/xelth-com/nfecatalog/internal/services/catalog"
	"github.com/xelth-com/nfecatalog/internal/services/clients"
	"github.com/xelth-com/nfecatalog/internal/services/importer"
	"github.com/xelth-com/nfecatalog/internal/testutil"
	"github.com/xelth-com/nfecatalog/internal/websocket"
)

var pg *testutil.Postgres

func TestMain(m *testing.M) {
	testutil.RunWithPostgres(m, 54334, &pg)
}

func newTestRouter(db *database.DB) *Router {
	return newTestRouterWithHub(db, nil)
}

func newTestRouterWithHub(db *database.DB, hub *websocket.Hub) *Router {
	cfg := &config.CatalogConfig{MinFuzzyScore: 90, AliasConflict: config.AliasConflictIgnore, MaxUploadMB: 1}
	cat := catalog.New(cfg, nil)
	cl := clients.NewService(nil, nil)
	return NewRouter(db, Services{
		Catalog:     cat,
		Clients:     cl,
		Importer:    importer.New(cat, cl, cfg, nil),
		Hub:         hub,
		MaxUploadMB: cfg.MaxUploadMB,
	})
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(nil)
	rec := do(t, r, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("got %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{catalog.NewValidationError("code", "product code is required"), http.StatusBadRequest},
		{fmt.Errorf("product x: %w", catalog.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("alias: %w", catalog.ErrAliasConflict), http.StatusConflict},
		{fmt.Errorf("product: %w", catalog.ErrProductInactive), http.StatusConflict},
		{&clients.StatusError{StatusCode: 429}, http.StatusBadGateway},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		respondServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestUpsertProductValidation(t *testing.T) {
	r := newTestRouter(nil)
	rec := do(t, r, http.MethodPost, "/api/products", map[string]string{"name": "sem codigo"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["field"] != "code" {
		t.Errorf("got field %q, want code", body["field"])
	}
}

func TestResolveApproveFlow(t *testing.T) {
	db := pg.Fresh(t)
	r := newTestRouter(&database.DB{DB: db})

	rec := do(t, r, http.MethodPost, "/api/resolve", map[string]string{"storeId": "A", "name": "Pimentão Verde Pct"})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: got %d: %s", rec.Code, rec.Body.String())
	}
	var first catalog.Resolution
	decode(t, rec, &first)
	if first.Outcome != catalog.OutcomeQueuedInbox || first.InboxID == nil {
		t.Fatalf("got %+v, want queued_inbox", first)
	}

	rec = do(t, r, http.MethodPost, fmt.Sprintf("/api/inbox/%d/create", *first.InboxID),
		map[string]string{"storeId": "A", "code": "07096000", "name": "Pimentão Verde Pacote"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodPost, "/api/resolve", map[string]string{"storeId": "A", "name": "PIMENTAO VERDE PACOTE"})
	var second catalog.Resolution
	decode(t, rec, &second)
	if second.Outcome != catalog.OutcomeMatchedByAlias {
		t.Errorf("got %s, want matched_by_alias", second.Outcome)
	}

	if rec := do(t, r, http.MethodGet, "/api/products/07096000", nil); rec.Code != http.StatusOK {
		t.Errorf("get product: got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/products/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing product: got %d, want 404", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, fmt.Sprintf("/api/inbox/%d", *first.InboxID), nil); rec.Code != http.StatusNotFound {
		t.Errorf("dismiss approved item: got %d, want 404", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/api/inbox?store=A", nil)
	var items []map[string]interface{}
	decode(t, rec, &items)
	if len(items) != 0 {
		t.Errorf("got %d inbox items, want 0", len(items))
	}
}

func TestImportSpreadsheetEndpoint(t *testing.T) {
	db := pg.Fresh(t)
	r := newTestRouter(&database.DB{DB: db})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "produtos.csv")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("codigo;nome\nC1;Cebola Pct\n;CEBOLA PACOTE\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/spreadsheet?store=A", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var res importer.RowsResult
	decode(t, rec, &res)
	if res.Counts["upsert_by_code"] != 1 || res.Counts["matched_by_alias"] != 1 {
		t.Errorf("got counts %v", res.Counts)
	}
}

func TestMinScoreOutOfRange(t *testing.T) {
	r := newTestRouter(nil)
	for _, path := range []string{
		"/api/suggest?name=alface&minScore=150",
		"/api/suggest?name=alface&minScore=-1",
	} {
		if rec := do(t, r, http.MethodGet, path, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s: got %d, want 400", path, rec.Code)
		}
	}
	rec := do(t, r, http.MethodPost, "/api/import/spreadsheet?store=A&minScore=101", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("spreadsheet: got %d, want 400", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["field"] != "minScore" {
		t.Errorf("got field %q, want minScore", body["field"])
	}
}

func TestImportSpreadsheetRequiresStore(t *testing.T) {
	r := newTestRouter(nil)
	rec := do(t, r, http.MethodPost, "/api/import/spreadsheet", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", rec.Code)
	}
}

func listen(t *testing.T, srv *httptest.Server, store string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?store=" + store
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func nextEvent(conn *gorillaws.Conn, wait time.Duration) (*websocket.Event, error) {
	conn.SetReadDeadline(time.Now().Add(wait))
	var ev websocket.Event
	if err := conn.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func TestInboxEventsUseItemStore(t *testing.T) {
	db := pg.Fresh(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := websocket.NewHub(nil)
	go hub.Run(ctx)

	r := newTestRouterWithHub(&database.DB{DB: db}, hub)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	storeA := listen(t, srv, "A")
	storeB := listen(t, srv, "B")
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("got %d listeners, want 2", hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := do(t, r, http.MethodPost, "/api/resolve", map[string]string{"storeId": "A", "name": "Quiabo"})
	var res catalog.Resolution
	decode(t, rec, &res)
	if res.InboxID == nil {
		t.Fatalf("got %+v, want a queued item", res)
	}
	// no storeId in the path or body: the item's own store applies
	if rec := do(t, r, http.MethodDelete, fmt.Sprintf("/api/inbox/%d", *res.InboxID), nil); rec.Code != http.StatusOK {
		t.Fatalf("dismiss: got %d: %s", rec.Code, rec.Body.String())
	}

	for _, want := range []string{websocket.EventInboxQueued, websocket.EventInboxResolved} {
		ev, err := nextEvent(storeA, 2*time.Second)
		if err != nil {
			t.Fatalf("store A listener: %v", err)
		}
		if ev.Type != want || ev.StoreID != "A" {
			t.Errorf("got %s for store %q, want %s for A", ev.Type, ev.StoreID, want)
		}
	}
	if ev, err := nextEvent(storeB, 300*time.Millisecond); err == nil {
		t.Errorf("store B listener got %s for store %q", ev.Type, ev.StoreID)
	}
}
