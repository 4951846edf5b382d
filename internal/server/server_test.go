package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/revrec/internal/config"
	invoicedomain "github.com/smallbiznis/revrec/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/revrec/internal/ledger/domain"
	"github.com/smallbiznis/revrec/internal/observability"
	recognitiondomain "github.com/smallbiznis/revrec/internal/recognition/domain"
	"github.com/smallbiznis/revrec/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeInvoiceService struct {
	importReq  invoicedomain.ImportInvoiceRequest
	statusReq  invoicedomain.UpdateStatusRequest
	importErr  error
	statusErr  error
	getErr     error
	importedID snowflake.ID
}

func (f *fakeInvoiceService) Import(ctx context.Context, req invoicedomain.ImportInvoiceRequest) (invoicedomain.InvoiceDetail, error) {
	f.importReq = req
	if f.importErr != nil {
		return invoicedomain.InvoiceDetail{}, f.importErr
	}
	return invoicedomain.InvoiceDetail{
		Invoice:   invoicedomain.Invoice{ID: f.importedID, Status: invoicedomain.InvoiceStatusPaid},
		LineItems: []invoicedomain.InvoiceLineItem{},
	}, nil
}

func (f *fakeInvoiceService) UpdateStatus(ctx context.Context, req invoicedomain.UpdateStatusRequest) (invoicedomain.Invoice, error) {
	f.statusReq = req
	if f.statusErr != nil {
		return invoicedomain.Invoice{}, f.statusErr
	}
	return invoicedomain.Invoice{ID: 1, Status: invoicedomain.InvoiceStatus(req.Status)}, nil
}

func (f *fakeInvoiceService) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceDetail, error) {
	if f.getErr != nil {
		return invoicedomain.InvoiceDetail{}, f.getErr
	}
	return invoicedomain.InvoiceDetail{Invoice: invoicedomain.Invoice{ID: 1}}, nil
}

type fakeLedgerService struct {
	records []ledgerdomain.RevenueRecord
	listReq ledgerdomain.ListRevenueRequest
	listErr error
}

func (f *fakeLedgerService) ListByFamily(ctx context.Context, req ledgerdomain.ListRevenueRequest) (ledgerdomain.ListRevenueResponse, error) {
	f.listReq = req
	if f.listErr != nil {
		return ledgerdomain.ListRevenueResponse{}, f.listErr
	}
	return ledgerdomain.ListRevenueResponse{
		PageInfo: pagination.PageInfo{NextPageToken: "next", HasMore: true},
		Records:  f.records,
	}, nil
}

func (f *fakeLedgerService) ListByInvoice(ctx context.Context, invoiceID string) ([]ledgerdomain.RevenueRecord, error) {
	if _, err := snowflake.ParseString(invoiceID); err != nil {
		return nil, ledgerdomain.ErrInvalidInvoiceID
	}
	return f.records, nil
}

type fakeRecognitionService struct {
	replayed []string
}

func (f *fakeRecognitionService) OnInvoiceInserted(ctx context.Context, tx *gorm.DB, invoice invoicedomain.Invoice) (recognitiondomain.Outcome, error) {
	return recognitiondomain.Outcome{}, nil
}

func (f *fakeRecognitionService) OnInvoiceStatusChanged(ctx context.Context, tx *gorm.DB, previous invoicedomain.InvoiceStatus, invoice invoicedomain.Invoice) (recognitiondomain.Outcome, error) {
	return recognitiondomain.Outcome{}, nil
}

func (f *fakeRecognitionService) Replay(ctx context.Context, invoiceID string) (recognitiondomain.Outcome, error) {
	f.replayed = append(f.replayed, invoiceID)
	if invoiceID == "404" {
		return recognitiondomain.Outcome{}, recognitiondomain.ErrInvoiceNotFound
	}
	return recognitiondomain.Outcome{Path: recognitiondomain.PathReplay, Eligible: true, Candidates: 1}, nil
}

func (f *fakeRecognitionService) ReplayPaid(ctx context.Context) (recognitiondomain.ReplaySummary, error) {
	return recognitiondomain.ReplaySummary{Invoices: 3, Eligible: 2, Inserted: 4}, nil
}

type testServer struct {
	srv         *Server
	invoices    *fakeInvoiceService
	ledger      *fakeLedgerService
	recognition *fakeRecognitionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	invoices := &fakeInvoiceService{importedID: 77}
	ledger := &fakeLedgerService{records: []ledgerdomain.RevenueRecord{{
		ID:      5,
		Revenue: decimal.RequireFromString("120.00"),
		Source:  ledgerdomain.SourceTypeInvoice,
	}}}
	recognition := &fakeRecognitionService{}

	srv := NewServer(ServerParams{
		Gin:            NewEngine(observability.Config{Environment: "test"}, nil),
		Cfg:            config.Config{Environment: "test"},
		InvoiceSvc:     invoices,
		LedgerSvc:      ledger,
		RecognitionSvc: recognition,
	})
	return &testServer{srv: srv, invoices: invoices, ledger: ledger, recognition: recognition}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestImportInvoiceReturnsRevenue(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/invoices/import", map[string]any{
		"family_id":    "42",
		"status":       "paid",
		"invoice_date": "2026-03-01",
		"line_items": []map[string]any{
			{"description": "Tutoring", "amount": "120.00"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "42", ts.invoices.importReq.FamilyID)
	require.Len(t, ts.invoices.importReq.LineItems, 1)
	assert.Equal(t, "120.00", ts.invoices.importReq.LineItems[0].Amount)

	var resp struct {
		Data struct {
			Revenue []map[string]any `json:"revenue"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Revenue, 1)
}

func TestImportInvoiceMapsErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		errType string
		errCode string
	}{
		{"validation", invoicedomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error", "invalid_amount"},
		{"duplicate", invoicedomain.ErrInvoiceExists, http.StatusConflict, "conflict", ""},
		{"internal", assert.AnError, http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.invoices.importErr = tc.err

			rec := ts.do(t, http.MethodPost, "/api/invoices/import", map[string]any{"family_id": "42"})
			assert.Equal(t, tc.status, rec.Code)

			payload := decodeError(t, rec)
			assert.Equal(t, tc.errType, payload.Type)
			if tc.errCode != "" {
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tc.errCode, payload.Errors[0].Code)
				assert.Equal(t, "amount", payload.Errors[0].Field)
			}
		})
	}
}

func TestImportInvoiceRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/invoices/import", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_request", payload.Errors[0].Code)
}

func TestUpdateInvoiceStatusUsesPathID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/invoices/123/status", map[string]any{"status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "123", ts.invoices.statusReq.ID)
	assert.Equal(t, "paid", ts.invoices.statusReq.Status)
}

func TestGetInvoiceNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.invoices.getErr = invoicedomain.ErrInvoiceNotFound

	rec := ts.do(t, http.MethodGet, "/api/invoices/123", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestListInvoiceRevenue(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/invoices/123/revenue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/invoices/abc/revenue", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRevenueBindsQuery(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/revenue?family_id=9&page_size=10&page_token=abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9", ts.ledger.listReq.FamilyID)
	assert.Equal(t, 10, ts.ledger.listReq.PageSize)
	assert.Equal(t, "abc", ts.ledger.listReq.PageToken)

	var resp struct {
		Data     []ledgerdomain.RevenueRecord `json:"data"`
		PageInfo pagination.PageInfo          `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.True(t, resp.PageInfo.HasMore)
	assert.Equal(t, "next", resp.PageInfo.NextPageToken)
}

func TestListRevenueMapsErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/revenue?page_size=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.ledger.listErr = pagination.ErrInvalidPageToken
	rec = ts.do(t, http.MethodGet, "/api/revenue?family_id=9&page_token=bad", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_page_token", decodeError(t, rec).Errors[0].Code)
}

func TestReplayInvoiceRevenue(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/invoices/123/revenue/replay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"123"}, ts.recognition.replayed)

	rec = ts.do(t, http.MethodPost, "/api/invoices/404/revenue/replay", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReplayPaidRevenue(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/revenue/replay", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data recognitiondomain.ReplaySummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.Data.Inserted)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
