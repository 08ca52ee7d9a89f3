package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stacks/fines-engine/api"
	"github.com/stacks/fines-engine/fines"
	"github.com/stacks/fines-engine/fines/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	testDue = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	testNow = time.Date(2024, time.January, 1, 3, 30, 0, 0, time.UTC)
)

func newTestServer(t *testing.T) (*api.Handler, *store.Memory, http.Handler) {
	t.Helper()

	m := store.NewMemory()
	m.AddBorrower(fines.Borrower{UserID: "U-1", Name: "Alice Reyes", IDNumber: "2021-00145"})
	m.AddBorrower(fines.Borrower{UserID: "U-2", Name: "Ben Santos", IDNumber: "2022-00873"})
	m.AddBorrow("BRW-1", "U-1", "ACC-1001", "The Go Programming Language", testDue)
	m.AddBorrow("BRW-2", "U-2", "ACC-1002", "Designing Data-Intensive Applications", testNow)

	h := api.NewHandler(m, fines.WriterPrinter{W: io.Discard})
	h.Now = func() time.Time { return testNow }
	return h, m, api.NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

// newPayServer builds a router over a single seeded borrow with the given
// printer, for tests that need to control receipt emission.
func newPayServer(t *testing.T, printer fines.Printer) http.Handler {
	t.Helper()

	m := store.NewMemory()
	m.AddBorrower(fines.Borrower{UserID: "U-1", Name: "Alice Reyes", IDNumber: "2021-00145"})
	m.AddBorrow("BRW-1", "U-1", "ACC-1001", "The Go Programming Language", testDue)

	h := api.NewHandler(m, printer)
	h.Now = func() time.Time { return testNow }
	return api.NewRouter(h)
}

func payRequest() api.PayRequest {
	return api.PayRequest{
		BorrowerName:    "Alice Reyes",
		IDNumber:        "2021-00145",
		AccessionNumber: "ACC-1001",
		BookTitle:       "The Go Programming Language",
		Fine:            "7.00",
	}
}

// =============================================================================
// OVERDUE VIEW
// =============================================================================

func TestListFines_ReturnsOverdueView(t *testing.T) {
	_, m, router := newTestServer(t)

	var resp api.FineListResponse
	rec := doJSON(t, router, http.MethodGet, "/api/fines", nil, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Fines, 2)

	overdue := resp.Fines[0]
	assert.Equal(t, "BRW-1", overdue.BorrowID)
	assert.Equal(t, "Alice Reyes", overdue.BorrowerName)
	assert.Equal(t, "7.00", overdue.Fine)
	assert.Equal(t, "₱ 7.00", overdue.FineDisplay)
	assert.True(t, overdue.Overdue)

	current := resp.Fines[1]
	assert.Equal(t, "0.00", current.Fine)
	assert.False(t, current.Overdue)

	// The view load also refreshed the stored fine.
	stored, ok := m.StoredFine("BRW-1")
	require.True(t, ok)
	assert.True(t, stored.Equal(decimal.NewFromInt(7)))
}

func TestListFines_SearchFilter(t *testing.T) {
	_, _, router := newTestServer(t)

	var resp api.FineListResponse
	rec := doJSON(t, router, http.MethodGet, "/api/fines?q=alice", nil, &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Fines, 1)
	assert.Equal(t, "Alice Reyes", resp.Fines[0].BorrowerName)

	rec = doJSON(t, router, http.MethodGet, "/api/fines?q=acc-1002", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Fines, 1)
	assert.Equal(t, "BRW-2", resp.Fines[0].BorrowID)
}

// =============================================================================
// SETTLEMENT FLOW
// =============================================================================

func TestPayThenConfirm_SettlesFine(t *testing.T) {
	_, m, router := newTestServer(t)

	var created api.SessionDTO
	rec := doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), &created)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "receipt_emitted", created.State)
	require.NotNil(t, created.Receipt)
	assert.Equal(t, "7.00", created.Receipt.Fine)
	assert.Contains(t, created.Receipt.Body, "₱ 7.00")
	assert.True(t, m.ShelfStatus("ACC-1001"), "shelf flips at initiation")

	var confirmed api.SessionDTO
	rec = doJSON(t, router, http.MethodPost, "/api/settlements/"+created.SessionID+"/confirm", nil, &confirmed)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", confirmed.State)

	stored, ok := m.StoredFine("BRW-1")
	require.True(t, ok)
	assert.True(t, stored.IsZero())

	date, tm := m.ReturnTimestamps("BRW-1")
	assert.Equal(t, "2024-01-01", date)
	assert.Equal(t, "03:30:00", tm)
}

func TestPayThenAbandon_FineStaysOwed(t *testing.T) {
	_, m, router := newTestServer(t)

	// Seed the stored fine the way a view load would have.
	var list api.FineListResponse
	doJSON(t, router, http.MethodGet, "/api/fines", nil, &list)

	var created api.SessionDTO
	rec := doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), &created)
	require.Equal(t, http.StatusCreated, rec.Code)

	var abandoned api.SessionDTO
	rec = doJSON(t, router, http.MethodPost, "/api/settlements/"+created.SessionID+"/abandon", nil, &abandoned)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unconfirmed", abandoned.State)
	assert.Contains(t, abandoned.Message, "payment unsuccessful")

	stored, ok := m.StoredFine("BRW-1")
	require.True(t, ok)
	assert.True(t, stored.Equal(decimal.NewFromInt(7)), "fine unchanged")

	date, _ := m.ReturnTimestamps("BRW-1")
	assert.Empty(t, date)
	assert.True(t, m.ShelfStatus("ACC-1001"), "shelf flip survives abandonment")
}

func TestPay_SecondLiveSessionRejected(t *testing.T) {
	_, _, router := newTestServer(t)

	var first api.SessionDTO
	rec := doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), &first)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Once resolved, a new session is allowed again.
	rec = doJSON(t, router, http.MethodPost, "/api/settlements/"+first.SessionID+"/abandon", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

// gatedPrinter blocks inside Print until released, holding its caller
// mid-initiation.
type gatedPrinter struct {
	entered chan struct{}
	release chan struct{}
}

func (p *gatedPrinter) Print(_ context.Context, _ fines.Receipt) error {
	p.entered <- struct{}{}
	<-p.release
	return nil
}

func TestPay_ConcurrentInitiation_SingleSession(t *testing.T) {
	// Two simultaneous pay requests for the same record: the first claims the
	// record before its receipt is emitted, so the second conflicts even while
	// the first is still mid-initiation.

	printer := &gatedPrinter{entered: make(chan struct{}), release: make(chan struct{})}
	router := newPayServer(t, printer)

	first := make(chan int, 1)
	go func() {
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(payRequest())
		req := httptest.NewRequest(http.MethodPost, "/api/fines/BRW-1/pay", &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		first <- rec.Code
	}()

	<-printer.entered // first request is now inside receipt emission

	rec := doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(printer.release)
	assert.Equal(t, http.StatusCreated, <-first)
}

// flakyPrinter fails until its error is cleared.
type flakyPrinter struct{ err error }

func (p *flakyPrinter) Print(_ context.Context, _ fines.Receipt) error { return p.err }

func TestPay_ClaimReleasedWhenReceiptFails(t *testing.T) {
	printer := &flakyPrinter{err: errors.New("spooler offline")}
	router := newPayServer(t, printer)

	rec := doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The failed initiation must not keep the record claimed.
	printer.err = nil
	rec = doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSessions_ResolvedSessionEvictedOnNewClaim(t *testing.T) {
	_, _, router := newTestServer(t)

	var first api.SessionDTO
	rec := doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), &first)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/settlements/"+first.SessionID+"/abandon", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var second api.SessionDTO
	rec = doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), &second)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Claiming the record again evicted the resolved session.
	rec = doJSON(t, router, http.MethodGet, "/api/settlements/"+first.SessionID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/api/settlements/"+second.SessionID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirm_Errors(t *testing.T) {
	_, _, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/settlements/nope/confirm", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var created api.SessionDTO
	rec = doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), &created)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/settlements/"+created.SessionID+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A second terminal delivery conflicts.
	rec = doJSON(t, router, http.MethodPost, "/api/settlements/"+created.SessionID+"/confirm", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/settlements/"+created.SessionID+"/abandon", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPay_InvalidBody(t *testing.T) {
	_, _, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/fines/BRW-1/pay", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := payRequest()
	bad.Fine = "seven"
	rec = doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", bad, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSettlement_ReportsState(t *testing.T) {
	_, _, router := newTestServer(t)

	var created api.SessionDTO
	rec := doJSON(t, router, http.MethodPost, "/api/fines/BRW-1/pay", payRequest(), &created)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got api.SessionDTO
	rec = doJSON(t, router, http.MethodGet, "/api/settlements/"+created.SessionID, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "receipt_emitted", got.State)
	assert.Equal(t, "BRW-1", got.BorrowID)
}
