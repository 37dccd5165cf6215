package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/service"
	"kharcha/internal/store/file"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := file.Open(filepath.Join(t.TempDir(), "transactions.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	svc := service.NewTransactionService(st, nil)
	s := NewServer(":0", svc, core.NewCurrencyFormatter("en"), "USD")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	var env testEnvelope
	if len(rec.Body.Bytes()) > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, env
}

func mustUnmarshal(t *testing.T, raw json.RawMessage, out any) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode data: %v (data %q)", err, string(raw))
	}
}

func TestCreateTransaction(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/transaction",
		`{"name":"Salary","amount":1000,"type":"income"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Errorf("success = false, want true")
	}

	var tx transactionResponse
	mustUnmarshal(t, env.Data, &tx)
	if tx.ID == "" {
		t.Error("saved record should carry an id")
	}
	if tx.Name != "Salary" || tx.Amount != 1000 || tx.Type != "income" {
		t.Errorf("saved record = %+v", tx)
	}
	if tx.Date == "" {
		t.Error("date should default to today")
	}
}

func TestCreateTransactionAcceptsStringAmount(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/transaction",
		`{"name":"Coffee","amount":"3,50","type":"expense","category":"Food"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var tx transactionResponse
	mustUnmarshal(t, env.Data, &tx)
	if tx.Amount != 3.5 {
		t.Errorf("amount = %v, want 3.5", tx.Amount)
	}
	if tx.Category != "food" {
		t.Errorf("category = %q, want normalized %q", tx.Category, "food")
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing name", `{"amount":10,"type":"expense"}`, "name"},
		{"missing amount", `{"name":"x","type":"expense"}`, "amount"},
		{"negative amount", `{"name":"x","amount":-5,"type":"expense"}`, "amount"},
		{"zero amount", `{"name":"x","amount":0,"type":"expense"}`, "amount"},
		{"bad type", `{"name":"x","amount":10,"type":"transfer"}`, "type"},
		{"bad date", `{"name":"x","amount":10,"type":"expense","date":"15/03/2025"}`, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec, env := do(t, s, http.MethodPost, "/transaction", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if env.Success {
				t.Error("success = true, want false")
			}
			if !strings.Contains(env.Message, tt.wantField) {
				t.Errorf("message %q should name field %q", env.Message, tt.wantField)
			}

			listRec, listEnv := do(t, s, http.MethodGet, "/transactions", "")
			if listRec.Code != http.StatusOK {
				t.Fatalf("list status = %d", listRec.Code)
			}
			var txs []transactionResponse
			mustUnmarshal(t, listEnv.Data, &txs)
			if len(txs) != 0 {
				t.Errorf("rejected input must not mutate the collection, have %d", len(txs))
			}
		})
	}
}

func TestCreateTransactionMalformedBody(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodPost, "/transaction", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListTransactionsPreservesOrder(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/transaction", `{"name":"Salary","amount":1000,"type":"income"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Lunch","amount":20,"type":"expense","category":"food"}`)

	rec, env := do(t, s, http.MethodGet, "/transactions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var txs []transactionResponse
	mustUnmarshal(t, env.Data, &txs)
	if len(txs) != 2 {
		t.Fatalf("len = %d, want 2", len(txs))
	}
	if txs[0].Name != "Salary" || txs[1].Name != "Lunch" {
		t.Errorf("order not preserved: %q, %q", txs[0].Name, txs[1].Name)
	}
}

func TestDeleteTransaction(t *testing.T) {
	s := newTestServer(t)

	_, env := do(t, s, http.MethodPost, "/transaction", `{"name":"Lunch","amount":20,"type":"expense"}`)
	var tx transactionResponse
	mustUnmarshal(t, env.Data, &tx)

	rec, delEnv := do(t, s, http.MethodDelete, "/transaction/"+tx.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if !delEnv.Success {
		t.Error("success = false, want true")
	}

	_, listEnv := do(t, s, http.MethodGet, "/transactions", "")
	var txs []transactionResponse
	mustUnmarshal(t, listEnv.Data, &txs)
	if len(txs) != 0 {
		t.Errorf("collection should be empty, have %d", len(txs))
	}
}

func TestDeleteUnknownTransaction(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodDelete, "/transaction/999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env.Success {
		t.Error("success = true, want false")
	}
}

func TestSummary(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/transaction", `{"name":"Salary","amount":1000,"type":"income"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Lunch","amount":20,"type":"expense","category":"food"}`)

	rec, env := do(t, s, http.MethodGet, "/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var sum summaryResponse
	mustUnmarshal(t, env.Data, &sum)
	if sum.Income != 1000 || sum.Expense != 20 || sum.Balance != 980 {
		t.Errorf("totals = %+v, want income=1000 expense=20 balance=980", sum)
	}
	if sum.Currency != "USD" {
		t.Errorf("currency = %q, want default USD", sum.Currency)
	}
	if sum.Formatted.Income != "+$1,000.00" {
		t.Errorf("formatted income = %q, want +$1,000.00", sum.Formatted.Income)
	}
	if sum.Formatted.Expense != "-$20.00" {
		t.Errorf("formatted expense = %q, want -$20.00", sum.Formatted.Expense)
	}
	if sum.Formatted.Balance != "+$980.00" {
		t.Errorf("formatted balance = %q, want +$980.00", sum.Formatted.Balance)
	}
}

func TestSummaryCurrencyParam(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/transaction", `{"name":"Salary","amount":1234,"type":"income"}`)

	rec, env := do(t, s, http.MethodGet, "/summary?currency=INR", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var sum summaryResponse
	mustUnmarshal(t, env.Data, &sum)
	if sum.Currency != "INR" {
		t.Errorf("currency = %q, want INR", sum.Currency)
	}
	if sum.Formatted.Income != "+₹1,234.00" {
		t.Errorf("formatted income = %q, want +₹1,234.00", sum.Formatted.Income)
	}
}

func TestSummaryUnknownCurrency(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/summary?currency=NOPE", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(env.Message, "currency") {
		t.Errorf("message %q should name the currency parameter", env.Message)
	}
}

func TestBreakdown(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/transaction", `{"name":"Salary","amount":1000,"type":"income"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Lunch","amount":20,"type":"expense","category":"food"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Cash","amount":5,"type":"expense"}`)

	rec, env := do(t, s, http.MethodGet, "/breakdown", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var shares []breakdownEntry
	mustUnmarshal(t, env.Data, &shares)
	if len(shares) != 1 {
		t.Fatalf("len = %d, want 1 (uncategorized excluded)", len(shares))
	}
	if shares[0].Category != "food" || shares[0].Value != 20 || shares[0].Percentage != "100.0" {
		t.Errorf("share = %+v, want food/20/100.0", shares[0])
	}
}

func TestTrend(t *testing.T) {
	s := newTestServer(t)
	s.now = func() time.Time { return time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC) }

	do(t, s, http.MethodPost, "/transaction", `{"name":"Rent","amount":100,"type":"expense","date":"2025-01-05"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Rent","amount":150,"type":"expense","date":"2025-02-05"}`)

	rec, env := do(t, s, http.MethodGet, "/trend", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var trend trendResponse
	mustUnmarshal(t, env.Data, &trend)
	if trend.Change != 50 {
		t.Errorf("change = %v, want 50", trend.Change)
	}
}

func TestMonthlySeries(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/transaction", `{"name":"Salary","amount":1000,"type":"income","date":"2025-01-31"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Rent","amount":400,"type":"expense","date":"2025-01-01"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Rent","amount":400,"type":"expense","date":"2024-12-01"}`)

	rec, env := do(t, s, http.MethodGet, "/series/monthly", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var buckets []monthBucketResponse
	mustUnmarshal(t, env.Data, &buckets)
	if len(buckets) != 2 {
		t.Fatalf("len = %d, want 2", len(buckets))
	}
	if buckets[0].Label != "Dec 24" || buckets[1].Label != "Jan 25" {
		t.Errorf("labels = %q, %q, want Dec 24 then Jan 25", buckets[0].Label, buckets[1].Label)
	}
	if buckets[1].Income != 1000 || buckets[1].Expense != 400 {
		t.Errorf("jan bucket = %+v", buckets[1])
	}
}

func TestDailySeries(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/transaction", `{"name":"Salary","amount":100,"type":"income","date":"2025-03-02"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Lunch","amount":20,"type":"expense","date":"2025-03-02"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Coffee","amount":5,"type":"expense","date":"2025-03-01"}`)

	rec, env := do(t, s, http.MethodGet, "/series/daily", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var buckets []dayBucketResponse
	mustUnmarshal(t, env.Data, &buckets)
	if len(buckets) != 2 {
		t.Fatalf("len = %d, want 2", len(buckets))
	}
	if buckets[0].Date != "2025-03-01" || buckets[0].Balance != -5 {
		t.Errorf("first bucket = %+v, want 2025-03-01 balance=-5", buckets[0])
	}
	if buckets[1].Date != "2025-03-02" || buckets[1].Balance != 80 {
		t.Errorf("second bucket = %+v, want 2025-03-02 balance=80", buckets[1])
	}
}

func TestComparison(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/transaction", `{"name":"Salary","amount":1000,"type":"income"}`)
	do(t, s, http.MethodPost, "/transaction", `{"name":"Lunch","amount":20,"type":"expense"}`)

	rec, env := do(t, s, http.MethodGet, "/comparison", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var pair comparisonResponse
	mustUnmarshal(t, env.Data, &pair)
	if pair.Income != 1000 || pair.Expense != 20 {
		t.Errorf("pair = %+v, want income=1000 expense=20", pair)
	}
}

func TestViewCacheInvalidatedOnMutation(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/transaction", `{"name":"Salary","amount":1000,"type":"income"}`)

	_, env := do(t, s, http.MethodGet, "/summary", "")
	var before summaryResponse
	mustUnmarshal(t, env.Data, &before)
	if before.Income != 1000 {
		t.Fatalf("income = %v, want 1000", before.Income)
	}

	do(t, s, http.MethodPost, "/transaction", `{"name":"Bonus","amount":500,"type":"income"}`)

	_, env = do(t, s, http.MethodGet, "/summary", "")
	var after summaryResponse
	mustUnmarshal(t, env.Data, &after)
	if after.Income != 1500 {
		t.Errorf("income after mutation = %v, want 1500", after.Income)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/transaction", "")
	if rec.Code != http.StatusMethodNotAllowed && rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 405 or 404", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}

	rec, _ = do(t, s, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", rec.Code)
	}
}
