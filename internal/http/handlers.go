package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"kharcha/internal/core"
	"kharcha/internal/store"
)

type createTransactionRequest struct {
	Name     string      `json:"name"`
	Amount   json.Number `json:"amount"`
	Type     string      `json:"type"`
	Date     string      `json:"date"`
	Category string      `json:"category"`
}

type transactionResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Type     string  `json:"type"`
	Date     string  `json:"date"`
	Category string  `json:"category,omitempty"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:       tx.ID,
		Name:     tx.Name,
		Amount:   tx.Amount.Units(),
		Type:     string(tx.Type),
		Date:     tx.Date.String(),
		Category: tx.Category,
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, false, "invalid request body")
		return
	}

	cents, err := core.ParseAmountToCents(req.Amount.String())
	if err != nil {
		respondError(w, r, &core.ValidationError{Field: "amount", Err: err})
		return
	}

	tx := core.Transaction{
		Name:     req.Name,
		Amount:   core.Money{Cents: cents},
		Type:     core.TransactionType(req.Type),
		Category: req.Category,
	}

	if v := strings.TrimSpace(req.Date); v != "" {
		d, derr := core.ParseDate(v)
		if derr != nil {
			respondError(w, r, &core.ValidationError{Field: "date", Err: derr})
			return
		}
		tx.Date = d
	}

	applied, err := s.svc.Create(r.Context(), tx)
	if err != nil {
		var perr *store.PersistenceError
		if errors.As(err, &perr) && applied.ID != "" {
			// The record was applied in memory but the file write failed.
			// The collection stays authoritative, report success with a warning.
			slog.WarnContext(r.Context(), "Transaction applied but not persisted",
				"id", applied.ID, "error", err)
			s.viewCache.Clear()
			writeJSON(w, http.StatusCreated, envelope{
				Success: true,
				Message: "transaction saved, but writing it to disk failed",
				Data:    toTransactionResponse(applied),
			})
			return
		}
		respondError(w, r, err)
		return
	}

	s.viewCache.Clear()
	respondData(w, http.StatusCreated, toTransactionResponse(applied))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	respondData(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.svc.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	s.viewCache.Clear()
	respondMessage(w, http.StatusOK, true, "transaction deleted")
}

type summaryResponse struct {
	Currency  string          `json:"currency"`
	Income    float64         `json:"income"`
	Expense   float64         `json:"expense"`
	Balance   float64         `json:"balance"`
	Formatted formattedTotals `json:"formatted"`
}

type formattedTotals struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("currency")))
	if code == "" {
		code = s.defaultCurrency
	}

	s.serveCachedView(w, r, func(txs []core.Transaction) (any, error) {
		t := core.Summarize(txs)

		income, err := s.formatter.Format(t.Income, code)
		if err != nil {
			return nil, &core.ValidationError{Field: "currency", Err: err}
		}
		// Expenses are stored as magnitudes, display them signed
		expense, err := s.formatter.Format(core.Money{Cents: -t.Expense.Cents}, code)
		if err != nil {
			return nil, &core.ValidationError{Field: "currency", Err: err}
		}
		balance, err := s.formatter.Format(t.Balance, code)
		if err != nil {
			return nil, &core.ValidationError{Field: "currency", Err: err}
		}

		return summaryResponse{
			Currency: code,
			Income:   t.Income.Units(),
			Expense:  t.Expense.Units(),
			Balance:  t.Balance.Units(),
			Formatted: formattedTotals{
				Income:  income,
				Expense: expense,
				Balance: balance,
			},
		}, nil
	})
}

type breakdownEntry struct {
	Category   string  `json:"category"`
	Value      float64 `json:"value"`
	Percentage string  `json:"percentage"`
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	s.serveCachedView(w, r, func(txs []core.Transaction) (any, error) {
		shares := core.CategoryBreakdown(txs)
		out := make([]breakdownEntry, 0, len(shares))
		for _, share := range shares {
			out = append(out, breakdownEntry{
				Category:   share.Category,
				Value:      share.Value.Units(),
				Percentage: share.Percentage,
			})
		}
		return out, nil
	})
}

type trendResponse struct {
	Change float64 `json:"change"`
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	s.serveCachedView(w, r, func(txs []core.Transaction) (any, error) {
		return trendResponse{Change: core.MonthOverMonthChange(txs, s.now())}, nil
	})
}

type monthBucketResponse struct {
	Label   string  `json:"label"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	s.serveCachedView(w, r, func(txs []core.Transaction) (any, error) {
		buckets := core.MonthlySeries(txs)
		out := make([]monthBucketResponse, 0, len(buckets))
		for _, b := range buckets {
			out = append(out, monthBucketResponse{
				Label:   b.Label,
				Income:  b.Income.Units(),
				Expense: b.Expense.Units(),
			})
		}
		return out, nil
	})
}

type dayBucketResponse struct {
	Date    string  `json:"date"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

func (s *Server) handleDailySeries(w http.ResponseWriter, r *http.Request) {
	s.serveCachedView(w, r, func(txs []core.Transaction) (any, error) {
		buckets := core.DailySeries(txs)
		out := make([]dayBucketResponse, 0, len(buckets))
		for _, b := range buckets {
			out = append(out, dayBucketResponse{
				Date:    b.Date.String(),
				Income:  b.Income.Units(),
				Expense: b.Expense.Units(),
				Balance: b.Balance.Units(),
			})
		}
		return out, nil
	})
}

type comparisonResponse struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	s.serveCachedView(w, r, func(txs []core.Transaction) (any, error) {
		pair := core.IncomeVsExpense(txs)
		return comparisonResponse{
			Income:  pair.Income.Units(),
			Expense: pair.Expense.Units(),
		}, nil
	})
}

// serveCachedView answers an aggregation request from the view cache when
// possible, otherwise derives the view from the current collection and
// caches the encoded body.
func (s *Server) serveCachedView(w http.ResponseWriter, r *http.Request, build func([]core.Transaction) (any, error)) {
	key := r.URL.RequestURI()

	if body, found := s.viewCache.Get(key); found {
		slog.DebugContext(r.Context(), "View cache hit", "key", key)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	txs, err := s.svc.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	data, err := build(txs)
	if err != nil {
		respondError(w, r, err)
		return
	}

	body, err := json.Marshal(envelope{Success: true, Data: data})
	if err != nil {
		respondError(w, r, err)
		return
	}
	body = append(body, '\n')

	s.viewCache.Set(key, body)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
