package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Totals are the three headline figures derived from a collection.
// Balance is always Income minus Expense.
type Totals struct {
	Income  Money
	Expense Money
	Balance Money
}

// CategoryShare is one slice of the expense breakdown. Percentage is
// the share of the expense total, rounded to one decimal, as text
// ready for display ("42.5").
type CategoryShare struct {
	Category   string
	Value      Money
	Percentage string
}

// MonthBucket sums income and expense for one calendar month. Buckets
// are keyed by (Year, Month); Label is the abbreviated display form.
type MonthBucket struct {
	Year    int
	Month   time.Month
	Label   string // e.g. "Jan 25"
	Income  Money
	Expense Money
}

// DayBucket sums income, expense, and the day's net balance for one
// calendar date.
type DayBucket struct {
	Date    Date
	Income  Money
	Expense Money
	Balance Money
}

// ComparisonPair is the two-value income-vs-expense summary.
type ComparisonPair struct {
	Income  Money
	Expense Money
}

// Summarize reduces a collection to its totals. Insertion order is
// irrelevant; addition on cents is exact and commutative.
func Summarize(txs []Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			t.Income = t.Income.Add(tx.Amount)
		case Expense:
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// CategoryBreakdown groups expense transactions by category and
// computes each group's share of the expense total. Expenses without a
// category are excluded rather than bucketed as "other". Groups keep
// first-appearance order so repeated calls on the same input yield the
// same slice.
func CategoryBreakdown(txs []Transaction) []CategoryShare {
	sums := make(map[string]int64)
	var order []string
	var total int64
	for _, tx := range txs {
		if tx.Type != Expense || tx.Category == "" {
			continue
		}
		if _, seen := sums[tx.Category]; !seen {
			order = append(order, tx.Category)
		}
		sums[tx.Category] += tx.Amount.Cents
		total += tx.Amount.Cents
	}
	if total == 0 {
		return nil
	}
	shares := make([]CategoryShare, 0, len(order))
	for _, cat := range order {
		pct := math.Round(float64(sums[cat])/float64(total)*1000) / 10
		shares = append(shares, CategoryShare{
			Category:   cat,
			Value:      Money{Cents: sums[cat]},
			Percentage: fmt.Sprintf("%.1f", pct),
		})
	}
	return shares
}

// MonthOverMonthChange compares this calendar month's expense sum to
// the previous month's, as a signed percentage. It returns 0 when the
// previous month has no expenses.
func MonthOverMonthChange(txs []Transaction, now time.Time) float64 {
	currYear, currMonth := now.Year(), now.Month()
	prevYear, prevMonth := currYear, currMonth-1
	if prevMonth < time.January {
		prevYear, prevMonth = currYear-1, time.December
	}

	var curr, prev int64
	for _, tx := range txs {
		if tx.Type != Expense {
			continue
		}
		y, m := tx.Date.Year(), tx.Date.Month()
		switch {
		case y == currYear && m == currMonth:
			curr += tx.Amount.Cents
		case y == prevYear && m == prevMonth:
			prev += tx.Amount.Cents
		}
	}
	if prev == 0 {
		return 0
	}
	return float64(curr-prev) / float64(prev) * 100
}

// MonthlySeries groups the collection by calendar month, sorted
// chronologically. Buckets are keyed by (year, month) so ordering is
// correct across year boundaries regardless of the display label.
func MonthlySeries(txs []Transaction) []MonthBucket {
	type monthKey struct {
		year  int
		month time.Month
	}
	buckets := make(map[monthKey]*MonthBucket)
	for _, tx := range txs {
		key := monthKey{tx.Date.Year(), tx.Date.Month()}
		b, ok := buckets[key]
		if !ok {
			b = &MonthBucket{
				Year:  key.year,
				Month: key.month,
				Label: time.Date(key.year, key.month, 1, 0, 0, 0, 0, time.UTC).Format("Jan 06"),
			}
			buckets[key] = b
		}
		switch tx.Type {
		case Income:
			b.Income = b.Income.Add(tx.Amount)
		case Expense:
			b.Expense = b.Expense.Add(tx.Amount)
		}
	}
	series := make([]MonthBucket, 0, len(buckets))
	for _, b := range buckets {
		series = append(series, *b)
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Year != series[j].Year {
			return series[i].Year < series[j].Year
		}
		return series[i].Month < series[j].Month
	})
	return series
}

// DailySeries groups the collection by calendar date, sorted ascending
// by the actual date value. Balance is the day's income minus the
// day's expense.
func DailySeries(txs []Transaction) []DayBucket {
	buckets := make(map[Date]*DayBucket)
	for _, tx := range txs {
		day := DateOf(tx.Date.Time)
		b, ok := buckets[day]
		if !ok {
			b = &DayBucket{Date: day}
			buckets[day] = b
		}
		switch tx.Type {
		case Income:
			b.Income = b.Income.Add(tx.Amount)
			b.Balance = b.Balance.Add(tx.Amount)
		case Expense:
			b.Expense = b.Expense.Add(tx.Amount)
			b.Balance = b.Balance.Sub(tx.Amount)
		}
	}
	series := make([]DayBucket, 0, len(buckets))
	for _, b := range buckets {
		series = append(series, *b)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date.Time)
	})
	return series
}

// IncomeVsExpense reduces the collection to the two-value comparison
// used by the binary income/expense view.
func IncomeVsExpense(txs []Transaction) ComparisonPair {
	t := Summarize(txs)
	return ComparisonPair{Income: t.Income, Expense: t.Expense}
}
