package core

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyFormatter renders money amounts for display in a given
// currency, with an explicit sign and locale-aware digit grouping,
// e.g. +₹1,234.00 or -$45.00. Formatting never touches the underlying
// cents; all arithmetic stays on raw Money values.
type CurrencyFormatter struct {
	printer *message.Printer
}

// NewCurrencyFormatter builds a formatter for the given BCP 47 locale.
// An unparseable locale falls back to English.
func NewCurrencyFormatter(locale string) *CurrencyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &CurrencyFormatter{printer: message.NewPrinter(tag)}
}

// Format renders the amount in the given ISO 4217 currency. The sign
// is always explicit, even for zero and positive values. Unknown
// currency codes are rejected.
func (f *CurrencyFormatter) Format(m Money, code string) (string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("parse currency %q: %w", code, err)
	}

	sign := "+"
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	symbol := f.printer.Sprint(currency.Symbol(unit))
	digits := f.printer.Sprint(number.Decimal(float64(cents)/100, number.Scale(2)))
	return sign + symbol + digits, nil
}
