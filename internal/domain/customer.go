package domain

import "fmt"

// Currency is one of the currencies invoices can be denominated in.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyDKK Currency = "DKK"
	CurrencySEK Currency = "SEK"
	CurrencyGBP Currency = "GBP"
)

// ParseCurrency validates a currency code.
func ParseCurrency(code string) (Currency, error) {
	switch c := Currency(code); c {
	case CurrencyEUR, CurrencyUSD, CurrencyDKK, CurrencySEK, CurrencyGBP:
		return c, nil
	}
	return "", fmt.Errorf("unsupported currency %q", code)
}

// Customer owns invoices; all of a customer's invoices share its currency.
type Customer struct {
	ID       int64
	Currency Currency
}
