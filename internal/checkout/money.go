package checkout

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	defaultLocale   = "es-MX"
	defaultCurrency = "MXN"
)

// FormatAmount renders an amount in minor units for display, e.g.
// 50000 MXN in es-MX as "$500.00".
func FormatAmount(amount int64, currencyCode, locale string) string {
	value := decimal.New(amount, -2)
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" {
		code = defaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return value.StringFixed(2) + " " + code
	}
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.MustParse(defaultLocale)
	}
	p := message.NewPrinter(tag)
	sym := p.Sprint(currency.Symbol(unit))
	num := formatDecimal(p, value)
	if utf8.RuneCountInString(sym) > 1 {
		return sym + " " + num
	}
	return sym + num
}

// formatDecimal prints value with two fraction digits using the printer's
// grouping and decimal separator. The integer and fraction parts are
// formatted as integers so no float rounding is involved.
func formatDecimal(p *message.Printer, value decimal.Decimal) string {
	abs := value.Abs()
	whole := abs.IntPart()
	cents := abs.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()

	var b strings.Builder
	if value.IsNegative() {
		b.WriteString("-")
	}
	b.WriteString(p.Sprint(number.Decimal(whole)))
	b.WriteString(decimalSeparator(p))
	if cents < 10 {
		b.WriteString("0")
	}
	b.WriteString(strconv.FormatInt(cents, 10))
	return b.String()
}

// decimalSeparator reads the locale's separator off a known value.
func decimalSeparator(p *message.Printer) string {
	sample := p.Sprint(number.Decimal(1.5, number.Scale(1)))
	sep := strings.TrimSuffix(strings.TrimPrefix(sample, "1"), "5")
	if sep == "" {
		return "."
	}
	return sep
}
