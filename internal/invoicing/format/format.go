// Package format renders invoice amounts and dates for display.
package format

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale is used when a locale string is empty or unparseable.
const DefaultLocale = "en-US"

var dateTags = []language.Tag{
	language.Und,
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Indonesian,
}

var dateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"02.01.2006",
	"02/01/2006",
	"02/01/2006",
	"02/01/2006",
}

var dateMatcher = language.NewMatcher(dateTags)

// languages that place the currency symbol after the amount.
var symbolAfter = map[language.Base]bool{}

func init() {
	for _, code := range []string{"de", "fr", "es", "it", "pl", "sv", "fi", "cs", "pt"} {
		base, _ := language.MustParse(code).Base()
		symbolAfter[base] = true
	}
}

// separatorSample is rendered once per printer to learn the locale's grouping and
// decimal separators.
const separatorSample = 12345678.5

// Printer binds a display locale.
type Printer struct {
	tag     language.Tag
	printer *message.Printer
	group   string
	decimal string
}

// NewPrinter parses locale (BCP 47, underscores allowed) and falls back to en-US.
func NewPrinter(locale string) *Printer {
	tag := parseLocale(locale)
	p := &Printer{tag: tag, printer: message.NewPrinter(tag)}
	p.group, p.decimal = separators(p.printer.Sprint(number.Decimal(separatorSample, number.Scale(1))))
	return p
}

// Locale returns the canonical locale tag.
func (p *Printer) Locale() string {
	return p.tag.String()
}

// Currency renders amount in the given ISO 4217 currency.
func (p *Printer) Currency(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return strings.TrimSpace(code + " " + p.number(amount, 2))
	}
	scale, _ := currency.Standard.Rounding(unit)
	num := p.number(amount, scale)
	sym := p.printer.Sprint(currency.Symbol(unit))
	if sym == "" {
		sym = unit.String()
	}
	base, _ := p.tag.Base()
	if symbolAfter[base] {
		return num + " " + sym
	}
	if strings.HasPrefix(num, "-") {
		return "-" + sym + strings.TrimPrefix(num, "-")
	}
	return sym + num
}

// Date renders t with the locale's short date layout. The zero time renders empty.
func (p *Printer) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	_, idx, conf := dateMatcher.Match(p.tag)
	if conf == language.No {
		idx = 0
	}
	return t.Format(dateLayouts[idx])
}

// number renders amount from its exact decimal digits with the locale separators.
func (p *Printer) number(amount decimal.Decimal, scale int) string {
	rounded := amount.Round(int32(scale))
	digits := rounded.Abs().StringFixed(int32(scale))
	intPart, fracPart, _ := strings.Cut(digits, ".")

	var b strings.Builder
	if rounded.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(p.group)
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteString(p.decimal)
		b.WriteString(fracPart)
	}
	return b.String()
}

// separators extracts the grouping and decimal separators from a rendered sample with
// a fractional part. A locale without grouping yields an empty group separator.
func separators(sample string) (group, dec string) {
	var runs []string
	var current strings.Builder
	for _, r := range sample {
		if unicode.IsDigit(r) {
			if current.Len() > 0 {
				runs = append(runs, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteRune(r)
	}
	switch len(runs) {
	case 0:
		return "", "."
	case 1:
		return "", runs[0]
	}
	return runs[0], runs[len(runs)-1]
}

// FormatCurrency renders amount for display in locale.
func FormatCurrency(amount decimal.Decimal, code, locale string) string {
	return NewPrinter(locale).Currency(amount, code)
}

// FormatDate renders t for display in locale.
func FormatDate(t time.Time, locale string) string {
	return NewPrinter(locale).Date(t)
}

func parseLocale(locale string) language.Tag {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}
