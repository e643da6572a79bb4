package format

import (
	"math"
	"strings"

	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SiDef is one SI magnitude a balance can be displayed in.
type SiDef struct {
	Power int
	Text  string
	Value string
}

// Base unit sits at siMid; its Text is replaced by Options.Unit.
const siMid = 8

var SI = []SiDef{
	{Power: -24, Text: "yocto", Value: "y"},
	{Power: -21, Text: "zepto", Value: "z"},
	{Power: -18, Text: "atto", Value: "a"},
	{Power: -15, Text: "femto", Value: "f"},
	{Power: -12, Text: "pico", Value: "p"},
	{Power: -9, Text: "nano", Value: "n"},
	{Power: -6, Text: "micro", Value: "µ"},
	{Power: -3, Text: "milli", Value: "m"},
	{Power: 0, Text: "Unit", Value: "-"},
	{Power: 3, Text: "Kilo", Value: "k"},
	{Power: 6, Text: "Mill", Value: "M"},
	{Power: 9, Text: "Bill", Value: "B"},
	{Power: 12, Text: "Tril", Value: "T"},
	{Power: 15, Text: "Peta", Value: "P"},
	{Power: 18, Text: "Exa", Value: "E"},
	{Power: 21, Text: "Zeta", Value: "Z"},
	{Power: 24, Text: "Yotta", Value: "Y"},
}

// Options control how a balance is rendered. They are passed explicitly to every call.
type Options struct {
	Decimals  int          // Decimal places of the chain's base unit.
	Unit      string       // Base unit symbol.
	WithSi    bool         // Append the SI magnitude and unit.
	WithAll   bool         // Keep every significant fractional digit instead of four.
	TrimZeros bool         // Drop trailing fractional zeros.
	HideUnit  bool         // Append only the SI magnitude.
	ForceUnit string       // SI Value to display in regardless of magnitude.
	Locale    language.Tag // Source of thousand and decimal separators. Zero value is English.
}

func DefaultOptions() Options {
	return Options{
		Decimals: 12,
		Unit:     "VARA",
		WithSi:   true,
	}
}

// FindSi returns the SI definition with the given Value, or the base unit.
func FindSi(value string) SiDef {
	for _, si := range SI {
		if si.Value == value {
			return si
		}
	}
	return SI[siMid]
}

// CalcSi picks the SI magnitude for the decimal digits of an amount.
func CalcSi(digits string, decimals int, forceUnit string) SiDef {
	if forceUnit != "" {
		return FindSi(forceUnit)
	}
	idx := (siMid - 1) + int(math.Ceil(float64(len(digits)-decimals)/3))
	if idx < 0 {
		return SI[0]
	}
	if idx >= len(SI) {
		return SI[len(SI)-1]
	}
	return SI[idx]
}

// FormatBalance renders amount, an integer count of the smallest unit, for display.
func FormatBalance(amount big.Int, opts Options) string {
	if amount.Nil() {
		return "0"
	}
	text := amount.String()
	if text == "0" {
		return "0"
	}
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign = "-"
		text = text[1:]
	}

	si := CalcSi(text, opts.Decimals, opts.ForceUnit)
	mid := len(text) - (opts.Decimals + si.Power)

	pre := "0"
	if mid > 0 {
		pre = text[:mid]
	}

	var post string
	if mid < 0 {
		post = padLeft(text, -mid+len(text))
	} else {
		post = text[mid:]
	}
	keep := 4
	if opts.WithAll {
		keep = max(4, opts.Decimals+si.Power)
	}
	post = padRight(post, keep)[:keep]
	if opts.TrimZeros {
		post = strings.TrimRight(post, "0")
	}

	units := ""
	if opts.WithSi || opts.ForceUnit != "" {
		unit := opts.Unit
		if opts.HideUnit {
			unit = ""
		}
		switch {
		case si.Value != "-":
			units = " " + si.Value + unit
		case unit != "":
			units = " " + unit
		}
	}

	thousand, decimal := Separators(opts.Locale)
	out := sign + groupDigits(pre, thousand)
	if post != "" {
		out += decimal + post
	}
	return out + units
}

// Separators returns the thousand and decimal separators used by the locale.
func Separators(tag language.Tag) (thousand, decimal string) {
	if tag == language.Und {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	grouped := []rune(p.Sprintf("%d", 10000))
	if len(grouped) > 5 {
		thousand = string(grouped[2])
	}
	fraction := []rune(p.Sprintf("%.1f", 0.5))
	decimal = string(fraction[1])
	return thousand, decimal
}

func groupDigits(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteString(sep)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func padLeft(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat("0", n-len(s))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
