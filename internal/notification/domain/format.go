package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FormatBRL renders an amount the way Brazilian invoices do: R$ 81.000,00.
func FormatBRL(v decimal.Decimal) string {
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	fixed := v.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "R$ " + b.String() + "," + frac
}

// FormatPercent renders a ratio as a one-decimal percentage: 0.8765 -> 87,7%.
func FormatPercent(ratio float64) string {
	pct := decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(1)
	return strings.Replace(pct, ".", ",", 1) + "%"
}

// FormatDate renders a date as dd/mm/yyyy in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02/01/2006")
}

// MonthYear renders a competency period as "março de 2025".
func MonthYear(year int, month time.Month) string {
	if month < time.January || month > time.December {
		return ""
	}
	return monthNames[month-1] + " de " + decimal.NewFromInt(int64(year)).String()
}
