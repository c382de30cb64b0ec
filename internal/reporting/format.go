package reporting

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const missing = "N/A"

// printer groups thousands the way the exports expect: 1,234,567.
var printer = message.NewPrinter(language.English)

// formatAmount renders a whole-unit amount with grouped thousands.
func formatAmount(v float64) string {
	return printer.Sprintf("%.0f", v)
}

// formatOptionalAmount renders a nullable amount, N/A when absent.
func formatOptionalAmount(v *float64) string {
	if v == nil {
		return missing
	}
	return formatAmount(*v)
}

// formatPrice renders a price as $x,xxx.xx.
func formatPrice(v *float64) string {
	if v == nil {
		return missing
	}
	return "$" + printer.Sprintf("%.2f", *v)
}

// formatFunding renders a fractional funding rate as a percentage.
func formatFunding(v *float64) string {
	if v == nil {
		return missing
	}
	return printer.Sprintf("%.4f%%", *v*100)
}

// formatFraction renders a [0,1] fraction as a percentage with one decimal.
func formatFraction(v float64) string {
	return printer.Sprintf("%.1f", v*100)
}

// formatPercent renders an already-percent value with the given precision.
func formatPercent(v *float64, precision int) string {
	if v == nil {
		return missing
	}
	return printer.Sprintf("%."+strconv.Itoa(precision)+"f%%", *v)
}

// formatMillions renders an amount as x.yM.
func formatMillions(v float64) string {
	return printer.Sprintf("%.1fM", v/1e6)
}
