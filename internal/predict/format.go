package predict

import (
	"errors"
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrNonFinite is returned when the model produces NaN or an infinity
var ErrNonFinite = errors.New("prediction is not a finite number")

var printer = message.NewPrinter(language.English)

// FormatPrice renders v as US dollars with thousands separators and exactly
// two decimals: 1234.5 -> "$1,234.50", -12 -> "$-12.00".
func FormatPrice(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", ErrNonFinite
	}
	// round on the binary value first so grouping never rounds a second time
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return "", err
	}
	if rounded == 0 {
		// avoid "$-0.00"
		rounded = 0
	}
	return "$" + printer.Sprintf("%.2f", rounded), nil
}
