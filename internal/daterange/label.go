package daterange

import (
	"fmt"
	"time"
)

var monthNamesES = [...]string{
	time.January:   "enero",
	time.February:  "febrero",
	time.March:     "marzo",
	time.April:     "abril",
	time.May:       "mayo",
	time.June:      "junio",
	time.July:      "julio",
	time.August:    "agosto",
	time.September: "septiembre",
	time.October:   "octubre",
	time.November:  "noviembre",
	time.December:  "diciembre",
}

// LongES formats d as "10 de julio".
func (d Day) LongES() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d de %s", d.Day, monthNamesES[d.Month])
}

// Label returns the range caption shown above the event list,
// e.g. "Del 10 de julio al 12 de julio". Only closed intervals have one.
func Label(iv Interval) string {
	if !iv.IsClosed() {
		return ""
	}
	return fmt.Sprintf("Del %s al %s", iv.Start.LongES(), iv.End.LongES())
}
