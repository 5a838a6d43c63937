package results

import (
	"fmt"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
)

// LabelMode selects how symbologies are named in the canonical list.
type LabelMode string

const (
	// LabelCompat reproduces the capture app's table: CODE_128 and EAN_13
	// keep their names, every other symbology is labelled "QR".
	LabelCompat LabelMode = "compat"
	// LabelExact names every symbology for what it is.
	LabelExact LabelMode = "exact"
)

// ParseLabelMode validates a configured mode; "" selects LabelCompat.
func ParseLabelMode(s string) (LabelMode, error) {
	switch LabelMode(s) {
	case "", LabelCompat:
		return LabelCompat, nil
	case LabelExact:
		return LabelExact, nil
	}
	return "", fmt.Errorf("results: unknown label mode %q (want %q or %q)", s, LabelCompat, LabelExact)
}

var exactLabels = map[barcode.Symbology]string{
	barcode.Code128:          "CODE 128",
	barcode.EAN13:            "EAN 13",
	barcode.QR:               "QR",
	barcode.Code39:           "CODE 39",
	barcode.Code93:           "CODE 93",
	barcode.EAN8:             "EAN 8",
	barcode.Aztec:            "AZTEC",
	barcode.SymbologyUnknown: "UNKNOWN",
}

// Label returns the display label of s under mode.
func Label(s barcode.Symbology, mode LabelMode) string {
	if mode == LabelExact {
		if l, ok := exactLabels[s]; ok {
			return l
		}
		return s.String()
	}
	switch s {
	case barcode.Code128:
		return "CODE 128"
	case barcode.EAN13:
		return "EAN 13"
	default:
		return "QR"
	}
}
