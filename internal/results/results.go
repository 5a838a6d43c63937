// Package results folds raw detections into the canonical, insertion-ordered
// and duplicate-free barcode list of a scanning session.
package results

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
)

// Barcode is a canonical scan result. Two barcodes are the same when both
// fields are equal.
type Barcode struct {
	Type  string `json:"type"  yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// List is the session's barcode list. Reads return snapshots and may happen
// from any goroutine; only a Deduplicator appends.
type List struct {
	mu    sync.RWMutex
	items []Barcode
	seen  map[Barcode]struct{}
}

// NewList returns an empty list.
func NewList() *List {
	return &List{seen: make(map[Barcode]struct{})}
}

// Snapshot returns a copy of the entries in first-seen order.
func (l *List) Snapshot() []Barcode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *List) appendIfNew(b Barcode) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[b]; ok {
		return false
	}
	l.seen[b] = struct{}{}
	l.items = append(l.items, b)
	return true
}

// Deduplicator is the single writer of a List.
type Deduplicator struct {
	list *List
	mode LabelMode
	log  *slog.Logger
}

// NewDeduplicator writes into list, labelling symbologies with mode.
// A nil logger falls back to slog.Default.
func NewDeduplicator(list *List, mode LabelMode, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	if list == nil {
		list = NewList()
	}
	return &Deduplicator{list: list, mode: mode, log: logger}
}

// List returns the list the deduplicator writes to.
func (d *Deduplicator) List() *List { return d.list }

// Ingest folds one detection into the list. A detection without payload is
// ignored and yields (Barcode{}, false). A barcode already listed is returned
// with isNew false and leaves the list unchanged.
func (d *Deduplicator) Ingest(det barcode.RawDetection) (Barcode, bool) {
	if det.Payload == nil {
		return Barcode{}, false
	}
	b := Barcode{Type: Label(det.Symbology, d.mode), Value: *det.Payload}
	if !d.list.appendIfNew(b) {
		return b, false
	}
	d.log.Info("new barcode", "symbology", det.Symbology.String(), "type", b.Type, "value", b.Value)
	return b, true
}

// IngestAll folds a batch and returns the newly added barcodes in order.
func (d *Deduplicator) IngestAll(dets []barcode.RawDetection) []Barcode {
	var added []Barcode
	for _, det := range dets {
		if b, isNew := d.Ingest(det); isNew {
			added = append(added, b)
		}
	}
	return added
}
