package results

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func det(sym barcode.Symbology, payload string) barcode.RawDetection {
	return barcode.RawDetection{Symbology: sym, Payload: barcode.Text(payload)}
}

func TestIngest_DuplicateEAN13(t *testing.T) {
	d := NewDeduplicator(NewList(), LabelCompat, quietLogger())

	b, isNew := d.Ingest(det(barcode.EAN13, "012345678905"))
	assert.True(t, isNew)
	assert.Equal(t, Barcode{Type: "EAN 13", Value: "012345678905"}, b)

	b, isNew = d.Ingest(det(barcode.EAN13, "012345678905"))
	assert.False(t, isNew)
	assert.Equal(t, Barcode{Type: "EAN 13", Value: "012345678905"}, b)
	assert.Equal(t, []Barcode{{Type: "EAN 13", Value: "012345678905"}}, d.List().Snapshot())
}

func TestIngest_FallbackLabel(t *testing.T) {
	d := NewDeduplicator(nil, LabelCompat, quietLogger())
	b, isNew := d.Ingest(det(barcode.Aztec, "HELLO"))
	assert.True(t, isNew)
	assert.Equal(t, "QR", b.Type)
	assert.Equal(t, 1, d.List().Len())
}

func TestIngest_AbsentPayload(t *testing.T) {
	d := NewDeduplicator(NewList(), LabelCompat, quietLogger())
	b, isNew := d.Ingest(barcode.RawDetection{Symbology: barcode.QR})
	assert.False(t, isNew)
	assert.Equal(t, Barcode{}, b)
	assert.Zero(t, d.List().Len())
}

func TestIngest_EmptyPayloadIsPresent(t *testing.T) {
	d := NewDeduplicator(NewList(), LabelCompat, quietLogger())
	_, isNew := d.Ingest(det(barcode.QR, ""))
	assert.True(t, isNew)
}

func TestIngest_CompatCollapsesLabels(t *testing.T) {
	// Under the compat table a real QR and a CODE_39 with the same payload
	// become the same barcode.
	d := NewDeduplicator(NewList(), LabelCompat, quietLogger())
	_, first := d.Ingest(det(barcode.QR, "X1"))
	_, second := d.Ingest(det(barcode.Code39, "X1"))
	assert.True(t, first)
	assert.False(t, second)

	exact := NewDeduplicator(NewList(), LabelExact, quietLogger())
	_, first = exact.Ingest(det(barcode.QR, "X1"))
	b, second := exact.Ingest(det(barcode.Code39, "X1"))
	assert.True(t, first)
	assert.True(t, second)
	assert.Equal(t, "CODE 39", b.Type)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		sym         barcode.Symbology
		compat, exa string
	}{
		{barcode.Code128, "CODE 128", "CODE 128"},
		{barcode.EAN13, "EAN 13", "EAN 13"},
		{barcode.QR, "QR", "QR"},
		{barcode.Code39, "QR", "CODE 39"},
		{barcode.Code93, "QR", "CODE 93"},
		{barcode.EAN8, "QR", "EAN 8"},
		{barcode.Aztec, "QR", "AZTEC"},
		{barcode.SymbologyUnknown, "QR", "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.compat, Label(tt.sym, LabelCompat), tt.sym.String())
		assert.Equal(t, tt.exa, Label(tt.sym, LabelExact), tt.sym.String())
	}
}

func TestParseLabelMode(t *testing.T) {
	m, err := ParseLabelMode("")
	require.NoError(t, err)
	assert.Equal(t, LabelCompat, m)
	m, err = ParseLabelMode("exact")
	require.NoError(t, err)
	assert.Equal(t, LabelExact, m)
	_, err = ParseLabelMode("loose")
	require.Error(t, err)
}

func TestIngestAll_Order(t *testing.T) {
	d := NewDeduplicator(NewList(), LabelExact, quietLogger())
	added := d.IngestAll([]barcode.RawDetection{
		det(barcode.EAN8, "1"),
		det(barcode.QR, "2"),
		det(barcode.EAN8, "1"),
		{Symbology: barcode.QR},
		det(barcode.Code128, "3"),
	})
	want := []Barcode{{"EAN 8", "1"}, {"QR", "2"}, {"CODE 128", "3"}}
	assert.Equal(t, want, added)
	assert.Equal(t, want, d.List().Snapshot())

	// A new list starts a new session from scratch.
	fresh := NewDeduplicator(NewList(), LabelExact, quietLogger())
	_, isNew := fresh.Ingest(det(barcode.EAN8, "1"))
	assert.True(t, isNew)
	assert.Equal(t, 3, d.List().Len())
}

func TestList_ConcurrentReaders(t *testing.T) {
	d := NewDeduplicator(NewList(), LabelCompat, quietLogger())
	var wg sync.WaitGroup
	done := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					snap := d.List().Snapshot()
					seen := map[Barcode]bool{}
					for _, b := range snap {
						if seen[b] {
							t.Errorf("duplicate %v in snapshot", b)
							return
						}
						seen[b] = true
					}
				}
			}
		}()
	}
	for i := range 200 {
		d.Ingest(det(barcode.Code128, fmt.Sprint(i%50)))
	}
	close(done)
	wg.Wait()
	assert.Equal(t, 50, d.List().Len())
}

// TestIngest_Properties covers absent payloads and repeated ingests.
func TestIngest_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	syms := gen.OneConstOf(barcode.Code128, barcode.EAN13, barcode.QR, barcode.Code39,
		barcode.Code93, barcode.EAN8, barcode.Aztec, barcode.SymbologyUnknown)

	properties.Property("absent payload never changes the list", prop.ForAll(
		func(sym barcode.Symbology, prior []string) bool {
			d := NewDeduplicator(NewList(), LabelCompat, quietLogger())
			for _, p := range prior {
				d.Ingest(det(barcode.QR, p))
			}
			before := d.List().Snapshot()
			_, isNew := d.Ingest(barcode.RawDetection{Symbology: sym})
			after := d.List().Snapshot()
			return !isNew && len(before) == len(after)
		},
		syms,
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("second identical ingest is not new", prop.ForAll(
		func(sym barcode.Symbology, payload string) bool {
			d := NewDeduplicator(NewList(), LabelCompat, quietLogger())
			_, first := d.Ingest(det(sym, payload))
			n := d.List().Len()
			_, second := d.Ingest(det(sym, payload))
			return first && !second && d.List().Len() == n
		},
		syms,
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
