package server

import (
	"slices"
	"sync"
	"time"

	"github.com/MeKo-Tech/matrixscan/internal/results"
	"github.com/MeKo-Tech/matrixscan/internal/scanner"
)

type sessionEntry struct {
	session *scanner.Session
	started time.Time
	ended   time.Time
	final   []results.Barcode
}

func (e *sessionEntry) response() SessionResponse {
	resp := SessionResponse{
		ID:      e.session.ID(),
		Active:  e.ended.IsZero(),
		Started: e.started,
	}
	if e.ended.IsZero() {
		resp.Barcodes = e.session.List().Snapshot()
	} else {
		ended := e.ended
		resp.Ended = &ended
		resp.Barcodes = slices.Clone(e.final)
	}
	if resp.Barcodes == nil {
		resp.Barcodes = []results.Barcode{}
	}
	return resp
}

// registry tracks live sessions and keeps the final lists of the most
// recently ended ones.
type registry struct {
	mu       sync.RWMutex
	entries  map[string]*sessionEntry
	ended    []string // oldest first
	maxEnded int
}

func newRegistry(maxEnded int) *registry {
	return &registry{entries: make(map[string]*sessionEntry), maxEnded: maxEnded}
}

func (r *registry) add(s *scanner.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID()] = &sessionEntry{session: s, started: time.Now()}
}

func (r *registry) end(id string, final []results.Barcode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || !e.ended.IsZero() {
		return
	}
	e.ended = time.Now()
	e.final = final
	r.ended = append(r.ended, id)
	for len(r.ended) > r.maxEnded {
		delete(r.entries, r.ended[0])
		r.ended = r.ended[1:]
	}
}

func (r *registry) get(id string) (SessionResponse, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return SessionResponse{}, false
	}
	return e.response(), true
}

func (r *registry) list() []SessionResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionResponse, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.response())
	}
	slices.SortFunc(out, func(a, b SessionResponse) int { return a.Started.Compare(b.Started) })
	return out
}

func (r *registry) active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.ended.IsZero() {
			n++
		}
	}
	return n
}

// closeAll closes every live session; their handlers record the end.
func (r *registry) closeAll() {
	r.mu.RLock()
	live := make([]*scanner.Session, 0, len(r.entries))
	for _, e := range r.entries {
		if e.ended.IsZero() {
			live = append(live, e.session)
		}
	}
	r.mu.RUnlock()
	for _, s := range live {
		s.Close()
	}
}
