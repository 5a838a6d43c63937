package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/matrixscan/internal/overlay"
	"github.com/MeKo-Tech/matrixscan/internal/results"
)

// Callbacks receive session events. Both run on the session's surface loop,
// never concurrently with each other.
type Callbacks struct {
	// OnOverlay is called after every overlay replacement.
	OnOverlay func(overlay.Frame)
	// OnBarcode is called once per barcode appended to the list.
	OnBarcode func(results.Barcode)
	// OnAnalysis is called with every completed analysis, before dedup.
	OnAnalysis func(*Analysis)
}

// Options configures a Session.
type Options struct {
	LabelMode results.LabelMode
	Logger    *slog.Logger
	Callbacks Callbacks
}

// Session is one scanning session: a single analysis worker fed through a
// one-frame slot, a surface loop that owns overlay and list updates, and
// the session's barcode list.
type Session struct {
	id       string
	analyzer *Analyzer
	dedup    *results.Deduplicator
	mapper   *overlay.Mapper
	renderer *overlay.Renderer
	loop     *Loop
	cb       Callbacks
	log      *slog.Logger

	slot   chan Frame
	seq    atomic.Uint64
	closed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// pending counts frames accepted by Submit whose continuation has not
	// run yet. Guarded by pendingMu.
	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	pending     int

	startOnce sync.Once
	closeOnce sync.Once
	final     []results.Barcode
}

// ErrSessionClosed is returned for frames submitted after Close.
var ErrSessionClosed = errors.New("scanner: session closed")

// NewSession wires a session around an analyzer. Call Start to begin
// analysing and Close to end the session.
func NewSession(a *Analyzer, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger = logger.With("session", id)

	s := &Session{
		id:       id,
		analyzer: a,
		mapper:   overlay.NewMapper(),
		loop:     NewLoop(),
		cb:       opts.Callbacks,
		log:      logger,
		slot:     make(chan Frame, 1),
	}
	s.pendingCond = sync.NewCond(&s.pendingMu)
	s.dedup = results.NewDeduplicator(results.NewList(), opts.LabelMode, logger)
	s.renderer = overlay.NewRenderer(func(f overlay.Frame) {
		if s.cb.OnOverlay != nil {
			s.cb.OnOverlay(f)
		}
	})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// List returns the session's barcode list. Reads are safe from any goroutine.
func (s *Session) List() *results.List { return s.dedup.List() }

// Mapper returns the overlay mapper; update its display size on layout changes.
func (s *Session) Mapper() *overlay.Mapper { return s.mapper }

// Renderer returns the overlay renderer.
func (s *Session) Renderer() *overlay.Renderer { return s.renderer }

// Post runs fn on the surface loop. It returns false once the session is closed.
func (s *Session) Post(fn func()) bool {
	if s.closed.Load() {
		return false
	}
	return s.loop.Post(fn)
}

// Start launches the analysis worker. ctx bounds the whole session.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		sessionsActive.Inc()
		s.wg.Add(1)
		go s.work()
		s.log.Info("session started")
	})
}

// Submit offers a frame to the worker without blocking. A frame still
// waiting in the slot is replaced by the newer one and counted as dropped.
// The assigned sequence number is returned.
func (s *Session) Submit(f Frame) (uint64, error) {
	if s.closed.Load() {
		framesDropped.WithLabelValues("closed").Inc()
		return 0, ErrSessionClosed
	}
	f.Seq = s.seq.Add(1)
	framesSubmitted.Inc()
	s.addPending(1)
	for {
		select {
		case s.slot <- f:
			return f.Seq, nil
		default:
		}
		select {
		case old := <-s.slot:
			framesDropped.WithLabelValues("busy").Inc()
			s.log.Debug("frame dropped", "frame", old.Seq, "reason", "busy")
			s.addPending(-1)
		default:
		}
	}
}

func (s *Session) work() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.slot:
			s.process(f)
		}
	}
}

func (s *Session) process(f Frame) {
	a, err := s.analyzer.Analyze(s.ctx, f)
	if err != nil {
		defer s.addPending(-1)
		if s.ctx.Err() != nil {
			framesDropped.WithLabelValues("late").Inc()
			return
		}
		framesDropped.WithLabelValues("invalid").Inc()
		s.log.Warn("frame rejected", "frame", f.Seq, "error", err)
		return
	}
	framesAnalyzed.Inc()
	analysisDuration.Observe(a.Duration.Seconds())
	candidatesSelected.Observe(float64(len(a.Candidates)))

	// The continuation runs on the surface loop, after every earlier frame's.
	if !s.Post(func() {
		defer s.addPending(-1)
		s.apply(a)
	}) {
		framesDropped.WithLabelValues("late").Inc()
		s.addPending(-1)
	}
}

func (s *Session) addPending(n int) {
	s.pendingMu.Lock()
	s.pending += n
	if s.pending <= 0 {
		s.pending = 0
		s.pendingCond.Broadcast()
	}
	s.pendingMu.Unlock()
}

// apply folds one analysis into the list and the overlay. Results that
// arrive after Close are discarded.
func (s *Session) apply(a *Analysis) {
	if s.closed.Load() {
		framesDropped.WithLabelValues("late").Inc()
		return
	}
	if s.cb.OnAnalysis != nil {
		s.cb.OnAnalysis(a)
	}
	for _, d := range a.Detections {
		detectionsTotal.WithLabelValues(d.Symbology.String()).Inc()
	}
	for _, b := range s.dedup.IngestAll(a.Detections) {
		barcodesNew.Inc()
		if s.cb.OnBarcode != nil {
			s.cb.OnBarcode(b)
		}
	}

	s.mapper.SetMirrored(a.Mirrored)
	shapes, err := s.mapper.MapAll(a.Detections)
	if err != nil {
		s.log.Debug("overlay skipped", "frame", a.Seq, "error", err)
		// Shapes of an earlier frame must not outlive it.
		if len(s.renderer.Current().Shapes) > 0 {
			s.renderer.Replace(a.Seq, nil)
		}
		return
	}
	s.renderer.Replace(a.Seq, shapes)
}

// Drain blocks until every frame submitted so far has been analysed or
// dropped and its continuation has run on the surface loop. Batch callers
// use it to feed frames one at a time without losing any to the busy drop.
func (s *Session) Drain(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.pendingMu.Lock()
		s.pendingCond.Broadcast()
		s.pendingMu.Unlock()
	})
	defer stop()

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for s.pending > 0 && !s.closed.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.pendingCond.Wait()
	}
	return nil
}

// Close ends the session: an in-flight decode is abandoned, results that
// are still pending are discarded and the final list is returned. Later
// calls return the same list.
func (s *Session) Close() []results.Barcode {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.cancel != nil {
			s.cancel()
			s.wg.Wait()
			sessionsActive.Dec()
		}
		s.loop.Stop()
		s.pendingMu.Lock()
		s.pendingCond.Broadcast()
		s.pendingMu.Unlock()
		s.final = s.List().Snapshot()
		s.log.Info("session ended", "barcodes", len(s.final))
	})
	return s.final
}
