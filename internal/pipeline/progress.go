package pipeline

import (
	"fmt"
	"sync"

	"github.com/lifely/lifely/internal/batch"
	"github.com/lifely/lifely/internal/models"
)

// span is the share of overall progress a phase occupies.
type span struct {
	start, end int
}

var phaseSpans = map[models.Phase]span{
	models.PhaseNormalizing:        {0, 10},
	models.PhaseComputingStats:     {10, 20},
	models.PhaseEnrichingLocations: {20, 55},
	models.PhaseClassifyingEvents:  {55, 85},
	models.PhaseGeneratingInsights: {85, 99},
	models.PhaseComplete:           {100, 100},
}

// reporter forwards progress and guarantees percentages never go down, even
// when batch workers report out of order.
type reporter struct {
	mu   sync.Mutex
	fn   models.ProgressFunc
	last int
}

func newReporter(fn models.ProgressFunc) *reporter {
	return &reporter{fn: fn}
}

func (r *reporter) report(phase models.Phase, percent int, message string) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if percent < r.last {
		percent = r.last
	}
	if percent > 100 {
		percent = 100
	}
	r.last = percent
	r.fn(models.Progress{Phase: phase, Percent: percent, Message: message})
}

func (r *reporter) start(phase models.Phase, message string) {
	r.report(phase, phaseSpans[phase].start, message)
}

// batch returns a batch progress callback that maps items done onto the
// phase's span.
func (r *reporter) batch(phase models.Phase, noun string) batch.ProgressFunc {
	s := phaseSpans[phase]
	return func(done, total int) {
		if total <= 0 {
			return
		}
		percent := s.start + (s.end-s.start)*done/total
		r.report(phase, percent, fmt.Sprintf("%d/%d %s", done, total, noun))
	}
}

// warnings is an insertion-ordered set.
type warnings struct {
	list []string
	seen map[string]bool
}

func (w *warnings) add(msg string) bool {
	if msg == "" || w.seen[msg] {
		return false
	}
	if w.seen == nil {
		w.seen = make(map[string]bool)
	}
	w.seen[msg] = true
	w.list = append(w.list, msg)
	return true
}

func (w *warnings) items() []string {
	out := make([]string, len(w.list))
	copy(out, w.list)
	return out
}
