package scheduler

import (
	"context"
	"strings"
	"sync"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/logging"
	"go.uber.org/zap"
)

const emptyReport = "seat run finished without a result"

// Report collects the human readable outcome of a run. Any loop may append;
// the text is delivered once, at shutdown.
type Report struct {
	mu    sync.Mutex
	lines []string
	once  sync.Once
}

func (r *Report) Append(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *Report) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines, "\n")
}

// Flush sends the report through n. Only the first call sends anything;
// delivery failures are logged.
func (r *Report) Flush(ctx context.Context, n reservation.Notifier, log *zap.Logger) {
	r.once.Do(func() {
		msg := r.String()
		if msg == "" {
			msg = emptyReport
		}
		log = logging.OrNop(log)
		log.Info("report: flushing", zap.String("report", msg))
		if n == nil {
			return
		}
		if err := n.Notify(ctx, msg); err != nil {
			log.Warn("report: notify failed", zap.String("sink", n.Name()), zap.Error(err))
		}
	})
}
