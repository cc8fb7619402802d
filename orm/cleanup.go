package orm

import (
	"context"
	"fmt"

	cronlib "github.com/robfig/cron/v3"

	logcontext "github.com/va6996/mensaman/context"
	"github.com/va6996/mensaman/log"
)

// Janitor periodically removes expired cache entries.
type Janitor struct {
	cron  *cronlib.Cron
	store *Store
}

// NewJanitor schedules store.Cleanup. The schedule accepts standard five-field
// expressions as well as descriptors such as "@every 15m" or "@hourly".
func NewJanitor(store *Store, schedule string) (*Janitor, error) {
	c := cronlib.New()
	j := &Janitor{cron: c, store: store}

	if _, err := c.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) run() {
	ctx := logcontext.WithRequestID(context.Background(), logcontext.NewRequestID())
	n, err := j.store.Cleanup(ctx)
	if err != nil {
		log.Errorf(ctx, "%v", err)
		return
	}
	if n > 0 {
		log.Debugf(ctx, "removed %d expired cache entries", n)
	}
}

// Start runs the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running cleanup to finish or ctx to end.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
