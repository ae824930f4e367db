package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"subgen/pkg/file"
	"subgen/pkg/log"
)

// Janitor periodically removes work dirs left behind by crashed or
// killed runs. Live jobs are never older than the age threshold.
type Janitor struct {
	workRoot string
	maxAge   time.Duration
	cron     *cron.Cron
}

const DefaultJanitorSchedule = "@hourly"

func NewJanitor(workRoot string, maxAge time.Duration) *Janitor {
	return &Janitor{
		workRoot: workRoot,
		maxAge:   maxAge,
		cron:     cron.New(),
	}
}

// Start schedules the sweep and runs one immediately to clear anything
// left over from a previous process.
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.cron.Start()
	j.Sweep()
	return nil
}

func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep removes work dirs older than the age threshold.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.maxAge)
	stale, err := file.FindDirsOlderThan(j.workRoot, cutoff)
	if err != nil {
		log.Warn("Janitor scan of %s failed: %v", j.workRoot, err)
		return
	}
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("Janitor could not remove %s: %v", dir, err)
			continue
		}
		log.Info("Removed stale work dir %s", dir)
	}
}
