package monitoring

import (
	"database/sql"
	"time"

	"github.com/mvalenta/meetly-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Janitor performs periodic storage hygiene: it prunes recurrence rows no
// meeting references anymore and trims aged audit events. It never expands
// recurrences into future occurrences.
type Janitor struct {
	db            *sql.DB
	eventSvc      services.EventServiceProvider
	schedule      cron.Schedule
	retentionDays int
	nextRun       time.Time
	ticker        *time.Ticker
	done          chan bool
}

// NewJanitor creates a janitor driven by a standard cron expression.
func NewJanitor(db *sql.DB, eventSvc services.EventServiceProvider, cronExpr string, retentionDays int) (*Janitor, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Janitor{
		db:            db,
		eventSvc:      eventSvc,
		schedule:      schedule,
		retentionDays: retentionDays,
		done:          make(chan bool),
	}, nil
}

// Run starts the janitor's ticking loop.
func (j *Janitor) Run() {
	log.Info().Msg("Starting maintenance janitor...")
	j.nextRun = j.schedule.Next(time.Now())
	j.ticker = time.NewTicker(1 * time.Minute)
	defer j.ticker.Stop()

	for {
		select {
		case <-j.done:
			log.Info().Msg("Stopping maintenance janitor.")
			return
		case now := <-j.ticker.C:
			if now.After(j.nextRun) {
				j.runOnce()
				j.nextRun = j.schedule.Next(now)
			}
		}
	}
}

// Stop halts the janitor.
func (j *Janitor) Stop() {
	j.done <- true
}

// runOnce executes a single cleanup pass.
func (j *Janitor) runOnce() {
	orphans, err := j.pruneOrphanedRecurrences()
	if err != nil {
		log.Error().Err(err).Msg("Janitor: failed to prune orphaned recurrences")
	} else if orphans > 0 {
		log.Info().Int64("rows", orphans).Msg("Janitor: pruned orphaned recurrences")
	}

	if j.retentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
		pruned, err := j.eventSvc.DeleteEventsBefore(cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Janitor: failed to trim audit events")
		} else if pruned > 0 {
			log.Info().Int64("rows", pruned).Msg("Janitor: trimmed aged audit events")
		}
	}
}

// pruneOrphanedRecurrences removes recurrence rows without a linked meeting.
// Recurrence rows are owned per meeting and unlinked rows are normally
// deleted inline; this is the backstop for crashes between the two steps.
func (j *Janitor) pruneOrphanedRecurrences() (int64, error) {
	res, err := j.db.Exec("DELETE FROM recurrences WHERE id NOT IN (SELECT recurrence_id FROM meetings WHERE recurrence_id IS NOT NULL)")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
