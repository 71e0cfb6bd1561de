package db

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Refresher keeps the quote rollup view current on a schedule. Reports stay
// read-only; this is the only recurring write the service performs, and it
// only rewrites derived data.
type Refresher struct {
	db   *gorm.DB
	cron *cron.Cron
	log  zerolog.Logger
}

func NewRefresher(db *gorm.DB, log zerolog.Logger) *Refresher {
	return &Refresher{db: db, cron: cron.New(), log: log}
}

func (r *Refresher) Start(spec string) error {
	_, err := r.cron.AddFunc(spec, r.refresh)
	if err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info().Str("schedule", spec).Msg("rollup refresher started")
	return nil
}

func (r *Refresher) Stop() {
	r.cron.Stop()
}

func (r *Refresher) refresh() {
	err := r.db.Exec(`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM pg_matviews WHERE matviewname = 'mv_quote_daily') THEN
			REFRESH MATERIALIZED VIEW mv_quote_daily;
		END IF;
	END
	$$;`).Error
	if err != nil {
		r.log.Error().Err(err).Msg("rollup refresh failed")
		return
	}
	r.log.Debug().Msg("rollup refreshed")
}
