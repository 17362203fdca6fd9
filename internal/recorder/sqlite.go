package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"CovidSentinel/internal/model"
)

// SQLiteRecorder archives records and events to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_records (
			date               TEXT PRIMARY KEY,
			day                INTEGER,
			cases_new          INTEGER,
			cases_change       INTEGER,
			cases_ra3          REAL,
			cases_ra3_change   REAL,
			cases_ra7          REAL,
			cases_ra7_change   REAL,
			cases_corrections  INTEGER,
			cases_total        INTEGER,
			deaths_new         INTEGER,
			deaths_change      INTEGER,
			deaths_ra3         REAL,
			deaths_ra3_change  REAL,
			deaths_ra7         REAL,
			deaths_ra7_change  REAL,
			deaths_corrections INTEGER,
			deaths_total       INTEGER,
			cfr_rate           REAL,
			cfr_change         REAL,
			updated_at         INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ingest_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			date      TEXT,
			feed      TEXT,
			outcome   TEXT,
			note      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_date ON ingest_events(date)`,

		`CREATE TABLE IF NOT EXISTS peak_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			date      TEXT,
			metric    TEXT,
			event     TEXT,
			value     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_peak_date ON peak_events(date)`,

		`CREATE TABLE IF NOT EXISTS rebuilds (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			reason      TEXT,
			records     INTEGER,
			duration_ms INTEGER,
			error       TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func nullInt(v model.Int) sql.NullInt64 {
	return sql.NullInt64{Int64: v.V, Valid: v.Valid}
}

func nullFloat(v model.Float) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.V, Valid: v.Valid}
}

// RecordDaily upserts rec keyed by date, so a rebuild rewrites earlier rows.
func (r *SQLiteRecorder) RecordDaily(rec *model.DailyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, d := rec.Cases, rec.Deaths
	_, err := r.db.Exec(`INSERT INTO daily_records
		(date, day,
		 cases_new, cases_change, cases_ra3, cases_ra3_change, cases_ra7, cases_ra7_change, cases_corrections, cases_total,
		 deaths_new, deaths_change, deaths_ra3, deaths_ra3_change, deaths_ra7, deaths_ra7_change, deaths_corrections, deaths_total,
		 cfr_rate, cfr_change, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(date) DO UPDATE SET
		 day=excluded.day,
		 cases_new=excluded.cases_new, cases_change=excluded.cases_change,
		 cases_ra3=excluded.cases_ra3, cases_ra3_change=excluded.cases_ra3_change,
		 cases_ra7=excluded.cases_ra7, cases_ra7_change=excluded.cases_ra7_change,
		 cases_corrections=excluded.cases_corrections, cases_total=excluded.cases_total,
		 deaths_new=excluded.deaths_new, deaths_change=excluded.deaths_change,
		 deaths_ra3=excluded.deaths_ra3, deaths_ra3_change=excluded.deaths_ra3_change,
		 deaths_ra7=excluded.deaths_ra7, deaths_ra7_change=excluded.deaths_ra7_change,
		 deaths_corrections=excluded.deaths_corrections, deaths_total=excluded.deaths_total,
		 cfr_rate=excluded.cfr_rate, cfr_change=excluded.cfr_change,
		 updated_at=excluded.updated_at`,
		rec.Date, rec.Day,
		nullInt(c.New), nullInt(c.Change),
		nullFloat(c.RollingAverages.Three.Average), nullFloat(c.RollingAverages.Three.Change),
		nullFloat(c.RollingAverages.Seven.Average), nullFloat(c.RollingAverages.Seven.Change),
		nullInt(c.Corrections), nullInt(c.Total),
		nullInt(d.New), nullInt(d.Change),
		nullFloat(d.RollingAverages.Three.Average), nullFloat(d.RollingAverages.Three.Change),
		nullFloat(d.RollingAverages.Seven.Average), nullFloat(d.RollingAverages.Seven.Change),
		nullInt(d.Corrections), nullInt(d.Total),
		nullFloat(rec.CaseFatality.Rate), nullFloat(rec.CaseFatality.Change),
		time.Now().Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecordIngest(evt *IngestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO ingest_events
		(timestamp, date, feed, outcome, note)
		VALUES (?,?,?,?,?)`,
		time.Now().Unix(), evt.Date, evt.Feed, evt.Outcome, evt.Note,
	)
	return err
}

func (r *SQLiteRecorder) RecordPeak(evt *PeakEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO peak_events
		(timestamp, date, metric, event, value)
		VALUES (?,?,?,?,?)`,
		time.Now().Unix(), evt.Date, string(evt.Metric), evt.Event, nullFloat(evt.Value),
	)
	return err
}

func (r *SQLiteRecorder) RecordRebuild(evt *RebuildEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errText sql.NullString
	if evt.Err != nil {
		errText = sql.NullString{String: evt.Err.Error(), Valid: true}
	}
	_, err := r.db.Exec(`INSERT INTO rebuilds
		(timestamp, reason, records, duration_ms, error)
		VALUES (?,?,?,?,?)`,
		time.Now().Unix(), evt.Reason, evt.Records, evt.Duration.Milliseconds(), errText,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
