// Package scanlog persists scan cycle outcomes to a local SQLite database.
// It is an audit sink only: detection itself keeps no state across process
// restarts.
package scanlog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/braillekit/detect"
)

const (
	envDBPath         = "DETECT_SCANLOG_DB_PATH"
	defaultDBDirName  = ".braillekit"
	defaultDBFileName = "scanlog.sqlite"
	cycleTableName    = "scan_cycles"
)

const createCycleTable = `CREATE TABLE IF NOT EXISTS ` + cycleTableName + ` (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	start_at INTEGER NOT NULL,
	end_at INTEGER NOT NULL,
	usb INTEGER NOT NULL,
	bluetooth INTEGER NOT NULL,
	limit_to_drivers TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	driver TEXT NOT NULL DEFAULT '',
	device_id TEXT NOT NULL DEFAULT '',
	candidates INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
)`

// Store is a detect.ScanRecorder writing to SQLite.
type Store struct {
	db *sql.DB
}

// ResolveDatabasePath returns the configured database path, defaulting to
// ~/.braillekit/scanlog.sqlite. The parent directory is created when missing.
func ResolveDatabasePath() (string, error) {
	if val := strings.TrimSpace(os.Getenv(envDBPath)); val != "" {
		return val, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", pkgerrors.Wrap(err, "scanlog: resolve home dir failed")
	}
	dir := filepath.Join(home, defaultDBDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", pkgerrors.Wrap(err, "scanlog: create db dir failed")
	}
	return filepath.Join(dir, defaultDBFileName), nil
}

// Open opens or creates the scan log database and ensures its schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "scanlog: open sqlite db failed")
	}
	if _, err := db.Exec(createCycleTable); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "scanlog: ensure schema failed")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCycle inserts one scan cycle record.
func (s *Store) RecordCycle(ctx context.Context, rec *detect.ScanCycleRecord) error {
	if rec == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+cycleTableName+` (
			start_at, end_at, usb, bluetooth, limit_to_drivers,
			outcome, driver, device_id, candidates, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StartAt.UnixMilli(),
		rec.EndAt.UnixMilli(),
		boolInt(rec.USB),
		boolInt(rec.Bluetooth),
		strings.Join(rec.LimitToDrivers, ","),
		rec.Outcome,
		rec.Driver,
		rec.DeviceID,
		rec.Candidates,
		rec.Error,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "scanlog: insert cycle failed")
	}
	return nil
}

// CycleSummary is one stored scan cycle, as returned by Recent.
type CycleSummary struct {
	StartAt    time.Time
	EndAt      time.Time
	USB        bool
	Bluetooth  bool
	Outcome    string
	Driver     string
	DeviceID   string
	Candidates int
	Error      string
}

// Recent returns up to limit most recent scan cycles, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]CycleSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_at, end_at, usb, bluetooth, outcome, driver, device_id, candidates, error
		 FROM `+cycleTableName+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "scanlog: query cycles failed")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("scanlog: close rows failed")
		}
	}()
	var out []CycleSummary
	for rows.Next() {
		var c CycleSummary
		var startAt, endAt int64
		var usb, bluetooth int
		if err := rows.Scan(&startAt, &endAt, &usb, &bluetooth,
			&c.Outcome, &c.Driver, &c.DeviceID, &c.Candidates, &c.Error); err != nil {
			return nil, pkgerrors.Wrap(err, "scanlog: scan row failed")
		}
		c.StartAt = time.UnixMilli(startAt)
		c.EndAt = time.UnixMilli(endAt)
		c.USB = usb != 0
		c.Bluetooth = bluetooth != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "scanlog: iterate rows failed")
	}
	return out, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
