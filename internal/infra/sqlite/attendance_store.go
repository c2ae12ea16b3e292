package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campus-portal-service/internal/domain"
	_ "modernc.org/sqlite" // driver: sqlite
)

// DefaultDSN keeps records in a local file next to the binary.
const DefaultDSN = "file:attendance.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

const schema = `
CREATE TABLE IF NOT EXISTS attendance_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  course_id TEXT NOT NULL,
  student_id TEXT NOT NULL,
  recorded_at INTEGER NOT NULL -- unix ms
);

CREATE INDEX IF NOT EXISTS attendance_records_course_idx
  ON attendance_records (course_id, recorded_at);
`

// AttendanceStore is a single-node attendance recorder on SQLite.
type AttendanceStore struct {
	db *sql.DB
}

// Open opens the database and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*AttendanceStore, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &AttendanceStore{db: db}, nil
}

func (s *AttendanceStore) Record(ctx context.Context, rec domain.AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance_records (course_id, student_id, recorded_at) VALUES (?, ?, ?)`,
		rec.CourseID, rec.StudentID, rec.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (s *AttendanceStore) List(ctx context.Context, courseID string) ([]domain.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id, student_id, recorded_at FROM attendance_records
		 WHERE course_id = ? ORDER BY recorded_at, id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []domain.AttendanceRecord
	for rows.Next() {
		var (
			rec domain.AttendanceRecord
			ms  int64
		)
		if err := rows.Scan(&rec.CourseID, &rec.StudentID, &ms); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ms).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *AttendanceStore) Close() error {
	return s.db.Close()
}
