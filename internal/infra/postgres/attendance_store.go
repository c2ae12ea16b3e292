package postgres

import (
	"context"
	"fmt"

	"campus-portal-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttendanceStore writes attendance records to the attendance_records table.
type AttendanceStore struct {
	pool *pgxpool.Pool
}

func NewAttendanceStore(pool *pgxpool.Pool) *AttendanceStore {
	return &AttendanceStore{pool: pool}
}

func (s *AttendanceStore) Record(ctx context.Context, rec domain.AttendanceRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_records (course_id, student_id, recorded_at) VALUES ($1, $2, $3)`,
		rec.CourseID, rec.StudentID, rec.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (s *AttendanceStore) List(ctx context.Context, courseID string) ([]domain.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT course_id, student_id, recorded_at FROM attendance_records
		 WHERE course_id = $1 ORDER BY recorded_at, id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []domain.AttendanceRecord
	for rows.Next() {
		var rec domain.AttendanceRecord
		if err := rows.Scan(&rec.CourseID, &rec.StudentID, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
