package memory

import (
	"context"
	"sort"
	"sync"

	"campus-portal-service/internal/domain"
)

// AttendanceStore keeps attendance records in process memory.
type AttendanceStore struct {
	mu      sync.RWMutex
	records map[string][]domain.AttendanceRecord
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[string][]domain.AttendanceRecord)}
}

func (s *AttendanceStore) Record(_ context.Context, rec domain.AttendanceRecord) error {
	s.mu.Lock()
	s.records[rec.CourseID] = append(s.records[rec.CourseID], rec)
	s.mu.Unlock()
	return nil
}

// List returns the course's records ordered by timestamp.
func (s *AttendanceStore) List(_ context.Context, courseID string) ([]domain.AttendanceRecord, error) {
	s.mu.RLock()
	out := append([]domain.AttendanceRecord(nil), s.records[courseID]...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
