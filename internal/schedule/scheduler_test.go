package schedule

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
)

type fakePostTimes struct {
	times []time.Time
}

func (f *fakePostTimes) ActiveTimes(ctx context.Context, from, to time.Time, excludeID string) ([]time.Time, error) {
	return f.times, nil
}

func testOptions(t *testing.T) *Options {
	t.Helper()
	times, err := ParseTimes([]string{"09:00", "12:00", "15:00", "18:00", "21:00"})
	if err != nil {
		t.Fatalf("ParseTimes failed: %v", err)
	}
	return &Options{
		PreferredTimes: times,
		MinInterval:    3 * time.Hour,
		DailyCap:       5,
		LookaheadDays:  7,
		Location:       time.UTC,
	}
}

func testScheduler(t *testing.T, opts *Options, existing []time.Time, now time.Time) *Scheduler {
	t.Helper()
	s := NewScheduler(opts, &fakePostTimes{times: existing})
	s.now = func() time.Time { return now }
	s.logger = zap.NewNop()
	return s
}

func TestScheduler_AssignEarliestFreeSlot(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	s := testScheduler(t, testOptions(t), nil, now)

	got, err := s.Assign(context.Background(), &models.Post{ID: "p1"})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Assign = %v, want %v", got, want)
	}
}

func TestScheduler_SkipsPastSlots(t *testing.T) {
	now := time.Date(2026, 3, 10, 13, 30, 0, 0, time.UTC)
	s := testScheduler(t, testOptions(t), nil, now)

	got, err := s.Assign(context.Background(), &models.Post{ID: "p1"})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	// 09:00 and 12:00 are already past; 15:00 is the first future slot.
	want := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Assign = %v, want %v", got, want)
	}
}

func TestScheduler_RespectsMinInterval(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	// 09:00 taken; 12:00 is exactly 3h away, which satisfies the
	// minimum interval. 10:00-ish conflicts are impossible with
	// preferred times, so occupy 11:00 to force a skip of 12:00.
	existing := []time.Time{
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}
	s := testScheduler(t, testOptions(t), existing, now)

	got, err := s.Assign(context.Background(), &models.Post{ID: "p1"})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	// 09:00 conflicts with itself, 12:00 is only 1h from 11:00, 15:00
	// is 4h clear of everything.
	want := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Assign = %v, want %v", got, want)
	}
}

func TestScheduler_RespectsDailyCap(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	opts := testOptions(t)
	opts.DailyCap = 2
	existing := []time.Time{
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC),
	}
	s := testScheduler(t, opts, existing, now)

	got, err := s.Assign(context.Background(), &models.Post{ID: "p1"})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	want := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Assign = %v, want %v (next day, cap reached today)", got, want)
	}
}

func TestScheduler_ReassignmentIsMonotonic(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	s := testScheduler(t, testOptions(t), nil, now)

	current := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	post := &models.Post{
		ID:          "p1",
		ScheduledAt: sql.NullTime{Time: current, Valid: true},
	}

	got, err := s.Assign(context.Background(), post)
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if got.Before(current) {
		t.Errorf("re-assignment moved post earlier: %v -> %v", current, got)
	}
}

func TestScheduler_NoSlotWithinLookahead(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	opts := testOptions(t)
	opts.LookaheadDays = 1
	opts.DailyCap = 1

	// Both days in the window already carry a post.
	existing := []time.Time{
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
	}
	s := testScheduler(t, opts, existing, now)

	_, err := s.Assign(context.Background(), &models.Post{ID: "p1"})
	if err != ErrNoSlotAvailable {
		t.Errorf("Assign error = %v, want ErrNoSlotAvailable", err)
	}
}

func TestScheduler_SequentialAssignmentsDoNotCollide(t *testing.T) {
	// Two posts competing for the same calendar: the second assignment
	// must see the first one's slot and pick a different one.
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	occupied := &fakePostTimes{}
	s := NewScheduler(testOptions(t), occupied)
	s.now = func() time.Time { return now }
	s.logger = zap.NewNop()

	first, err := s.Assign(context.Background(), &models.Post{ID: "p1"})
	if err != nil {
		t.Fatalf("first Assign failed: %v", err)
	}
	occupied.times = append(occupied.times, first)

	second, err := s.Assign(context.Background(), &models.Post{ID: "p2"})
	if err != nil {
		t.Fatalf("second Assign failed: %v", err)
	}
	if second.Equal(first) {
		t.Errorf("second assignment collided with first at %v", first)
	}
	delta := second.Sub(first)
	if delta < 0 {
		delta = -delta
	}
	if delta < s.opts.MinInterval {
		t.Errorf("assignments %v and %v violate the minimum interval", first, second)
	}
}

func TestParseTimes_SortsAndValidates(t *testing.T) {
	times, err := ParseTimes([]string{"21:00", "09:00", "15:30"})
	if err != nil {
		t.Fatalf("ParseTimes failed: %v", err)
	}
	want := []TimeOfDay{{9, 0}, {15, 30}, {21, 0}}
	for i, tod := range times {
		if tod != want[i] {
			t.Errorf("ParseTimes[%d] = %v, want %v", i, tod, want[i])
		}
	}

	if _, err := ParseTimes([]string{"25:00"}); err == nil {
		t.Error("ParseTimes accepted an invalid hour")
	}
}
