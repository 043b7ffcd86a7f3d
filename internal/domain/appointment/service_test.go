package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/domain/schedule"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/pkg/pagination"
)

var errOutage = errors.New("connection reset")

// mockRepo emulates the active-slot unique index under a lock, so the
// concurrency test exercises the same exactly-one-winner behavior the
// database provides.
type mockRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
	fail  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, existing := range m.appts {
		if existing.IsActive() && existing.DoctorID == a.DoctorID &&
			existing.Date.Equal(a.Date) && existing.Time == a.Time {
			return ErrSlotTaken
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.appts[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, p pagination.Params) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, p pagination.Params) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) BookedTimes(_ context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var times []string
	for _, a := range m.appts {
		if a.IsActive() && a.DoctorID == doctorID && a.Date.Equal(date) {
			times = append(times, a.Time)
		}
	}
	return times, nil
}

func (m *mockRepo) HasActive(_ context.Context, doctorID uuid.UUID, date time.Time, clock string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.IsActive() && a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == clock {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) MarkOverdueNoShow(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.appts {
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			continue
		}
		slotStart, err := time.Parse("2006-01-02 15:04", a.Date.Format("2006-01-02")+" "+a.Time)
		if err != nil {
			return n, err
		}
		if slotStart.Before(cutoff) {
			a.Status = StatusNoShow
			n++
		}
	}
	return n, nil
}

// mockChecker approves every slot unless told otherwise.
type mockChecker struct {
	avail schedule.Availability
	fail  error
}

func (m *mockChecker) IsSlotAvailable(_ context.Context, _ uuid.UUID, _ time.Time, _ string) (schedule.Availability, error) {
	if m.fail != nil {
		return schedule.Availability{}, m.fail
	}
	return m.avail, nil
}

func newTestService() (*Service, *mockRepo, *mockChecker) {
	repo := newMockRepo()
	checker := &mockChecker{avail: schedule.Availability{Available: true}}
	svc := NewService(repo, checker, time.UTC)
	svc.now = func() time.Time {
		return time.Date(2031, 1, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc, repo, checker
}

var bookingDate = time.Date(2031, 6, 3, 0, 0, 0, 0, time.UTC)

func validBooking() BookRequest {
	return BookRequest{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      bookingDate,
		Time:      "10:00",
		Reason:    "checkup",
	}
}

// -- Book --

func TestBook_OK(t *testing.T) {
	svc, _, _ := newTestService()
	a, err := svc.Book(context.Background(), validBooking())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("id not assigned")
	}
	if a.Status != StatusScheduled {
		t.Errorf("status = %s", a.Status)
	}
}

func TestBook_BadTime(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	req.Time = "10am"
	_, err := svc.Book(context.Background(), req)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestBook_PastDate(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	req.Date = time.Date(2031, 1, 14, 0, 0, 0, 0, time.UTC)
	_, err := svc.Book(context.Background(), req)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestBook_TodayAllowed(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	req.Date = time.Date(2031, 1, 15, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Book(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBook_SlotNotAvailable(t *testing.T) {
	svc, _, checker := newTestService()
	checker.avail = schedule.Availability{Available: false, Reason: schedule.ReasonOutsideHours}
	_, err := svc.Book(context.Background(), validBooking())
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Error() != schedule.ReasonOutsideHours {
		t.Errorf("message = %q", ve.Error())
	}
}

func TestBook_SlotTakenPropagates(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	if _, err := svc.Book(context.Background(), req); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	req.PatientID = uuid.New()
	_, err := svc.Book(context.Background(), req)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

// Two racing reservations of the same slot must resolve to exactly one
// winner; the pre-check alone cannot guarantee that, the insert guard must.
func TestBook_ConcurrentSameSlot(t *testing.T) {
	svc, _, _ := newTestService()
	base := validBooking()

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := base
			req.PatientID = uuid.New()
			_, err := svc.Book(context.Background(), req)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != attempts-1 {
		t.Fatalf("wins = %d, conflicts = %d", wins, conflicts)
	}
}

func TestBook_CancelThenRebook(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	a, err := svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), a.ID, req.PatientID, auth.RolePatient, "conflict"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	req.PatientID = uuid.New()
	if _, err := svc.Book(context.Background(), req); err != nil {
		t.Fatalf("rebooking a cancelled slot failed: %v", err)
	}
}

func TestBook_CheckerFailure(t *testing.T) {
	svc, _, checker := newTestService()
	checker.fail = errOutage
	_, err := svc.Book(context.Background(), validBooking())
	if !errors.Is(err, errOutage) {
		t.Fatalf("expected outage error, got %v", err)
	}
}

// -- UpdateStatus --

func TestUpdateStatus_Lifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	a, _ := svc.Book(context.Background(), req)

	for _, next := range []Status{StatusConfirmed, StatusInProgress, StatusCompleted} {
		var err error
		a, err = svc.UpdateStatus(context.Background(), a.ID, next, req.DoctorID, auth.RoleDoctor)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}
	if a.Status != StatusCompleted {
		t.Errorf("status = %s", a.Status)
	}
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	a, _ := svc.Book(context.Background(), req)

	_, err := svc.UpdateStatus(context.Background(), a.ID, StatusCompleted, req.DoctorID, auth.RoleDoctor)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateStatus_CancelRejected(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	a, _ := svc.Book(context.Background(), req)

	_, err := svc.UpdateStatus(context.Background(), a.ID, StatusCancelled, req.DoctorID, auth.RoleDoctor)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateStatus_WrongDoctor(t *testing.T) {
	svc, _, _ := newTestService()
	a, _ := svc.Book(context.Background(), validBooking())

	_, err := svc.UpdateStatus(context.Background(), a.ID, StatusConfirmed, uuid.New(), auth.RoleDoctor)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), StatusConfirmed, uuid.New(), auth.RoleAdmin)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// -- Cancel --

func TestCancel_RecordsActor(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	a, _ := svc.Book(context.Background(), req)

	out, err := svc.Cancel(context.Background(), a.ID, req.PatientID, auth.RolePatient, "feeling better")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != StatusCancelled {
		t.Errorf("status = %s", out.Status)
	}
	if out.CancelledBy != auth.RolePatient || out.CancelledReason != "feeling better" {
		t.Errorf("cancellation record = %+v", out)
	}
	if out.CancelledAt == nil {
		t.Error("cancelledAt not set")
	}
}

func TestCancel_ByDoctor(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	a, _ := svc.Book(context.Background(), req)

	out, err := svc.Cancel(context.Background(), a.ID, req.DoctorID, auth.RoleDoctor, "emergency")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CancelledBy != auth.RoleDoctor {
		t.Errorf("cancelledBy = %s", out.CancelledBy)
	}
}

func TestCancel_Stranger(t *testing.T) {
	svc, _, _ := newTestService()
	a, _ := svc.Book(context.Background(), validBooking())

	_, err := svc.Cancel(context.Background(), a.ID, uuid.New(), auth.RolePatient, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCancel_AlreadyTerminal(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	a, _ := svc.Book(context.Background(), req)
	if _, err := svc.Cancel(context.Background(), a.ID, req.PatientID, auth.RolePatient, ""); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}

	_, err := svc.Cancel(context.Background(), a.ID, req.PatientID, auth.RolePatient, "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// -- Get / List --

func TestGet_PartiesOnly(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	a, _ := svc.Book(context.Background(), req)

	if _, err := svc.Get(context.Background(), a.ID, req.PatientID, auth.RolePatient); err != nil {
		t.Errorf("patient read failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), a.ID, req.DoctorID, auth.RoleDoctor); err != nil {
		t.Errorf("doctor read failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), a.ID, uuid.New(), auth.RoleAdmin); err != nil {
		t.Errorf("admin read failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), a.ID, uuid.New(), auth.RolePatient); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestListForCaller_ByRole(t *testing.T) {
	svc, _, _ := newTestService()
	req := validBooking()
	if _, err := svc.Book(context.Background(), req); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	items, total, err := svc.ListForCaller(context.Background(), req.PatientID, auth.RolePatient, pagination.Params{Limit: 20})
	if err != nil || total != 1 || len(items) != 1 {
		t.Errorf("patient list: items=%d total=%d err=%v", len(items), total, err)
	}
	items, total, err = svc.ListForCaller(context.Background(), req.DoctorID, auth.RoleDoctor, pagination.Params{Limit: 20})
	if err != nil || total != 1 || len(items) != 1 {
		t.Errorf("doctor list: items=%d total=%d err=%v", len(items), total, err)
	}
	_, total, err = svc.ListForCaller(context.Background(), uuid.New(), auth.RolePatient, pagination.Params{Limit: 20})
	if err != nil || total != 0 {
		t.Errorf("stranger list: total=%d err=%v", total, err)
	}
}

// -- SweepNoShows --

func TestSweepNoShows(t *testing.T) {
	svc, repo, _ := newTestService()

	overdue := &Appointment{
		ID: uuid.New(), DoctorID: uuid.New(), PatientID: uuid.New(),
		Date: time.Date(2031, 1, 14, 0, 0, 0, 0, time.UTC), Time: "09:00",
		Status: StatusScheduled,
	}
	upcoming := &Appointment{
		ID: uuid.New(), DoctorID: uuid.New(), PatientID: uuid.New(),
		Date: bookingDate, Time: "09:00",
		Status: StatusConfirmed,
	}
	completed := &Appointment{
		ID: uuid.New(), DoctorID: uuid.New(), PatientID: uuid.New(),
		Date: time.Date(2031, 1, 14, 0, 0, 0, 0, time.UTC), Time: "09:00",
		Status: StatusCompleted,
	}
	repo.appts[overdue.ID] = overdue
	repo.appts[upcoming.ID] = upcoming
	repo.appts[completed.ID] = completed

	n, err := svc.SweepNoShows(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("marked %d, want 1", n)
	}
	if repo.appts[overdue.ID].Status != StatusNoShow {
		t.Errorf("overdue status = %s", repo.appts[overdue.ID].Status)
	}
	if repo.appts[upcoming.ID].Status != StatusConfirmed {
		t.Errorf("upcoming status = %s", repo.appts[upcoming.ID].Status)
	}
	if repo.appts[completed.ID].Status != StatusCompleted {
		t.Errorf("completed status = %s", repo.appts[completed.ID].Status)
	}
}
