package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/76ahmad/garage-management-system/internal/notify"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeStore struct {
	mu sync.Mutex

	appointments    []notify.AppointmentCar
	appointmentsErr error
	markedNotified  []string

	unpaidCars   []notify.Car
	unpaidCutoff time.Time

	maintenanceCars    []notify.Car
	maintenanceStamped []string

	expiringUsers  []notify.User
	stampedBands   map[string][]notify.Band
	stampBandErr   error
	markNotifyErr  error
	stampMaintErr  error
}

func (s *fakeStore) UpcomingAppointments(ctx context.Context, from, to time.Time) ([]notify.AppointmentCar, error) {
	if s.appointmentsErr != nil {
		return nil, s.appointmentsErr
	}
	return s.appointments, nil
}

func (s *fakeStore) MarkAppointmentNotified(ctx context.Context, id string, at time.Time) error {
	if s.markNotifyErr != nil {
		return s.markNotifyErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markedNotified = append(s.markedNotified, id)
	return nil
}

func (s *fakeStore) UnpaidCars(ctx context.Context, cutoff time.Time) ([]notify.Car, error) {
	s.mu.Lock()
	s.unpaidCutoff = cutoff
	s.mu.Unlock()

	var out []notify.Car
	for _, car := range s.unpaidCars {
		// Inclusive comparison, mirroring the SQL predicate.
		if !car.UpdatedAt.After(cutoff) {
			out = append(out, car)
		}
	}
	return out, nil
}

func (s *fakeStore) MaintenanceDueCars(ctx context.Context, cutoff time.Time) ([]notify.Car, error) {
	return s.maintenanceCars, nil
}

func (s *fakeStore) StampMaintenanceReminder(ctx context.Context, carID string, at time.Time) error {
	if s.stampMaintErr != nil {
		return s.stampMaintErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintenanceStamped = append(s.maintenanceStamped, carID)
	return nil
}

func (s *fakeStore) ExpiringUsers(ctx context.Context, cutoff time.Time) ([]notify.User, error) {
	return s.expiringUsers, nil
}

func (s *fakeStore) StampSubscriptionReminder(ctx context.Context, userID string, band notify.Band, at time.Time) error {
	if s.stampBandErr != nil {
		return s.stampBandErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stampedBands == nil {
		s.stampedBands = make(map[string][]notify.Band)
	}
	s.stampedBands[userID] = append(s.stampedBands[userID], band)
	return nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []string // recipient user IDs in dispatch order
	failFor  map[string]error
	skipFor  map[string]string
	messages []notify.Message
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, userID string, msg notify.Message) (notify.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failFor[userID]; ok {
		return notify.Outcome{}, err
	}
	d.calls = append(d.calls, userID)
	d.messages = append(d.messages, msg)
	if reason, ok := d.skipFor[userID]; ok {
		return notify.Outcome{Skipped: true, SkipReason: reason}, nil
	}
	return notify.Outcome{Delivered: true, MessageID: "m1"}, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRunner(store *fakeStore, dispatcher *fakeDispatcher) *Runner {
	r := NewRunner(store, dispatcher, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return testNow }
	return r
}

// --------------------------------------------------------------------------
// Appointments
// --------------------------------------------------------------------------

func TestRunAppointments_NotifiesAndFlags(t *testing.T) {
	store := &fakeStore{appointments: []notify.AppointmentCar{
		{
			Appointment: notify.Appointment{ID: "a1", UserID: "u1", StartsAt: testNow.Add(30 * time.Minute)},
			Car:         notify.Car{ID: "c1", UserID: "owner1"},
		},
		{
			// No appointment user: falls back to the car owner.
			Appointment: notify.Appointment{ID: "a2", StartsAt: testNow.Add(45 * time.Minute)},
			Car:         notify.Car{ID: "c2", UserID: "owner2"},
		},
	}}
	dispatcher := &fakeDispatcher{}

	res := newTestRunner(store, dispatcher).Run(context.Background(), Appointments)

	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 2, res.Notified)
	assert.Zero(t, res.Failed)
	assert.ElementsMatch(t, []string{"u1", "owner2"}, dispatcher.calls)
	assert.ElementsMatch(t, []string{"a1", "a2"}, store.markedNotified)
}

func TestRunAppointments_AlreadySentIsSkipped(t *testing.T) {
	store := &fakeStore{appointments: []notify.AppointmentCar{
		{
			Appointment: notify.Appointment{ID: "a1", UserID: "u1", NotificationSent: true},
			Car:         notify.Car{ID: "c1", UserID: "u1"},
		},
	}}
	dispatcher := &fakeDispatcher{}

	res := newTestRunner(store, dispatcher).Run(context.Background(), Appointments)

	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, dispatcher.calls)
	assert.Empty(t, store.markedNotified, "a skipped appointment keeps its flag untouched")
}

func TestRunAppointments_SilentSkipStillFlags(t *testing.T) {
	// A recipient with no token skips without error; the flag is still set so
	// the appointment does not resurface every tick.
	store := &fakeStore{appointments: []notify.AppointmentCar{
		{
			Appointment: notify.Appointment{ID: "a1", UserID: "u1"},
			Car:         notify.Car{ID: "c1", UserID: "u1"},
		},
	}}
	dispatcher := &fakeDispatcher{skipFor: map[string]string{"u1": "no_token"}}

	res := newTestRunner(store, dispatcher).Run(context.Background(), Appointments)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"a1"}, store.markedNotified)
}

func TestRunAppointments_DispatchErrorLeavesFlagForRetry(t *testing.T) {
	store := &fakeStore{appointments: []notify.AppointmentCar{
		{
			Appointment: notify.Appointment{ID: "a1", UserID: "down"},
			Car:         notify.Car{ID: "c1", UserID: "down"},
		},
		{
			Appointment: notify.Appointment{ID: "a2", UserID: "up"},
			Car:         notify.Car{ID: "c2", UserID: "up"},
		},
	}}
	dispatcher := &fakeDispatcher{failFor: map[string]error{"down": errors.New("unavailable")}}

	res := newTestRunner(store, dispatcher).Run(context.Background(), Appointments)

	assert.Equal(t, 1, res.Notified)
	assert.Equal(t, 1, res.Failed, "one failure never aborts the sweep")
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "a1")
	assert.Equal(t, []string{"a2"}, store.markedNotified, "failed appointment stays eligible")
}

// --------------------------------------------------------------------------
// Invoices
// --------------------------------------------------------------------------

func TestRunInvoices_InclusiveThreeDayCutoff(t *testing.T) {
	exactlyThreeDays := testNow.Add(-notify.UnpaidInvoiceAge)
	store := &fakeStore{unpaidCars: []notify.Car{
		{ID: "old", UserID: "u1", PaymentStatus: "unpaid", UpdatedAt: testNow.Add(-5 * 24 * time.Hour)},
		{ID: "boundary", UserID: "u2", PaymentStatus: "unpaid", UpdatedAt: exactlyThreeDays},
		{ID: "fresh", UserID: "u3", PaymentStatus: "unpaid", UpdatedAt: testNow.Add(-24 * time.Hour)},
	}}
	dispatcher := &fakeDispatcher{}

	res := newTestRunner(store, dispatcher).Run(context.Background(), Invoices)

	assert.Equal(t, exactlyThreeDays, store.unpaidCutoff)
	assert.Equal(t, 2, res.Found, "an invoice exactly three days old is included")
	assert.ElementsMatch(t, []string{"u1", "u2"}, dispatcher.calls)
}

// --------------------------------------------------------------------------
// Maintenance
// --------------------------------------------------------------------------

func TestRunMaintenance_WindowSuppressesRepeat(t *testing.T) {
	recentReminder := testNow.Add(-2 * 24 * time.Hour)
	staleReminder := testNow.Add(-10 * 24 * time.Hour)
	store := &fakeStore{maintenanceCars: []notify.Car{
		{ID: "c1", UserID: "u1"}, // never reminded
		{ID: "c2", UserID: "u2", LastMaintenanceReminderAt: &recentReminder},
		{ID: "c3", UserID: "u3", LastMaintenanceReminderAt: &staleReminder},
	}}
	dispatcher := &fakeDispatcher{}

	res := newTestRunner(store, dispatcher).Run(context.Background(), Maintenance)

	assert.Equal(t, 2, res.Notified)
	assert.Equal(t, 1, res.Skipped)
	assert.ElementsMatch(t, []string{"c1", "c3"}, store.maintenanceStamped)
}

func TestRunMaintenance_SecondRunInsideWindowIsQuiet(t *testing.T) {
	store := &fakeStore{maintenanceCars: []notify.Car{{ID: "c1", UserID: "u1"}}}
	dispatcher := &fakeDispatcher{}
	runner := newTestRunner(store, dispatcher)

	first := runner.Run(context.Background(), Maintenance)
	assert.Equal(t, 1, first.Notified)

	// Simulate the stamp the first run wrote.
	store.maintenanceCars[0].LastMaintenanceReminderAt = &testNow

	second := runner.Run(context.Background(), Maintenance)
	assert.Zero(t, second.Notified)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, dispatcher.calls, 1, "one reminder across both runs")
}

// --------------------------------------------------------------------------
// Subscriptions
// --------------------------------------------------------------------------

func TestRunSubscriptions_BandsAndMarkers(t *testing.T) {
	in5Days := testNow.Add(5 * 24 * time.Hour)
	in2Days := testNow.Add(2 * 24 * time.Hour)
	expired := testNow.Add(-24 * time.Hour)
	store := &fakeStore{expiringUsers: []notify.User{
		{ID: "week", SubscriptionEndAt: &in5Days},
		{ID: "soon", SubscriptionEndAt: &in2Days},
		{ID: "lapsed", SubscriptionEndAt: &expired},
		{ID: "already", SubscriptionEndAt: &in5Days,
			SubscriptionReminders: map[notify.Band]time.Time{notify.Band7Days: testNow.Add(-24 * time.Hour)}},
		{ID: "no-date"},
	}}
	dispatcher := &fakeDispatcher{}

	res := newTestRunner(store, dispatcher).Run(context.Background(), Subscriptions)

	assert.Equal(t, 5, res.Found)
	assert.Equal(t, 3, res.Notified)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, []notify.Band{notify.Band7Days}, store.stampedBands["week"])
	assert.Equal(t, []notify.Band{notify.Band3Days}, store.stampedBands["soon"])
	assert.Equal(t, []notify.Band{notify.BandExpired}, store.stampedBands["lapsed"])
	assert.NotContains(t, store.stampedBands, "already", "marked band sends nothing")
	assert.NotContains(t, store.stampedBands, "no-date")
}

func TestRunSubscriptions_NewBandAfterEarlierMarker(t *testing.T) {
	in2Days := testNow.Add(2 * 24 * time.Hour)
	store := &fakeStore{expiringUsers: []notify.User{
		{ID: "u1", SubscriptionEndAt: &in2Days,
			SubscriptionReminders: map[notify.Band]time.Time{notify.Band7Days: testNow.Add(-5 * 24 * time.Hour)}},
	}}
	dispatcher := &fakeDispatcher{}

	res := newTestRunner(store, dispatcher).Run(context.Background(), Subscriptions)

	assert.Equal(t, 1, res.Notified, "a fresh band notifies despite older markers")
	assert.Equal(t, []notify.Band{notify.Band3Days}, store.stampedBands["u1"])
}

// --------------------------------------------------------------------------
// Runner
// --------------------------------------------------------------------------

func TestRun_UnknownKind(t *testing.T) {
	res := newTestRunner(&fakeStore{}, &fakeDispatcher{}).Run(context.Background(), Kind("bogus"))
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "unknown sweep kind")
}

func TestRun_QueryFailureIsReported(t *testing.T) {
	store := &fakeStore{appointmentsErr: errors.New("connection refused")}
	res := newTestRunner(store, &fakeDispatcher{}).Run(context.Background(), Appointments)

	assert.Zero(t, res.Found)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "connection refused")
}
