package listener

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/76ahmad/garage-management-system/internal/notify"
)

type fakeStore struct {
	cars   map[string]notify.Car
	getErr error
}

func (s *fakeStore) GetCar(ctx context.Context, id string) (notify.Car, bool, error) {
	if s.getErr != nil {
		return notify.Car{}, false, s.getErr
	}
	car, ok := s.cars[id]
	return car, ok, nil
}

type fakeDispatcher struct {
	recipients []string
	messages   []notify.Message
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, userID string, msg notify.Message) (notify.Outcome, error) {
	d.recipients = append(d.recipients, userID)
	d.messages = append(d.messages, msg)
	return notify.Outcome{Delivered: true}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleEvent_CarCreated(t *testing.T) {
	store := &fakeStore{cars: map[string]notify.Car{
		"c1": {ID: "c1", UserID: "owner", Manufacturer: "Toyota", Model: "Corolla", LicensePlate: "12-345-67"},
	}}
	dispatcher := &fakeDispatcher{}

	HandleEvent(context.Background(), store, dispatcher,
		Event{Entity: "car", Op: "created", ID: "c1"}, discard())

	require.Len(t, dispatcher.messages, 1)
	assert.Equal(t, []string{"owner"}, dispatcher.recipients)
	assert.Equal(t, notify.KindNewCar, dispatcher.messages[0].Kind)
}

func TestHandleEvent_CarStatusChanged(t *testing.T) {
	store := &fakeStore{cars: map[string]notify.Car{
		"c1": {ID: "c1", UserID: "owner", Manufacturer: "Honda", Model: "Civic",
			LicensePlate: "98-765-43", Status: notify.StatusDone},
	}}
	dispatcher := &fakeDispatcher{}

	HandleEvent(context.Background(), store, dispatcher,
		Event{Entity: "car", Op: "updated", ID: "c1", OldStatus: "in-progress", NewStatus: "done"}, discard())

	require.Len(t, dispatcher.messages, 1)
	msg := dispatcher.messages[0]
	assert.Equal(t, notify.KindCarStatusChange, msg.Kind)
	assert.Equal(t, "in-progress", msg.Data["old_status"])
	assert.Equal(t, "done", msg.Data["new_status"])
}

func TestHandleEvent_NoOpStatusUpdateIsQuiet(t *testing.T) {
	store := &fakeStore{cars: map[string]notify.Car{
		"c1": {ID: "c1", UserID: "owner", Status: notify.StatusWaiting},
	}}
	dispatcher := &fakeDispatcher{}

	HandleEvent(context.Background(), store, dispatcher,
		Event{Entity: "car", Op: "updated", ID: "c1", OldStatus: "waiting", NewStatus: "waiting"}, discard())

	assert.Empty(t, dispatcher.messages, "unchanged status must not notify")
}

func TestHandleEvent_UserCreatedWelcomeAfterDelay(t *testing.T) {
	old := welcomeDelay
	welcomeDelay = time.Millisecond
	defer func() { welcomeDelay = old }()

	dispatcher := &fakeDispatcher{}
	HandleEvent(context.Background(), &fakeStore{}, dispatcher,
		Event{Entity: "user", Op: "created", ID: "u1"}, discard())

	require.Len(t, dispatcher.messages, 1)
	assert.Equal(t, []string{"u1"}, dispatcher.recipients)
	assert.Equal(t, notify.KindWelcome, dispatcher.messages[0].Kind)
}

func TestHandleEvent_UserCreatedCancelledBeforeDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dispatcher := &fakeDispatcher{}
	HandleEvent(ctx, &fakeStore{}, dispatcher,
		Event{Entity: "user", Op: "created", ID: "u1"}, discard())

	assert.Empty(t, dispatcher.messages, "shutdown during the delay drops the greeting")
}

func TestHandleEvent_AppointmentDeleted(t *testing.T) {
	store := &fakeStore{cars: map[string]notify.Car{
		"c1": {ID: "c1", UserID: "owner", Manufacturer: "Mazda", Model: "3"},
	}}

	// Appointment carries its own user; it wins over the car owner.
	dispatcher := &fakeDispatcher{}
	HandleEvent(context.Background(), store, dispatcher,
		Event{Entity: "appointment", Op: "deleted", ID: "a1", CarID: "c1", UserID: "booker"}, discard())
	assert.Equal(t, []string{"booker"}, dispatcher.recipients)

	// Without one, the car owner is the fallback recipient.
	dispatcher = &fakeDispatcher{}
	HandleEvent(context.Background(), store, dispatcher,
		Event{Entity: "appointment", Op: "deleted", ID: "a2", CarID: "c1"}, discard())
	assert.Equal(t, []string{"owner"}, dispatcher.recipients)
	assert.Equal(t, notify.KindAppointmentCancelled, dispatcher.messages[0].Kind)
}

func TestHandleEvent_MissingCarIsDropped(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	HandleEvent(context.Background(), &fakeStore{}, dispatcher,
		Event{Entity: "car", Op: "created", ID: "ghost"}, discard())
	assert.Empty(t, dispatcher.messages)
}

func TestHandleEvent_StoreErrorIsDropped(t *testing.T) {
	store := &fakeStore{getErr: errors.New("connection refused")}
	dispatcher := &fakeDispatcher{}
	HandleEvent(context.Background(), store, dispatcher,
		Event{Entity: "car", Op: "updated", ID: "c1", OldStatus: "waiting", NewStatus: "done"}, discard())
	assert.Empty(t, dispatcher.messages)
}
