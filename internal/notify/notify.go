// Package notify implements the notification policy layer of the garage
// management system: classifying domain events into messages, resolving
// recipients, suppressing repeats, and dispatching composed messages to
// Firebase Cloud Messaging with a persisted notification log.
//
// Pipeline: event → classify → resolve recipient → dedup gate → dispatch.
// Real-time events arrive from the Postgres listener; periodic events come
// from the sweep package.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of notification categories. Every log entry and
// every push payload carries exactly one.
type Kind string

const (
	KindAppointmentReminder  Kind = "appointment_reminder"
	KindCarStatusChange      Kind = "car_status_change"
	KindUnpaidInvoice        Kind = "unpaid_invoice"
	KindWelcome              Kind = "welcome"
	KindManual               Kind = "manual"
	KindMaintenanceReminder  Kind = "maintenance_reminder"
	KindSubscriptionExpiry   Kind = "subscription_expiry"
	KindNewCar               Kind = "new_car"
	KindAppointmentCancelled Kind = "appointment_cancelled"
	KindGeneral              Kind = "general"
)

// CarStatus is the closed set of workshop states a car moves through.
// Unrecognized values are tolerated: the classifier falls back to a generic
// status-change message rather than failing.
type CarStatus string

const (
	StatusWaiting    CarStatus = "waiting"
	StatusInProgress CarStatus = "in-progress"
	StatusDone       CarStatus = "done"
	StatusDelivered  CarStatus = "delivered"
)

// Band is a subscription-expiry reminder category. Each band is deduplicated
// independently so a user receives one notification per band as the end date
// approaches.
type Band string

const (
	BandExpired Band = "expired"
	Band1Day    Band = "1_day"
	Band3Days   Band = "3_days"
	Band7Days   Band = "7_days"
	BandNone    Band = ""
)

// User is the notification-relevant projection of a user record.
type User struct {
	ID                    string
	Email                 string
	FullName              string
	FCMToken              string
	TokenInvalidatedAt    *time.Time
	NotificationsDisabled bool
	SubscriptionEndAt     *time.Time
	SubscriptionReminders map[Band]time.Time
}

// Car is the notification-relevant projection of a car record.
type Car struct {
	ID                        string
	UserID                    string
	Manufacturer              string
	Model                     string
	LicensePlate              string
	Status                    CarStatus
	PaymentStatus             string
	TotalCost                 float64
	LastMaintenanceAt         *time.Time
	LastMaintenanceReminderAt *time.Time
	UpdatedAt                 time.Time
}

// Info renders the standard car description used in message bodies.
func (c Car) Info() string {
	return fmt.Sprintf("%s %s (%s)", c.Manufacturer, c.Model, c.LicensePlate)
}

// ShortInfo renders the car description without the license plate.
func (c Car) ShortInfo() string {
	return fmt.Sprintf("%s %s", c.Manufacturer, c.Model)
}

// Appointment is a scheduled workshop visit.
type Appointment struct {
	ID               string
	CarID            string
	UserID           string // may be empty; the owning car's user is the fallback recipient
	StartsAt         time.Time
	NotificationSent bool
}

// AppointmentCar pairs an appointment with its car for sweeps and messages.
type AppointmentCar struct {
	Appointment Appointment
	Car         Car
}

// RecipientID returns the appointment's user when set, otherwise the car owner.
func (ac AppointmentCar) RecipientID() string {
	if ac.Appointment.UserID != "" {
		return ac.Appointment.UserID
	}
	return ac.Car.UserID
}

// Message is a composed notification ready for dispatch.
type Message struct {
	Kind  Kind
	Title string
	Body  string
	Data  map[string]string
}

// Notification is an entry in the append-only dispatch log.
type Notification struct {
	ID     uuid.UUID
	UserID string
	Kind   Kind
	Title  string
	Body   string
	Data   map[string]string
	SentAt time.Time
	Read   bool
	ReadAt *time.Time
}
