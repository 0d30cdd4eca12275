package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed store for users, cars, appointments, and the
// notification log. Point reads and marker writes go through prepared
// statements registered by the db package; sweep range queries are inline.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// --------------------------------------------------------------------------
// Users
// --------------------------------------------------------------------------

// GetUser fetches the notification projection of a user. A missing row is
// reported through the found flag, not an error.
func (s *PGStore) GetUser(ctx context.Context, id string) (User, bool, error) {
	var (
		u       User
		markers map[string]time.Time
	)
	err := s.pool.QueryRow(ctx, "get_user", id).Scan(
		&u.ID, &u.Email, &u.FullName, &u.FCMToken, &u.TokenInvalidatedAt,
		&u.NotificationsDisabled, &u.SubscriptionEndAt, &markers,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("get user %s: %w", id, err)
	}

	u.SubscriptionReminders = make(map[Band]time.Time, len(markers))
	for band, at := range markers {
		u.SubscriptionReminders[Band(band)] = at
	}
	return u, true, nil
}

// InvalidateToken clears a dead FCM token and stamps when it happened.
func (s *PGStore) InvalidateToken(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, "invalidate_token", userID, at)
	if err != nil {
		return fmt.Errorf("invalidate token for %s: %w", userID, err)
	}
	return nil
}

// StampSubscriptionReminder records that a band reminder went out.
func (s *PGStore) StampSubscriptionReminder(ctx context.Context, userID string, band Band, at time.Time) error {
	_, err := s.pool.Exec(ctx, "stamp_subscription_reminder", userID, string(band), at)
	if err != nil {
		return fmt.Errorf("stamp subscription reminder %s/%s: %w", userID, band, err)
	}
	return nil
}

// ExpiringUsers returns users whose subscription ends at or before the cutoff.
func (s *PGStore) ExpiringUsers(ctx context.Context, cutoff time.Time) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(email, ''), COALESCE(full_name, ''),
		       COALESCE(fcm_token, ''), fcm_token_invalidated_at,
		       notifications_disabled, subscription_end_at, subscription_reminders
		FROM users
		WHERE subscription_end_at IS NOT NULL AND subscription_end_at <= $1`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expiring users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u       User
			markers map[string]time.Time
		)
		if err := rows.Scan(
			&u.ID, &u.Email, &u.FullName, &u.FCMToken, &u.TokenInvalidatedAt,
			&u.NotificationsDisabled, &u.SubscriptionEndAt, &markers,
		); err != nil {
			return nil, fmt.Errorf("scan expiring user: %w", err)
		}
		u.SubscriptionReminders = make(map[Band]time.Time, len(markers))
		for band, at := range markers {
			u.SubscriptionReminders[Band(band)] = at
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --------------------------------------------------------------------------
// Cars
// --------------------------------------------------------------------------

const carColumns = `id, user_id, manufacturer, model, license_plate, status,
	payment_status, total_cost, last_maintenance_at,
	last_maintenance_reminder_at, updated_at`

func scanCar(row pgx.Row) (Car, error) {
	var c Car
	err := row.Scan(
		&c.ID, &c.UserID, &c.Manufacturer, &c.Model, &c.LicensePlate,
		&c.Status, &c.PaymentStatus, &c.TotalCost, &c.LastMaintenanceAt,
		&c.LastMaintenanceReminderAt, &c.UpdatedAt,
	)
	return c, err
}

// GetCar fetches a car by ID.
func (s *PGStore) GetCar(ctx context.Context, id string) (Car, bool, error) {
	c, err := scanCar(s.pool.QueryRow(ctx, "get_car", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Car{}, false, nil
	}
	if err != nil {
		return Car{}, false, fmt.Errorf("get car %s: %w", id, err)
	}
	return c, true, nil
}

// UnpaidCars returns cars with an unpaid invoice last touched at or before
// the cutoff. The comparison is inclusive.
func (s *PGStore) UnpaidCars(ctx context.Context, cutoff time.Time) ([]Car, error) {
	return s.queryCars(ctx, `
		SELECT `+carColumns+` FROM cars
		WHERE payment_status = 'unpaid' AND updated_at <= $1`, cutoff)
}

// MaintenanceDueCars returns cars whose last service is at or before the
// cutoff. Cars never serviced carry no timestamp and are not selected,
// matching the original behavior.
func (s *PGStore) MaintenanceDueCars(ctx context.Context, cutoff time.Time) ([]Car, error) {
	return s.queryCars(ctx, `
		SELECT `+carColumns+` FROM cars
		WHERE last_maintenance_at IS NOT NULL AND last_maintenance_at <= $1`, cutoff)
}

func (s *PGStore) queryCars(ctx context.Context, sql string, args ...any) ([]Car, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query cars: %w", err)
	}
	defer rows.Close()

	var cars []Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

// StampMaintenanceReminder records that a maintenance reminder went out.
func (s *PGStore) StampMaintenanceReminder(ctx context.Context, carID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, "stamp_maintenance_reminder", carID, at)
	if err != nil {
		return fmt.Errorf("stamp maintenance reminder %s: %w", carID, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Appointments
// --------------------------------------------------------------------------

// UpcomingAppointments returns un-notified appointments starting within
// [from, to], joined with their cars.
func (s *PGStore) UpcomingAppointments(ctx context.Context, from, to time.Time) ([]AppointmentCar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.car_id, COALESCE(a.user_id, ''), a.starts_at, a.notification_sent,
		       c.id, c.user_id, c.manufacturer, c.model, c.license_plate, c.status,
		       c.payment_status, c.total_cost, c.last_maintenance_at,
		       c.last_maintenance_reminder_at, c.updated_at
		FROM appointments a
		JOIN cars c ON c.id = a.car_id
		WHERE a.starts_at >= $1 AND a.starts_at <= $2 AND NOT a.notification_sent`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("query upcoming appointments: %w", err)
	}
	defer rows.Close()

	var result []AppointmentCar
	for rows.Next() {
		var ac AppointmentCar
		if err := rows.Scan(
			&ac.Appointment.ID, &ac.Appointment.CarID, &ac.Appointment.UserID,
			&ac.Appointment.StartsAt, &ac.Appointment.NotificationSent,
			&ac.Car.ID, &ac.Car.UserID, &ac.Car.Manufacturer, &ac.Car.Model,
			&ac.Car.LicensePlate, &ac.Car.Status, &ac.Car.PaymentStatus,
			&ac.Car.TotalCost, &ac.Car.LastMaintenanceAt,
			&ac.Car.LastMaintenanceReminderAt, &ac.Car.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan upcoming appointment: %w", err)
		}
		result = append(result, ac)
	}
	return result, rows.Err()
}

// MarkAppointmentNotified sets the once-only reminder flag.
func (s *PGStore) MarkAppointmentNotified(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, "mark_appointment_notified", id, at)
	if err != nil {
		return fmt.Errorf("mark appointment notified %s: %w", id, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Notification log
// --------------------------------------------------------------------------

// AppendNotification appends an unread entry to the dispatch log.
func (s *PGStore) AppendNotification(ctx context.Context, n Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, data, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, string(n.Kind), n.Title, n.Body, n.Data, n.SentAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// MarkNotificationRead toggles the read flag and returns the owning user ID
// so callers can invalidate per-user caches. Returns found=false when no
// entry with that ID exists.
func (s *PGStore) MarkNotificationRead(ctx context.Context, id uuid.UUID, at time.Time) (string, bool, error) {
	var userID string
	err := s.pool.QueryRow(ctx, "mark_notification_read", id, at).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mark notification read %s: %w", id, err)
	}
	return userID, true, nil
}

// RecentNotifications returns the latest log entries for a user, newest
// first.
func (s *PGStore) RecentNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, "recent_notifications", userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent notifications: %w", err)
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Data,
			&n.SentAt, &n.Read, &n.ReadAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// PurgeOldNotifications deletes log entries sent before the cutoff. Used by
// the maintenance cleanup task.
func (s *PGStore) PurgeOldNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE sent_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
