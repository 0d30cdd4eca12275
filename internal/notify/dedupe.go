package notify

import "time"

// Deduplication decisions over markers persisted on the entity records.
//
// Checking a marker and writing it back after a successful dispatch are two
// separate store operations: two concurrent sweeps over the same entity can
// both pass the gate before either writes, producing a duplicate
// notification. At the event rates of a single garage this is an accepted,
// documented race; entities are only examined by one sweep tick at a time in
// normal operation.

// MaintenanceReminderWindow suppresses repeat maintenance reminders.
const MaintenanceReminderWindow = 7 * 24 * time.Hour

// MaintenanceDueAge is how long a car may go without service before the
// maintenance sweep selects it.
const MaintenanceDueAge = 30 * 24 * time.Hour

// UnpaidInvoiceAge is how long an unpaid invoice may sit before the invoice
// sweep reminds the owner. The cutoff comparison is inclusive.
const UnpaidInvoiceAge = 3 * 24 * time.Hour

// AllowOnce gates notifications deduplicated by a boolean already-sent flag.
func AllowOnce(alreadySent bool) bool {
	return !alreadySent
}

// AllowWindow gates time-windowed reminders: allow when no marker exists or
// the marker is older than the suppression window.
func AllowWindow(lastSent *time.Time, now time.Time, window time.Duration) bool {
	if lastSent == nil {
		return true
	}
	return now.Sub(*lastSent) >= window
}

// AllowBand gates banded reminders: each band has an independent marker, so
// a user receives at most one notification per band.
func AllowBand(markers map[Band]time.Time, band Band) bool {
	if band == BandNone {
		return false
	}
	_, sent := markers[band]
	return !sent
}
