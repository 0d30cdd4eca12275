package notify

// Stats summarizes a window of the notification log.
type Stats struct {
	Total  int            `json:"total"`
	Unread int            `json:"unread"`
	ByType map[string]int `json:"by_type"`
}

// Summarize computes totals over a slice of log entries (typically the
// latest 50 for one user).
func Summarize(notifications []Notification) Stats {
	stats := Stats{
		Total:  len(notifications),
		ByType: make(map[string]int),
	}
	for _, n := range notifications {
		if !n.Read {
			stats.Unread++
		}
		stats.ByType[string(n.Kind)]++
	}
	return stats
}
