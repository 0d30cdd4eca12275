package notify

import "context"

// Eligibility is the tri-state outcome of recipient resolution. Resolution
// never fails the caller on missing data; downstream stages skip cleanly.
type Eligibility int

const (
	Eligible Eligibility = iota
	NotFound
	Disabled
	NoToken
)

func (e Eligibility) String() string {
	switch e {
	case Eligible:
		return "eligible"
	case NotFound:
		return "not_found"
	case Disabled:
		return "disabled"
	case NoToken:
		return "no_token"
	default:
		return "unknown"
	}
}

// Recipient is a resolved delivery target.
type Recipient struct {
	UserID      string
	Token       string
	Eligibility Eligibility
}

// UserGetter is the read side of recipient resolution.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (User, bool, error)
}

// Resolve looks up a user and determines delivery eligibility. The returned
// error is reserved for store failures; an absent user, a disabled
// preference, or a missing token all resolve to an ineligible Recipient.
func Resolve(ctx context.Context, store UserGetter, userID string) (Recipient, error) {
	user, found, err := store.GetUser(ctx, userID)
	if err != nil {
		return Recipient{}, err
	}
	if !found {
		return Recipient{UserID: userID, Eligibility: NotFound}, nil
	}
	if user.NotificationsDisabled {
		return Recipient{UserID: userID, Eligibility: Disabled}, nil
	}
	if user.FCMToken == "" {
		return Recipient{UserID: userID, Eligibility: NoToken}, nil
	}
	return Recipient{UserID: userID, Token: user.FCMToken, Eligibility: Eligible}, nil
}
