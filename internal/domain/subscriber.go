package domain

import "time"

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberUnconfirmed  SubscriberStatus = "unconfirmed"
	SubscriberConfirmed    SubscriberStatus = "confirmed"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberMoved        SubscriberStatus = "moved"
	SubscriberUnapproved   SubscriberStatus = "unapproved"
	SubscriberBlacklisted  SubscriberStatus = "blacklisted"
	SubscriberDisabled     SubscriberStatus = "disabled"
)

// Subscriber represents a single email recipient within a mailing list.
// Fields holds the subscriber's list field values keyed by upper-case tag
// (EMAIL, FIRST_NAME, ...).
type Subscriber struct {
	ID        string            `json:"subscriber_id" db:"subscriber_id"`
	UID       string            `json:"subscriber_uid" db:"subscriber_uid"`
	ListID    string            `json:"list_id" db:"list_id"`
	Email     string            `json:"email" db:"email"`
	IPAddress string            `json:"ip_address" db:"ip_address"`
	Status    SubscriberStatus  `json:"status" db:"status"`
	Source    string            `json:"source" db:"source"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"date_added" db:"date_added"`
}

// IsConfirmed reports whether the subscriber confirmed the subscription.
func (s *Subscriber) IsConfirmed() bool { return s.Status == SubscriberConfirmed }

// IsMoved reports whether the subscriber was moved to another list.
func (s *Subscriber) IsMoved() bool { return s.Status == SubscriberMoved }

// Field returns the value stored for tag, falling back to the built-in
// columns for EMAIL.
func (s *Subscriber) Field(tag string) string {
	if v, ok := s.Fields[tag]; ok {
		return v
	}
	if tag == "EMAIL" {
		return s.Email
	}
	return ""
}

// ListCompany is the company block attached to a list. It feeds the
// [COMPANY_*] tags and the template engine's company binding.
type ListCompany struct {
	Name    string `json:"name" db:"company_name"`
	Website string `json:"website" db:"company_website"`
	Address string `json:"address" db:"company_address"`
	City    string `json:"city" db:"company_city"`
	Country string `json:"country" db:"company_country"`
}

// List represents a mailing list that holds subscribers.
type List struct {
	ID          string      `json:"list_id" db:"list_id"`
	UID         string      `json:"list_uid" db:"list_uid"`
	Name        string      `json:"name" db:"name"`
	DisplayName string      `json:"display_name" db:"display_name"`
	FromName    string      `json:"from_name" db:"from_name"`
	Company     ListCompany `json:"company"`
	// SubscriberNotFoundRedirect is where click tracking sends visitors when
	// the subscriber or link can no longer be resolved. Empty means 404.
	SubscriberNotFoundRedirect string `json:"subscriber_not_found_redirect" db:"subscriber_not_found_redirect"`
}

// ListField describes a custom field defined on a list.
type ListField struct {
	ID     string `json:"field_id" db:"field_id"`
	ListID string `json:"list_id" db:"list_id"`
	Tag    string `json:"tag" db:"tag"`
	Label  string `json:"label" db:"label"`
}
