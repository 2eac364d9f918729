package domain

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft          CampaignStatus = "draft"
	CampaignPendingSending CampaignStatus = "pending-sending"
	CampaignSending        CampaignStatus = "sending"
	CampaignSent           CampaignStatus = "sent"
	CampaignPaused         CampaignStatus = "paused"
	CampaignPendingDelete  CampaignStatus = "pending-delete"
)

// CampaignOptions holds the per-campaign tracking switches.
type CampaignOptions struct {
	OpenTracking bool `json:"open_tracking" db:"open_tracking"`
	URLTracking  bool `json:"url_tracking" db:"url_tracking"`
}

// Campaign is the subset of a campaign the tracker needs. Campaigns are
// owned by the composition subsystem; the tracker only reads them.
type Campaign struct {
	ID         string          `json:"id" db:"id"`
	UID        string          `json:"campaign_uid" db:"campaign_uid"`
	ListID     string          `json:"list_id" db:"list_id"`
	CustomerID string          `json:"customer_id" db:"customer_id"`
	Name       string          `json:"name" db:"name"`
	Subject    string          `json:"subject" db:"subject"`
	FromName   string          `json:"from_name" db:"from_name"`
	Status     CampaignStatus  `json:"status" db:"status"`
	Options    CampaignOptions `json:"options"`
}

// IsPendingDelete reports whether the campaign is queued for removal.
// Such campaigns are invisible to tracking.
func (c *Campaign) IsPendingDelete() bool {
	return c.Status == CampaignPendingDelete
}

// TrackedURL is a campaign link rewritten at send time to pass through the
// click-tracking endpoint.
type TrackedURL struct {
	ID          string `json:"url_id" db:"url_id"`
	CampaignID  string `json:"campaign_id" db:"campaign_id"`
	Hash        string `json:"hash" db:"hash"`
	Destination string `json:"destination" db:"destination"`
}
