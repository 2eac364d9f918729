package engagement

// Outcome says how a tracking hit ended.
type Outcome string

const (
	OutcomeRecorded           Outcome = "recorded"
	OutcomeNotFound           Outcome = "not_found"
	OutcomeContended          Outcome = "contended"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeIneligible         Outcome = "ineligible"
	OutcomePersistFailed      Outcome = "persist_failed"
	OutcomeInvalidDestination Outcome = "invalid_destination"
)

// Hit is the request data of one tracking call.
type Hit struct {
	CampaignUID   string
	SubscriberUID string
	Hash          string
	IPAddress     string
	UserAgent     string
}

// OpenResult is the result of RecordOpen.
type OpenResult struct {
	Outcome Outcome
	EventID string
}

// Action is what the HTTP layer does with a click.
type Action int

const (
	// ActionRedirect sends a 301 to Location.
	ActionRedirect Action = iota
	// ActionNotFound answers 404.
	ActionNotFound
	// ActionNoOp ends the response without a body.
	ActionNoOp
)

func (a Action) String() string {
	switch a {
	case ActionRedirect:
		return "redirect"
	case ActionNotFound:
		return "not_found"
	case ActionNoOp:
		return "noop"
	}
	return "unknown"
}

// ClickDecision is the result of RecordClick.
type ClickDecision struct {
	Action   Action
	Location string
	Outcome  Outcome
	EventID  string
	// Opened is set when the click also recorded the campaign open.
	Opened bool
}
