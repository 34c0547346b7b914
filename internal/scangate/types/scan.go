package types

// Reason codes for deny and error outcomes. These strings are part of the
// operator-facing contract and must stay stable.
const (
	ReasonNotCached        = "NOT_CACHED"
	ReasonAlreadyUsed      = "ALREADY_USED"
	ReasonAlreadyValidated = "ALREADY_VALIDATED"
	ReasonInvalid          = "INVALID"
	ReasonSystemError      = "SYSTEM_ERROR"
)

// Ticket lifecycle statuses as cached locally.
const (
	StatusValid   = "valid"
	StatusUsed    = "used"
	StatusInvalid = "invalid"
)

// TicketSummary is the slice of ticket state shown to the operator on the
// admit/deny screen.
type TicketSummary struct {
	TicketID string `json:"ticket_id"`
	Code     string `json:"code"`
	Status   string `json:"status"`
	Tier     string `json:"tier,omitempty"`
	Holder   string `json:"holder,omitempty"`
}

// ScanResult is the uniform outcome of one validation attempt, online or
// offline. Success=false with a Reason is a normal deny, not an error.
type ScanResult struct {
	Success bool           `json:"success"`
	Offline bool           `json:"offline"`
	Message string         `json:"message"`
	Reason  string         `json:"reason,omitempty"`
	Ticket  *TicketSummary `json:"ticket,omitempty"`
}

// RemoteValidateResponse mirrors the ticketing authority's validate endpoint.
// The shape is owned by the authority; fields we do not use are omitted.
type RemoteValidateResponse struct {
	Success          bool   `json:"success"`
	Valid            bool   `json:"valid"`
	AlreadyValidated bool   `json:"already_validated"`
	Message          string `json:"message"`
	SerialNumber     string `json:"serial_number,omitempty"`
	TicketID         string `json:"ticket_id,omitempty"`
	HolderName       string `json:"holder_name,omitempty"`
	TicketTier       string `json:"ticket_tier,omitempty"`
	ValidatedAt      string `json:"validated_at,omitempty"`
}
