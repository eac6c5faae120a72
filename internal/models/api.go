package models

// ContributionRequest represents the request payload for adding a contribution.
// UserName is optional: contributors always tally against their own name, and
// an admin who leaves it blank tallies against theirs.
type ContributionRequest struct {
	UserName string `json:"userName" validate:"omitempty,max=50"`
	Amount   int    `json:"amount" validate:"required,min=1"`
}

// SetTotalRequest represents the request payload for overwriting a user's total
type SetTotalRequest struct {
	Total *int `json:"total" validate:"required,min=0"`
}

// UpdateEntryRequest represents the request payload for editing an entry by id
type UpdateEntryRequest struct {
	Value *int `json:"value" validate:"required,min=0"`
}

// VisibilityRequest represents the request payload for the leaderboard toggle
type VisibilityRequest struct {
	ShowAll *bool `json:"showAll" validate:"required"`
}

// StatRow is one per-user line of the aggregation output
type StatRow struct {
	UserName string `json:"userName"`
	Total    int    `json:"total"`
	Count    int    `json:"count"`
	IsAdmin  bool   `json:"isAdmin"`
}

// StatsResponse represents the aggregated view of all entries
type StatsResponse struct {
	Data       []StatRow `json:"data"`
	GrandTotal int       `json:"grandTotal"`
}

// AdminDashboardResponse represents the admin-only contributions summary
type AdminDashboardResponse struct {
	Data          []StatRow `json:"data"`
	CombinedTotal int       `json:"combinedTotal"`
	AdminCount    int       `json:"adminCount"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
