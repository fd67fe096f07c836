package models

import "time"

// AttemptTotals counts ledger rows in a period
type AttemptTotals struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// AttemptSummary is the aggregate of the ledger over a report period
type AttemptSummary struct {
	TotalAttempts    int64   `json:"total_attempts"`
	SuccessfulLogins int64   `json:"successful_logins"`
	FailedAttempts   int64   `json:"failed_attempts"`
	UniqueOrigins    int64   `json:"unique_origins"`
	UniqueAccounts   int64   `json:"unique_accounts"`
	SuccessRate      float64 `json:"success_rate"`
}

// SecurityStats is the point-in-time view used by the admin dashboard
type SecurityStats struct {
	ActiveLockouts int64         `json:"active_lockouts"`
	LastHour       AttemptTotals `json:"last_hour"`
}

// OriginCount ranks an origin by failed attempts
type OriginCount struct {
	Origin      string `json:"origin"`
	FailedCount int64  `json:"failed_count"`
}

// AccountCount ranks an account by failed attempts against it
type AccountCount struct {
	AccountIdentifier string `json:"account_identifier"`
	AttemptCount      int64  `json:"attempt_count"`
}

// ReportPeriod is the window a SecurityReport covers
type ReportPeriod struct {
	Hours     int       `json:"hours"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// TopThreats lists the most active failing origins and most targeted accounts
type TopThreats struct {
	FailedOrigins    []OriginCount  `json:"failed_origins"`
	TargetedAccounts []AccountCount `json:"targeted_accounts"`
}

// SecurityReport aggregates ledger and lockout data over a period
type SecurityReport struct {
	Period     ReportPeriod   `json:"period"`
	Summary    AttemptSummary `json:"summary"`
	Current    SecurityStats  `json:"current"`
	TopThreats TopThreats     `json:"top_threats"`
}

// SecurityAlert is raised by the daily digest when a threshold is crossed
type SecurityAlert struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Value     int64  `json:"value"`
	Threshold int64  `json:"threshold"`
}
