package domain

// User is the collaborating operator profile. The incident core mutates it
// only through the resolution transaction.
type User struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	SolvedIncidents    []string `json:"solvedIncidents"`
	TotalRiskMitigated int      `json:"totalRiskMitigated"`
}

// LogLevel classifies a pipeline log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "INFO"
	LogSuccess LogLevel = "SUCCESS"
	LogAlert   LogLevel = "ALERT"
)

// LogEntry is one structured pipeline event, consumed by the log viewer
// surface. Exactly one entry is emitted per connector outcome per sync cycle,
// plus one per incident creation and resolution.
type LogEntry struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Message   string   `json:"message"`
	Level     LogLevel `json:"level"`
}

// Notification is an operator-facing alert derived from store mutations.
type Notification struct {
	ID         string   `json:"id"`
	Timestamp  int64    `json:"timestamp"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Type       LogLevel `json:"type"`
	Read       bool     `json:"read"`
	IncidentID string   `json:"incidentId,omitempty"`
}
