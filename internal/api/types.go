package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Transaction describes a fulfillment session in a transport-friendly format.
type Transaction struct {
	Kind        string   `json:"kind"`
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	SessionID   string   `json:"sessionId,omitempty"`
	Status      string   `json:"status"`
	Live        bool     `json:"live"`
	Cursor      int      `json:"cursor"`
	PhaseCount  int      `json:"phaseCount"`
	Percent     int      `json:"percent"`
	Complete    bool     `json:"complete"`
	Phases      []Phase  `json:"phases"`
	Failure     *Failure `json:"failure,omitempty"`
	Error       string   `json:"error,omitempty"`
	StartedAt   string   `json:"startedAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
	CompletedAt string   `json:"completedAt,omitempty"`
}

// Phase captures one step of a pipeline.
type Phase struct {
	Name  string `json:"name"`
	Lanes []Lane `json:"lanes"`
}

// Lane is one actor slot within a phase.
type Lane struct {
	Actor  string `json:"actor"`
	Status string `json:"status"`
}

// Failure identifies the lane whose work halted a drive.
type Failure struct {
	Phase     int    `json:"phase"`
	PhaseName string `json:"phaseName"`
	Lane      string `json:"lane"`
	Message   string `json:"message"`
}

// TrackerStatus summarizes tracker execution state.
type TrackerStatus struct {
	Running     bool           `json:"running"`
	Sessions    int            `json:"sessions"`
	Active      int            `json:"active"`
	LedgerStats map[string]int `json:"ledgerStats"`
	LastError   string         `json:"lastError,omitempty"`
	Last        *Transaction   `json:"lastTransaction,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	LedgerPath   string        `json:"ledgerPath"`
	LockFilePath string        `json:"lockFilePath"`
	APIBind      string        `json:"apiBind"`
	Tracker      TrackerStatus `json:"tracker"`
}

// TransactionListResponse wraps a collection of transactions.
type TransactionListResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// TransactionResponse wraps a single transaction.
type TransactionResponse struct {
	Transaction Transaction `json:"transaction"`
}

// NotificationResponse reports the outcome of a test notification.
type NotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
