package model

import "time"

// ConnectionStatus is the mailbox session state.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
	StatusReconnecting
	StatusFailed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnected:
		return "CONNECTED"
	case StatusReconnecting:
		return "RECONNECTING"
	case StatusFailed:
		return "FAILED"
	default:
		return "DISCONNECTED"
	}
}

// MarshalText renders the status by name in JSON.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *ConnectionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "CONNECTED":
		*s = StatusConnected
	case "RECONNECTING":
		*s = StatusReconnecting
	case "FAILED":
		*s = StatusFailed
	default:
		*s = StatusDisconnected
	}
	return nil
}

// ConnectionState is a snapshot of the mailbox poller.
type ConnectionState struct {
	Status              ConnectionStatus `json:"status"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
	RetryDelay          time.Duration    `json:"retry_delay"`
	LastPoll            time.Time        `json:"last_poll"`
}

// QueueStatus is a point-in-time snapshot of the processing queue.
type QueueStatus struct {
	QueueSize      int           `json:"queue_size"`
	TotalProcessed int64         `json:"total_processed"`
	TotalErrors    int64         `json:"total_errors"`
	Running        bool          `json:"running"`
	Uptime         time.Duration `json:"uptime"`
}
