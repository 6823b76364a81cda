// Package notify publishes freeze and deploy outcomes to interested
// listeners, such as CI pipelines waiting on a Pub/Sub topic.
package notify

import (
	"context"
	"time"
)

// Actions reported by notifications.
const (
	ActionFreeze = "freeze"
	ActionDeploy = "deploy"
)

// Event describes one completed or failed operation.
type Event struct {
	Action    string    `json:"action"`
	Site      string    `json:"site"`
	BaseURL   string    `json:"base_url,omitempty"`
	Pages     int       `json:"pages,omitempty"`
	Files     int       `json:"files,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	Commit    string    `json:"commit,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	Pushed    bool      `json:"pushed,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers events. Implementations return a backend message
// ID for correlation.
type Notifier interface {
	Notify(ctx context.Context, event Event) (string, error)
}
