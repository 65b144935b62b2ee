// Package notify surfaces run outcomes to the user.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Notification is a short user facing message about one site.
type Notification struct {
	Title   string    `json:"title"`
	Text    string    `json:"text"`
	SiteID  string    `json:"siteId"`
	Success bool      `json:"success"`
	Time    time.Time `json:"time"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierConfig defines the necessary parameters to make a new notifier.
type NotifierConfig struct {
	Type     NotifierType `yaml:"type" env:"NOTIFIER_TYPE" env-default:"stdout"`
	Uri      string       `yaml:"uri" env:"NOTIFIER_URI"`
	User     string       `yaml:"user" env:"NOTIFIER_USER"`         // credentials should be passed via env vars
	Password string       `yaml:"password" env:"NOTIFIER_PASSWORD"` // credentials should be passed via env vars
	FileDir  string       `yaml:"filedir"`
}

// NotifierType encapsulates the type of a notifier
// See below constants for possible types
type NotifierType string

const (
	STDOUT_NOTIFIER_TYPE NotifierType = "stdout"
	FILE_NOTIFIER_TYPE   NotifierType = "file"
	API_NOTIFIER_TYPE    NotifierType = "api"
)

// NewNotifier returns a new notifier depending on the notifier type
func NewNotifier(nc *NotifierConfig) (Notifier, error) {
	switch nc.Type {
	case STDOUT_NOTIFIER_TYPE, "":
		return NewStdoutNotifier(nc), nil
	case FILE_NOTIFIER_TYPE:
		return NewFileNotifier(nc)
	case API_NOTIFIER_TYPE:
		return NewAPINotifier(nc)
	default:
		return nil, fmt.Errorf("notifier of type '%s' not implemented", nc.Type)
	}
}
