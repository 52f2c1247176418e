package vigil

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Settings bounds.
const (
	MinRefreshInterval = 0
	MaxRefreshInterval = 60000
	MinJobsPerPage     = 10
	MaxJobsPerPage     = 500
)

// Settings holds the operator-tunable monitor and notification settings.
// Settings are loaded once per operation and treated as immutable for its
// duration.
type Settings struct {
	// RefreshInterval is the UI polling cadence in milliseconds.
	RefreshInterval int `json:"refreshInterval"`

	// JobsPerPage is the default listing size.
	JobsPerPage int `json:"jobsPerPage"`

	// EnableEmailNotifications toggles first-failure alerts.
	EnableEmailNotifications bool `json:"enableEmailNotifications"`

	// NotificationEmail is the alert destination. Required when
	// EnableEmailNotifications is set.
	NotificationEmail string `json:"notificationEmail"`
}

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		RefreshInterval: 2000,
		JobsPerPage:     50,
	}
}

// Validate checks the settings bounds. All violations are reported together
// and the result matches ErrInvalidSettings.
func (s Settings) Validate() error {
	var errs []error
	if s.RefreshInterval < MinRefreshInterval || s.RefreshInterval > MaxRefreshInterval {
		errs = append(errs, fmt.Errorf("refreshInterval must be between %d and %d, got %d",
			MinRefreshInterval, MaxRefreshInterval, s.RefreshInterval))
	}
	if s.JobsPerPage < MinJobsPerPage || s.JobsPerPage > MaxJobsPerPage {
		errs = append(errs, fmt.Errorf("jobsPerPage must be between %d and %d, got %d",
			MinJobsPerPage, MaxJobsPerPage, s.JobsPerPage))
	}
	if s.EnableEmailNotifications {
		email := strings.TrimSpace(s.NotificationEmail)
		if email == "" {
			errs = append(errs, errors.New("notificationEmail is required when notifications are enabled"))
		} else if _, err := mail.ParseAddress(email); err != nil {
			errs = append(errs, fmt.Errorf("notificationEmail %q is not a valid address", email))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}

// NotificationsArmed reports whether a failure alert may be sent at all.
func (s Settings) NotificationsArmed() bool {
	return s.EnableEmailNotifications && strings.TrimSpace(s.NotificationEmail) != ""
}

// SettingsSource loads the current settings. Implementations may read from
// any store; vigil never writes settings back.
type SettingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

// StaticSettings is a SettingsSource that always returns the same value.
type StaticSettings Settings

// Settings implements SettingsSource.
func (s StaticSettings) Settings(_ context.Context) (Settings, error) {
	return Settings(s), nil
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func(ctx context.Context) (Settings, error)

// Settings implements SettingsSource.
func (f SettingsFunc) Settings(ctx context.Context) (Settings, error) { return f(ctx) }

// Config holds process-level configuration that does not change at runtime.
type Config struct {
	// DefaultBackendID is the primary backend that is never exposed for
	// management.
	DefaultBackendID string

	// MonitorURL is the externally reachable base URL of the monitor, used
	// for links in notifications.
	MonitorURL string

	// MonitorPath is appended to MonitorURL to build the link back.
	MonitorPath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultBackendID: "queue",
		MonitorURL:       "http://localhost:8080",
		MonitorPath:      "/queue-monitor",
	}
}

// MonitorLink joins MonitorURL and MonitorPath.
func (c Config) MonitorLink() string {
	return strings.TrimRight(c.MonitorURL, "/") + "/" + strings.TrimLeft(c.MonitorPath, "/")
}
