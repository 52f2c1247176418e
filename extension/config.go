package extension

import "github.com/xraph/vigil"

// Config holds configuration for the vigil Forge extension. It can be set
// programmatically or loaded from the "extensions.vigil" or "vigil" keys of
// the app configuration.
type Config struct {
	// BasePath is the URL prefix the monitor API is mounted under.
	BasePath string `default:"/queue-monitor" json:"base_path"`

	// DisableRoutes skips route registration, leaving failure
	// notifications as the only active part.
	DisableRoutes bool `default:"false" json:"disable_routes"`

	// DefaultBackendID is the backend excluded from management.
	DefaultBackendID string `json:"default_backend_id"`

	// MonitorURL is the public base URL used for links in notifications.
	MonitorURL string `json:"monitor_url"`

	RefreshInterval          int    `json:"refresh_interval"`
	JobsPerPage              int    `json:"jobs_per_page"`
	EnableEmailNotifications bool   `json:"enable_email_notifications"`
	NotificationEmail        string `json:"notification_email"`

	// RequireConfig makes Register fail when no file configuration exists.
	RequireConfig bool `json:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	vc := vigil.DefaultConfig()
	s := vigil.DefaultSettings()
	return Config{
		BasePath:         vc.MonitorPath,
		DefaultBackendID: vc.DefaultBackendID,
		MonitorURL:       vc.MonitorURL,
		RefreshInterval:  s.RefreshInterval,
		JobsPerPage:      s.JobsPerPage,
	}
}

// Settings returns the operator settings carried by the configuration.
func (c Config) Settings() vigil.Settings {
	return vigil.Settings{
		RefreshInterval:          c.RefreshInterval,
		JobsPerPage:              c.JobsPerPage,
		EnableEmailNotifications: c.EnableEmailNotifications,
		NotificationEmail:        c.NotificationEmail,
	}
}

// Vigil returns the process-level vigil.Config.
func (c Config) Vigil() vigil.Config {
	return vigil.Config{
		DefaultBackendID: c.DefaultBackendID,
		MonitorURL:       c.MonitorURL,
		MonitorPath:      c.BasePath,
	}
}
