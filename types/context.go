package types

import "github.com/sirupsen/logrus"

// DefaultVersion is the fallback version when AppContext is nil
const DefaultVersion = "dev"

// AppContext holds application-wide context information passed to commands
type AppContext struct {
	Version      string
	Log          *logrus.Logger
	SettingsPath string
}

// Logger returns the application logger, or the logrus standard logger
// when none was configured
func (a *AppContext) Logger() *logrus.Logger {
	if a == nil || a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

// VersionOrDefault returns the build version, or DefaultVersion when unset
func (a *AppContext) VersionOrDefault() string {
	if a == nil || a.Version == "" {
		return DefaultVersion
	}
	return a.Version
}
