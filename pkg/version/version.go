// Package version provides version information for the oracle-monitor application.
package version

// Version is the current version of the oracle-monitor application.
const Version = "0.3.0"

// UserAgent returns the User-Agent sent to price providers.
// Format: oracle-monitor/v{version}
func UserAgent() string {
	return "oracle-monitor/v" + Version
}
