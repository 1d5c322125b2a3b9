// Package appid holds the fixed identity of the VisiProbe binary.
package appid

import "strings"

// Identity names the binary and the namespaces it owns.
type Identity struct {
	BinaryName  string
	Vendor      string
	ConfigName  string
	EnvPrefix   string
	Description string
	MetricsNS   string
}

var identity = Identity{
	BinaryName:  "visiprobe",
	Vendor:      "visiprobe",
	ConfigName:  "visiprobe",
	EnvPrefix:   "VISIPROBE_",
	Description: "Measure how visible a business is to AI assistants",
	MetricsNS:   "visiprobe",
}

// Get returns the application identity.
func Get() Identity {
	return identity
}

// EnvName returns the prefixed environment variable for suffix ("PORT" -> "VISIPROBE_PORT").
func EnvName(suffix string) string {
	return identity.EnvPrefix + strings.ToUpper(strings.TrimPrefix(suffix, "_"))
}
