// Package config loads the INI-style startup file into an immutable
// Snapshot shared by every session, parsed with gopkg.in/ini.v1.
package config

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"

	"socks5guard/internal/domain"
)

// LoggingMethod mirrors the INI loggingMethod key: 1 is database-only,
// 2 is database+file, anything else is file-only.
type LoggingMethod int

const (
	LoggingFile LoggingMethod = 0
	LoggingDB   LoggingMethod = 1
	LoggingBoth LoggingMethod = 2
)

// Snapshot is the immutable configuration bundle passed by pointer to
// every session.
type Snapshot struct {
	ListenIP   string
	ListenPort int

	Auth   domain.AuthConfig
	Policy domain.PolicyConfig

	LoggingMethod    LoggingMethod
	NumActiveThreads int
	LogFilesDir      string
	DbFilesDir       string
}

// Default returns a permissive, file-logging configuration for running
// without a config file on disk. Its authentication preference is
// "any": the first offered method among NONE, GSSAPI and USER/PASS is
// used, and USER/PASS is checked against empty credentials.
func Default(listenIP string, listenPort int) *Snapshot {
	return &Snapshot{
		ListenIP:   listenIP,
		ListenPort: listenPort,
		Auth:       domain.AuthConfig{Preference: domain.PreferAny},
		Policy: domain.PolicyConfig{
			AllHosts: true,
			AllPorts: true,
		},
		LoggingMethod:    LoggingFile,
		NumActiveThreads: 2,
		LogFilesDir:      "./logs",
		DbFilesDir:       "./data",
	}
}

// Load parses an INI file at path into a Snapshot.
func Load(path string) (*Snapshot, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	proxy := f.Section("proxy")
	snap := &Snapshot{
		ListenIP:         proxy.Key("proxyIP").MustString("0.0.0.0"),
		ListenPort:       proxy.Key("proxyPort").MustInt(1080),
		LoggingMethod:    LoggingMethod(proxy.Key("loggingMethod").MustInt(0)),
		NumActiveThreads: proxy.Key("numActiveThreads").MustInt(2),
		LogFilesDir:      proxy.Key("logFilesDir").MustString("./logs"),
		DbFilesDir:       proxy.Key("dbFilesDir").MustString("./data"),
	}

	snap.Auth = domain.AuthConfig{
		Preference: domain.MethodPreference(proxy.Key("authenticationMethod").MustInt(-1)),
		Username:   proxy.Key("username").String(),
		Password:   proxy.Key("password").String(),
	}

	snap.Policy = loadPolicy(f)

	return snap, nil
}

func loadPolicy(f *ini.File) domain.PolicyConfig {
	pc := domain.PolicyConfig{
		AllowedHosts: map[string]struct{}{},
		BlockedHosts: map[string]struct{}{},
		AllowedPorts: map[uint16]struct{}{},
		BlockedPorts: map[uint16]struct{}{},
	}

	for _, v := range sectionValues(f, "allowedIPs") {
		if v == "all" {
			pc.AllHosts = true
			continue
		}
		pc.AllowedHosts[v] = struct{}{}
	}
	for _, v := range sectionValues(f, "blockedIPs") {
		pc.BlockedHosts[v] = struct{}{}
	}

	for _, v := range sectionValues(f, "allowedPorts") {
		if v == "-1" {
			pc.AllPorts = true
			continue
		}
		if port, err := strconv.ParseUint(v, 10, 16); err == nil {
			pc.AllowedPorts[uint16(port)] = struct{}{}
		}
	}
	for _, v := range sectionValues(f, "blockedPorts") {
		if port, err := strconv.ParseUint(v, 10, 16); err == nil {
			pc.BlockedPorts[uint16(port)] = struct{}{}
		}
	}

	return pc
}

// sectionValues returns every key's value in an INI section, in
// declaration order. Each list (allowedIPs, blockedIPs, allowedPorts,
// blockedPorts) is its own section, with arbitrary key names (0, 1, 2,
// ... or any label).
func sectionValues(f *ini.File, name string) []string {
	sec, err := f.GetSection(name)
	if err != nil {
		return nil
	}
	keys := sec.Keys()
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, k.String())
	}
	return values
}
