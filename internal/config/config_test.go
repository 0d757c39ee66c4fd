package config

import (
	"os"
	"path/filepath"
	"testing"

	"socks5guard/internal/domain"
)

const sampleINI = `
[proxy]
proxyIP = 127.0.0.1
proxyPort = 9050
loggingMethod = 2
numActiveThreads = 4
logFilesDir = ./var/log
dbFilesDir = ./var/db
authenticationMethod = 2
username = alice
password = s3cret

[allowedIPs]
0 = all

[blockedIPs]
0 = example.com
1 = malware.test

[allowedPorts]
0 = -1

[blockedPorts]
0 = 25
`

func TestLoadParsesProxySection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxy.ini")
	if err := os.WriteFile(path, []byte(sampleINI), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	snap, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if snap.ListenIP != "127.0.0.1" || snap.ListenPort != 9050 {
		t.Fatalf("listen address = %s:%d, want 127.0.0.1:9050", snap.ListenIP, snap.ListenPort)
	}
	if snap.LoggingMethod != LoggingBoth {
		t.Fatalf("LoggingMethod = %v, want LoggingBoth", snap.LoggingMethod)
	}
	if snap.NumActiveThreads != 4 {
		t.Fatalf("NumActiveThreads = %d, want 4", snap.NumActiveThreads)
	}
	if snap.Auth.Preference != domain.PreferUserPass || snap.Auth.Username != "alice" || snap.Auth.Password != "s3cret" {
		t.Fatalf("Auth = %+v", snap.Auth)
	}
}

func TestLoadCollapsesWildcardsAndLists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxy.ini")
	if err := os.WriteFile(path, []byte(sampleINI), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	snap, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !snap.Policy.AllHosts {
		t.Fatal("Policy.AllHosts = false, want true (allowedIPs contains \"all\")")
	}
	if !snap.Policy.AllPorts {
		t.Fatal("Policy.AllPorts = false, want true (allowedPorts contains \"-1\")")
	}
	if _, ok := snap.Policy.BlockedHosts["example.com"]; !ok {
		t.Fatal("BlockedHosts missing example.com")
	}
	if _, ok := snap.Policy.BlockedHosts["malware.test"]; !ok {
		t.Fatal("BlockedHosts missing malware.test")
	}
	if _, ok := snap.Policy.BlockedPorts[25]; !ok {
		t.Fatal("BlockedPorts missing 25")
	}
}

func TestDefaultIsPermissive(t *testing.T) {
	snap := Default("0.0.0.0", 1080)
	if !snap.Policy.AllHosts || !snap.Policy.AllPorts {
		t.Fatal("Default() policy is not fully permissive")
	}
	if snap.Auth.Preference != domain.PreferAny {
		t.Fatalf("Default() Auth.Preference = %v, want PreferAny", snap.Auth.Preference)
	}
}
