package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes stable device fingerprints for reviewer logins. When
// disabled, fingerprints are empty and drift detection reports nothing.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent renders a short human-readable device label from a raw
// user-agent string, e.g. "Chrome on Intel Mac OS X". Audit events carry the
// label so a compliance reviewer can see what device performed an action.
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	osName := ua.OSInfo().Name
	if osName == "" {
		osName = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + osName)
}

// ComputeFingerprint hashes the stable parts of a user agent (browser name,
// major version, operating system) into a SHA-256 hex digest. Minor browser
// updates keep the fingerprint; major upgrades change it.
func (s *Service) ComputeFingerprint(rawUA string) string {
	if !s.enabled {
		return ""
	}

	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	canonical := strings.Join([]string{browser, majorVersion(version), ua.OS()}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether the presented fingerprint matches the
// stored one. Drift is reported only when both sides are present and
// disagree; a missing side is no evidence either way.
func (s *Service) CompareFingerprints(current, stored string) (matched bool, drift bool) {
	if current == "" || stored == "" {
		return false, false
	}
	if current == stored {
		return true, false
	}
	return false, true
}

func majorVersion(version string) string {
	if i := strings.IndexByte(version, '.'); i > 0 {
		return version[:i]
	}
	return version
}
