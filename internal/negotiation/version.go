package negotiation

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/mod/semver"
)

// VersionError is returned when two sides disagree on the API major version.
type VersionError struct {
	Code      string
	Message   string
	Supported string
	Peer      string
}

func (e *VersionError) Error() string {
	return e.Message
}

// CheckCompatible reports whether peer speaks the same API major version as
// supported. Empty or non-semver peer versions are accepted: there is
// nothing to compare against.
func CheckCompatible(supported, peer string) error {
	if peer == "" {
		return nil
	}

	sv := normalizeVersion(supported)
	pv := normalizeVersion(peer)
	if !semver.IsValid(sv) || !semver.IsValid(pv) {
		return nil
	}

	if semver.Major(sv) != semver.Major(pv) {
		return &VersionError{
			Code:      VersionUnsupported,
			Message:   fmt.Sprintf("peer speaks API %s, this build supports %s", pv, sv),
			Supported: sv,
			Peer:      pv,
		}
	}
	return nil
}

// normalizeVersion adds "v" prefix if needed for semver parsing.
func normalizeVersion(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// Watcher inspects Storefront-API response headers and logs a single warning
// the first time the backend reports an incompatible major version.
type Watcher struct {
	supported string
	logger    *slog.Logger

	once sync.Once
	mu   sync.Mutex
	seen string
}

// NewWatcher creates a watcher for the given supported API version.
func NewWatcher(supported string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{supported: supported, logger: logger}
}

// Observe records a Storefront-API header value. Missing or malformed
// headers are ignored.
func (w *Watcher) Observe(header string) {
	if header == "" {
		return
	}
	version, err := ParseAPIHeader(header)
	if err != nil {
		w.logger.Debug("ignoring malformed API header",
			slog.String("header", header),
			slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	w.seen = version
	w.mu.Unlock()

	if err := CheckCompatible(w.supported, version); err != nil {
		w.once.Do(func() {
			w.logger.Warn("backend API version mismatch",
				slog.String("supported", w.supported),
				slog.String("backend", version))
		})
	}
}

// Backend returns the last version the backend reported, or "".
func (w *Watcher) Backend() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen
}
