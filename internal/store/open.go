package store

import (
	"fmt"
	"net/url"

	"greyd/internal/logging"
)

var olog = logging.For("store")

// Open constructs the backend named by the locator's scheme:
//
//	embedded:///path/to/file.db            file-backed single-process store
//	netkv://[user:pass@]host:port/db       remote key-value service
//
// Any other scheme is ErrUnknownScheme. Locators may carry credentials, so
// every diagnostic built from one goes through url.Redacted first.
func Open(locator string) (Store, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parsing store locator: %w", err)
	}
	switch u.Scheme {
	case "embedded":
		if u.Path == "" {
			return nil, fmt.Errorf("store locator %s: embedded scheme needs a file path", u.Redacted())
		}
		olog.Debug("selected embedded backend", "locator", u.Redacted())
		return OpenEmbedded(u.Path)
	case "netkv":
		olog.Debug("selected netkv backend", "locator", u.Redacted())
		return OpenNetKV(u)
	default:
		return nil, fmt.Errorf("store locator %s: %w", u.Redacted(), ErrUnknownScheme)
	}
}
