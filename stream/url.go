package stream

import (
	"fmt"
	"net/url"

	"github.com/pithecene-io/ripestream/types"
)

// DefaultBaseURL is the gateway address used when none is configured.
const DefaultBaseURL = "http://127.0.0.1:9000"

// ToStreamWSURL derives the stream endpoint from an HTTP(S) base URL:
// https and wss map to wss, anything else to ws; the path becomes
// /v1/infer/stream and the query and fragment are dropped.
func ToStreamWSURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: missing host", base)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = types.StreamPath
	u.RawPath = ""
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}
