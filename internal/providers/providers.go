// Package providers holds the per-service adapters that normalize vendor
// responses into candidate records. Adapters never propagate errors into the
// graph: each search returns a (possibly empty) result list plus a reason
// string describing why results are missing. Adapters requiring credentials
// short-circuit to empty when unconfigured.
package providers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
)

// httpDoer is the slice of the fetch client adapters depend on.
type httpDoer interface {
	GetJSON(ctx context.Context, namespace, rawURL string, params, headers map[string]string) (json.RawMessage, error)
	GetJSONInto(ctx context.Context, namespace, rawURL string, params, headers map[string]string, out any) error
	PostJSON(ctx context.Context, namespace, rawURL string, body any, headers map[string]string) (json.RawMessage, error)
	PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) (json.RawMessage, error)
}

// stableID derives a short deterministic id from identifying parts.
func stableID(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:10]
}

// toINR converts a provider amount into rupees using the fixed table.
func toINR(amount float64, currency string) float64 {
	switch currency {
	case "EUR":
		return amount * 93
	case "USD":
		return amount * 83
	case "GBP":
		return amount * 105
	default:
		return amount
	}
}

// reasonf builds a reason string; kept tiny so adapters read uniformly.
func reasonf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

func decodeInto(doc json.RawMessage, out any) error {
	return json.Unmarshal(doc, out)
}
