package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"sort"

	"github.com/zoneledger/backend/internal/domain/shared"
)

// Fingerprint computes the canonical digest of a transfer request. The request
// is serialized to JSON, decoded back into generic values, map keys are sorted
// recursively, and the stable form is hashed with SHA-256 (lowercase hex).
// The same logical request always yields the same digest regardless of field
// ordering; any value change yields a different digest.
func Fingerprint(req TransferRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", shared.NewDomainError("INVALID_INPUT", "request is not serializable: "+err.Error())
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", shared.NewDomainError("INVALID_INPUT", "request is not serializable: "+err.Error())
	}
	canonBytes, err := json.Marshal(canonicalize(generic))
	if err != nil {
		return "", shared.NewDomainError("INVALID_INPUT", "request is not serializable: "+err.Error())
	}
	sum := sha256.Sum256(canonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize rewrites maps with lexicographically sorted keys so that
// marshaling produces a byte-stable form.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = canonicalize(t[k])
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, canonicalize(item))
		}
		return out
	default:
		return t
	}
}

// ThrottlePercent maps a request id onto [0,100) deterministically. The gate
// admits a request when its percent is below the zone's throttle setting,
// which keeps throttling decisions reproducible under retries.
func ThrottlePercent(requestID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(requestID))
	return int(h.Sum32() % 100)
}
