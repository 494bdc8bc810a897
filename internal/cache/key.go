package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/jmgilman/go/errors"

	"examscore/internal/score"
)

// KeyPrefix starts every derived key.
const KeyPrefix = "score:"

// Descriptor is implemented by anything that takes part in key derivation.
// The descriptor must be stable: no timestamps, pointers or other volatile data.
type Descriptor interface {
	Descriptor() string
}

// CreateKey derives a deterministic key from a value and a rule set.
// Rule descriptors are sorted before hashing, so the same set of rules yields
// the same key in any order. The value is encoded as JSON, which fixes struct
// field order and sorts map keys.
func CreateKey[D Descriptor](value any, rules []D) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", errors.Wrap(err, score.CodeInvalidParams, "cache key: value is not serialisable")
	}

	descriptors := make([]string, 0, len(rules))
	for _, r := range rules {
		descriptors = append(descriptors, r.Descriptor())
	}
	sort.Strings(descriptors)

	h := sha256.New()
	h.Write(payload)
	for _, d := range descriptors {
		h.Write([]byte{0})
		h.Write([]byte(d))
	}
	return KeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
