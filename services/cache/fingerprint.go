package cache

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key lists every input that can change a query's result.
type Key struct {
	Op          string            `json:"op"`
	ServiceID   string            `json:"service"`
	Entity      string            `json:"entity"`
	Environment string            `json:"env"`
	RoleID      string            `json:"role"`
	OrgID       string            `json:"org"`
	UserID      string            `json:"user"`
	Params      map[string]string `json:"params"`
}

// Fingerprint returns a stable hash of k. Map keys are serialized in sorted
// order, so logically equal keys hash equally.
func Fingerprint(k Key) string {
	raw, err := json.Marshal(k)
	if err != nil {
		// Key only holds strings; Marshal cannot fail.
		panic(err)
	}
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}

// Checksum hashes any JSON-serializable value.
func Checksum(v any) (uint64, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(raw), nil
}
