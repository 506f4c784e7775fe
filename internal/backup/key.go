package backup

import (
	"crypto/md5" //nolint:gosec // cache key, not a security boundary
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/phrazzld/functest/internal/schema"
)

type keyInput struct {
	Metadata []schema.Metadata `json:"metadata"`
	Fixtures []string          `json:"fixtures"`
}

// CacheKey hashes the schema metadata and the fixture names. Both are
// canonicalized first: metadata sorted by name, names sorted and
// deduplicated, so the key does not depend on registration order.
func CacheKey(metas []schema.Metadata, fixtureNames []string) string {
	names := append([]string(nil), fixtureNames...)
	sort.Strings(names)
	deduped := make([]string, 0, len(names))
	for i, n := range names {
		if i == 0 || n != names[i-1] {
			deduped = append(deduped, n)
		}
	}

	sorted := schema.Sort(metas)
	if sorted == nil {
		sorted = []schema.Metadata{}
	}

	// Only strings are encoded, so Marshal cannot fail.
	payload, _ := json.Marshal(keyInput{Metadata: sorted, Fixtures: deduped})

	sum := md5.Sum(payload) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
