package security

import (
	"encoding/json"
	"fmt"
	"os"
)

// APIKeys resolves the `x-api-key` header the HTTP layer requires on
// every request (spec.md 6.1) to the author identifier that gets
// attributed on events appended during that request. Unauthenticated
// and unauthorized responses are the HTTP layer's to raise (spec.md 7
// — core itself never raises them).
type APIKeys struct {
	keyToAuthor map[string]string
}

// LoadAPIKeys reads a flat `{"key": "author"}` JSON file from path.
func LoadAPIKeys(path string) (*APIKeys, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("security: read api keys %s: %w", path, err)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("security: parse api keys %s: %w", path, err)
	}
	return &APIKeys{keyToAuthor: m}, nil
}

// Author resolves key to the author identifier it was issued to.
func (k *APIKeys) Author(key string) (string, bool) {
	author, ok := k.keyToAuthor[key]
	return author, ok
}
