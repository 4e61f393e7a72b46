package entities

// Dataset is an independent namespace for objects, schemas and
// annotations (spec.md 3.3). Datasets are never versioned and carry
// no bytes of their own; their only persisted state is their name and
// owner set.
type Dataset struct {
	Name   string   `json:"name"`
	Owners []string `json:"owners"`
}
