// Package model defines the static catalog of chat models a request may
// select. The catalog is the allow-list consulted by the API layer: an
// unknown identifier is rejected before any model invocation happens.
package model

import "errors"

// ErrNotFound indicates the requested model identifier is not in the catalog.
var ErrNotFound = errors.New("model not found")

// Model describes one selectable chat model.
type Model struct {
	ID            string `json:"id"`            // stable identifier used by clients
	Label         string `json:"label"`         // human-readable name
	APIIdentifier string `json:"apiIdentifier"` // provider-side model name
	Description   string `json:"description"`
}

// DefaultID is the model used when a request carries no preference.
const DefaultID = "gpt-3.5-turbo"

// CookieName stores the user's model preference between requests.
const CookieName = "model-id"

// catalog is the process-wide allow-list. Read-only after init.
var catalog = []Model{
	{
		ID:            "gpt-3.5-turbo",
		Label:         "GPT-3.5 Turbo",
		APIIdentifier: "gpt-3.5-turbo",
		Description:   "Optimized for conversational tasks with high efficiency and accuracy",
	},
	{
		ID:            "gpt-4",
		Label:         "GPT-4",
		APIIdentifier: "gpt-4",
		Description:   "For advanced, high-complexity tasks and detailed responses",
	},
	{
		ID:            "gpt-4o-mini",
		Label:         "GPT 4o Mini",
		APIIdentifier: "gpt-4o-mini",
		Description:   "Small model for fast, lightweight tasks",
	},
	{
		ID:            "gpt-4o",
		Label:         "GPT 4o",
		APIIdentifier: "gpt-4o",
		Description:   "For complex, multi-step tasks",
	},
}

// All returns the full catalog in declaration order.
// The returned slice is a copy; callers may not mutate the catalog.
func All() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup resolves a model identifier against the catalog.
// Returns ErrNotFound for identifiers outside the allow-list.
func Lookup(id string) (Model, error) {
	for _, m := range catalog {
		if m.ID == id {
			return m, nil
		}
	}
	return Model{}, ErrNotFound
}
