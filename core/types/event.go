package types

// Event is the generic attribute-map representation consumed by subscribers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
