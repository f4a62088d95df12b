package types

// Event represents a typed event emitted during state transitions. Attribute
// values are flat strings: amounts are rendered in decimal, identities in hex.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
