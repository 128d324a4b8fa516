package retrieval

// Mode is the fusion algorithm applied to retriever outputs.
type Mode string

// Fusion modes.
const (
	// Simple concatenates vector-only results, keeping each retriever's order.
	Simple Mode = "simple"
	// ReciprocalRerank applies Reciprocal Rank Fusion across vector and lexical lists.
	ReciprocalRerank Mode = "reciprocal_rerank"
)

// ModeFor returns the fusion mode for a hybrid flag.
func ModeFor(hybrid bool) Mode {
	if hybrid {
		return ReciprocalRerank
	}
	return Simple
}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Simple || m == ReciprocalRerank
}
