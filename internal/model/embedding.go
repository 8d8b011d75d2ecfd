package model

// MessageEmbedding associates one message identifier with its vector.
// Placeholder marks messages whose cleaned text was empty; they carry a
// zero vector so identifier coverage stays one-to-one with the
// compression output.
type MessageEmbedding struct {
	MessageID   string    `json:"message_id"`
	Vector      []float32 `json:"vector"`
	Placeholder bool      `json:"placeholder,omitempty"`
}

// EmbeddingResult is the Embedder output for one pipeline run. All
// vectors share the same dimensionality and model configuration.
type EmbeddingResult struct {
	Model      string             `json:"model"`
	Provider   string             `json:"provider"`
	Dimensions int                `json:"dimensions"`
	Embeddings []MessageEmbedding `json:"embeddings"`
}

// IDSet returns the set of message identifiers covered by the result.
func (r *EmbeddingResult) IDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(r.Embeddings))
	for i := range r.Embeddings {
		ids[r.Embeddings[i].MessageID] = struct{}{}
	}
	return ids
}
