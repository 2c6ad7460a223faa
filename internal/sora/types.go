// Package sora provides an HTTP client for the Sora video generation API.
package sora

// Model identifiers, one per orientation. The provider encodes resolution
// and duration in the model name.
const (
	// ModelPortrait generates a vertical 15s HD video.
	ModelPortrait = "sora_video2-hd-portrait-15s"
	// ModelLandscape generates a horizontal 15s HD video.
	ModelLandscape = "sora_video2-hd-landscape-15s"
)

// ModelFor returns the model identifier for an orientation.
// Anything other than "landscape" selects the portrait model.
func ModelFor(orientation string) string {
	if orientation == "landscape" {
		return ModelLandscape
	}
	return ModelPortrait
}

// message is a single chat message in a generation request.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// generateRequest is the request body for the generation endpoint.
type generateRequest struct {
	Messages []message `json:"messages"`
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
}
