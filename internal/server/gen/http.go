package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/OCharnyshevich/jrblx-server/internal/server/entity"
)

// HTTPGenerator implements Generator against a JSON-over-HTTP scene service.
// The service is expected to answer a prompt with an array of entities in
// project-instance form.
type HTTPGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPGenerator returns a generator that posts to the given endpoint.
func NewHTTPGenerator(endpoint, apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   http.DefaultClient,
	}
}

type generateRequest struct {
	Prompt   string          `json:"prompt"`
	Existing []entity.Entity `json:"existing,omitempty"`
}

// GenerateScene asks the service to build from a freeform prompt, passing
// the existing scene as context. The reply replaces the scene wholesale, so
// the result is validated and re-identified before it is returned.
func (g *HTTPGenerator) GenerateScene(ctx context.Context, prompt string, existing []entity.Entity) ([]entity.Entity, error) {
	candidates, err := g.post(ctx, generateRequest{Prompt: prompt, Existing: existing})
	if err != nil {
		return nil, err
	}
	valid, _, err := ValidateCandidates(candidates)
	return valid, err
}

// RemakeWorld reconstructs a named experience with no existing context.
func (g *HTTPGenerator) RemakeWorld(ctx context.Context, title string) ([]entity.Entity, error) {
	prompt := fmt.Sprintf("Reconstruct the world %q with detailed architecture, NPCs and neon highlights.", title)
	return g.GenerateScene(ctx, prompt, nil)
}

func (g *HTTPGenerator) post(ctx context.Context, reqBody generateRequest) ([]entity.Entity, error) {
	if g.endpoint == "" {
		return nil, fmt.Errorf("%w: generator endpoint not configured", ErrGenerationFailed)
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, resp.Status)
	}
	var candidates []entity.Entity
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return candidates, nil
}
