package llmservice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/rs/zerolog/log"
)

// OllamaStatus is the result of CheckOllama.
type OllamaStatus struct {
	Reachable bool
	Version   string
	Models    []string
	HasModel  map[string]bool
	// checked models in the order they were asked for
	checked []string
}

// Missing lists the checked models that are not pulled.
func (s *OllamaStatus) Missing() []string {
	var out []string
	for _, m := range s.checked {
		if !s.HasModel[m] {
			out = append(out, m)
		}
	}
	return out
}

// CheckOllama pings the server at baseURL and reports whether each of
// models is available locally. An unreachable server is reported in the
// status, not as an error; errors are for bad input.
func CheckOllama(ctx context.Context, baseURL string, models ...string) (*OllamaStatus, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	client := ollamaapi.NewClient(u, &http.Client{Timeout: 10 * time.Second})

	status := &OllamaStatus{HasModel: make(map[string]bool, len(models))}
	for _, m := range models {
		if _, seen := status.HasModel[m]; seen {
			continue
		}
		status.HasModel[m] = false
		status.checked = append(status.checked, m)
	}

	if err := client.Heartbeat(ctx); err != nil {
		log.Warn().Err(err).Str("url", baseURL).Msg("Ollama is not reachable")
		return status, nil
	}
	status.Reachable = true

	if v, err := client.Version(ctx); err == nil {
		status.Version = v
	}

	list, err := client.List(ctx)
	if err != nil {
		return status, fmt.Errorf("list ollama models: %w", err)
	}
	for _, lm := range list.Models {
		status.Models = append(status.Models, lm.Name)
	}
	for _, m := range models {
		status.HasModel[m] = hasModel(status.Models, m)
	}
	return status, nil
}

// hasModel matches "name" against "name:latest" and exact tags.
func hasModel(available []string, model string) bool {
	for _, a := range available {
		if a == model || strings.TrimSuffix(a, ":latest") == model {
			return true
		}
	}
	return false
}
