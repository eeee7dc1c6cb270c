// Package credentials resolves every secret the pipeline needs exactly once
// at process start, per Design Note "Global state": nothing downstream
// re-reads the environment or the secret manager mid-run, every component
// that needs a key receives it explicitly.
package credentials

import (
	"context"
	"fmt"

	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/secret"
)

// Credentials is the immutable set of resolved secrets passed explicitly to
// every extractor, the license engine, and the store.
type Credentials struct {
	DatabaseDSN      string
	GoogleAPIKey     string
	GroqAPIKey       string
	OpenRouterAPIKey string
	HuggingFaceToken string
}

// Resolve reads every secret reference named in cfg through mgr and returns
// the fully populated, immutable Credentials value. Database and Google/
// OpenRouter keys are required when their respective component is enabled;
// Groq and HuggingFace tokens are optional (Groq scrapes HTML with no auth;
// without a token, HuggingFace Hub requests carry no Authorization header).
func Resolve(ctx context.Context, mgr *secret.Manager, cfg *config.Config) (Credentials, error) {
	var c Credentials
	var err error

	if c.DatabaseDSN, err = mgr.Get(ctx, cfg.Database.DSNSecretRef); err != nil {
		return Credentials{}, fmt.Errorf("resolve database dsn: %w", err)
	}

	if cfg.Providers.Google.Enabled {
		if c.GoogleAPIKey, err = mgr.Get(ctx, cfg.Providers.Google.APIKeySecretRef); err != nil {
			return Credentials{}, fmt.Errorf("resolve google api key: %w", err)
		}
	}

	if cfg.Providers.Groq.Enabled {
		c.GroqAPIKey, _ = mgr.Get(ctx, "env://GROQ_API_KEY")
	}

	if cfg.Providers.OpenRouter.Enabled {
		if c.OpenRouterAPIKey, err = mgr.Get(ctx, cfg.Providers.OpenRouter.APIKeySecretRef); err != nil {
			return Credentials{}, fmt.Errorf("resolve openrouter api key: %w", err)
		}
	}

	c.HuggingFaceToken, _ = mgr.Get(ctx, cfg.License.HuggingFaceAPIKeySecretRef)

	return c, nil
}
