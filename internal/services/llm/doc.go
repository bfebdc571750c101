// Package llm provides an OpenRouter chat client for LLM-based notation
// refinement.
//
// # Refinement Logic
//
// The client sends the conversion stage's MusicXML document to the
// configured model with a style-specific system prompt requesting JSON
// output. The response carries the revised document and a list of change
// descriptions.
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title,
// timeout. When unconfigured, the refinement stage is skipped entirely.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.RefineNotation: style-aware notation revision.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 3 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Fallback
//
// The model's output must never be trusted blindly: the refinement stage
// validates the returned document and falls back to the conversion-stage
// artifact on any failure.
package llm
