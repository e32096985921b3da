package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hearthwise/voicematch/internal/match"
)

// Config controls the advisor client.
type Config struct {
	// APIKey authenticates against the OpenAI-compatible endpoint. Empty
	// disables the advisor entirely.
	APIKey string

	// BaseURL overrides the API endpoint for compatible providers. Empty
	// uses the default.
	BaseURL string

	// Model selects the chat model.
	Model string

	// Timeout bounds each advisory call.
	Timeout time.Duration

	// MaxEntities bounds the entity summary included in the prompt.
	MaxEntities int

	// RequestsPerSecond and Burst configure the client-side rate limiter.
	RequestsPerSecond float64
	Burst             int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = openai.GPT3Dot5Turbo
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxEntities <= 0 {
		c.MaxEntities = 20
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 3
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	return c
}

// Advice is the advisor's parsed response. NewAliases maps alias class to
// alias → canonical pairs the model observed in the failed query.
type Advice struct {
	Reason      string                                `json:"reason"`
	Suggestions []string                              `json:"suggestions"`
	NewAliases  map[match.AliasClass]map[string]string `json:"-"`
}

// EntitySummary is the compact entity view included in the prompt.
type EntitySummary struct {
	EntityID   string `json:"entity_id"`
	DeviceName string `json:"device_name,omitempty"`
	Room       string `json:"room,omitempty"`
	Floor      string `json:"floor,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
}

// completionClient is the slice of the OpenAI client the advisor needs.
// Satisfied by *openai.Client; tests substitute a stub.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Logger is the minimal logging interface the advisor requires.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Advisor calls an external language model for suggestions when matching
// found nothing.
//
// Thread Safety:
//   - Advise is safe for concurrent use; the rate limiter serialises
//     bursts across callers.
type Advisor struct {
	cfg     Config
	client  completionClient
	limiter *rate.Limiter
	logger  Logger
}

// New creates an Advisor. With an empty API key the advisor is created in
// disabled state: Enabled reports false and Advise returns ErrDisabled.
func New(cfg Config) *Advisor {
	cfg = cfg.withDefaults()

	var client completionClient
	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		client = openai.NewClientWithConfig(clientCfg)
	}

	return &Advisor{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  noopLogger{},
	}
}

// SetLogger injects a logger. Must be called before Advise if used.
func (a *Advisor) SetLogger(l Logger) {
	if l != nil {
		a.logger = l
	}
}

// Enabled reports whether the advisor can be consulted.
func (a *Advisor) Enabled() bool {
	return a.client != nil
}

// Advise asks the model why a query matched nothing and what the user
// could try instead. The call owns its own timeout on top of ctx.
// Unparsable model output degrades to a single raw suggestion rather
// than an error.
func (a *Advisor) Advise(ctx context.Context, userQuery string, requests []match.DeviceRequest, entities []match.Entity) (Advice, error) {
	if !a.Enabled() {
		return Advice{}, ErrDisabled
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return Advice{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	prompt := a.buildPrompt(userQuery, requests, entities)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a smart-home device matching assistant.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return Advice{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Advice{}, ErrNoContent
	}

	advice := parseAdvice(resp.Choices[0].Message.Content)
	a.logger.Debug("advisor responded",
		"suggestions", len(advice.Suggestions),
		"new_aliases", len(advice.NewAliases))
	return advice, nil
}

// Summarise produces the bounded entity summary sent to the model.
func (a *Advisor) Summarise(entities []match.Entity) []EntitySummary {
	limit := a.cfg.MaxEntities
	if len(entities) < limit {
		limit = len(entities)
	}
	out := make([]EntitySummary, 0, limit)
	for _, e := range entities[:limit] {
		out = append(out, EntitySummary{
			EntityID:   e.EntityID,
			DeviceName: e.DisplayName(),
			Room:       e.Room(),
			Floor:      e.Floor(),
			DeviceType: e.DeviceType,
		})
	}
	return out
}

func (a *Advisor) buildPrompt(userQuery string, requests []match.DeviceRequest, entities []match.Entity) string {
	summary, _ := json.MarshalIndent(a.Summarise(entities), "", "  ")
	parsed, _ := json.MarshalIndent(requests, "", "  ")

	var b strings.Builder
	b.WriteString("A smart-home voice command failed to match any device. Analyse why and advise the user.\n\n")
	fmt.Fprintf(&b, "User query: %s\n\n", userQuery)
	fmt.Fprintf(&b, "Parsed device requests:\n%s\n\n", parsed)
	fmt.Fprintf(&b, "Available entities (first %d):\n%s\n\n", a.cfg.MaxEntities, summary)
	b.WriteString(`Answer in JSON only:
{
  "reason": "why nothing matched",
  "suggestions": ["rephrasing suggestion 1", "rephrasing suggestion 2"],
  "new_aliases": {
    "room": {"observed alias": "canonical room"},
    "floor": {"observed alias": "canonical floor"},
    "device": {"observed alias": "canonical device type"}
  }
}`)
	return b.String()
}

// rawAdvice mirrors the JSON contract the prompt asks for.
type rawAdvice struct {
	Reason      string                       `json:"reason"`
	Suggestions []string                     `json:"suggestions"`
	NewAliases  map[string]map[string]string `json:"new_aliases"`
}

// parseAdvice decodes model output. Models occasionally wrap JSON in
// markdown fences or prose; the parser extracts the outermost object
// before giving up. Content that is not JSON at all becomes a single raw
// suggestion so the caller always has something to show.
func parseAdvice(content string) Advice {
	trimmed := strings.TrimSpace(content)

	var raw rawAdvice
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		start := strings.Index(trimmed, "{")
		end := strings.LastIndex(trimmed, "}")
		if start < 0 || end <= start {
			return Advice{Suggestions: []string{trimmed}}
		}
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &raw); err != nil {
			return Advice{Suggestions: []string{trimmed}}
		}
	}

	advice := Advice{
		Reason:      raw.Reason,
		Suggestions: raw.Suggestions,
	}
	for class, pairs := range raw.NewAliases {
		if len(pairs) == 0 {
			continue
		}
		mapped, ok := aliasClassFor(class)
		if !ok {
			continue
		}
		if advice.NewAliases == nil {
			advice.NewAliases = map[match.AliasClass]map[string]string{}
		}
		advice.NewAliases[mapped] = pairs
	}
	return advice
}

// aliasClassFor maps the model's class labels onto the engine's alias
// classes.
func aliasClassFor(label string) (match.AliasClass, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "room", "rooms":
		return match.AliasRooms, true
	case "floor", "floors":
		return match.AliasFloors, true
	case "device", "devices", "device_type", "device_types":
		return match.AliasDeviceTypes, true
	default:
		return "", false
	}
}
