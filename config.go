package deepresearch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/deepresearch/internal/envexpr"
	"github.com/viant/deepresearch/internal/logging"
	"github.com/viant/deepresearch/model"
	"github.com/viant/deepresearch/policy"
	"github.com/viant/deepresearch/service/intake"
	"github.com/viant/deepresearch/service/investigator"
	"github.com/viant/deepresearch/service/messaging"
	"github.com/viant/deepresearch/service/processor"
	"github.com/viant/deepresearch/service/scheduler"
	"gopkg.in/yaml.v3"
)

// Store kinds
const (
	StoreMemory = "memory"
	StoreFs     = "fs"
	StoreSqlite = "sqlite"
)

// Config is the serialisable service configuration. Clarification limits
// left at zero take the dialog defaults.
type Config struct {
	BotToken              string                       `json:"botToken,omitempty" yaml:"botToken,omitempty"`
	NotificationChannelID string                       `json:"notificationChannelId,omitempty" yaml:"notificationChannelId,omitempty"`
	WebSearchAPIKey       string                       `json:"webSearchApiKey,omitempty" yaml:"webSearchApiKey,omitempty"`
	AcademicAPIKey        string                       `json:"academicApiKey,omitempty" yaml:"academicApiKey,omitempty"`
	CodeRepoToken         string                       `json:"codeRepoToken,omitempty" yaml:"codeRepoToken,omitempty"`
	ReportTemplate        string                       `json:"reportTemplate,omitempty" yaml:"reportTemplate,omitempty"`
	TickIntervalMinutes   int                          `json:"tickIntervalMinutes" yaml:"tickIntervalMinutes"`
	SourceBudget          int                          `json:"sourceBudget" yaml:"sourceBudget"`
	PerSourceTypeSplit    map[model.SourceType]float64 `json:"perSourceTypeSplit,omitempty" yaml:"perSourceTypeSplit,omitempty"`
	MinViableSources      int                          `json:"minViableSources" yaml:"minViableSources"`
	MaxRetries            int                          `json:"maxRetries" yaml:"maxRetries"`

	Store         StoreConfig         `json:"store" yaml:"store"`
	Reports       ReportsConfig       `json:"reports" yaml:"reports"`
	Timeouts      TimeoutsConfig      `json:"timeouts" yaml:"timeouts"`
	Clarification ClarificationConfig `json:"clarification" yaml:"clarification"`
	LLM           LLMConfig           `json:"llm" yaml:"llm"`
	Logging       logging.Config      `json:"logging" yaml:"logging"`
	Tracing       TracingConfig       `json:"tracing" yaml:"tracing"`
	Queue         QueueConfig         `json:"queue" yaml:"queue"`
	Endpoints     EndpointsConfig     `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	Policy        *policy.Config      `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// StoreConfig selects the task store.
type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ReportsConfig locates the report folders; any afs URL works.
type ReportsConfig struct {
	BaseURL string `json:"baseURL" yaml:"baseURL"`
}

type TimeoutsConfig struct {
	InvestigatorSeconds int `json:"investigatorSeconds" yaml:"investigatorSeconds"`
	CeilingMinutes      int `json:"ceilingMinutes" yaml:"ceilingMinutes"`
	SynthesisMinutes    int `json:"synthesisMinutes" yaml:"synthesisMinutes"`
	// StaleFactor multiplies the ceiling into the stale lock threshold
	StaleFactor float64 `json:"staleFactor" yaml:"staleFactor"`
}

type ClarificationConfig struct {
	WindowMinutes int `json:"windowMinutes" yaml:"windowMinutes"`
	MaxTurns      int `json:"maxTurns" yaml:"maxTurns"`
	MaxQuestions  int `json:"maxQuestions" yaml:"maxQuestions"`
}

// LLMConfig enables Gemini when APIKey is set; the extractive generator is
// used otherwise and as fallback.
type LLMConfig struct {
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
}

type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Output is a trace file; empty writes to stdout
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// QueueConfig backs the dispatch queue and the notification outbox.
type QueueConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// EndpointsConfig overrides provider base URLs.
type EndpointsConfig struct {
	Web      string `json:"web,omitempty" yaml:"web,omitempty"`
	Academic string `json:"academic,omitempty" yaml:"academic,omitempty"`
	Code     string `json:"code,omitempty" yaml:"code,omitempty"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		TickIntervalMinutes: 30,
		SourceBudget:        25,
		PerSourceTypeSplit:  investigator.DefaultSplit(),
		MinViableSources:    10,
		MaxRetries:          1,
		Store:               StoreConfig{Kind: StoreMemory},
		Reports:             ReportsConfig{BaseURL: "file:///tmp/reports/deepresearch"},
		Timeouts: TimeoutsConfig{
			InvestigatorSeconds: 600,
			CeilingMinutes:      30,
			SynthesisMinutes:    10,
			StaleFactor:         2,
		},
		Clarification: ClarificationConfig{WindowMinutes: 30, MaxTurns: 3, MaxQuestions: 4},
		Logging:       logging.Config{Level: "info", Format: "json"},
		Queue:         QueueConfig{Kind: string(messaging.VendorMemory)},
	}
}

// LoadConfig reads a YAML file over the defaults, applies environment
// overrides and validates the result. The file may reference variables as
// ${env.NAME}. An empty location skips the file.
func LoadConfig(ctx context.Context, location string) (*Config, error) {
	cfg := DefaultConfig()
	if location != "" {
		if url.Scheme(location, "") == "" {
			location = url.Normalize(location, file.Scheme)
		}
		data, err := afs.New().DownloadWithURL(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %v: %w", location, err)
		}
		data = []byte(envexpr.Expand(string(data), os.LookupEnv))
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %v: %w", location, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides secrets and a few knobs from DEEPRESEARCH_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DEEPRESEARCH_BOT_TOKEN":               &c.BotToken,
		"DEEPRESEARCH_NOTIFICATION_CHANNEL_ID": &c.NotificationChannelID,
		"DEEPRESEARCH_WEB_SEARCH_API_KEY":      &c.WebSearchAPIKey,
		"DEEPRESEARCH_ACADEMIC_API_KEY":        &c.AcademicAPIKey,
		"DEEPRESEARCH_CODE_REPO_TOKEN":         &c.CodeRepoToken,
		"DEEPRESEARCH_LLM_API_KEY":             &c.LLM.APIKey,
		"DEEPRESEARCH_STORE_KIND":              &c.Store.Kind,
		"DEEPRESEARCH_STORE_PATH":              &c.Store.Path,
		"DEEPRESEARCH_REPORTS_URL":             &c.Reports.BaseURL,
		"DEEPRESEARCH_LOG_LEVEL":               &c.Logging.Level,
	}
	for name, target := range strs {
		if value, ok := lookup(name); ok {
			*target = value
		}
	}
	ints := map[string]*int{
		"DEEPRESEARCH_TICK_INTERVAL_MINUTES": &c.TickIntervalMinutes,
		"DEEPRESEARCH_SOURCE_BUDGET":         &c.SourceBudget,
		"DEEPRESEARCH_MIN_VIABLE_SOURCES":    &c.MinViableSources,
		"DEEPRESEARCH_MAX_RETRIES":           &c.MaxRetries,
	}
	for name, target := range ints {
		value, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %v: %w", name, err)
		}
		*target = n
	}
	return nil
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.TickIntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("tickIntervalMinutes must be > 0"))
	}
	if c.SourceBudget <= 0 || c.SourceBudget > model.MaxSources {
		errs = append(errs, fmt.Errorf("sourceBudget must be in 1..%d", model.MaxSources))
	}
	if c.MinViableSources <= 0 || c.MinViableSources > c.SourceBudget {
		errs = append(errs, fmt.Errorf("minViableSources must be in 1..sourceBudget"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("maxRetries must be >= 0"))
	}
	for t, share := range c.PerSourceTypeSplit {
		if _, ok := model.ParseSourceType(string(t)); !ok {
			errs = append(errs, fmt.Errorf("perSourceTypeSplit: unknown source type %q", t))
		}
		if share < 0 {
			errs = append(errs, fmt.Errorf("perSourceTypeSplit: negative share for %v", t))
		}
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFs, StoreSqlite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for %v store", c.Store.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.kind: %q", c.Store.Kind))
	}
	switch messaging.Vendor(c.Queue.Kind) {
	case messaging.VendorMemory:
	case messaging.VendorFs:
		if c.Queue.Path == "" {
			errs = append(errs, fmt.Errorf("queue.path is required for fs queue"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported queue.kind: %q", c.Queue.Kind))
	}
	t := c.Timeouts
	if t.InvestigatorSeconds <= 0 || t.CeilingMinutes <= 0 || t.SynthesisMinutes <= 0 {
		errs = append(errs, fmt.Errorf("timeouts must be > 0"))
	}
	if t.StaleFactor < 1 {
		errs = append(errs, fmt.Errorf("timeouts.staleFactor must be >= 1"))
	} else if c.staleAfter() <= c.runTimeout() {
		errs = append(errs, fmt.Errorf("stale threshold %v must exceed run timeout %v", c.staleAfter(), c.runTimeout()))
	}
	return errors.Join(errs...)
}

func (c *Config) ceiling() time.Duration {
	return time.Duration(c.Timeouts.CeilingMinutes) * time.Minute
}

func (c *Config) synthesisTimeout() time.Duration {
	return time.Duration(c.Timeouts.SynthesisMinutes) * time.Minute
}

// runTimeout bounds a whole processor run: the investigation ceiling, the
// synthesis budget and five minutes for aggregation and saving.
func (c *Config) runTimeout() time.Duration {
	return c.ceiling() + c.synthesisTimeout() + 5*time.Minute
}

func (c *Config) staleAfter() time.Duration {
	return time.Duration(float64(c.ceiling()) * c.Timeouts.StaleFactor)
}

func (c *Config) poolConfig() investigator.Config {
	return investigator.Config{
		Budget:              c.SourceBudget,
		MinViable:           c.MinViableSources,
		Split:               investigator.Split(c.PerSourceTypeSplit),
		InvestigatorTimeout: time.Duration(c.Timeouts.InvestigatorSeconds) * time.Second,
		Ceiling:             c.ceiling(),
	}
}

func (c *Config) schedulerConfig() scheduler.Config {
	return scheduler.Config{
		TickInterval: time.Duration(c.TickIntervalMinutes) * time.Minute,
		StaleAfter:   c.staleAfter(),
	}
}

func (c *Config) processorConfig() processor.Config {
	return processor.Config{Timeout: c.runTimeout(), MinViable: c.MinViableSources}
}

func (c *Config) intakeConfig() intake.Config {
	ret := intake.DefaultConfig()
	if c.Clarification.WindowMinutes > 0 {
		ret.Window = time.Duration(c.Clarification.WindowMinutes) * time.Minute
	}
	if c.Clarification.MaxTurns > 0 {
		ret.MaxTurns = c.Clarification.MaxTurns
	}
	if c.Clarification.MaxQuestions > 0 {
		ret.MaxQuestions = c.Clarification.MaxQuestions
	}
	return ret
}
