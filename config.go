package attrs

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultLabelSeparator joins multi-label values.
const DefaultLabelSeparator = ";"

// ModelConfig names the model a task is labeled with.
type ModelConfig struct {
	Provider       string `yaml:"provider" env:"ATTRS_MODEL_PROVIDER" env-default:"google"`
	Name           string `yaml:"name" env:"ATTRS_MODEL_NAME" env-default:"gemini-1.5-flash"`
	MaxInputTokens int    `yaml:"max_input_tokens" env:"ATTRS_MAX_INPUT_TOKENS"`
}

// CacheConfig configures the transform cache.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr" env:"ATTRS_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"ATTRS_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"ATTRS_REDIS_DB" env-default:"0"`
	TTL           time.Duration `yaml:"ttl" env:"ATTRS_CACHE_TTL" env-default:"24h"`
}

// Config is the task configuration of an attribute extraction run.
type Config struct {
	TaskName         string                `yaml:"task_name" env:"ATTRS_TASK_NAME"`
	TaskGuidelines   string                `yaml:"task_guidelines"`
	OutputGuidelines string                `yaml:"output_guidelines"`
	ExampleTemplate  string                `yaml:"example_template"`
	FewShotNum       int                   `yaml:"few_shot_num" env:"ATTRS_FEW_SHOT_NUM"`
	LabelSeparator   string                `yaml:"label_separator" env:"ATTRS_LABEL_SEPARATOR" env-default:";"`
	Confidence       bool                  `yaml:"confidence" env:"ATTRS_CONFIDENCE"`
	InputColumns     []string              `yaml:"input_columns"`
	ImageColumns     []string              `yaml:"image_columns"`
	Attributes       []AttributeDefinition `yaml:"attributes"`
	Model            ModelConfig           `yaml:"model"`
	Cache            CacheConfig           `yaml:"cache"`
}

// LoadConfig reads a YAML task configuration and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid attribute at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if len(c.Attributes) == 0 {
		result = multierror.Append(result, fmt.Errorf("no attributes configured"))
	}
	seen := make(map[string]struct{}, len(c.Attributes))
	for i := range c.Attributes {
		a := &c.Attributes[i]
		if err := a.Validate(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if _, dup := seen[a.Name]; dup {
			result = multierror.Append(result, fmt.Errorf("%w %s: duplicate name", ErrInvalidAttribute, a.Name))
		}
		seen[a.Name] = struct{}{}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// IsFewShot reports whether prompts include seed examples.
func (c *Config) IsFewShot() bool { return c.FewShotNum > 0 }

// separator returns the configured label separator or the default.
func (c *Config) separator() string {
	if c.LabelSeparator == "" {
		return DefaultLabelSeparator
	}
	return c.LabelSeparator
}
