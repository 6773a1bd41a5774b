package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
)

// Thresholds map item statuses to a percentage.
type Thresholds struct {
	Completed   float64 `mapstructure:"completed" yaml:"completed"`
	CompletedOK float64 `mapstructure:"completed_ok" yaml:"completed_ok"`
	Handled     float64 `mapstructure:"handled" yaml:"handled"`
	InProgress  float64 `mapstructure:"in_progress" yaml:"in_progress"`
	Pending     float64 `mapstructure:"pending" yaml:"pending"`
	NotStarted  float64 `mapstructure:"not_started" yaml:"not_started"`
	ItemFixed   float64 `mapstructure:"item_fixed" yaml:"item_fixed"`
}

// Config holds category weights and status thresholds.
type Config struct {
	Weights       map[string]float64 `mapstructure:"weights" yaml:"weights"`
	Thresholds    Thresholds         `mapstructure:"thresholds" yaml:"thresholds"`
	Baseline      float64            `mapstructure:"baseline" yaml:"baseline"`
	Max           float64            `mapstructure:"max" yaml:"max"`
	DefectPenalty float64            `mapstructure:"defect_penalty" yaml:"defect_penalty"`
	DefaultWeight float64            `mapstructure:"default_weight" yaml:"default_weight"`
}

func DefaultWeights() map[string]float64 {
	return map[string]float64{
		string(constants.Electrical):    15,
		string(constants.Plumbing):      15,
		string(constants.AC):            12,
		string(constants.Flooring):      12,
		string(constants.Waterproofing): 10,
		string(constants.Sprinklers):    8,
		string(constants.Drywall):       8,
		string(constants.Painting):      8,
		string(constants.Kitchen):       7,
		string(constants.Other):         5,
	}
}

func DefaultConfig() Config {
	return Config{
		Weights: DefaultWeights(),
		Thresholds: Thresholds{
			Completed:   100,
			CompletedOK: 100,
			Handled:     100,
			InProgress:  50,
			Pending:     20,
			NotStarted:  0,
			ItemFixed:   100,
		},
		Baseline:      0,
		Max:           100,
		DefectPenalty: 30,
		DefaultWeight: 5,
	}
}

const weightTolerance = 0.01

// Validate checks weights sum to 100 and every percentage is within [0,100].
func (c Config) Validate() error {
	v := common.NewValidator()

	sum := 0.0
	for _, k := range sortedKeys(c.Weights) {
		w := c.Weights[k]
		if !constants.IsCategory(k) {
			v.Add(common.ValidationError{Field: "weights." + k, Message: "unknown category"})
		}
		v.Field("weights."+k, w, common.NonNegative)
		sum += w
	}
	if math.Abs(sum-100) > weightTolerance {
		v.Add(common.ValidationError{Field: "weights", Value: sum, Message: "weights must sum to 100"})
	}

	t := c.Thresholds
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"thresholds.completed", t.Completed},
		{"thresholds.completed_ok", t.CompletedOK},
		{"thresholds.handled", t.Handled},
		{"thresholds.in_progress", t.InProgress},
		{"thresholds.pending", t.Pending},
		{"thresholds.not_started", t.NotStarted},
		{"thresholds.item_fixed", t.ItemFixed},
		{"baseline", c.Baseline},
		{"max", c.Max},
		{"defect_penalty", c.DefectPenalty},
		{"default_weight", c.DefaultWeight},
	} {
		v.Field(f.name, f.value, common.InRange(0, 100))
	}
	if c.Baseline > c.Max {
		v.Add(common.ValidationError{Field: "baseline", Value: c.Baseline, Message: "must not exceed max"})
	}

	if v.HasErrors() {
		return common.NewAppError("PROGRESS_CONFIG_ERROR", v.ErrorMessage(), common.ErrValidation)
	}
	return nil
}

func (c Config) weight(category string) float64 {
	if w, ok := c.Weights[category]; ok {
		return w
	}
	return c.DefaultWeight
}

func newViper(path string) *viper.Viper {
	d := DefaultConfig()
	v := viper.New()
	v.SetDefault("thresholds.completed", d.Thresholds.Completed)
	v.SetDefault("thresholds.completed_ok", d.Thresholds.CompletedOK)
	v.SetDefault("thresholds.handled", d.Thresholds.Handled)
	v.SetDefault("thresholds.in_progress", d.Thresholds.InProgress)
	v.SetDefault("thresholds.pending", d.Thresholds.Pending)
	v.SetDefault("thresholds.not_started", d.Thresholds.NotStarted)
	v.SetDefault("thresholds.item_fixed", d.Thresholds.ItemFixed)
	v.SetDefault("baseline", d.Baseline)
	v.SetDefault("max", d.Max)
	v.SetDefault("defect_penalty", d.DefectPenalty)
	v.SetDefault("default_weight", d.DefaultWeight)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	return v
}

// read loads the file into v. A missing file leaves the defaults in place.
func read(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read progress config: %w", err)
	}
	return true, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode progress config: %w", err)
	}
	// viper lower-cases keys; categories are upper-case codes
	if len(cfg.Weights) == 0 {
		cfg.Weights = DefaultWeights()
	} else {
		weights := make(map[string]float64, len(cfg.Weights))
		for k, w := range cfg.Weights {
			weights[strings.ToUpper(k)] = w
		}
		cfg.Weights = weights
	}
	return cfg, nil
}

// LoadConfig reads and validates the YAML file at path. A missing file
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	v := newViper(path)
	if _, err := read(v); err != nil {
		return Config{}, err
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal progress config: %w", err)
	}
	header := []byte(`# Progress configuration
# weights are percentages per category and must sum to 100
# thresholds map item statuses to a completion percentage

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

// ConfigManager holds the current configuration and reloads it when the
// file changes. Invalid edits are logged and ignored.
type ConfigManager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    Config
	callbacks []func(Config)
	logger    *slog.Logger
}

func NewConfigManager(path string, logger *slog.Logger) (*ConfigManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := newViper(path)
	found, err := read(v)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Info("progress.config.loaded", "path", path, "from_file", found)
	return &ConfigManager{v: v, config: cfg, logger: logger}, nil
}

// Get returns the current configuration.
func (m *ConfigManager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers a callback for valid config changes.
func (m *ConfigManager) OnChange(fn func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// WatchConfig enables hot-reloading. The file must exist.
func (m *ConfigManager) WatchConfig() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		m.reload(e.Name)
	})
	m.v.WatchConfig()
}

func (m *ConfigManager) reload(name string) {
	cfg, err := decode(m.v)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		m.logger.Warn("progress.config.reload_rejected", "file", name, "error", err)
		return
	}

	m.mu.Lock()
	m.config = cfg
	callbacks := slices.Clone(m.callbacks)
	m.mu.Unlock()

	m.logger.Info("progress.config.reloaded", "file", name)
	for _, fn := range callbacks {
		fn(cfg)
	}
}
