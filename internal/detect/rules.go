package detect

import (
	"fmt"
	"os"

	"github.com/isdelr/ender-watch/internal/models"
	"gopkg.in/yaml.v3"
)

// Func evaluates a window of events and returns the alerts it finds. Rule
// functions are pure: they must not retain or mutate the slice.
type Func func(events []models.LogEvent) []models.Alert

// Rule is a named detection function.
type Rule struct {
	Name string
	Eval Func
}

// Registry holds rules in registration order, which is also evaluation order.
type Registry struct {
	rules []Rule
	index map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a rule, replacing any rule already registered under the same
// name in place.
func (r *Registry) Register(name string, eval Func) {
	if i, ok := r.index[name]; ok {
		r.rules[i].Eval = eval
		return
	}
	r.index[name] = len(r.rules)
	r.rules = append(r.rules, Rule{Name: name, Eval: eval})
}

// Get returns the rule registered under name.
func (r *Registry) Get(name string) (Rule, bool) {
	i, ok := r.index[name]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// Names lists rule names in evaluation order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// Evaluate runs every rule in order and concatenates their alerts.
func (r *Registry) Evaluate(events []models.LogEvent) []models.Alert {
	alerts := []models.Alert{}
	for _, rule := range r.rules {
		alerts = append(alerts, rule.Eval(events)...)
	}
	return alerts
}

// Config tunes the default rule set.
type Config struct {
	BurstThreshold     int      `yaml:"burst_threshold"`
	CriticalExtensions []string `yaml:"critical_extensions"`
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		BurstThreshold:     5,
		CriticalExtensions: []string{".exe", ".dll", ".sys"},
	}
}

// LoadConfig reads a YAML tuning file. Fields left out keep their defaults.
// An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read detection config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse detection config %s: %w", path, err)
	}
	if cfg.BurstThreshold <= 0 {
		return cfg, fmt.Errorf("parse detection config %s: burst_threshold must be positive", path)
	}
	return cfg, nil
}

// DefaultRegistry builds the standard rule set from cfg.
func DefaultRegistry(cfg Config) *Registry {
	r := NewRegistry()
	r.Register(RuleHighProcessActivity, HighProcessActivity(cfg.BurstThreshold))
	r.Register(RuleCriticalFileChange, CriticalFileChange(cfg.CriticalExtensions))
	return r
}
