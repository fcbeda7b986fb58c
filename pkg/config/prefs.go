package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"lcreduce/pkg/lcreduce"
)

// Prefs is a typed key/value store persisted as a flat YAML mapping.
// Getters fall back to the supplied default when a key is missing or has
// the wrong type.
type Prefs struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
}

// LoadPrefs reads path. A missing file yields an empty store bound to path.
func LoadPrefs(path string) (*Prefs, error) {
	p := &Prefs{path: path, values: map[string]any{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading prefs: %w", err)
	}
	if err := yaml.Unmarshal(data, &p.values); err != nil {
		return nil, fmt.Errorf("decoding prefs %s: %w", path, err)
	}
	if p.values == nil {
		p.values = map[string]any{}
	}
	return p, nil
}

// NewPrefs returns an empty in-memory store. Save on it is a no-op.
func NewPrefs() *Prefs { return &Prefs{values: map[string]any{}} }

func (p *Prefs) get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

func (p *Prefs) Float(key string, def float64) float64 {
	v, _ := p.get(key)
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	}
	return def
}

func (p *Prefs) Int(key string, def int) int {
	v, _ := p.get(key)
	switch x := v.(type) {
	case int:
		return x
	case float64:
		if x == math.Trunc(x) {
			return int(x)
		}
	}
	return def
}

func (p *Prefs) Bool(key string, def bool) bool {
	v, _ := p.get(key)
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func (p *Prefs) String(key string, def string) string {
	v, _ := p.get(key)
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// Set stores a float64, int, bool or string value.
func (p *Prefs) Set(key string, value any) error {
	switch value.(type) {
	case float64, int, bool, string:
	default:
		return fmt.Errorf("prefs: unsupported value type %T for %q", value, key)
	}
	p.mu.Lock()
	p.values[key] = value
	p.mu.Unlock()
	return nil
}

// Keys lists stored keys in sorted order.
func (p *Prefs) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the store back to its file.
func (p *Prefs) Save() error {
	if p.path == "" {
		return nil
	}
	p.mu.RLock()
	data, err := yaml.Marshal(p.values)
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding prefs: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("writing prefs: %w", err)
	}
	return nil
}

func priorKey(curveID string, param int, field string) string {
	return fmt.Sprintf("%s.prior.%s.%s", curveID, lcreduce.TransitParamNames[param], field)
}

// StorePriors records the centre and step of each transit prior of a curve.
func (p *Prefs) StorePriors(curveID string, priors [lcreduce.NumTransitParams]lcreduce.Prior) {
	for i, pr := range priors {
		_ = p.Set(priorKey(curveID, i, "center"), pr.Center)
		_ = p.Set(priorKey(curveID, i, "step"), pr.Step)
	}
}

// ApplyPriors overrides the unlocked prior centres and steps of ts with stored values.
func (p *Prefs) ApplyPriors(curveID string, ts *lcreduce.TransitSettings) {
	for i := range ts.Priors {
		if ts.Priors[i].Locked {
			continue
		}
		ts.Priors[i].Center = p.Float(priorKey(curveID, i, "center"), ts.Priors[i].Center)
		ts.Priors[i].Step = p.Float(priorKey(curveID, i, "step"), ts.Priors[i].Step)
	}
}
