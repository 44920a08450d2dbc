package vector

import (
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/veloq"
)

// File is the YAML representation of a registry configuration:
//
//	active: docs
//	dialects:
//	  docs:
//	    base: pgvector
//	    metric: l2
//	    k: 20
//	    threshold: 0.8
//	    placement: order_by
type File struct {
	Active   string                 `yaml:"active"`
	Dialects map[string]DialectFile `yaml:"dialects"`
}

// DialectFile declares a config derived from a built-in base.
type DialectFile struct {
	Base      string   `yaml:"base"`
	Metric    string   `yaml:"metric,omitempty"`
	K         *int     `yaml:"k,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
	Placement string   `yaml:"placement,omitempty"`
}

// config returns the built-in base with the file overrides applied.
func (d DialectFile) config(name string) (Config, error) {
	base := d.Base
	if base == "" {
		base = name
	}
	c, ok := Builtin(base)
	if !ok {
		return Config{}, veloq.ConfigErrorf("Load", veloq.ErrInvalidConfig, "%q: unknown base %q", name, base)
	}
	if d.Metric != "" {
		c.DefaultMetric = Metric(d.Metric)
	}
	if d.K != nil {
		c.DefaultK = *d.K
	}
	if d.Threshold != nil {
		c.DefaultThreshold = *d.Threshold
	}
	if d.Placement != "" {
		p, err := ParsePlacement(d.Placement)
		if err != nil {
			return Config{}, err
		}
		c.Placement = p
	}
	return c, nil
}

// Load decodes a YAML registry file from r and applies it to reg. Dialects
// are registered in name order, then the active default is set.
func Load(r io.Reader, reg *Registry) error {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return fmt.Errorf("vector: decode config: %w", err)
	}
	return f.Apply(reg)
}

// LoadFile is like Load, but reads the file at path.
func LoadFile(path string, reg *Registry) error {
	fd, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vector: open config: %w", err)
	}
	defer fd.Close()
	return Load(fd, reg)
}

// Apply registers the file dialects in reg and sets the active default.
func (f File) Apply(reg *Registry) error {
	names := make([]string, 0, len(f.Dialects))
	for name := range f.Dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		c, err := f.Dialects[name].config(name)
		if err != nil {
			return err
		}
		if err := reg.Register(name, c); err != nil {
			return err
		}
	}
	if f.Active != "" {
		return reg.SetActive(f.Active)
	}
	return nil
}
