// Package config reads ubidots.hcl with includes.
package config

import (
	"encoding/json"
	"path/filepath"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/ubidots/helpers"
	"github.com/temoto/ubidots/log2"
	ubidots_config "github.com/temoto/ubidots/ubidots/config"
)

const DefaultIntervalSec = 60

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Ubidots ubidots_config.Config `hcl:"ubidots"`
	Agent   AgentConfig           `hcl:"agent"`
}

type AgentConfig struct {
	IntervalSec int            `hcl:"interval_sec"`
	Sensors     []SensorConfig `hcl:"sensor"`
}

// SensorConfig maps file with a number (sysfs, 1-wire) to variable label.
// Uploaded value = raw*scale + offset. Zero scale means 1.
type SensorConfig struct {
	Label   string  `hcl:"label,key"`
	Path    string  `hcl:"path"`
	Scale   float64 `hcl:"scale"`
	Offset  float64 `hcl:"offset"`
	Context string  `hcl:"context"` // raw JSON object
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) IntervalSec() int {
	if c.Agent.IntervalSec <= 0 {
		return DefaultIntervalSec
	}
	return c.Agent.IntervalSec
}

// Validate reports all problems at once.
func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if c.Ubidots.Token == "" {
		errs = append(errs, errors.NotValidf("ubidots.token empty"))
	}
	switch c.Ubidots.Transport {
	case "", ubidots_config.TransportHttp, ubidots_config.TransportMqtt:
	default:
		errs = append(errs, errors.NotValidf("ubidots.transport=%s", c.Ubidots.Transport))
	}
	if c.Ubidots.Port < 0 || c.Ubidots.Port > 65535 {
		errs = append(errs, errors.NotValidf("ubidots.port=%d", c.Ubidots.Port))
	}
	seen := make(map[string]struct{}, len(c.Agent.Sensors))
	for _, s := range c.Agent.Sensors {
		if _, ok := seen[s.Label]; ok {
			errs = append(errs, errors.NotValidf("sensor=%s duplicate", s.Label))
		}
		seen[s.Label] = struct{}{}
		if s.Path == "" {
			errs = append(errs, errors.NotValidf("sensor=%s path empty", s.Label))
		}
		if s.Context != "" && !json.Valid([]byte(s.Context)) {
			errs = append(errs, errors.NotValidf("sensor=%s context JSON", s.Label))
		}
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			*errs = append(*errs, errors.NotFoundf("config required name=%s path=%s", source.Name, norm))
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	// sensors accumulate across includes, hcl would replace the slice
	sensors := c.Agent.Sensors
	c.Agent.Sensors = nil
	if err = hcl.Unmarshal(bs, c); err != nil {
		// content may hold token, do not log it
		*errs = append(*errs, errors.Annotatef(err, "config unmarshal source=%s", source.Name))
		c.Agent.Sensors = sensors
		return
	}
	c.Agent.Sensors = append(sensors, c.Agent.Sensors...)

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			*errs = append(*errs, errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name))
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig merges named sources in order, later values override earlier.
// With OsFullReader includes are relative to directory of the first name.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("code error ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err == nil {
		err = c.Validate()
	}
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
