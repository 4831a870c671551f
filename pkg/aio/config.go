package aio

import (
	"os"
	"strings"
	"time"

	"github.com/brickingsoft/errors"
	"gopkg.in/yaml.v3"
)

// Config
// yaml form of Options.
//
//	entries: 256
//	completion_entries: 512
//	max_orphans: 128
//	driver: poll
//	poll:
//	  cpu: 2
//	  curve:
//	    - n: 1
//	      timeout: 15s
//	cooperative:
//	  budget: 4
//	  wait: 1ms
//	submit_timeout: 5s
type Config struct {
	Entries           uint32            `yaml:"entries"`
	CompletionEntries uint32            `yaml:"completion_entries"`
	MaxOrphans        int               `yaml:"max_orphans"`
	Driver            string            `yaml:"driver"`
	Poll              PollConfig        `yaml:"poll"`
	Cooperative       CooperativeConfig `yaml:"cooperative"`
	ReapBatch         int               `yaml:"reap_batch"`
	SubmitTimeout     string            `yaml:"submit_timeout"`
	Backoff           string            `yaml:"backpressure_backoff"`
}

type PollConfig struct {
	CPU   *int         `yaml:"cpu"`
	Curve []CurvePoint `yaml:"curve"`
}

type CurvePoint struct {
	N       uint32 `yaml:"n"`
	Timeout string `yaml:"timeout"`
}

type CooperativeConfig struct {
	Budget int    `yaml:"budget"`
	Wait   string `yaml:"wait"`
}

func ParseConfig(b []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.From(ErrInvalidOptions, errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(err))
	}
	return c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.From(ErrInvalidOptions, errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(err))
	}
	return ParseConfig(b)
}

// Options
// converts the config, unset fields keep their defaults.
func (c *Config) Options() (options []Option, err error) {
	if c.Entries > 0 {
		options = append(options, WithEntries(c.Entries))
	}
	if c.CompletionEntries > 0 {
		options = append(options, WithCompletionEntries(c.CompletionEntries))
	}
	if c.MaxOrphans > 0 {
		options = append(options, WithMaxOrphans(c.MaxOrphans))
	}
	if c.ReapBatch > 0 {
		options = append(options, WithReapBatch(c.ReapBatch))
	}
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "poll":
		cpu := -1
		if c.Poll.CPU != nil {
			cpu = *c.Poll.CPU
		}
		curve := make(Curve, 0, len(c.Poll.Curve))
		for _, point := range c.Poll.Curve {
			timeout, parseErr := parseDuration("poll.curve.timeout", point.Timeout)
			if parseErr != nil {
				err = parseErr
				return
			}
			curve = append(curve, struct {
				N       uint32
				Timeout time.Duration
			}{N: point.N, Timeout: timeout})
		}
		options = append(options, WithPollDriver(cpu, curve))
	case "cooperative":
		wait, parseErr := parseDuration("cooperative.wait", c.Cooperative.Wait)
		if parseErr != nil {
			err = parseErr
			return
		}
		options = append(options, WithCooperativeDriver(c.Cooperative.Budget, wait))
	default:
		err = errors.From(
			ErrInvalidOptions,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("driver", c.Driver),
		)
		return
	}
	submitTimeout, parseErr := parseDuration("submit_timeout", c.SubmitTimeout)
	if parseErr != nil {
		err = parseErr
		return
	}
	if submitTimeout > 0 {
		options = append(options, WithSubmitTimeout(submitTimeout))
	}
	backoff, parseErr := parseDuration("backpressure_backoff", c.Backoff)
	if parseErr != nil {
		err = parseErr
		return
	}
	if backoff > 0 {
		options = append(options, WithBackpressureBackoff(backoff))
	}
	return
}

func parseDuration(key string, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.From(
			ErrInvalidOptions,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("key", key),
			errors.WithWrap(err),
		)
	}
	return d, nil
}
