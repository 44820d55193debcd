// Package config loads client settings from HCL files.
//
// A configuration looks like this:
//
//	log_level = "info"
//
//	client {
//	  host        = "broker.local"
//	  port        = 33335
//	  name        = "thermostat"
//	  username    = lookup(env, "MOUSTIQUE_USER", "")
//	  password    = lookup(env, "MOUSTIQUE_PASSWORD", "")
//	  timeout     = "5s"
//	  max_retries = 5
//	}
//
//	poller {
//	  interval = "2s"
//	}
//
// Every setting is optional. Expressions may read environment variables
// through the env object and call string, collection and encoding functions
// such as base64decode.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/tsarna/moustique/pkg/moustique/client"
	"github.com/tsarna/moustique/pkg/moustique/poller"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel string        `hcl:"log_level,optional"`
	Client   *ClientConfig `hcl:"client,block"`
	Poller   *PollerConfig `hcl:"poller,block"`
}

type ClientConfig struct {
	Host       string    `hcl:"host,optional"`
	Port       int       `hcl:"port,optional"`
	Name       string    `hcl:"name,optional"`
	Username   string    `hcl:"username,optional"`
	Password   string    `hcl:"password,optional"`
	Timeout    string    `hcl:"timeout,optional"`
	MaxRetries *int      `hcl:"max_retries,optional"`
	DefRange   hcl.Range `hcl:",def_range"`

	timeout time.Duration
}

type PollerConfig struct {
	Interval string    `hcl:"interval,optional"`
	Schedule string    `hcl:"schedule,optional"`
	DefRange hcl.Range `hcl:",def_range"`

	interval time.Duration
}

// Load parses and decodes the given sources (see ParseSources). Settings may be
// spread over several files, but each block may appear only once overall.
func Load(sources ...any) (*Config, hcl.Diagnostics) {
	bodies, diags := ParseSources(sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": GetEnvObject(),
		},
		Functions: GetFunctions(),
	}

	cfg := &Config{}
	diags = diags.Extend(gohcl.DecodeBody(hcl.MergeBodies(bodies), evalCtx, cfg))
	if diags.HasErrors() {
		return nil, diags
	}

	diags = diags.Extend(cfg.validate())
	if diags.HasErrors() {
		return nil, diags
	}

	return cfg, diags
}

func (c *Config) validate() hcl.Diagnostics {
	var diags hcl.Diagnostics

	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid log level",
				Detail:   fmt.Sprintf("Invalid log level: %s", c.LogLevel),
			})
		}
	}

	if cc := c.Client; cc != nil {
		if cc.Port < 0 || cc.Port > 65535 {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid port",
				Detail:   fmt.Sprintf("Port must be between 1 and 65535, got %d", cc.Port),
				Subject:  &cc.DefRange,
			})
		}

		if cc.MaxRetries != nil && *cc.MaxRetries < 0 {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid max_retries",
				Detail:   fmt.Sprintf("max_retries must not be negative, got %d", *cc.MaxRetries),
				Subject:  &cc.DefRange,
			})
		}

		if cc.Timeout != "" {
			d, err := time.ParseDuration(cc.Timeout)
			if err != nil || d <= 0 {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid timeout",
					Detail:   fmt.Sprintf("Invalid timeout: %s", cc.Timeout),
					Subject:  &cc.DefRange,
				})
			}
			cc.timeout = d
		}
	}

	if pc := c.Poller; pc != nil {
		if pc.Interval != "" && pc.Schedule != "" {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Conflicting poller settings",
				Detail:   "Only one of interval and schedule may be set",
				Subject:  &pc.DefRange,
			})
		}

		if pc.Interval != "" {
			d, err := time.ParseDuration(pc.Interval)
			if err != nil || d <= 0 {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid interval",
					Detail:   fmt.Sprintf("Invalid interval: %s", pc.Interval),
					Subject:  &pc.DefRange,
				})
			}
			pc.interval = d
		}
	}

	return diags
}

// Level returns the configured log level, or def when none is set.
func (c *Config) Level(def zapcore.Level) zapcore.Level {
	if c == nil || c.LogLevel == "" {
		return def
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return def
	}
	return level
}

// Apply copies the configured client settings onto b. Unset settings leave
// b unchanged.
func (c *Config) Apply(b *client.ClientBuilder) *client.ClientBuilder {
	if c == nil || c.Client == nil {
		return b
	}
	cc := c.Client

	if cc.Host != "" {
		b.WithHost(cc.Host)
	}
	if cc.Port != 0 {
		b.WithPort(cc.Port)
	}
	if cc.Name != "" {
		b.WithClientName(cc.Name)
	}
	if cc.Username != "" || cc.Password != "" {
		b.WithCredentials(cc.Username, cc.Password)
	}
	if cc.timeout > 0 {
		b.WithTimeout(cc.timeout)
	}
	if cc.MaxRetries != nil {
		b.WithMaxRetries(*cc.MaxRetries)
	}

	return b
}

// PollerOptions returns the poller settings as options, followed by a logger
// option when logger is not nil.
func (c *Config) PollerOptions(logger *zap.Logger) []poller.Option {
	var opts []poller.Option

	if c != nil && c.Poller != nil {
		if c.Poller.interval > 0 {
			opts = append(opts, poller.WithInterval(c.Poller.interval))
		}
		if c.Poller.Schedule != "" {
			opts = append(opts, poller.WithSchedule(c.Poller.Schedule))
		}
	}

	if logger != nil {
		opts = append(opts, poller.WithLogger(logger))
	}

	return opts
}
