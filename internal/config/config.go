// Package config loads the boot configuration: kernel tunables, logging and
// which demo tasks to start. Values come from defaults, then an optional
// TOML file, then a kernel command line.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"ember/kernel"
)

// Kernel mirrors the kernel tunables. Zero means the kernel default.
type Kernel struct {
	TickHz           int  `toml:"tick_hz"`
	MaxThreads       int  `toml:"max_threads"`
	MaxTasks         int  `toml:"max_tasks"`
	MaxPriority      int  `toml:"max_priority"`
	PipeDepth        int  `toml:"pipe_depth"`
	MaxFiles         int  `toml:"max_files"`
	MaxTimers        int  `toml:"max_timers"`
	MaxMQueues       int  `toml:"max_mqueues"`
	SignalQueueDepth int  `toml:"signal_queue_depth"`
	ReclaimSlots     bool `toml:"reclaim_slots"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Boot struct {
	Demos   []string `toml:"demos"`
	Monitor bool     `toml:"monitor"`
	Console string   `toml:"console"`
}

// Config is the whole boot configuration.
type Config struct {
	Kernel Kernel `toml:"kernel"`
	Log    Log    `toml:"log"`
	Boot   Boot   `toml:"boot"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Kernel: Kernel{TickHz: 1000},
		Log:    Log{Level: "info", Format: "console"},
		Boot:   Boot{Monitor: true, Console: "/dev/console"},
	}
}

// Load reads a TOML file over the defaults. Keys the file sets but Config
// does not know are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks values the kernel would otherwise silently default.
func (c Config) Validate() error {
	for name, v := range map[string]int{
		"tick_hz":            c.Kernel.TickHz,
		"max_threads":        c.Kernel.MaxThreads,
		"max_tasks":          c.Kernel.MaxTasks,
		"max_priority":       c.Kernel.MaxPriority,
		"pipe_depth":         c.Kernel.PipeDepth,
		"max_files":          c.Kernel.MaxFiles,
		"max_timers":         c.Kernel.MaxTimers,
		"max_mqueues":        c.Kernel.MaxMQueues,
		"signal_queue_depth": c.Kernel.SignalQueueDepth,
	} {
		if v < 0 {
			return fmt.Errorf("config: %s must not be negative, got %d", name, v)
		}
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

var intArgs = map[string]func(c *Config) *int{
	"hz":      func(c *Config) *int { return &c.Kernel.TickHz },
	"threads": func(c *Config) *int { return &c.Kernel.MaxThreads },
	"tasks":   func(c *Config) *int { return &c.Kernel.MaxTasks },
	"prio":    func(c *Config) *int { return &c.Kernel.MaxPriority },
	"pipe":    func(c *Config) *int { return &c.Kernel.PipeDepth },
	"files":   func(c *Config) *int { return &c.Kernel.MaxFiles },
	"timers":  func(c *Config) *int { return &c.Kernel.MaxTimers },
	"mqueues": func(c *Config) *int { return &c.Kernel.MaxMQueues },
	"sigq":    func(c *Config) *int { return &c.Kernel.SignalQueueDepth },
}

// ApplyBootArgs overrides c from a kernel command line such as
//
//	hz=100 threads=32 demos="mutex fifo" monitor=off
//
// A bare key sets a boolean to true.
func (c *Config) ApplyBootArgs(cmdline string) error {
	words, err := shlex.Split(cmdline)
	if err != nil {
		return fmt.Errorf("bootargs: %w", err)
	}
	for _, w := range words {
		key, val, hasVal := strings.Cut(w, "=")
		if ptr, ok := intArgs[key]; ok {
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fmt.Errorf("bootargs: %s: bad number %q", key, val)
			}
			*ptr(c) = n
			continue
		}
		switch key {
		case "reclaim", "monitor":
			b := true
			if hasVal {
				if b, err = parseBool(val); err != nil {
					return fmt.Errorf("bootargs: %s: %w", key, err)
				}
			}
			if key == "reclaim" {
				c.Kernel.ReclaimSlots = b
			} else {
				c.Boot.Monitor = b
			}
		case "loglevel":
			c.Log.Level = val
		case "console":
			c.Boot.Console = val
		case "demos":
			c.Boot.Demos = strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == ' ' })
		default:
			return fmt.Errorf("bootargs: unknown key %q (known: %s)", key, strings.Join(knownArgs(), " "))
		}
	}
	return c.Validate()
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func knownArgs() []string {
	keys := []string{"reclaim", "monitor", "loglevel", "console", "demos"}
	for k := range intArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KernelConfig builds the kernel configuration with log attached.
func (c Config) KernelConfig(log zerolog.Logger) kernel.Config {
	return kernel.Config{
		MaxThreads:       c.Kernel.MaxThreads,
		MaxTasks:         c.Kernel.MaxTasks,
		MaxPriority:      c.Kernel.MaxPriority,
		TickHz:           c.Kernel.TickHz,
		PipeDepth:        c.Kernel.PipeDepth,
		MaxFiles:         c.Kernel.MaxFiles,
		MaxTimers:        c.Kernel.MaxTimers,
		MaxMQueues:       c.Kernel.MaxMQueues,
		SignalQueueDepth: c.Kernel.SignalQueueDepth,
		ReclaimSlots:     c.Kernel.ReclaimSlots,
		Logger:           log,
	}
}

// Level returns the configured zerolog level.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
