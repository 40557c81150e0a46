package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"ember/app"
	"ember/hal"
	"ember/internal/buildinfo"
	"ember/internal/config"
)

func main() {
	var (
		headless  hal.HeadlessConfig
		cfgPath   string
		bootArgs  string
		logFormat string
		version   bool
	)
	flag.BoolVar(&headless.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&headless.Hz, "hz", 0, "Tick rate; overrides the configured tick_hz.")
	flag.Uint64Var(&headless.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.StringVar(&cfgPath, "config", "", "TOML boot configuration file.")
	flag.StringVar(&bootArgs, "bootargs", "", "Kernel command line, e.g. \"hz=100 demos=mutex,timer\".")
	flag.StringVar(&logFormat, "log-format", "", "Log format: console or json.")
	flag.BoolVar(&version, "version", false, "Print the build version and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.String())
		return
	}

	cfg, err := loadConfig(cfgPath, bootArgs, logFormat, headless.Hz)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	headless.Hz = cfg.Kernel.TickHz

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if headless.Enabled {
		err = hal.RunHeadless(ctx, app.Main(cfg), headless)
	} else {
		err = hal.RunWindow(ctx, app.Main(cfg), cfg.Kernel.TickHz)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path, bootArgs, logFormat string, hz int) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyBootArgs(bootArgs); err != nil {
		return cfg, err
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if hz > 0 {
		cfg.Kernel.TickHz = hz
	}
	if cfg.Kernel.TickHz <= 0 {
		cfg.Kernel.TickHz = config.Default().Kernel.TickHz
	}
	return cfg, cfg.Validate()
}
