package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ember.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[kernel]
tick_hz = 100
max_threads = 16
reclaim_slots = true

[log]
level = "debug"
format = "json"

[boot]
demos = ["mutex", "timer"]
monitor = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Kernel.TickHz = 100
	want.Kernel.MaxThreads = 16
	want.Kernel.ReclaimSlots = true
	want.Log = Log{Level: "debug", Format: "json"}
	want.Boot.Demos = []string{"mutex", "timer"}
	want.Boot.Monitor = false
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadRejectsBadFiles(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		msg  string
	}{
		{name: "unknown key", body: "[kernel]\nturbo = true\n", msg: "unknown keys kernel.turbo"},
		{name: "negative", body: "[kernel]\nmax_tasks = -1\n", msg: "max_tasks must not be negative"},
		{name: "level", body: "[log]\nlevel = \"loud\"\n", msg: "log level"},
		{name: "format", body: "[log]\nformat = \"xml\"\n", msg: "unknown log format"},
		{name: "syntax", body: "[kernel\n", msg: "config:"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.body))
			require.ErrorContains(t, err, tc.msg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestApplyBootArgs(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyBootArgs(`hz=250 threads=8 sigq=2 reclaim monitor=off loglevel=warn demos="mutex, fifo" console=/dev/ttyS0`)
	require.NoError(t, err)

	require.Equal(t, 250, cfg.Kernel.TickHz)
	require.Equal(t, 8, cfg.Kernel.MaxThreads)
	require.Equal(t, 2, cfg.Kernel.SignalQueueDepth)
	require.True(t, cfg.Kernel.ReclaimSlots)
	require.False(t, cfg.Boot.Monitor)
	require.Equal(t, []string{"mutex", "fifo"}, cfg.Boot.Demos)
	require.Equal(t, "/dev/ttyS0", cfg.Boot.Console)
	require.Equal(t, zerolog.WarnLevel, cfg.Level())

	kc := cfg.KernelConfig(zerolog.Nop())
	require.Equal(t, 250, kc.TickHz)
	require.Equal(t, 8, kc.MaxThreads)
	require.True(t, kc.ReclaimSlots)
}

func TestApplyBootArgsErrors(t *testing.T) {
	for _, cmdline := range []string{
		"turbo=1",
		"hz=fast",
		"threads=-3",
		"monitor=maybe",
		"loglevel=loud",
		`demos="unterminated`,
	} {
		t.Run(cmdline, func(t *testing.T) {
			cfg := Default()
			require.Error(t, cfg.ApplyBootArgs(cmdline))
		})
	}
}
