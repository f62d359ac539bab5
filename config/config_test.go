package config_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/prologkit/warren/config"
	"github.com/prologkit/warren/dsl"
	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/test_helpers"
	"github.com/prologkit/warren/trace"
	"github.com/prologkit/warren/wam"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warren.toml")
	require.NoError(t, os.WriteFile(path, []byte(test_helpers.Dedent(text)), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
        [machine]
        iter_limit = 1000
        occurs_check = true

        [log]
        level = "debug"

        [trace]
        file = "trace.cbor"
        format = "cbor"

        [consult]
        files = ["family.pl", "/abs/rules.pl"]
        facts = ["facts.yaml"]
    `)
	c, err := config.Load(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)
	want := &config.Config{
		Machine: config.Machine{IterLimit: 1000, OccursCheck: true},
		Log:     config.Log{Level: "debug"},
		Trace:   config.Trace{File: "trace.cbor", Format: "cbor", Buffer: 4096},
		Consult: config.Consult{
			Files: []string{"family.pl", "/abs/rules.pl"},
			Facts: []string{"facts.yaml"},
		},
		Dir: dir,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
	level, err := c.LogLevel()
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, level)
	require.Equal(t, []string{filepath.Join(dir, "family.pl"), "/abs/rules.pl"}, c.ConsultFiles())
	require.Equal(t, []string{filepath.Join(dir, "facts.yaml")}, c.FactFiles())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"[machine]\niter_limit = -1", "must not be negative"},
		{"[log]\nlevel = \"loud\"", "not a valid logrus Level"},
		{"[trace]\nformat = \"xml\"", "invalid trace format"},
		{"[machine]\niter_limt = 10", "unknown key \"machine.iter_limt\""},
		{"[machine\n", "parse error"},
	}
	for _, test := range tests {
		_, err := config.Load(writeConfig(t, test.text))
		require.ErrorContains(t, err, test.want, "text: %q", test.text)
	}
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorContains(t, err, "cannot read")
}

func TestDefault(t *testing.T) {
	c := config.Default()
	require.NoError(t, c.Validate())
	level, err := c.LogLevel()
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, level)
	obs, closer, err := c.OpenTrace()
	require.NoError(t, err)
	require.Nil(t, obs)
	require.NoError(t, closer.Close())
}

func TestApply(t *testing.T) {
	c := config.Default()
	c.Machine = config.Machine{IterLimit: 10, HeapLimit: 20, ChoiceLimit: 30, OccursCheck: true}
	m := wam.NewMachine(wam.NewProgram(intern.New()))
	c.Apply(m)
	require.Equal(t, 10, m.IterLimit)
	require.Equal(t, 20, m.HeapLimit)
	require.Equal(t, 30, m.ChoiceLimit)
	require.True(t, m.OccursCheck)
}

func TestOpenTrace(t *testing.T) {
	for _, format := range []string{"jsonl", "cbor"} {
		for _, buffer := range []int{0, 64} {
			c := config.Default()
			c.Dir = t.TempDir()
			c.Trace = config.Trace{File: "trace.out", Format: format, Buffer: buffer}
			obs, closer, err := c.OpenTrace()
			require.NoError(t, err)

			p := wam.NewProgram(intern.New())
			require.NoError(t, p.AddClauses(dsl.Clause(dsl.Atom("ok"))))
			m := wam.NewMachine(p)
			m.Observer = obs
			sols, err := m.Query(context.Background(), dsl.Atom("ok"))
			require.NoError(t, err)
			require.True(t, sols.Next())
			require.NoError(t, closer.Close())

			data, err := os.ReadFile(filepath.Join(c.Dir, "trace.out"))
			require.NoError(t, err)
			var snapshots []wam.Snapshot
			if format == "cbor" {
				snapshots, err = trace.DecodeCBOR(bytes.NewReader(data))
			} else {
				snapshots, err = trace.DecodeJSONL(bytes.NewReader(data))
			}
			require.NoError(t, err)
			require.NotEmpty(t, snapshots, "format %s, buffer %d", format, buffer)
			require.Equal(t, 1, snapshots[0].Clock)
		}
	}
}
