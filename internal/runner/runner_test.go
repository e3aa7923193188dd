package runner_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/email-output/internal/buffer"
	"github.com/CZERTAINLY/email-output/internal/model"
	"github.com/CZERTAINLY/email-output/internal/runner"
	"github.com/stretchr/testify/require"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("skipped, binary %s not available: %v", name, err)
	}
	return path
}

func newRunner(t *testing.T) *runner.Runner {
	t.Helper()
	r := runner.NewRunner()
	r.TempDir = t.TempDir()
	r.Stdin = nil
	return r
}

func run(t *testing.T, r *runner.Runner, combined bool, argv ...string) model.ExecutionResult {
	t.Helper()
	req, err := model.NewExecutionRequest(argv, combined)
	require.NoError(t, err)
	res, err := r.Run(t.Context(), req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close() })
	return res
}

func content(t *testing.T, b *buffer.Buffer) string {
	t.Helper()
	require.NotNil(t, b)
	raw, err := b.Bytes()
	require.NoError(t, err)
	return string(raw)
}

func TestRunner(t *testing.T) {
	t.Parallel()
	echo := lookPath(t, "echo")

	res := run(t, newRunner(t), true, echo, "hello")
	require.Equal(t, 0, res.ExitCode)
	require.NoError(t, res.LaunchError)
	require.True(t, res.Combined)
	require.Equal(t, "hello\n", content(t, res.Stdout))
	require.Nil(t, res.Stderr)
	require.True(t, res.HasOutput())
	require.NotZero(t, res.StartedAt)
	require.NotZero(t, res.FinishedAt)
	require.False(t, res.FinishedAt.Before(res.StartedAt))
}

func TestRunnerStreams(t *testing.T) {
	t.Parallel()
	sh := lookPath(t, "sh")
	script := "echo stdout; echo stderr 1>&2"

	t.Run("combined", func(t *testing.T) {
		t.Parallel()
		res := run(t, newRunner(t), true, sh, "-c", script)
		require.Equal(t, 0, res.ExitCode)
		out := content(t, res.Stdout)
		require.Contains(t, out, "stdout\n")
		require.Contains(t, out, "stderr\n")
		require.Nil(t, res.Stderr)
	})

	t.Run("separate", func(t *testing.T) {
		t.Parallel()
		res := run(t, newRunner(t), false, sh, "-c", script)
		require.Equal(t, 0, res.ExitCode)
		require.Equal(t, "stdout\n", content(t, res.Stdout))
		require.Equal(t, "stderr\n", content(t, res.Stderr))
		require.True(t, res.HasOutput())
	})

	t.Run("separate stderr only", func(t *testing.T) {
		t.Parallel()
		res := run(t, newRunner(t), false, sh, "-c", "echo oops 1>&2")
		require.False(t, res.Stdout.NonEmpty())
		require.Equal(t, "oops\n", content(t, res.Stderr))
		require.True(t, res.HasOutput())
	})
}

func TestRunnerExitCode(t *testing.T) {
	t.Parallel()
	sh := lookPath(t, "sh")

	cases := []struct {
		scenario string
		given    []string
		then     int
	}{
		{"true", []string{sh, "-c", "true"}, 0},
		{"false", []string{sh, "-c", "false"}, 1},
		{"exit 3", []string{sh, "-c", "exit 3"}, 3},
		{"killed", []string{sh, "-c", "kill -TERM $$"}, 128 + 15},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			res := run(t, newRunner(t), true, tc.given...)
			require.Equal(t, tc.then, res.ExitCode)
			require.NoError(t, res.LaunchError)
			require.False(t, res.HasOutput())
		})
	}
}

func TestRunnerLaunchFailure(t *testing.T) {
	t.Parallel()
	const missing = "email-output-does-not-exist"

	t.Run("not found combined", func(t *testing.T) {
		t.Parallel()
		res := run(t, newRunner(t), true, missing, "arg")
		require.Equal(t, 2, res.ExitCode)
		require.Error(t, res.LaunchError)
		var execErr *exec.Error
		require.ErrorAs(t, res.LaunchError, &execErr)
		require.Equal(t, missing+": No such file or directory\n", content(t, res.Stdout))
		require.True(t, res.HasOutput())
		require.False(t, res.FinishedAt.Before(res.StartedAt))
	})

	t.Run("not found separate", func(t *testing.T) {
		t.Parallel()
		res := run(t, newRunner(t), false, missing)
		require.Equal(t, 2, res.ExitCode)
		require.False(t, res.Stdout.NonEmpty())
		require.Equal(t, missing+": No such file or directory\n", content(t, res.Stderr))
		require.True(t, res.HasOutput())
	})

	t.Run("not found path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), missing)
		res := run(t, newRunner(t), true, path)
		require.Equal(t, 2, res.ExitCode)
		require.Equal(t, path+": No such file or directory\n", content(t, res.Stdout))
	})

	t.Run("not executable", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "script.sh")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o644))
		res := run(t, newRunner(t), true, path)
		require.Equal(t, 13, res.ExitCode)
		require.Equal(t, path+": Permission denied\n", content(t, res.Stdout))
	})
}

func TestRunnerTimeout(t *testing.T) {
	t.Parallel()
	sleep := lookPath(t, "sleep")

	r := newRunner(t)
	r.Timeout = 100 * time.Millisecond
	res := run(t, r, true, sleep, "5")
	require.Equal(t, 128+9, res.ExitCode)
	require.NoError(t, res.LaunchError)
	require.Less(t, res.Duration(), 5*time.Second)
}

func TestRunnerClock(t *testing.T) {
	t.Parallel()
	sh := lookPath(t, "sh")

	loc := time.FixedZone("CET", 3600)
	start := time.Date(2024, time.March, 1, 12, 0, 0, 0, loc)
	ticks := []time.Time{start, start.Add(1500 * time.Millisecond)}
	r := newRunner(t)
	r.Now = func() time.Time {
		now := ticks[0]
		ticks = ticks[1:]
		return now
	}

	res := run(t, r, true, sh, "-c", "true")
	require.Equal(t, start, res.StartedAt)
	require.Equal(t, start.Add(1500*time.Millisecond), res.FinishedAt)
	require.Equal(t, 1500*time.Millisecond, res.Duration())
}

func TestRunnerClose(t *testing.T) {
	t.Parallel()
	sh := lookPath(t, "sh")

	dir := t.TempDir()
	r := newRunner(t)
	r.TempDir = dir
	req, err := model.NewExecutionRequest([]string{sh, "-c", "echo out; echo err 1>&2"}, false)
	require.NoError(t, err)
	res, err := r.Run(t.Context(), req)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, res.Close())
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
