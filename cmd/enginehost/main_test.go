package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/enginehost/internal/storage"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunCLIHelpAndUnknown(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int { return runCLI([]string{"help"}) })
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "journal tail")

	code, _, stderr := captureOutputWithExitCode(t, func() int { return runCLI([]string{"bogus"}) })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: bogus")

	code, _, _ = captureOutputWithExitCode(t, func() int { return runCLI(nil) })
	assert.Equal(t, 1, code)

	code, stdout, _ = captureOutputWithExitCode(t, func() int { return runCLI([]string{"serve", "--help"}) })
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "--listen")
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"version", "--json"})
	})
	require.Equal(t, 0, code, stderr)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.BuildTime)
	assert.NotEmpty(t, info.Commit)
}

func TestConfigCheck(t *testing.T) {
	path := writeTestConfig(t, `
engines:
  classical:
    builtin: loopback
  neural:
    builtin: loopback
`)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", path, "--json"})
	})
	require.Equal(t, 0, code, stderr)

	var result checkResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"classical", "neural"}, result.Engines)
	assert.Len(t, result.Fingerprint, 64)
}

func TestConfigCheckInvalid(t *testing.T) {
	path := writeTestConfig(t, "service:\n  name: empty\n")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", path})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Configuration invalid")
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	path := writeTestConfig(t, `
engines:
  classical:
    builtin: loopback
api:
  enabled: true
  auth:
    api_key: super-secret
    tokens:
      - token: reader-secret
        scopes: ["journal:ro"]
`)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "show", "--config", path})
	})
	require.Equal(t, 0, code, stderr)
	assert.NotContains(t, stdout, "super-secret")
	assert.NotContains(t, stdout, "reader-secret")
	assert.Contains(t, stdout, redacted)
	assert.Contains(t, stdout, "journal:ro")
}

func TestJournalTail(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engines:
  classical:
    builtin: loopback
journal:
  path: journal.db
`), 0o644))

	ctx := context.Background()
	j, err := storage.OpenJournal(ctx, dbPath)
	require.NoError(t, err)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	records := []storage.CommandRecord{
		{ID: "a", Engine: "classical", Kind: "move", Payload: "uci", EnqueuedAt: base, StartedAt: base, CompletedAt: base.Add(time.Millisecond)},
		{ID: "b", Engine: "neural", Kind: "weights", PayloadBytes: 2048, EnqueuedAt: base, StartedAt: base.Add(time.Second), CompletedAt: base.Add(2 * time.Second)},
		{ID: "c", Kind: "shutdown", EnqueuedAt: base, StartedAt: base.Add(3 * time.Second), CompletedAt: base.Add(3 * time.Second)},
	}
	for _, rec := range records {
		require.NoError(t, j.Record(ctx, rec))
	}
	require.NoError(t, j.Close())

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"journal", "tail", "--config", path})
	})
	require.Equal(t, 0, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "shutdown", "newest first")
	assert.Contains(t, lines[2], "<2048 bytes>")

	code, stdout, stderr = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"journal", "tail", "--config", path, "--engine", "fish", "--json"})
	})
	require.Equal(t, 0, code, stderr)
	var entries []journalEntry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "uci", entries[0].Payload)
	assert.Equal(t, int64(1), entries[0].DurationMS)
}

func TestJournalTailRequiresJournalPath(t *testing.T) {
	path := writeTestConfig(t, "engines:\n  classical:\n    builtin: loopback\n")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"journal", "tail", "--config", path})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "journal.path")
}

func TestRedactSecretsLeavesOriginalUntouched(t *testing.T) {
	path := writeTestConfig(t, `
engines:
  classical:
    builtin: loopback
api:
  auth:
    tokens:
      - token: keep-me
        scopes: ["*"]
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	shown := redactSecrets(*cfg)
	assert.Equal(t, redacted, shown.API.Auth.Tokens[0].Token)
	assert.Equal(t, "keep-me", cfg.API.Auth.Tokens[0].Token)
}
