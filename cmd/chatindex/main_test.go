package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "testdata/conversations.json"

// resetFlags restores every flag to its default so runs do not leak state
// through the package-level command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CHATINDEX_LANGUAGE_DETECTOR", "none")
	t.Setenv("CHATINDEX_LOGGING_LEVEL", "error")
	return filepath.Join(home, "index.db")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func buildIndex(t *testing.T) string {
	t.Helper()
	db := setupEnv(t)
	out, err := run(t, "build", "--db", db, "--export", fixture)
	require.NoError(t, err)
	require.Contains(t, out, "Index built successfully:")
	return db
}

func TestBuildCommand(t *testing.T) {
	db := setupEnv(t)

	out, err := run(t, "build", "--db", db, "--export", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "Conversations: 4")
	assert.Contains(t, out, "Messages:      6")
	assert.Contains(t, out, db)

	out, err = run(t, "build", "--db", db, "--export", fixture, "--rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, "Messages:      6", "rebuild starts from an empty index")
}

func TestBuildCommand_Errors(t *testing.T) {
	db := setupEnv(t)

	_, err := run(t, "build", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--export")

	_, err = run(t, "build", "--db", db, "--export", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSearchCommand(t *testing.T) {
	db := buildIndex(t)

	out, err := run(t, "search", "--db", db, "kubernetes", "pods")
	require.NoError(t, err)
	assert.Contains(t, out, "across 1 conversations")
	assert.Contains(t, out, "[2024-03-09] Kubernetes pods")
	assert.Contains(t, out, "ID: c-k8s-0001")
	assert.Contains(t, out, "[assistant]")
	assert.Contains(t, out, "code: kubectl logs my-pod --previous")

	out, err = run(t, "search", "--db", db, "python", "--role", "user")
	require.NoError(t, err)
	assert.Contains(t, out, "1 results across 1 conversations")
	assert.Contains(t, out, "[user]")
	assert.NotContains(t, out, "[assistant]")

	out, err = run(t, "search", "--db", db, "python", "--since", "2024")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCommand_InvalidInput(t *testing.T) {
	db := buildIndex(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero limit", []string{"python", "--limit", "0"}, "--limit"},
		{"bad date", []string{"python", "--since", "yesterday"}, "--since"},
		{"empty query", []string{"  "}, "query is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"search", "--db", db}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestShowCommand(t *testing.T) {
	db := buildIndex(t)

	out, err := run(t, "show", "--db", db, "c-py")
	require.NoError(t, err)
	assert.Contains(t, out, "Python generators")
	assert.Contains(t, out, "ID: c-py-0002")
	assert.Contains(t, out, "USER")
	assert.Contains(t, out, "ASSISTANT (gpt-4o)")
	assert.Contains(t, out, "uses yield to produce values lazily")

	_, err = run(t, "show", "--db", db, "no-such-id")
	assert.Error(t, err)

	out, err = run(t, "show", "--db", db, "c-")
	require.NoError(t, err)
	assert.Contains(t, out, "ID: c-bread-0003", "a shared prefix resolves to the lowest id")
}

func TestStatsCommand(t *testing.T) {
	db := buildIndex(t)

	out, err := run(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Index Statistics")
	assert.Contains(t, out, "Conversations: 4")
	assert.Contains(t, out, "Date range:    2023-11-14 to 2024-07-03")
	assert.Contains(t, out, "Messages by role:")
	assert.Contains(t, out, "Messages by language:")
}

func TestKeywordsCommand(t *testing.T) {
	db := buildIndex(t)

	out, err := run(t, "keywords", "--db", db, "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Top 5 keywords")
	assert.Contains(t, out, "Keyword")

	out, err = run(t, "keywords", "--db", db, "--conversation", "c-bread")
	require.NoError(t, err)
	assert.Contains(t, out, "Keywords for c-bread")
	assert.Contains(t, out, "sourdough")

	_, err = run(t, "keywords", "--db", db, "--limit", "0")
	assert.Error(t, err)
}

func TestMissingIndex(t *testing.T) {
	db := filepath.Join(filepath.Dir(setupEnv(t)), "nope", "index.db")

	for _, args := range [][]string{
		{"search", "python"},
		{"show", "abc"},
		{"stats"},
		{"keywords"},
	} {
		_, err := run(t, append(args, "--db", db)...)
		require.Error(t, err, args[0])
		assert.Contains(t, err.Error(), "chatindex build", args[0])
		assert.NoFileExists(t, db, "read commands never create an index")
	}
}

func TestVersionCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
	assert.Contains(t, out, "Commit:")
}
