package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wikindex/internal/config"
	"github.com/Aman-CERP/wikindex/internal/content"
	"github.com/Aman-CERP/wikindex/internal/content/fsstore"
)

// wikiFixture is a small fs wiki plus a config file pointing at it:
//
//	w1/Space/Home   page, fr translation, notes.txt attachment
//	w2/Docs/Setup   page with one Tag object
//
// A full rebuild queues five entries.
type wikiFixture struct {
	dir        string
	wiki       *fsstore.Store
	configPath string
	logPath    string
}

const fixtureEntries = 5

func newWikiFixture(t *testing.T) *wikiFixture {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	f := &wikiFixture{
		dir:        dir,
		wiki:       fsstore.New(filepath.Join(dir, "wiki"), ""),
		configPath: filepath.Join(dir, "wikindex.yaml"),
		logPath:    filepath.Join(dir, "logs", "wikindex.log"),
	}

	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	home := content.UnitRef{Wiki: "w1", Container: "Space", Name: "Home"}
	require.NoError(t, f.wiki.WriteUnit(&content.Unit{
		Ref: home, Title: "Home", Content: "Welcome to the handbook.", Author: "alice", Modified: modified,
	}, false))
	require.NoError(t, f.wiki.WriteUnit(&content.Unit{
		Ref: home, Language: "fr", Title: "Accueil", Content: "Bienvenue dans le manuel.", Author: "alice", Modified: modified,
	}, true))
	require.NoError(t, f.wiki.WriteAttachment(home, "notes.txt", []byte("quarterly budget figures")))

	setup := content.UnitRef{Wiki: "w2", Container: "Docs", Name: "Setup"}
	require.NoError(t, f.wiki.WriteUnit(&content.Unit{
		Ref: setup, Title: "Setup", Content: "Install the toolchain first.", Author: "bob", Modified: modified,
	}, false))
	require.NoError(t, f.wiki.WriteObjects(setup, []*content.Object{
		{ClassName: "Tag", Number: 0, Fields: map[string]string{"name": "installation"}},
	}))

	cfg := fmt.Sprintf(`index:
  paths: [%q]
source:
  type: fs
  root: %q
updater:
  interval: 1h
`, filepath.Join(dir, "data", "index"), f.wiki.Root())
	require.NoError(t, os.WriteFile(f.configPath, []byte(cfg), 0o644))
	return f
}

// config loads the fixture's configuration the way the commands do.
func (f *wikiFixture) config(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadPath(f.configPath)
	require.NoError(t, err)
	return cfg
}

// run executes the root command with the fixture's config and log file.
func (f *wikiFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(append(args, "--config", f.configPath, "--log-file", f.logPath))
	err := root.Execute()
	return out.String(), err
}
