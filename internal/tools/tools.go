// Package tools installs and opens the two package managers teabase can
// set up: Homebrew and pkgx. Installers are opaque external processes;
// their exit status is the only contract.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teaxyz/teabase/internal/config"
	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/util"
)

// ID names a tool.
type ID string

const (
	Homebrew ID = "homebrew"
	PkgX     ID = "pkgx"
)

const (
	homebrewInstall = `/bin/bash -c "$(curl -fsSL https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh)"`
	pkgxViaBrew     = "brew install pkgx"
	pkgxViaCurl     = "curl -fsS https://pkgx.sh | sh"
)

// Tool describes how to find, install and learn about a tool.
type Tool struct {
	ID     ID
	Name   string
	Binary string
	Home   string

	// Install is the shell snippet that installs the tool. Empty means the
	// built-in default, which may depend on what's already installed.
	Install string

	// Env is added to the installer's environment.
	Env []string
}

// State is a point-in-time view of a tool.
type State struct {
	Tool      ID
	Name      string
	Installed bool
	Path      string
}

// DefaultTools returns the built-in tool table.
func DefaultTools() map[ID]Tool {
	return map[ID]Tool{
		Homebrew: {
			ID:     Homebrew,
			Name:   "Homebrew",
			Binary: "brew",
			Home:   "https://brew.sh",
			Env:    []string{"NONINTERACTIVE=1"},
		},
		PkgX: {
			ID:     PkgX,
			Name:   "pkgx",
			Binary: "pkgx",
			Home:   "https://pkgx.sh",
		},
	}
}

// FromConfig applies config overrides to the built-in table.
func FromConfig(cfg config.ToolsConfig) map[ID]Tool {
	tools := DefaultTools()
	apply := func(id ID, tc config.ToolConfig) {
		t := tools[id]
		if tc.Install != "" {
			t.Install = tc.Install
		}
		if tc.Home != "" {
			t.Home = tc.Home
		}
		tools[id] = t
	}
	apply(Homebrew, cfg.Homebrew)
	apply(PkgX, cfg.PkgX)
	return tools
}

// ParseID accepts a tool name case-insensitively, including "brew".
func ParseID(s string) (ID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "homebrew", "brew":
		return Homebrew, nil
	case "pkgx":
		return PkgX, nil
	}
	return "", errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown tool: %s", s),
		util.DidYouMean(s, []string{string(Homebrew), string(PkgX)})+"Choose 'homebrew' or 'pkgx'")
}

// sortedIDs returns tool ids in a stable display order.
func sortedIDs(tools map[ID]Tool) []ID {
	ids := make([]ID, 0, len(tools))
	for id := range tools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DefaultSearchDirs are checked after PATH, since a fresh install isn't on
// the PATH of an already-running process.
func DefaultSearchDirs(home string) []string {
	dirs := []string{"/opt/homebrew/bin", "/usr/local/bin"}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".local", "bin"))
	}
	return dirs
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}
