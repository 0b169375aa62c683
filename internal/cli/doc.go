// Package cli implements the teabase command-line interface.
//
// Each command is a package-level cobra.Command registered from init.
// Commands build an App (see NewApp), which wires config into the key
// store, passphrase controller, signing configurator, tool installer,
// operation lock and the pane API, then call into the pane API so the
// CLI and the interactive menu share one set of rules.
//
//	teabase status              - Key, signing and tool state
//	teabase ssh enable|disable  - SSH commit signing
//	teabase ssh keygen|copy     - Key pair management
//	teabase gpg enable|disable  - GPG commit signing
//	teabase tool install|open   - Homebrew and pkgx
//	teabase pane                - Interactive menu
//
// Global flags (--config, --verbose, --no-color, --json,
// --passphrase-stdin) live on the root command.
package cli
