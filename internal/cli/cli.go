package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/weft/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("weft", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Weft - a keyboard-driven dataflow workspace editor.

Usage:
  weft [options] [KEYMAP_PATH]

Arguments:
  KEYMAP_PATH
    Path to a single .hcl keymap file or a directory of .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	keymapFlag := flagSet.String("keymap", "", "Path to the keymap file or directory.")
	kFlag := flagSet.String("k", "", "Path to the keymap file or directory (shorthand).")
	workspaceFlag := flagSet.String("workspace", "", "Workspace archive to open and save; .yaml/.yml selects the text format.")
	watchFlag := flagSet.Bool("watch-keymap", false, "Reload the keymap when its files change.")
	emitURLFlag := flagSet.String("emit-url", "", "socket.io endpoint to stream workspace changes to. Empty disables.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *keymapFlag != "" {
		path = *keymapFlag
	} else if *kFlag != "" {
		path = *kFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Keymap path determined.", "path", path)

	if path == "" {
		slog.Debug("No keymap path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	logLevel := strings.ToLower(*logLevelFlag)

	config, err := app.NewConfig(app.Config{
		KeymapPath:    path,
		WorkspacePath: *workspaceFlag,
		WatchKeymap:   *watchFlag,
		EmitURL:       *emitURLFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
