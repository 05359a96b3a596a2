// Package cli resolves command-line arguments into an app.Config.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/saikuru0/csvita/internal/app"
)

// Version is reported by --version.
var Version = "dev"

// UsageError reports a missing or invalid command-line argument. Flag is
// empty when the error is not tied to a single flag.
type UsageError struct {
	Flag   string
	Reason string
}

// Error implements the error interface for UsageError.
func (e *UsageError) Error() string {
	if e.Flag == "" {
		return e.Reason
	}
	return fmt.Sprintf("--%s: %s", e.Flag, e.Reason)
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly (help or version
// was printed), or a *UsageError. No files are touched.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var config *app.Config
	cmd := newCommand(func(cfg *app.Config) { config = cfg })
	cmd.SetArgs(args)
	cmd.SetOut(output)
	cmd.SetErr(output)

	if err := cmd.Execute(); err != nil {
		var usageErr *UsageError
		if errors.As(err, &usageErr) {
			return nil, false, usageErr
		}
		return nil, false, &UsageError{Reason: err.Error()}
	}
	if config == nil {
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func newCommand(onConfig func(*app.Config)) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "csvita -i INPUT -o OUTPUT [options]",
		Short:         "CSV cleanup and reformat tool",
		Long:          "csvita rewrites a delimited file, quoting every field and translating the delimiter.",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolve(cmd.Flags())
			if err != nil {
				return err
			}
			onConfig(cfg)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("input", "i", "", "Input CSV filepath (required)")
	f.StringP("output", "o", "", "Output CSV filepath (required)")
	f.String("din", ",", "Delimiter to read")
	f.String("dout", ",", "Delimiter to write")
	f.BoolP("escape", "e", false, "Escape with backslash instead of double-quoting")
	f.BoolP("flexible", "f", false, "Flexible read (doesn't fail on rows with column count mismatch)")
	f.Bool("skip-empty", false, "Skips using quotes for empty cells")
	f.Bool("skip-nums", false, "Skips using quotes for number cells")
	f.Bool("crlf", false, "Terminate output lines with \\r\\n")
	f.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	f.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	f.SortFlags = false

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error()}
	})
	return cmd
}

// resolve turns parsed flags into a validated Config.
func resolve(f *pflag.FlagSet) (*app.Config, error) {
	input, _ := f.GetString("input")
	if input == "" {
		return nil, &UsageError{Flag: "input", Reason: "is required"}
	}
	output, _ := f.GetString("output")
	if output == "" {
		return nil, &UsageError{Flag: "output", Reason: "is required"}
	}

	din, err := delimiterFlag(f, "din")
	if err != nil {
		return nil, err
	}
	dout, err := delimiterFlag(f, "dout")
	if err != nil {
		return nil, err
	}

	logFormat, _ := f.GetString("log-format")
	logFormat = strings.ToLower(logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, &UsageError{Flag: "log-format", Reason: "must be 'text' or 'json'"}
	}

	logLevel, _ := f.GetString("log-level")
	logLevel = strings.ToLower(logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, &UsageError{Flag: "log-level", Reason: "must be 'debug', 'info', 'warn', or 'error'"}
	}

	escape, _ := f.GetBool("escape")
	flexible, _ := f.GetBool("flexible")
	skipEmpty, _ := f.GetBool("skip-empty")
	skipNums, _ := f.GetBool("skip-nums")
	crlf, _ := f.GetBool("crlf")

	cfg, err := app.NewConfig(app.Config{
		InputPath:       input,
		OutputPath:      output,
		InputDelimiter:  din,
		OutputDelimiter: dout,
		Escape:          escape,
		Flexible:        flexible,
		SkipEmpty:       skipEmpty,
		SkipNumeric:     skipNums,
		UseCRLF:         crlf,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, &UsageError{Reason: err.Error()}
	}
	return cfg, nil
}

// delimiterFlag reads a delimiter flag, which must hold exactly one character.
func delimiterFlag(f *pflag.FlagSet, name string) (byte, error) {
	value, _ := f.GetString(name)
	if utf8.RuneCountInString(value) != 1 {
		return 0, &UsageError{Flag: name, Reason: fmt.Sprintf("delimiter must be a single character, got %q", value)}
	}
	d := value[0]
	if err := app.ValidateDelimiter(d); err != nil {
		return 0, &UsageError{Flag: name, Reason: fmt.Sprintf("delimiter %s, got %q", err, value)}
	}
	return d, nil
}
