package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/saikuru0/csvita"
)

// IOError reports a failure to open, create, read or write one of the files.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// Error formats the failed operation, the path it was applied to, and the cause.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying Err so IOError participates in errors.Is and errors.As.
func (e *IOError) Unwrap() error {
	return e.Err
}

// newIOError strips a *fs.PathError so the path is not reported twice.
func newIOError(op, path string, err error) *IOError {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// Stats summarises a finished or aborted run.
type Stats struct {
	Records int
}

// App reformats one input file into one output file.
type App struct {
	fs     afero.Fs
	config *Config
	logger *slog.Logger
}

// NewApp builds an App that logs to logW and resolves paths on fsys.
func NewApp(logW io.Writer, cfg *Config, fsys afero.Fs) *App {
	return &App{
		fs:     fsys,
		config: cfg,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, logW),
	}
}

// Run performs the reformatting pass. The output writer is closed on every
// path, so after a failure the output holds the complete lines written
// before it. Stats.Records counts those lines.
func (a *App) Run(ctx context.Context) (Stats, error) {
	cfg := a.config
	logger := a.logger.With("input", cfg.InputPath, "output", cfg.OutputPath)
	logger.Debug("Starting reformat.",
		"din", string(cfg.InputDelimiter),
		"dout", string(cfg.OutputDelimiter),
		"escape", cfg.Escape,
		"flexible", cfg.Flexible,
		"skip_empty", cfg.SkipEmpty,
		"skip_nums", cfg.SkipNumeric,
	)

	in, err := a.fs.Open(cfg.InputPath)
	if err != nil {
		return Stats{}, newIOError("open input", cfg.InputPath, err)
	}
	defer in.Close()

	out, err := a.fs.Create(cfg.OutputPath)
	if err != nil {
		return Stats{}, newIOError("create output", cfg.OutputPath, err)
	}

	reader := csvita.NewReader(in)
	reader.Comma = cfg.InputDelimiter
	reader.LazyQuotes = true
	reader.ReuseRecord = true
	if cfg.Flexible {
		reader.FieldsPerRecord = -1
	}

	writer := csvita.NewWriter(out)
	writer.Comma = cfg.OutputDelimiter
	writer.UseCRLF = cfg.UseCRLF
	writer.Policy = cfg.Policy()

	stats, runErr := a.copyRecords(ctx, reader, writer)

	if err := writer.Close(); err != nil && runErr == nil {
		runErr = newIOError("write output", cfg.OutputPath, err)
	}
	if err := out.Close(); err != nil && runErr == nil {
		runErr = newIOError("close output", cfg.OutputPath, err)
	}

	if runErr != nil {
		logger.Debug("Reformat aborted.", "records", stats.Records, "error", runErr)
		return stats, runErr
	}
	logger.Info("Reformat complete.", "records", stats.Records)
	return stats, nil
}

// copyRecords moves records from r to w one at a time until EOF or the first error.
func (a *App) copyRecords(ctx context.Context, r *csvita.Reader, w *csvita.Writer) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record, err := r.Read()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, a.readError(err)
		}

		if err := w.Write(record); err != nil {
			return stats, newIOError("write output", a.config.OutputPath, err)
		}
		stats.Records++
	}
}

// readError passes format errors through and wraps everything else as I/O.
func (a *App) readError(err error) error {
	var parseErr *csvita.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%s: %w", a.config.InputPath, err)
	}
	var countErr *csvita.FieldCountError
	if errors.As(err, &countErr) {
		return fmt.Errorf("%s: %w", a.config.InputPath, err)
	}
	return newIOError("read input", a.config.InputPath, err)
}
