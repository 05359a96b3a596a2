package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/saikuru0/csvita"
)

// runOnMemFs writes input to in.csv on a fresh in-memory filesystem, runs the
// app against it and returns the output file contents.
func runOnMemFs(t *testing.T, cfg Config, input string) (string, Stats, error) {
	t.Helper()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "in.csv", []byte(input), 0o644))

	cfg.InputPath = "in.csv"
	cfg.OutputPath = "out.csv"
	config, err := NewConfig(cfg)
	require.NoError(t, err)

	stats, runErr := NewApp(&bytes.Buffer{}, config, fsys).Run(context.Background())

	out, err := afero.ReadFile(fsys, "out.csv")
	require.NoError(t, err, "output file should exist after the run")
	return string(out), stats, runErr
}

func TestRun_Scenarios(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		config  Config
		input   string
		want    string
		records int
	}{
		{
			name:    "quotes every field",
			input:   "a,b,\"c,d\"\n",
			want:    "\"a\",\"b\",\"c,d\"\n",
			records: 1,
		},
		{
			name:    "skip empty and numbers",
			config:  Config{SkipEmpty: true, SkipNumeric: true},
			input:   "1,,x\n",
			want:    "1,,\"x\"\n",
			records: 1,
		},
		{
			name:    "backslash escape",
			config:  Config{Escape: true},
			input:   "he said \"hi\"\n",
			want:    "\"he said \\\"hi\\\"\"\n",
			records: 1,
		},
		{
			name:    "delimiter translation",
			config:  Config{InputDelimiter: ';', OutputDelimiter: '\t'},
			input:   "a;b\nc,d;e\n",
			want:    "\"a\"\t\"b\"\n\"c,d\"\t\"e\"\n",
			records: 2,
		},
		{
			name:    "flexible accepts ragged rows",
			config:  Config{Flexible: true},
			input:   "a,b,c\nd,e\nf\n",
			want:    "\"a\",\"b\",\"c\"\n\"d\",\"e\"\n\"f\"\n",
			records: 3,
		},
		{
			name:    "header row is data",
			config:  Config{SkipNumeric: true},
			input:   "id,name\n7,bob\n",
			want:    "\"id\",\"name\"\n7,\"bob\"\n",
			records: 2,
		},
		{
			name:    "blank lines dropped",
			input:   "a\n\nb\n",
			want:    "\"a\"\n\"b\"\n",
			records: 2,
		},
		{
			name:    "crlf terminators",
			config:  Config{UseCRLF: true},
			input:   "a,b\r\nc,d\r\n",
			want:    "\"a\",\"b\"\r\n\"c\",\"d\"\r\n",
			records: 2,
		},
		{
			name:    "leading zeros preserved",
			config:  Config{SkipNumeric: true},
			input:   "007,3.14,-1\n",
			want:    "007,\"3.14\",-1\n",
			records: 1,
		},
		{
			name:    "empty input",
			input:   "",
			want:    "",
			records: 0,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, stats, err := runOnMemFs(t, tc.config, tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.want, out)
			require.Equal(t, tc.records, stats.Records)
		})
	}
}

func TestRun_StrictModeAbortsOnWidthChange(t *testing.T) {
	t.Parallel()

	out, stats, err := runOnMemFs(t, Config{}, "a,b,c\nd,e,f\ng,h\ni,j,k\n")

	require.Error(t, err)
	var countErr *csvita.FieldCountError
	require.True(t, errors.As(err, &countErr), "expected *csvita.FieldCountError, got %T", err)
	require.Equal(t, 3, countErr.Line)
	require.Equal(t, 3, countErr.Want)
	require.Equal(t, 2, countErr.Got)
	require.Contains(t, err.Error(), "in.csv")

	require.Equal(t, "\"a\",\"b\",\"c\"\n\"d\",\"e\",\"f\"\n", out, "output should hold exactly the rows before the bad one")
	require.Equal(t, 2, stats.Records)
}

func TestRun_UnterminatedQuoteIsFatal(t *testing.T) {
	t.Parallel()

	for _, flexible := range []bool{false, true} {
		out, stats, err := runOnMemFs(t, Config{Flexible: flexible}, "a\n\"b\n")

		var parseErr *csvita.ParseError
		require.True(t, errors.As(err, &parseErr), "flexible=%v: expected *csvita.ParseError, got %v", flexible, err)
		require.ErrorIs(t, err, csvita.ErrUnterminatedQuote)
		require.Equal(t, "\"a\"\n", out)
		require.Equal(t, 1, stats.Records)
	}
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	first, _, err := runOnMemFs(t, Config{}, "x,\"y \"\"z\"\"\",,1\n2,\"a\nb\",c,\n")
	require.NoError(t, err)

	second, _, err := runOnMemFs(t, Config{}, first)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRun_MissingInput(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	config, err := NewConfig(Config{InputPath: "missing.csv", OutputPath: "out.csv"})
	require.NoError(t, err)

	_, err = NewApp(&bytes.Buffer{}, config, fsys).Run(context.Background())

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr), "expected *IOError, got %T", err)
	require.Equal(t, "open input", ioErr.Op)
	require.Equal(t, "missing.csv", ioErr.Path)
	require.ErrorIs(t, err, fs.ErrNotExist)

	exists, err := afero.Exists(fsys, "out.csv")
	require.NoError(t, err)
	require.False(t, exists, "output must not be created when the input cannot be opened")
}

func TestRun_OutputNotCreatable(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "in.csv", []byte("a\n"), 0o644))

	config, err := NewConfig(Config{InputPath: "in.csv", OutputPath: "out.csv"})
	require.NoError(t, err)

	_, err = NewApp(&bytes.Buffer{}, config, afero.NewReadOnlyFs(base)).Run(context.Background())

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr), "expected *IOError, got %T", err)
	require.Equal(t, "create output", ioErr.Op)
	require.Equal(t, "out.csv", ioErr.Path)
}

func TestRun_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "in.csv", []byte("a\nb\n"), 0o644))
	config, err := NewConfig(Config{InputPath: "in.csv", OutputPath: "out.csv"})
	require.NoError(t, err)

	stats, err := NewApp(&bytes.Buffer{}, config, fsys).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, stats.Records)

	out, err := afero.ReadFile(fsys, "out.csv")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRun_Logging(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "in.csv", []byte("a\nb\n"), 0o644))
	config, err := NewConfig(Config{
		InputPath:  "in.csv",
		OutputPath: "out.csv",
		LogLevel:   "info",
		LogFormat:  "json",
	})
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	_, err = NewApp(logs, config, fsys).Run(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 1, "only the completion line is logged at info")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "Reformat complete.", entry["msg"])
	require.Equal(t, "in.csv", entry["input"])
	require.EqualValues(t, 2, entry["records"])
}

func TestRun_DebugLoggingAddsSource(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "in.csv", []byte("a,b\nc\n"), 0o644))
	config, err := NewConfig(Config{
		InputPath:  "in.csv",
		OutputPath: "out.csv",
		LogLevel:   "debug",
		LogFormat:  "json",
	})
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	_, err = NewApp(logs, config, fsys).Run(context.Background())
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2, "start and abort lines are logged at debug")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	require.Equal(t, "Reformat aborted.", entry["msg"])
	require.EqualValues(t, 1, entry["records"])
	source, ok := entry["source"].(map[string]any)
	require.True(t, ok, "debug entries should carry a source location, got %v", entry["source"])
	require.Contains(t, source["file"], "app.go")
}

func TestRun_InfoLoggingOmitsSource(t *testing.T) {
	t.Parallel()

	logger := newLogger("info", "json", &bytes.Buffer{})
	require.False(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logs := &bytes.Buffer{}
	newLogger("info", "json", logs).Info("hello")
	require.NotContains(t, logs.String(), `"source"`)
}

func TestRun_QuietByDefault(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "in.csv", []byte("a\n"), 0o644))
	config, err := NewConfig(Config{InputPath: "in.csv", OutputPath: "out.csv"})
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	_, err = NewApp(logs, config, fsys).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, logs.String())
}
