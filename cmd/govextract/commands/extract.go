package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/govextract/internal/fetcher"
	"github.com/jmylchreest/govextract/internal/logger"
	"github.com/jmylchreest/govextract/internal/output"
	"github.com/jmylchreest/govextract/pkg/extractor"
	"github.com/jmylchreest/govextract/pkg/govextract"
	"github.com/jmylchreest/govextract/pkg/schema"
)

// input is one text to extract from, with a label for logs and metadata.
type input struct {
	source string
	text   string
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract fields from text, files, URLs or stdin",
	Long: `Extract structured fields from service description text.

The text is taken from --text, --file or --url (each can be repeated). When
none is given it is read from stdin. Every input is extracted separately and
written as one record.

Examples:
  govextract extract -k cost -t "Het attest kost 5 euro."
  govextract extract -k organisation -f page1.txt -f page2.txt --format jsonl
  cat page.txt | govextract extract -k organisation
  govextract extract -s fee-schema.yaml -t "Retributie: 35 euro"`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()

	// Inputs
	flags.StringP("kind", "k", string(govextract.KindCost), "builtin schema: cost, organisation")
	flags.StringArrayP("text", "t", nil, "input text (can be repeated)")
	flags.StringArrayP("file", "f", nil, "file with input text (can be repeated)")
	flags.StringArrayP("url", "u", nil, "page to fetch and extract from (can be repeated)")
	flags.StringP("schema-file", "s", "", "custom schema file (JSON or YAML) instead of --kind")
	flags.String("max-input-size", "1MB", "reject inputs larger than this (e.g. 100KB, 1MB)")
	flags.Duration("fetch-timeout", fetcher.DefaultConfig().Timeout, "timeout for --url fetches")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", string(output.FormatJSON), "output format: json, jsonl, yaml")
	flags.Bool("include-metadata", false, "add a _meta entry with provider, model, attempts and usage")
	flags.Bool("include-raw", false, "add the raw model output as _raw")

	_ = viper.BindPFlag("format", flags.Lookup("format"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flags := cmd.Flags()

	maxSizeStr, _ := flags.GetString("max-input-size")
	maxSize, err := humanize.ParseBytes(maxSizeStr)
	if err != nil {
		return fmt.Errorf("invalid max-input-size %q: %w", maxSizeStr, err)
	}

	// Resolve what to extract
	var (
		kind   govextract.Kind
		custom *schema.Schema
	)
	if path, _ := flags.GetString("schema-file"); path != "" {
		custom, err = schema.FromFile(path)
		if err != nil {
			return fmt.Errorf("failed to load schema: %w", err)
		}
		logger.Debug("schema loaded", "name", custom.Name, "fields", len(custom.Fields))
	} else {
		kindStr, _ := flags.GetString("kind")
		if kind, err = govextract.ParseKind(kindStr); err != nil {
			return err
		}
	}

	inputs, err := collectInputs(ctx, cmd, maxSize)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path, _ := flags.GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	writer, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	includeMeta, _ := flags.GetBool("include-metadata")
	includeRaw, _ := flags.GetBool("include-raw")

	var failed int
	for _, in := range inputs {
		logger.Info("extracting",
			"source", in.source,
			"size", humanize.Bytes(uint64(len(in.text))))

		var result *govextract.Result
		if custom != nil {
			result, err = svc.ExtractWithSchema(ctx, custom, in.text)
		} else {
			result, err = svc.Extract(ctx, kind, in.text)
		}
		if err != nil {
			failed++
			reportFailure(in.source, err)
			continue
		}

		var opts []output.RecordOption
		if includeMeta {
			opts = append(opts, output.WithMeta(in.source))
		}
		if includeRaw {
			opts = append(opts, output.WithRaw())
		}
		if err := writer.Write(output.FromResult(result, opts...)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		logger.Debug("extracted", "source", in.source, "attempts", result.Attempts, "duration", result.Duration)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(inputs))
	}
	return nil
}

// collectInputs gathers texts from flags, falling back to stdin.
func collectInputs(ctx context.Context, cmd *cobra.Command, maxSize uint64) ([]input, error) {
	flags := cmd.Flags()
	texts, _ := flags.GetStringArray("text")
	files, _ := flags.GetStringArray("file")
	urls, _ := flags.GetStringArray("url")

	var inputs []input
	for i, t := range texts {
		inputs = append(inputs, input{source: fmt.Sprintf("text[%d]", i), text: t})
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		inputs = append(inputs, input{source: path, text: string(data)})
	}

	if len(urls) > 0 {
		timeout, _ := flags.GetDuration("fetch-timeout")
		f := fetcher.New(fetcher.Config{Timeout: timeout})
		for _, u := range urls {
			page, err := f.Fetch(ctx, u)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
			}
			inputs = append(inputs, input{source: u, text: page.Text})
		}
	}

	if len(inputs) == 0 {
		logInfo("reading input from stdin")
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), int64(maxSize)+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		inputs = append(inputs, input{source: "stdin", text: string(data)})
	}

	for _, in := range inputs {
		if uint64(len(in.text)) > maxSize {
			return nil, fmt.Errorf("input %s is larger than %s", in.source, humanize.Bytes(maxSize))
		}
		if in.text == "" {
			return nil, fmt.Errorf("input %s: %w", in.source, govextract.ErrEmptyInput)
		}
	}
	return inputs, nil
}

func reportFailure(source string, err error) {
	var xerr *extractor.Error
	if !errors.As(err, &xerr) {
		logger.Error("extraction failed", "source", source, "error", err)
		return
	}

	args := []any{"source", source, "kind", xerr.Kind, "attempts", xerr.Attempts, "error", xerr.Err}
	for _, v := range xerr.Violations {
		args = append(args, "violation."+v.Field, string(v.Reason)+": "+v.Message)
	}
	logger.Error("extraction failed", args...)
	if xerr.Raw != "" {
		logger.Debug("last model output", "source", source, "raw", xerr.Raw)
	}
}
