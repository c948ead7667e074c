package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/govextract/pkg/extractor"
	"github.com/jmylchreest/govextract/pkg/govextract"
	"github.com/jmylchreest/govextract/pkg/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the schema, format instructions or prompt for a kind",
	Long: `Show what the model is asked to produce.

  --show instructions   the format instructions embedded in the prompt (default)
  --show json-schema    the JSON Schema sent to backends that support it
  --show prompt         the full prompt for --text`,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	flags := schemaCmd.Flags()
	flags.StringP("kind", "k", string(govextract.KindCost), "builtin schema: cost, organisation")
	flags.StringP("schema-file", "s", "", "custom schema file instead of --kind")
	flags.String("show", "instructions", "what to print: instructions, json-schema, prompt")
	flags.StringP("text", "t", "", "input text for --show prompt")
}

func runSchema(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	var s *schema.Schema
	if path, _ := flags.GetString("schema-file"); path != "" {
		var err error
		if s, err = schema.FromFile(path); err != nil {
			return fmt.Errorf("failed to load schema: %w", err)
		}
	} else {
		kindStr, _ := flags.GetString("kind")
		kind, err := govextract.ParseKind(kindStr)
		if err != nil {
			return err
		}
		if s, err = govextract.SchemaFor(kind); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	show, _ := flags.GetString("show")
	switch show {
	case "instructions":
		fmt.Fprintln(out, s.FormatInstructions())
	case "json-schema":
		data, err := json.MarshalIndent(s.JSONSchema(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "prompt":
		text, _ := flags.GetString("text")
		prompt, err := extractor.CompilePrompt(text, s.FormatInstructions())
		if err != nil {
			return err
		}
		fmt.Fprint(out, prompt)
	default:
		return fmt.Errorf("unknown --show value %q (use instructions, json-schema or prompt)", show)
	}
	return nil
}
