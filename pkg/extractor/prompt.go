package extractor

import (
	"fmt"
	"strings"
)

// Block sentinels. Neither the format instructions nor the input text may
// contain any of them.
const (
	FormatStart = "<<<GOVEXTRACT:FORMAT>>>"
	FormatEnd   = "<<<GOVEXTRACT:END-FORMAT>>>"
	InputStart  = "<<<GOVEXTRACT:INPUT>>>"
	InputEnd    = "<<<GOVEXTRACT:END-INPUT>>>"
)

var sentinels = []string{FormatStart, FormatEnd, InputStart, InputEnd}

const promptPreamble = `You are an AI assistant that extracts structured data from service information pages of the Flemish government.

Read the text between ` + InputStart + ` and ` + InputEnd + ` and extract the requested fields.
The output format is described between ` + FormatStart + ` and ` + FormatEnd + `.`

const promptClosing = `Respond with the JSON object only. Do not add explanations or any other text.`

// CompilePrompt fills the fixed extraction template. The result depends only
// on its arguments, so the same input always yields the same bytes.
func CompilePrompt(inputText, formatInstructions string) (string, error) {
	if s := containedSentinel(formatInstructions); s != "" {
		return "", &Error{Kind: KindCompilation, Err: fmt.Errorf("format instructions contain delimiter %s", s)}
	}
	if s := containedSentinel(inputText); s != "" {
		return "", &Error{Kind: KindCompilation, Err: fmt.Errorf("input text contains delimiter %s", s)}
	}

	var prompt strings.Builder
	prompt.Grow(len(promptPreamble) + len(formatInstructions) + len(inputText) + 256)

	prompt.WriteString(promptPreamble)
	prompt.WriteString("\n\n")

	prompt.WriteString(FormatStart)
	prompt.WriteString("\n")
	prompt.WriteString(formatInstructions)
	prompt.WriteString("\n")
	prompt.WriteString(FormatEnd)
	prompt.WriteString("\n\n")

	prompt.WriteString(InputStart)
	prompt.WriteString("\n")
	prompt.WriteString(inputText)
	prompt.WriteString("\n")
	prompt.WriteString(InputEnd)
	prompt.WriteString("\n\n")

	prompt.WriteString(promptClosing)
	prompt.WriteString("\n")

	return prompt.String(), nil
}

func containedSentinel(s string) string {
	for _, sentinel := range sentinels {
		if strings.Contains(s, sentinel) {
			return sentinel
		}
	}
	return ""
}
