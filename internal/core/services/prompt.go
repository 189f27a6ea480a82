package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// DefaultAnswerPreamble is the fallback instruction block when no PromptStore is configured.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
const DefaultAnswerPreamble = `You are a Technical Support Engineer.
Your goal is to provide high-precision answers based ONLY on the provided context.
<instructions>
STRICT RULES:
1. Use ONLY information from the Context. If missing, say exactly: "` + domain.NotFoundSentinel + `"
2. Cite sources in parentheses: (Source: filename, p. XX).
3. DE-DUPLICATION: If multiple sources provide the same fact, combine them into one sentence and list all sources at the end, e.g., (Source: file1, p. 10; file2, p. 55).
4. Formatting: Use ` + "`code blocks`" + ` for Code/SQL/parameters. Do NOT use LaTeX for version numbers or simple integers.
</instructions>`

// contextSeparator divides source blocks in the rendered context.
const contextSeparator = "\n\n---\n\n"

// SourceLabel names the i-th (1-based) source in the context, e.g. Ref_1_manual.pdf_p12.
func SourceLabel(i int, c domain.Candidate) string {
	return fmt.Sprintf("Ref_%d_%s_p%d", i, c.Filename, c.PageNumber)
}

// BuildContext renders sources as labelled blocks in rank order.
func BuildContext(sources []domain.Candidate) string {
	parts := make([]string, len(sources))
	for i, c := range sources {
		parts[i] = fmt.Sprintf("SOURCE: %s\nCONTENT: %s", SourceLabel(i+1, c), c.Content)
	}
	return strings.Join(parts, contextSeparator)
}

// BuildPrompt assembles the full generation prompt.
func BuildPrompt(preamble, question string, sources []domain.Candidate) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(preamble))
	b.WriteString("\n<context>\n")
	b.WriteString(BuildContext(sources))
	b.WriteString("\n</context>\n\n<question>\n")
	b.WriteString(question)
	b.WriteString("\n</question>\n\nAnswer (with citations):\n")
	return b.String()
}

// loadPreamble returns the stored answer preamble, or the default.
func loadPreamble(store driven.PromptStore) string {
	if store == nil {
		return DefaultAnswerPreamble
	}
	p, err := store.Load(driven.PromptAnswerSystem)
	if err != nil || strings.TrimSpace(p) == "" {
		return DefaultAnswerPreamble
	}
	return p
}
