package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

func TestSourceLabel(t *testing.T) {
	c := domain.Candidate{Filename: "pg_admin.pdf", PageNumber: 12}

	assert.Equal(t, "Ref_1_pg_admin.pdf_p12", SourceLabel(1, c))
}

func TestBuildContext(t *testing.T) {
	sources := []domain.Candidate{
		{Content: "Set wal_level to logical.", Filename: "a.pdf", PageNumber: 3},
		{Content: "Restart the server.", Filename: "b.pdf", PageNumber: 7},
	}

	got := BuildContext(sources)

	want := "SOURCE: Ref_1_a.pdf_p3\nCONTENT: Set wal_level to logical." +
		"\n\n---\n\n" +
		"SOURCE: Ref_2_b.pdf_p7\nCONTENT: Restart the server."
	assert.Equal(t, want, got)
	assert.Empty(t, BuildContext(nil))
}

func TestBuildPrompt(t *testing.T) {
	sources := []domain.Candidate{{Content: "Use pg_dump.", Filename: "backup.pdf", PageNumber: 2}}

	got := BuildPrompt("  Answer carefully.\n", "How do I back up?", sources)

	assert.True(t, strings.HasPrefix(got, "Answer carefully.\n<context>\n"))
	assert.Contains(t, got, "SOURCE: Ref_1_backup.pdf_p2\nCONTENT: Use pg_dump.\n</context>")
	assert.Contains(t, got, "<question>\nHow do I back up?\n</question>")
	assert.True(t, strings.HasSuffix(got, "Answer (with citations):\n"))
}

func TestDefaultAnswerPreamble(t *testing.T) {
	assert.Contains(t, DefaultAnswerPreamble, domain.NotFoundSentinel)
	assert.Contains(t, DefaultAnswerPreamble, "(Source: filename, p. XX)")
	assert.Contains(t, DefaultAnswerPreamble, "(Source: file1, p. 10; file2, p. 55)")
	assert.Contains(t, DefaultAnswerPreamble, "LaTeX")
}

func TestLoadPreamble(t *testing.T) {
	tests := []struct {
		name  string
		store driven.PromptStore
		want  string
	}{
		{"nil store", nil, DefaultAnswerPreamble},
		{"missing prompt", &mockPromptStore{}, DefaultAnswerPreamble},
		{"blank prompt", &mockPromptStore{prompts: map[string]string{driven.PromptAnswerSystem: " \n"}}, DefaultAnswerPreamble},
		{"custom prompt", &mockPromptStore{prompts: map[string]string{driven.PromptAnswerSystem: "Be brief."}}, "Be brief."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, loadPreamble(tt.store))
		})
	}
}
