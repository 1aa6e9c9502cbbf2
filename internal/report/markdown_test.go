package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendTurnWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "chat_session.md")
	w := New(path, "llm:\n  type: extractive\n")
	w.now = func() time.Time { return time.Date(2024, 3, 4, 9, 5, 0, 0, time.UTC) }

	require.NoError(t, w.AppendTurn("What?", "That.\n", []Source{{Document: "a.pdf", Pages: []string{"1", "2"}}}))
	require.NoError(t, w.AppendTurn("Why?", "Because.", nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "# LLM Chat Session with ragbench\n\n" +
		"<p align=\"center\">Mon 04-Mar-2024 09:05 UTC</p>\n\n" +
		"## Experiment settings\n\n" +
		"```yaml\nllm:\n  type: extractive\n```\n\n" +
		"## Chat\n\n" +
		"Q: What?\n\nA: That.\n\n" +
		"Source document: a.pdf, Pages used: [1, 2]\n\n" +
		"Q: Why?\n\nA: Because.\n\n"
	assert.Equal(t, want, string(data))
}

func TestAppendTurnKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.md")
	require.NoError(t, os.WriteFile(path, []byte("existing\n"), 0o644))

	require.NoError(t, New(path, "").AppendTurn("Q1", "A1", nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing\nQ: Q1\n\nA: A1\n\n", string(data))
}
