package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConf(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("defaults:\n  - llm: extractive\nretriever:\n  top_k: 2\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "llm"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm", "extractive.yaml"), []byte("type: extractive\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm", "ollama.yaml"), []byte("type: ollama\nllm_args:\n  model: llama3\n"), 0o644))
	return dir
}

func TestConfigCommandSelectsGroup(t *testing.T) {
	conf := writeConf(t)
	out, err := execute(t, "--config-dir", conf, "config", "llm=ollama", "retriever.top_k=5")
	require.NoError(t, err)
	assert.Contains(t, out, "type: ollama")
	assert.Contains(t, out, "top_k: 5")
}

func TestConfigCommandResolved(t *testing.T) {
	conf := writeConf(t)
	out, err := execute(t, "--config-dir", conf, "config", "--resolved")
	require.NoError(t, err)
	assert.Contains(t, out, "vectorstore_write_mode: no_overwrite")
	assert.Contains(t, out, "type: extractive")
}

func TestConfigCommandBadOverride(t *testing.T) {
	conf := writeConf(t)
	_, err := execute(t, "--config-dir", conf, "config", "not-an-override")
	assert.Error(t, err)
}

func TestEmbedThenChat(t *testing.T) {
	conf := writeConf(t)
	src, err := filepath.Abs(filepath.Join("..", "..", "..", "testdata", "src_doc"))
	require.NoError(t, err)
	work := t.TempDir()
	overrides := []string{
		"source_document_folder=" + src,
		"internal_data_folder=" + filepath.Join(work, "idata"),
		"output_root=" + filepath.Join(work, "outputs"),
		"logging.file=-",
		"logging.level=warn",
	}

	out, err := execute(t, append([]string{"--config-dir", conf, "embed"}, overrides...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "chunks embedded: 1")
	assert.NotContains(t, out, "report:")

	out, err = execute(t, append([]string{"--config-dir", conf, "chat", "-q", "How tall is the Eiffel Tower?"}, overrides...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Q: How tall is the Eiffel Tower?")
	assert.Contains(t, out, "test.txt [NA]")
}

func TestShippedConfigComposes(t *testing.T) {
	conf := filepath.Join("..", "..", "..", "conf")
	for _, args := range [][]string{
		{},
		{"llm=gpt-4o-mini", "embedding=openai_qdrant"},
		{"llm=llama3", "embedding=ollama_weaviate"},
	} {
		out, err := execute(t, append([]string{"--config-dir", conf, "config", "--resolved"}, args...)...)
		require.NoError(t, err, "%v", args)
		assert.Contains(t, out, "questions:")
	}
}
