package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspacex/workspacex/internal/artifact"
)

func TestPrintArtifactResults_ShowsTitleMetadata(t *testing.T) {
	buf := new(bytes.Buffer)
	c := &cobra.Command{}
	c.SetOut(buf)

	results := []*artifact.HybridSearchResult{
		{Artifact: artifact.New("doc1", artifact.TypeText, "content", map[string]any{"title": "Chapter One"}), Score: 0.9},
		{Artifact: artifact.New("doc2", artifact.TypeText, "content", nil), Score: 0.5},
	}
	require.NoError(t, printArtifactResults(c, results, "text"))

	out := buf.String()
	assert.Contains(t, out, "1. [0.900] doc1")
	assert.Contains(t, out, "   Chapter One\n")
	assert.Contains(t, out, "2. [0.500] doc2")
	assert.NotContains(t, out, "   \n", "artifacts without a title get no detail line")
}

func TestPrintChunkResults_Empty(t *testing.T) {
	buf := new(bytes.Buffer)
	c := &cobra.Command{}
	c.SetOut(buf)

	require.NoError(t, printChunkResults(c, nil, "text"))
	assert.Equal(t, "No results.\n", buf.String())
}
