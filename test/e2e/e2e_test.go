//go:build e2e

package e2e

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestResult struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
}

type documentList struct {
	Documents []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		ChunkCount int    `json:"chunk_count"`
	} `json:"documents"`
	Total int `json:"total"`
}

type statsResult struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

func TestDocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	text := strings.Repeat("Parchment stores document chunks with their embeddings. ", 20)

	resp, err := env.Upload("/api/v1/ingest", "handbook.pdf", []byte(text))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var ingested ingestResult
	require.NoError(t, DecodeEnvelope(resp, &ingested))
	assert.Equal(t, "handbook.pdf", ingested.Filename)
	assert.NotEmpty(t, ingested.DocumentID)
	assert.Greater(t, ingested.ChunksCreated, 1)

	var list documentList
	status, err := env.GetJSON("/api/v1/documents", &list)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, ingested.DocumentID, list.Documents[0].ID)
	assert.Equal(t, ingested.ChunksCreated, list.Documents[0].ChunkCount)

	var stats statsResult
	status, err = env.GetJSON("/api/v1/stats", &stats)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, ingested.ChunksCreated, stats.Chunks)

	resp, err = env.Delete("/api/v1/documents/" + ingested.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	status, err = env.GetJSON("/api/v1/stats", &stats)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.Chunks)
}

func TestIngestRejectsNonPDF(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Upload("/api/v1/ingest", "notes.txt", []byte("plain text"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatStreamsAnswerWithSources(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	text := strings.Repeat("The deployment runbook lives in the platform handbook. ", 20)
	resp, err := env.Upload("/api/v1/ingest", "runbook.pdf", []byte(text))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = env.PostJSON("/api/v1/chat", map[string]interface{}{
		"message": "Where is the deployment runbook?",
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []map[string]interface{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	require.GreaterOrEqual(t, len(events), 3)

	require.Equal(t, "sources", events[0]["type"])
	sources, ok := events[0]["data"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, sources, "runbook.pdf")

	var answer strings.Builder
	for _, event := range events[1 : len(events)-1] {
		require.Equal(t, "content", event["type"])
		answer.WriteString(event["data"].(string))
	}
	assert.Equal(t, "The answer is 42.", answer.String())

	last := events[len(events)-1]
	assert.Equal(t, "done", last["type"])
	_, hasData := last["data"]
	assert.False(t, hasData)
}

func TestChatWithEmptyStoreReturnsNoSources(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.PostJSON("/api/v1/chat", map[string]interface{}{
		"message": "Anything indexed yet?",
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	var firstEvent map[string]interface{}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &firstEvent))
			break
		}
	}
	require.NotNil(t, firstEvent)
	require.Equal(t, "sources", firstEvent["type"])
	sources, ok := firstEvent["data"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, sources)
}
