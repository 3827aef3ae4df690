package azure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

func TestBuildRequest_LowercasesModel(t *testing.T) {
	s := New(providers.Config{BaseURL: "https://res.openai.azure.com", APIKey: "az"}, nil)
	in := &providers.ChatCompletionRequest{Model: "Test-Model"}

	out, err := s.BuildRequest(in, "req")
	require.NoError(t, err)
	assert.Equal(t, "test-model", out.Model)
	assert.Equal(t, "Test-Model", in.Model)
}

func TestBuildRequest_FallsBackToConfigModel(t *testing.T) {
	s := New(providers.Config{BaseURL: "https://res.openai.azure.com", APIKey: "az", Model: "GPT-4o"}, nil)
	out, err := s.BuildRequest(&providers.ChatCompletionRequest{}, "req")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", out.Model)
}

func TestBuildRequest_MissingModel(t *testing.T) {
	s := New(providers.Config{BaseURL: "https://res.openai.azure.com", APIKey: "az"}, nil)
	_, err := s.BuildRequest(&providers.ChatCompletionRequest{}, "req")
	assert.True(t, llm.IsKind(err, llm.ErrConfiguration))
}

func TestBuildHeaders_APIKey(t *testing.T) {
	h := New(providers.Config{BaseURL: "https://res.openai.azure.com", APIKey: "az"}, nil).BuildHeaders()
	assert.Equal(t, "az", h.Get("api-key"))
	assert.Empty(t, h.Get("Authorization"))
}

func TestMatch(t *testing.T) {
	assert.True(t, Match(providers.Config{BaseURL: "https://res.openai.azure.com"}))
	assert.True(t, Match(providers.Config{Name: "azure", BaseURL: "http://127.0.0.1:9000"}))
	assert.False(t, Match(providers.Config{BaseURL: "https://api.openai.com/v1"}))
	assert.True(t, Match(providers.Config{Name: "openai", BaseURL: "https://res.openai.azure.com"}))
	assert.True(t, Match(providers.Config{Name: "my-azure", BaseURL: "https://res.cognitiveservices.azure.com"}))
}

func TestClient_DeploymentEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/test-model/chat/completions", r.URL.Path)
		assert.Equal(t, "2025-01-01-preview", r.URL.Query().Get("api-version"))
		assert.Equal(t, "az", r.Header.Get("api-key"))

		var body providers.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		_, _ = io.WriteString(w, `{"id":"a","model":"test-model","choices":[]}`)
	}))
	t.Cleanup(server.Close)

	s := New(providers.Config{Name: "azure", BaseURL: server.URL, APIKey: "az", APIVersion: "2025-01-01-preview"}, zaptest.NewLogger(t))
	tr, err := s.BuildClient()
	require.NoError(t, err)

	req, err := s.BuildRequest(&providers.ChatCompletionRequest{Model: "Test-Model"}, "req")
	require.NoError(t, err)
	_, err = tr.CreateChatCompletion(context.Background(), req)
	require.NoError(t, err)
}
