package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/ai"
	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/generate"
	"github.com/jonesrussell/gopost/internal/logger"
)

func testRequest() generate.CaptionRequest {
	return generate.CaptionRequest{
		Client: &domain.Client{
			ID:           "client-1",
			BusinessName: "Greenline Landscaping",
			Industry:     "landscaping",
			City:         "Brewster",
			State:        "NY",
			BrandVoice:   "friendly and local",
		},
		Content: &domain.Content{
			ID:          "content-1",
			Topic:       "spring cleanup special",
			ContentType: domain.TypeOffer,
			Platforms:   []string{"facebook", "instagram"},
		},
	}
}

func chatReply(t *testing.T, content string) []byte {
	t.Helper()
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	return data
}

func TestClient_GenerateCaption(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write(chatReply(t, `{"caption":"Fresh cuts, clean edges.","hashtags":["landscaping"],"cta":"Book today!","platform_captions":{"instagram":"Spring is here"}}`))
	}))
	defer server.Close()

	client, err := ai.NewClient(server.URL, "sk-test", "openai/gpt-4-turbo-preview", "", 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	result, err := client.GenerateCaption(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "Fresh cuts, clean edges.", result.Caption)
	assert.Equal(t, []string{"landscaping"}, result.Hashtags)
	assert.Equal(t, "Book today!", result.CTA)
	assert.Equal(t, "Spring is here", result.Variants["instagram"])

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "openai/gpt-4-turbo-preview", gotBody["model"])

	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "Greenline Landscaping")
	assert.Contains(t, system, "Brewster, NY")
	user := messages[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, "spring cleanup special")
}

func TestClient_GenerateCaption_FeedbackInPrompt(t *testing.T) {
	var userContent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		userContent = body.Messages[1].Content

		w.Write(chatReply(t, `{"caption":"Take two.","hashtags":[],"cta":""}`))
	}))
	defer server.Close()

	client, err := ai.NewClient(server.URL, "sk-test", "test-model", "", 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	req := testRequest()
	req.Feedback = "too salesy"
	_, err = client.GenerateCaption(context.Background(), req)
	require.NoError(t, err)

	assert.Contains(t, userContent, "too salesy")
}

func TestClient_GenerateCaption_CodeFencedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(chatReply(t, "```json\n{\"caption\":\"Fenced.\",\"hashtags\":[],\"cta\":\"\"}\n```"))
	}))
	defer server.Close()

	client, err := ai.NewClient(server.URL, "sk-test", "test-model", "", 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	result, err := client.GenerateCaption(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Fenced.", result.Caption)
}

func TestClient_GenerateCaption_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"choices":[]}`))
			},
		},
		{
			name: "missing caption",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"hashtags\":[]}"}}]}`))
			},
		},
		{
			name: "non-json reply",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"sorry, I cannot help"}}]}`))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			client, err := ai.NewClient(server.URL, "sk-test", "test-model", "", 5*time.Second, logger.NewNopLogger())
			require.NoError(t, err)

			_, err = client.GenerateCaption(context.Background(), testRequest())
			require.Error(t, err)
		})
	}
}

func TestClient_GenerateImage(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"url":"https://cdn.example.com/img-1.png"}]}`))
	}))
	defer server.Close()

	client, err := ai.NewClient(server.URL, "sk-test", "test-model", "openai/dall-e-3", 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	req := generate.ImageRequest{Client: testRequest().Client, Content: testRequest().Content}
	url, err := client.GenerateImage(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/img-1.png", url)
	assert.Equal(t, "openai/dall-e-3", gotBody["model"])
	assert.Contains(t, gotBody["prompt"], "spring cleanup special")
}

func TestClient_GenerateImage_NoModelConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected without an image model")
	}))
	defer server.Close()

	client, err := ai.NewClient(server.URL, "sk-test", "test-model", "", 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	url, err := client.GenerateImage(context.Background(), generate.ImageRequest{Client: testRequest().Client, Content: testRequest().Content})
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestClient_GenerateImage_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client, err := ai.NewClient(server.URL, "sk-test", "test-model", "openai/dall-e-3", 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = client.GenerateImage(context.Background(), generate.ImageRequest{Client: testRequest().Client, Content: testRequest().Content})
	require.Error(t, err)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := ai.NewClient("", "", "model", "", time.Second, logger.NewNopLogger())
	require.Error(t, err, "missing api key")

	_, err = ai.NewClient("", "key", "", "", time.Second, logger.NewNopLogger())
	require.Error(t, err, "missing model")
}
