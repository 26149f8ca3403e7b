package toxicity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustlens/evidence-verifier/internal/models"
)

func TestBanding_Tone(t *testing.T) {
	b := DefaultBanding()

	assert.Equal(t, models.ToneToxic, b.Tone(0.95))
	assert.Equal(t, models.ToneToxic, b.Tone(0.7))
	assert.Equal(t, models.ToneMild, b.Tone(0.69))
	assert.Equal(t, models.ToneMild, b.Tone(0.3))
	assert.Equal(t, models.ToneNeutral, b.Tone(0.29))
	assert.Equal(t, models.ToneNeutral, b.Tone(0))

	custom := Banding{Red: 0.9, Yellow: 0.5}
	assert.Equal(t, models.ToneMild, custom.Tone(0.8))
}

func TestBanding_Score(t *testing.T) {
	score := DefaultBanding().Score(map[string]float64{"toxic": 0.42, "insult": 0.81})

	assert.InDelta(t, 0.81, score.MaxProb, 1e-9)
	assert.Equal(t, models.ToneToxic, score.Tone)

	empty := DefaultBanding().Score(nil)
	assert.Equal(t, models.ToneNeutral, empty.Tone)
	assert.NotNil(t, empty.Labels)
}

func TestClient_Score(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"you are great", "you idiot", "meh"}, req.Texts)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"labels": ["toxic", "insult"],
			"probabilities": [[0.01, 0.02], [0.91, 0.88], [0.35, 0.1]],
			"detailed": [
				{"scores": {"toxic": 0.01, "insult": 0.02}},
				{"scores": {"toxic": 0.91, "insult": 0.88}}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, DefaultBanding())
	scores, err := client.Score(context.Background(), []string{"you are great", "you idiot", "meh"})

	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, models.ToneNeutral, scores[0].Tone)
	assert.Equal(t, models.ToneToxic, scores[1].Tone)
	assert.Equal(t, models.ToneMild, scores[2].Tone)
	assert.InDelta(t, 0.35, scores[2].Labels["toxic"], 1e-9)
}

func TestClient_Score_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second, DefaultBanding()).Score(context.Background(), []string{"x"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_Disabled(t *testing.T) {
	client := NewClient("", 0, DefaultBanding())

	assert.False(t, client.IsEnabled())
	_, err := client.Score(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestClient_Score_NoTexts(t *testing.T) {
	scores, err := NewClient("http://127.0.0.1:1", time.Second, DefaultBanding()).Score(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, scores)
}
