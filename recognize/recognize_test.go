package recognize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0644))
	return path
}

func TestRecognize(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal("secret", r.FormValue("api_token"))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		w.Write([]byte(`{"status":"success","result":{"title":"Never Gonna Give You Up","artist":"Rick Astley"}}`))
	}))
	defer srv.Close()

	r := &HTTPRecognizer{URL: srv.URL, Token: "secret"}
	track, err := r.Recognize(context.Background(), sample(t))
	assert.NoError(err)
	assert.Equal("Rick Astley", track.Artist)
	assert.Equal("Rick Astley Never Gonna Give You Up", track.Query())
	assert.Equal("Rick Astley - Never Gonna Give You Up", track.String())
}

func TestRecognizeNoMatch(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"success","result":null}`))
	}))
	defer srv.Close()

	r := &HTTPRecognizer{URL: srv.URL}
	_, err := r.Recognize(context.Background(), sample(t))
	assert.ErrorIs(err, ErrNoMatch)
}

func TestRecognizeServiceError(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := &HTTPRecognizer{URL: srv.URL}
	_, err := r.Recognize(context.Background(), sample(t))
	assert.Error(err)
	assert.NotErrorIs(err, ErrNoMatch)
}

func TestRecognizeMissingSample(t *testing.T) {
	assert := assert.New(t)
	r := &HTTPRecognizer{URL: "http://127.0.0.1:0"}
	_, err := r.Recognize(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(err)
}
