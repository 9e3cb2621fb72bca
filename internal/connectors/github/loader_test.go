package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// newTestClient builds a Client against a local test server, with the
// proactive throttle disabled so tests run at full speed.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ghc := gh.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	ghc.BaseURL = base

	client := &Client{gh: ghc, limiter: NewRateLimiter()}
	client.limiter.bucket = rate.NewLimiter(rate.Inf, 1)
	return client
}

func blobJSON(text string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	return fmt.Sprintf(`{"sha":"x","encoding":"base64","content":"%s"}`, encoded)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		target string
		owner  string
		repo   string
		ref    string
	}{
		{"acme/widgets", "acme", "widgets", ""},
		{"acme/widgets@v1.2.0", "acme", "widgets", "v1.2.0"},
		{"github.com/acme/widgets", "acme", "widgets", ""},
		{"https://github.com/acme/widgets", "acme", "widgets", ""},
		{"https://github.com/acme/widgets/", "acme", "widgets", ""},
		{"github.com/acme/widgets@main", "acme", "widgets", "main"},
		{"  acme/widgets  ", "acme", "widgets", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			owner, repo, ref, err := parseTarget(tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
			assert.Equal(t, tt.ref, ref)
		})
	}
}

func TestParseTargetInvalid(t *testing.T) {
	invalid := []string{
		"",
		"widgets",
		"acme/widgets/docs",
		"acme /widgets",
		"acme/widgets@",
		"/widgets",
		"acme/",
	}

	for _, target := range invalid {
		t.Run(fmt.Sprintf("%q", target), func(t *testing.T) {
			_, _, _, err := parseTarget(target)
			assert.ErrorIs(t, err, ErrInvalidTarget)
		})
	}
}

func TestLoadRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"widgets","owner":{"login":"acme"},"default_branch":"main"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"sha":"t1","tree":[
			{"path":"README.md","type":"blob","sha":"b1","size":20},
			{"path":"docs","type":"tree","sha":"t2"},
			{"path":"docs/guide.md","type":"blob","sha":"b2","size":30},
			{"path":"main.go","type":"blob","sha":"b3","size":40},
			{"path":"huge.md","type":"blob","sha":"b4","size":2097152}
		]}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/blobs/b1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, blobJSON("# Widgets\n\nA readme."))
	})
	mux.HandleFunc("/repos/acme/widgets/git/blobs/b2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, blobJSON("User guide."))
	})

	loader := NewLoader(newTestClient(t, mux))
	docs, err := loader.Load(context.Background(), "acme/widgets")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "github:acme/widgets/README.md", docs[0].SourceID)
	assert.Equal(t, "README.md", docs[0].Title)
	assert.Equal(t, "https://github.com/acme/widgets/blob/main/README.md", docs[0].URI)
	assert.Equal(t, "# Widgets\n\nA readme.", docs[0].Text)

	assert.Equal(t, "github:acme/widgets/docs/guide.md", docs[1].SourceID)
	assert.Equal(t, "guide.md", docs[1].Title)
	assert.Equal(t, "User guide.", docs[1].Text)
}

func TestLoadExplicitRef(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		t.Error("repository metadata should not be fetched when a ref is given")
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees/dev", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"t1","tree":[{"path":"notes.txt","type":"blob","sha":"b1","size":5}]}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/blobs/b1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, blobJSON("hello"))
	})

	loader := NewLoader(newTestClient(t, mux))
	docs, err := loader.Load(context.Background(), "acme/widgets@dev")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "https://github.com/acme/widgets/blob/dev/notes.txt", docs[0].URI)
}

func TestLoadInvalidTarget(t *testing.T) {
	loader := NewLoader(newTestClient(t, http.NewServeMux()))

	_, err := loader.Load(context.Background(), "/tmp/some/local/path")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestLoadRepoNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	loader := NewLoader(newTestClient(t, mux))
	_, err := loader.Load(context.Background(), "acme/missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLoadSkipsUnreadableBlob(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"t1","tree":[
			{"path":"broken.md","type":"blob","sha":"b1","size":5},
			{"path":"fine.md","type":"blob","sha":"b2","size":5}
		]}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/blobs/b1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/blobs/b2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, blobJSON("fine"))
	})

	loader := NewLoader(newTestClient(t, mux))
	docs, err := loader.Load(context.Background(), "acme/widgets@main")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "fine.md", docs[0].Title)
}

func TestLoadCancelledContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"t1","tree":[{"path":"a.md","type":"blob","sha":"b1","size":5}]}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	loader := NewLoader(newTestClient(t, mux))
	cancel()

	_, err := loader.Load(ctx, "acme/widgets@main")
	assert.True(t, errors.Is(err, context.Canceled))
}
