package ident

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// rewriteTransport sends every request to the test server regardless
// of the host named in the URL, so short-link hosts can be simulated.
type rewriteTransport struct {
	server *httptest.Server
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target, err := url.Parse(t.server.URL)
	if err != nil {
		return nil, err
	}
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	return t.server.Client().Transport.RoundTrip(req)
}

// TestExtractDirectMatches checks URLs and bare tokens that carry the
// identifier verbatim.
func TestExtractDirectMatches(t *testing.T) {
	extractor := NewExtractor(nil)
	cases := []struct {
		input string
		want  string
	}{
		{"BV1xx411c7mD", "BV1xx411c7mD"},
		{"  BV1xx411c7mD  ", "BV1xx411c7mD"},
		{"https://www.bilibili.com/video/BV1xx411c7mD", "BV1xx411c7mD"},
		{"https://www.bilibili.com/video/BV1xx411c7mD?p=2&t=30", "BV1xx411c7mD"},
		{"watch this https://bilibili.com/video/BV1GJ411x7h7 now", "BV1GJ411x7h7"},
	}
	for _, tc := range cases {
		got, err := extractor.Extract(context.Background(), tc.input)
		require.NoError(t, err, "input %q", tc.input)
		require.Equal(t, tc.want, got, "input %q", tc.input)
	}
}

// TestExtractRejectsNonIdentifiers checks garbage input maps to the
// sentinel error.
func TestExtractRejectsNonIdentifiers(t *testing.T) {
	extractor := NewExtractor(nil)
	for _, input := range []string{"", "hello", "BV123", "av170001", "https://example.com/video"} {
		_, err := extractor.Extract(context.Background(), input)
		require.ErrorIs(t, err, ErrIdentifierNotFound, "input %q", input)
	}
}

// TestExtractResolvesShortLink checks redirect following via HEAD.
func TestExtractResolvesShortLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xyz":
			http.Redirect(w, r, "/video/BV1GJ411x7h7", http.StatusFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	client := &http.Client{Transport: rewriteTransport{server: server}}
	extractor := NewExtractorForTests(client, nil)

	got, err := extractor.Extract(context.Background(), "https://b23.tv/xyz")
	require.NoError(t, err)
	require.Equal(t, "BV1GJ411x7h7", got)
}

// TestExtractShortLinkFallsBackToGet checks hosts that reject HEAD
// still resolve through the GET retry.
func TestExtractShortLinkFallsBackToGet(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path == "/xyz" {
			http.Redirect(w, r, "/video/BV1GJ411x7h7", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: rewriteTransport{server: server}}
	extractor := NewExtractorForTests(client, nil)

	got, err := extractor.Extract(context.Background(), "b23.tv/xyz")
	require.NoError(t, err)
	require.Equal(t, "BV1GJ411x7h7", got)
	require.Equal(t, http.MethodHead, methods[0])
	require.Contains(t, methods, http.MethodGet)
}

// TestExtractShortLinkNetworkFailure checks resolution errors degrade
// to the not-found sentinel instead of surfacing transport details.
func TestExtractShortLinkNetworkFailure(t *testing.T) {
	client := &http.Client{Transport: failingTransport{}}
	extractor := NewExtractorForTests(client, nil)

	_, err := extractor.Extract(context.Background(), "https://bili2233.cn/abc")
	require.ErrorIs(t, err, ErrIdentifierNotFound)
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

// TestIsShortLinkHostMatching checks known hosts with and without scheme.
func TestIsShortLinkHostMatching(t *testing.T) {
	require.True(t, isShortLink("https://b23.tv/abc"))
	require.True(t, isShortLink("b23.tv/abc"))
	require.True(t, isShortLink("https://www.bili2233.cn/abc"))
	require.False(t, isShortLink("https://bilibili.com/video/x"))
	require.False(t, isShortLink("https://notb23.tv/abc"))
}
