package canvas

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAllFollowsLinkHeader(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer canvas-token", r.Header.Get("Authorization"))

		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/items?page=2>; rel="next", <%s/items?page=1>; rel="first"`, server.URL, server.URL))
			fmt.Fprint(w, `[{"id":1},{"id":2}]`)
		case "2":
			w.Header().Set("Link", fmt.Sprintf(`<%s/items?page=1>; rel="prev"`, server.URL))
			fmt.Fprint(w, `[{"id":3}]`)
		default:
			t.Errorf("Unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	pager := NewPager()
	records, err := pager.FetchAll(context.Background(), server.URL+"/items", "canvas-token")
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.JSONEq(t, `{"id":1}`, string(records[0]))
	assert.JSONEq(t, `{"id":3}`, string(records[2]))
}

func TestFetchAllStopsOnRepeatedNextURL(t *testing.T) {
	requests := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// malformed server: next always points back at the same URL
		w.Header().Set("Link", fmt.Sprintf(`<%s/items>; rel="next"`, server.URL))
		fmt.Fprint(w, `[{"id":1}]`)
	}))
	defer server.Close()

	pager := NewPager()
	records, err := pager.FetchAll(context.Background(), server.URL+"/items", "tok")
	require.NoError(t, err)

	assert.Equal(t, 1, requests)
	assert.Len(t, records, 1)
}

func TestFetchAllStopsOnNextURLCycle(t *testing.T) {
	requests := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// malformed server: pages link to each other in a two-node cycle
		switch r.URL.Query().Get("page") {
		case "", "a":
			w.Header().Set("Link", fmt.Sprintf(`<%s/items?page=b>; rel="next"`, server.URL))
			fmt.Fprint(w, `[{"id":1}]`)
		case "b":
			w.Header().Set("Link", fmt.Sprintf(`<%s/items?page=a>; rel="next"`, server.URL))
			fmt.Fprint(w, `[{"id":2}]`)
		}
	}))
	defer server.Close()

	pager := NewPager()
	records, err := pager.FetchAll(context.Background(), server.URL+"/items?page=a", "tok")
	require.NoError(t, err)

	assert.Equal(t, 2, requests)
	assert.Len(t, records, 2)
}

func TestFetchAllFlattensSingleObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":7,"name":"Essay"}`)
	}))
	defer server.Close()

	pager := NewPager()
	records, err := pager.FetchAll(context.Background(), server.URL+"/assignment", "tok")
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.JSONEq(t, `{"id":7,"name":"Essay"}`, string(records[0]))
}

func TestFetchAllUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errors":[{"message":"Invalid access token."}]}`)
	}))
	defer server.Close()

	pager := NewPager()
	_, err := pager.FetchAll(context.Background(), server.URL+"/courses", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "Invalid access token.")
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "next present",
			header:   `<https://canvas.test/api/v1/courses?page=2>; rel="next", <https://canvas.test/api/v1/courses?page=9>; rel="last"`,
			expected: "https://canvas.test/api/v1/courses?page=2",
		},
		{
			name:     "no next relation",
			header:   `<https://canvas.test/api/v1/courses?page=1>; rel="first"`,
			expected: "",
		},
		{
			name:     "empty header",
			header:   "",
			expected: "",
		},
		{
			name:     "malformed brackets",
			header:   `https://canvas.test/api/v1/courses?page=2; rel="next"`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextLink(tt.header); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
