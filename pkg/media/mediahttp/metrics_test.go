package mediahttp_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediakit/pkg/media/mediahttp"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	srv, _ := newServer(t, nil, mediahttp.WithMetrics(mediahttp.NewMetrics(reg)))

	uploadOne(t, srv.URL, `App%5CModels%5CPost/1`, "a.txt", "hello", nil)
	uploadOne(t, srv.URL, "post/2", "b.txt", "world!", nil)
	resp, _ := do(t, http.MethodGet, srv.URL+"/media/unknown", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "mediakit_http_requests_total")
	assert.Contains(t, names, "mediakit_http_request_duration_seconds")
	assert.Contains(t, names, "mediakit_uploaded_bytes_total")

	const want = `
# HELP mediakit_uploaded_bytes_total Bytes written to blob storage by uploads, by owner type.
# TYPE mediakit_uploaded_bytes_total counter
mediakit_uploaded_bytes_total{owner_type="post"} 11
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "mediakit_uploaded_bytes_total"))

	const requests = `
# HELP mediakit_http_requests_total Media API requests by route and status.
# TYPE mediakit_http_requests_total counter
mediakit_http_requests_total{method="GET",route="/media/{id}",status="404"} 1
mediakit_http_requests_total{method="POST",route="/{ownerType}/{ownerID}/media",status="201"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(requests), "mediakit_http_requests_total"))
}
