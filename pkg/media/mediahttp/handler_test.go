package mediahttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediakit/pkg/file"
	"github.com/dmitrymomot/mediakit/pkg/media"
	"github.com/dmitrymomot/mediakit/pkg/media/mediahttp"
	"github.com/dmitrymomot/mediakit/pkg/media/memory"
	"github.com/dmitrymomot/mediakit/pkg/requestid"
)

type envelope struct {
	Data  json.RawMessage          `json:"data"`
	Error *mediahttp.ErrorDetail `json:"error"`
}

type brokenWrites struct {
	media.Blobs
}

func (brokenWrites) Write(context.Context, string, io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

// failWrites rejects writes whose path ends with suffix.
type failWrites struct {
	media.Blobs
	suffix string
}

func (b failWrites) Write(ctx context.Context, path string, r io.Reader) (int64, error) {
	if strings.HasSuffix(path, b.suffix) {
		return 0, errors.New("disk full")
	}
	return b.Blobs.Write(ctx, path, r)
}

func newServer(t *testing.T, wrap func(media.Blobs) media.Blobs, opts ...mediahttp.Option) (*httptest.Server, *media.Store) {
	t.Helper()

	local, err := file.NewLocalStorage(filepath.Join(t.TempDir(), "public"), "/")
	require.NoError(t, err)

	var blobs media.Blobs = local
	if wrap != nil {
		blobs = wrap(local)
	}

	store, err := media.New(blobs, memory.New(), media.DefaultConfig())
	require.NoError(t, err)

	srv := httptest.NewServer(mediahttp.New(store, opts...).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

type part struct {
	name    string
	content string
}

func multipartBody(t *testing.T, files []part, fields map[string]string) (io.Reader, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile("file", f.name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func do(t *testing.T, method, url string, body io.Reader, contentType string) (*http.Response, envelope) {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func uploadOne(t *testing.T, base, owner, name, content string, fields map[string]string) mediahttp.RecordResponse {
	t.Helper()

	body, ct := multipartBody(t, []part{{name, content}}, fields)
	resp, env := do(t, http.MethodPost, base+"/"+owner+"/media", body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec mediahttp.RecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	return rec
}

func TestUpload(t *testing.T) {
	t.Parallel()

	t.Run("single file", func(t *testing.T) {
		t.Parallel()
		srv, _ := newServer(t, nil)

		body, ct := multipartBody(t, []part{{"Summer Photo.txt", "hello world"}}, map[string]string{
			"group":  "gallery",
			"alt":    "Sunset",
			"weight": "3",
		})
		resp, env := do(t, http.MethodPost, srv.URL+"/post/42/media", body, ct)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(requestid.Header))
		assert.Nil(t, env.Error)

		var rec mediahttp.RecordResponse
		require.NoError(t, json.Unmarshal(env.Data, &rec))
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "post", rec.OwnerType)
		assert.Equal(t, "42", rec.OwnerID)
		assert.Equal(t, "post/summer_photo.txt", rec.Filename)
		assert.Equal(t, "/uploads/post/summer_photo.txt", rec.URL)
		assert.Equal(t, "summer_photo.txt", rec.DisplayTitle)
		assert.Equal(t, "gallery", rec.Group)
		assert.Equal(t, "Sunset", rec.Alt)
		assert.Equal(t, 3, rec.Weight)
		assert.True(t, strings.HasPrefix(rec.MIME, "text/plain"))
		require.NotNil(t, rec.Size)
		assert.Equal(t, int64(11), *rec.Size)
	})

	t.Run("several files", func(t *testing.T) {
		t.Parallel()
		srv, _ := newServer(t, nil)

		body, ct := multipartBody(t, []part{{"a.txt", "a"}, {"b.txt", "b"}}, nil)
		resp, env := do(t, http.MethodPost, srv.URL+"/post/42/media", body, ct)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var recs []mediahttp.RecordResponse
		require.NoError(t, json.Unmarshal(env.Data, &recs))
		require.Len(t, recs, 2)
		assert.Equal(t, "post/a.txt", recs[0].Filename)
		assert.Equal(t, 0, recs[0].Weight)
		assert.Equal(t, "post/b.txt", recs[1].Filename)
		assert.Equal(t, 1, recs[1].Weight)
	})

	t.Run("single mode replaces the group", func(t *testing.T) {
		t.Parallel()
		srv, store := newServer(t, nil)

		uploadOne(t, srv.URL, "user/7", "old.txt", "old", map[string]string{"group": "avatar"})
		rec := uploadOne(t, srv.URL, "user/7", "new.txt", "new", map[string]string{"group": "avatar", "mode": "single"})

		recs, err := store.List(context.Background(), media.Owner("user", 7), "avatar")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, rec.ID, recs[0].ID)
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		srv, _ := newServer(t, nil)

		cases := []struct {
			name   string
			files  []part
			fields map[string]string
			code   string
		}{
			{"no file", nil, map[string]string{"group": "x"}, "invalid_upload"},
			{"bad weight", []part{{"a.txt", "a"}}, map[string]string{"weight": "heavy"}, "invalid_request"},
			{"bad mode", []part{{"a.txt", "a"}}, map[string]string{"mode": "both"}, "invalid_upload"},
		}
		for _, tc := range cases {
			body, ct := multipartBody(t, tc.files, tc.fields)
			resp, env := do(t, http.MethodPost, srv.URL+"/post/42/media", body, ct)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, tc.name)
			require.NotNil(t, env.Error, tc.name)
			assert.Equal(t, tc.code, env.Error.Code, tc.name)
		}

		resp, env := do(t, http.MethodPost, srv.URL+"/post/42/media", strings.NewReader("plain"), "text/plain")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_request", env.Error.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		t.Parallel()
		logs := &bytes.Buffer{}
		srv, _ := newServer(t, func(b media.Blobs) media.Blobs { return brokenWrites{b} },
			mediahttp.WithLogger(slog.New(slog.NewTextHandler(logs, nil))))

		body, ct := multipartBody(t, []part{{"a.txt", "a"}}, nil)
		resp, env := do(t, http.MethodPost, srv.URL+"/post/42/media", body, ct)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Equal(t, "storage_error", env.Error.Code)
		assert.Equal(t, "Bad Gateway", env.Error.Message)
		assert.Contains(t, logs.String(), "disk full")
	})

	t.Run("partial failure reports saved files", func(t *testing.T) {
		t.Parallel()
		srv, store := newServer(t, func(b media.Blobs) media.Blobs { return failWrites{Blobs: b, suffix: "b.txt"} })

		body, ct := multipartBody(t, []part{{"a.txt", "a"}, {"b.txt", "b"}}, nil)
		resp, env := do(t, http.MethodPost, srv.URL+"/post/42/media", body, ct)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.NotNil(t, env.Error)
		assert.Equal(t, "storage_error", env.Error.Code)

		var saved []mediahttp.RecordResponse
		require.NoError(t, json.Unmarshal(env.Data, &saved))
		require.Len(t, saved, 1)
		assert.Equal(t, "post/a.txt", saved[0].Filename)

		recs, err := store.List(context.Background(), media.Owner("post", 42), "")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, saved[0].ID, recs[0].ID)
	})
}

func TestListAndDelete(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, nil)

	uploadOne(t, srv.URL, "post/1", "a.txt", "a", map[string]string{"group": "gallery"})
	uploadOne(t, srv.URL, "post/1", "b.txt", "b", map[string]string{"group": "gallery"})
	uploadOne(t, srv.URL, "post/1", "c.txt", "c", map[string]string{"group": "files"})

	resp, env := do(t, http.MethodGet, srv.URL+"/post/1/media?group=gallery", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []mediahttp.RecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "post/a.txt", recs[0].Filename)
	assert.Equal(t, "post/b.txt", recs[1].Filename)

	resp, env = do(t, http.MethodGet, srv.URL+"/post/1/media", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	assert.Len(t, recs, 3)

	resp, env = do(t, http.MethodDelete, srv.URL+"/post/1/media?group=gallery", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"deleted":2}`, string(env.Data))

	resp, env = do(t, http.MethodGet, srv.URL+"/post/1/media", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "files", recs[0].Group)

	resp, env = do(t, http.MethodGet, srv.URL+"/post/2/media", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestRecordRoutes(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, nil)

	rec := uploadOne(t, srv.URL, "post/1", "a.txt", "a", nil)

	resp, env := do(t, http.MethodGet, srv.URL+"/media/"+rec.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got mediahttp.RecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.URL, got.URL)

	resp, _ = do(t, http.MethodPatch, srv.URL+"/media/"+rec.ID,
		strings.NewReader(`{"title":"Cover","weight":9}`), "application/json")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, env = do(t, http.MethodGet, srv.URL+"/media/"+rec.ID, nil, "")
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Cover", got.Title)
	assert.Equal(t, "Cover", got.DisplayTitle)
	assert.Equal(t, 9, got.Weight)
	assert.Equal(t, "post/a.txt", got.Filename)

	resp, env = do(t, http.MethodPatch, srv.URL+"/media/"+rec.ID,
		strings.NewReader(`{"filename":"evil.sh"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_request", env.Error.Code)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/media/"+rec.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		resp, env = do(t, method, srv.URL+"/media/"+rec.ID, nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, method)
		require.NotNil(t, env.Error, method)
		assert.Equal(t, "not_found", env.Error.Code, method)
	}

	resp, env = do(t, http.MethodPatch, srv.URL+"/media/"+rec.ID, strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
}
