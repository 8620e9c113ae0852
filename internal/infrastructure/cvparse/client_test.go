package cvparse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/imports"
	infraconfig "github.com/crm/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(infraconfig.ParserConfig{
		Endpoint: srv.URL,
		APIKey:   "test-api-key",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return client, srv
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(infraconfig.ParserConfig{})
	require.Error(t, err)
}

func TestClient_Parse_Success(t *testing.T) {
	var gotAuth string
	var gotFilename string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFilename = r.FormValue("filename")

		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "jane_doe.pdf", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"first_name": " Jane ",
				"prefix": "van",
				"last_name": "Doe",
				"date_of_birth": "1991-04-23",
				"email": "jane@example.com",
				"education": "universiteit",
				"current_company": "Acme",
				"current_role": "Engineer",
				"skills": " Go, SQL "
			}
		}`))
	})

	path := writeTempCV(t, "upload.pdf", "%PDF-1.4 fake")
	parsed, err := client.Parse(context.Background(), path, "jane_doe.pdf")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-api-key", gotAuth)
	assert.Equal(t, "jane_doe.pdf", gotFilename)
	assert.Equal(t, "Jane", parsed.FirstName)
	assert.Equal(t, "van", parsed.Prefix)
	assert.Equal(t, "Doe", parsed.LastName)
	assert.Equal(t, "UNI", parsed.Education)
	assert.Equal(t, "Go, SQL", parsed.Skills)
	assert.True(t, parsed.HasName())
	require.NotNil(t, parsed.DateOfBirth)
	assert.Equal(t, 1991, parsed.DateOfBirth.Year())
}

func TestClient_Parse_UnparseableDateIsDropped(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"first_name":"A","last_name":"B","date_of_birth":"23-04-1991"}}`))
	})

	path := writeTempCV(t, "cv.pdf", "x")
	parsed, err := client.Parse(context.Background(), path, "cv.pdf")
	require.NoError(t, err)
	assert.Nil(t, parsed.DateOfBirth)
}

func TestClient_Parse_FailureResponseIsTerminal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"no text found in file"}`))
	})

	path := writeTempCV(t, "cv.pdf", "x")
	_, err := client.Parse(context.Background(), path, "cv.pdf")
	require.Error(t, err)
	assert.True(t, imports.IsTerminal(err))
	assert.Contains(t, err.Error(), "no text found")
}

func TestClient_Parse_ClientErrorIsTerminal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	path := writeTempCV(t, "cv.xyz", "x")
	_, err := client.Parse(context.Background(), path, "cv.xyz")
	require.Error(t, err)
	assert.True(t, imports.IsTerminal(err))
}

func TestClient_Parse_RateLimitIsRetryable(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusRequestTimeout} {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		path := writeTempCV(t, "cv.pdf", "x")
		_, err := client.Parse(context.Background(), path, "cv.pdf")
		require.Error(t, err)
		assert.False(t, imports.IsTerminal(err), "status %d must leave the retry budget intact", status)
	}
}

func TestClient_Parse_ServerErrorIsRetryable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	path := writeTempCV(t, "cv.pdf", "x")
	_, err := client.Parse(context.Background(), path, "cv.pdf")
	require.Error(t, err)
	assert.False(t, imports.IsTerminal(err))
}

func TestClient_Parse_MissingFileIsTerminal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("service must not be called when the file is gone")
	})

	_, err := client.Parse(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"), "gone.pdf")
	require.Error(t, err)
	assert.True(t, imports.IsTerminal(err))
}

func TestNormalizeEducation(t *testing.T) {
	assert.Equal(t, "UNI", NormalizeEducation("wo"))
	assert.Equal(t, "UNI", NormalizeEducation("Master"))
	assert.Equal(t, "HBO", NormalizeEducation("hogeschool"))
	assert.Equal(t, "MBO", NormalizeEducation(" mbo "))
	assert.Equal(t, "", NormalizeEducation("self taught"))
}

func TestStubParser(t *testing.T) {
	parser := NewStubParser()
	path := writeTempCV(t, "upload.pdf", "x")

	parsed, err := parser.Parse(context.Background(), path, "JOHN_DOE.pdf")
	require.NoError(t, err)
	assert.Equal(t, "John", parsed.FirstName)
	assert.Equal(t, "Doe", parsed.LastName)

	parsed, err = parser.Parse(context.Background(), path, "resume.pdf")
	require.NoError(t, err)
	assert.False(t, parsed.HasName())

	_, err = parser.Parse(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"), "gone.pdf")
	require.Error(t, err)
	assert.True(t, imports.IsTerminal(err))
}
