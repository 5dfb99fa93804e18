package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"resume-screener-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectStore 只支持单次PUT和GET的S3替身
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeObjectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
			data = decodeAWSChunked(data)
		}
		f.objects[r.URL.Path] = data
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag-1"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("ETag", `"etag-1"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

// decodeAWSChunked 去掉流式签名的分块头: "<hex>;chunk-signature=...\r\n<data>\r\n"
func decodeAWSChunked(body []byte) []byte {
	var out []byte
	rest := string(body)
	for {
		idx := strings.Index(rest, "\r\n")
		if idx < 0 {
			return out
		}
		header := rest[:idx]
		if semi := strings.Index(header, ";"); semi >= 0 {
			header = header[:semi]
		}
		size, err := strconv.ParseInt(header, 16, 64)
		if err != nil || size == 0 {
			return out
		}
		rest = rest[idx+2:]
		if int64(len(rest)) < size {
			return out
		}
		out = append(out, rest[:size]...)
		rest = strings.TrimPrefix(rest[size:], "\r\n")
	}
}

func newTestMinIO(t *testing.T) (*MinIO, *fakeObjectStore) {
	t.Helper()
	store := &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Secure: false,
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return NewMinIOFromClient(client, &config.MinIOConfig{ReportsBucket: "reports-test"}), store
}

func TestReportObjectKey(t *testing.T) {
	assert.Equal(t, "reports/abc.json", ReportObjectKey("abc"))
}

func TestUploadAndGetReport(t *testing.T) {
	m, store := newTestMinIO(t)
	ctx := context.Background()

	key, err := m.UploadReport(ctx, "rec-1", []byte(`{"summary":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, "reports/rec-1.json", key)
	assert.Equal(t, `{"summary":"ok"}`, string(store.objects["/reports-test/reports/rec-1.json"]))
	assert.Equal(t, "application/json", store.types["/reports-test/reports/rec-1.json"])

	data, err := m.GetReport(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, string(data))
}

func TestDefaultReportsBucket(t *testing.T) {
	m := NewMinIOFromClient(nil, &config.MinIOConfig{})
	assert.Equal(t, "screening-reports", m.Bucket())
}
