package reportexporter

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for relPath, content := range files {
		fullPath := filepath.Join(dir, relPath)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
	}
}

func readArchive(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	gzReader, err := gzip.NewReader(r)
	require.NoError(t, err)
	defer gzReader.Close()

	found := make(map[string]string)
	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tarReader)
		require.NoError(t, err)
		found[header.Name] = string(content)
	}
	return found
}

func TestFromProvider(t *testing.T) {
	_, err := FromProvider(context.Background(), Provider("s3"))
	assert.Error(t, err)

	exp, err := FromProvider(context.Background(), Local)
	require.NoError(t, err)
	assert.Equal(t, Local, exp.Provider())
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"report-1.json":         "hello",
		"report-2.json":         "world!!!",
		"analytics/2026.ndjson": "nested content",
	})

	size, err := GetDirSize(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, datasize.ByteSize(27), size)

	size, err = GetDirSize(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestCompressTarGz(t *testing.T) {
	tmpDir := t.TempDir()
	files := map[string]string{
		"report.json":             `{"summary":{}}`,
		"analytics/events.ndjson": "{\"metric\":\"LCP\"}\n",
	}
	writeFiles(t, tmpDir, files)

	var buf bytes.Buffer
	require.NoError(t, compressTarGz(tmpDir, &buf))
	assert.Equal(t, files, readArchive(t, &buf))
}

func TestCompressTarGz_EmptyDir(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, compressTarGz(t.TempDir(), &buf))
	assert.Empty(t, readArchive(t, &buf))
}

func TestCompressTarGz_NonExistentDir(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, compressTarGz("/nonexistent/dir", &buf))
}

func TestUploadOptions(t *testing.T) {
	opts := defaultUploadOptions()
	assert.Equal(t, "16MB", opts.ChunkSize.String())
	assert.Equal(t, "1GB", opts.SizeLimit.String())
	assert.Equal(t, "1MB", opts.BufferSize.String())
	assert.Equal(t, time.Second, opts.ReportPeriod)

	WithChunkSize(8 * datasize.MB)(opts)
	WithSizeLimit(10 * datasize.KB)(opts)
	WithBufferSize(64 * datasize.KB)(opts)
	WithReportPeriod(0)(opts)
	assert.Equal(t, 8*datasize.MB, opts.ChunkSize)
	assert.Equal(t, 10*datasize.KB, opts.SizeLimit)
	assert.Equal(t, 64*datasize.KB, opts.BufferSize)
	assert.Zero(t, opts.ReportPeriod)

	del := defaultDeleteOptions()
	WithConcurrentDeleteJobs(0)(del)
	assert.Equal(t, DefaultConcurrentJobs, del.ConcurrentJobs)
	WithConcurrentDeleteJobs(3)(del)
	assert.Equal(t, 3, del.ConcurrentJobs)
}

func TestLocalExporter_UploadAndDelete(t *testing.T) {
	src := t.TempDir()
	bucket := filepath.Join(t.TempDir(), "reports")
	files := map[string]string{"report.json": `{"budget":{"passed":true}}`}
	writeFiles(t, src, files)

	exp := NewLocalExporter()
	ctx := context.Background()
	require.NoError(t, exp.Upload(ctx, src, bucket, "session-a", WithReportPeriod(0)))
	require.NoError(t, exp.Upload(ctx, src, bucket, "session-b"))

	f, err := os.Open(filepath.Join(bucket, "session-a.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, files, readArchive(t, f))
	f.Close()

	require.NoError(t, exp.Delete(ctx, bucket, "session-a"))
	entries, err := os.ReadDir(bucket)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"session-b.tar.gz"}, names)

	assert.NoError(t, exp.Delete(ctx, bucket, "missing"))
}

func TestLocalExporter_UploadErrors(t *testing.T) {
	exp := NewLocalExporter()
	ctx := context.Background()
	bucket := t.TempDir()

	assert.Error(t, exp.Upload(ctx, "/nonexistent/dir", bucket, "x"))

	file := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0644))
	assert.Error(t, exp.Upload(ctx, file, bucket, "x"))

	src := t.TempDir()
	writeFiles(t, src, map[string]string{"big.json": string(make([]byte, 2048))})
	err := exp.Upload(ctx, src, bucket, "x", WithSizeLimit(1*datasize.KB))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "over the")

	_, statErr := os.Stat(filepath.Join(bucket, "x.tar.gz"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBatchDelete(t *testing.T) {
	var deleted []string
	err := batchDelete([]string{"a", "b", "c"}, 1, func(name string) error {
		deleted = append(deleted, name)
		if name == "b" {
			return io.ErrUnexpectedEOF
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete b")
	assert.Len(t, deleted, 3)
}
