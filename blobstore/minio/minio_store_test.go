package minio

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rowquant/blobstore"
	"github.com/hupe1980/rowquant/tablefile"
)

func TestKeys(t *testing.T) {
	rooted := NewStore(nil, "b", "/tables/")
	assert.Equal(t, "tables/emb.rqt", rooted.objectKey("emb.rqt"))
	assert.Equal(t, "tables/", rooted.listPrefix(""))
	assert.Equal(t, "tables/emb", rooted.listPrefix("emb"))
	assert.Equal(t, "a/emb.rqt", rooted.blobName("tables/a/emb.rqt"))

	bare := NewStore(nil, "b", "")
	assert.Equal(t, "emb.rqt", bare.objectKey("emb.rqt"))
	assert.Equal(t, "", bare.listPrefix(""))
	assert.Equal(t, "tables/emb.rqt", bare.blobName("tables/emb.rqt"))
}

func TestUserMetadata(t *testing.T) {
	got := userMetadata(map[string]string{
		"Rq-Format":          "rowwise8",
		"X-Amz-Meta-Rq-Rows": "3",
	})
	assert.Equal(t, map[string]string{"rq-format": "rowwise8", "rq-rows": "3"}, got)
	assert.Empty(t, userMetadata(nil))
}

func TestByteRange(t *testing.T) {
	tests := []struct {
		off, n, size int64
		start, end   int64
		ok           bool
	}{
		{0, 10, 100, 0, 9, true},
		{95, 10, 100, 95, 99, true},
		{99, 1, 100, 99, 99, true},
		{100, 1, 100, 0, 0, false},
		{-1, 4, 100, 0, 0, false},
		{10, 0, 100, 0, 0, false},
	}
	for _, tt := range tests {
		start, end, ok := byteRange(tt.off, tt.n, tt.size)
		assert.Equal(t, tt.ok, ok, "off=%d n=%d", tt.off, tt.n)
		assert.Equal(t, tt.start, start, "off=%d n=%d", tt.off, tt.n)
		assert.Equal(t, tt.end, end, "off=%d n=%d", tt.off, tt.n)
	}
}

func TestObjectError(t *testing.T) {
	assert.NoError(t, objectError("a", nil))

	err := objectError("a", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.Contains(t, err.Error(), "minio: a")

	err = objectError("a", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403})
	assert.NotErrorIs(t, err, blobstore.ErrNotFound)
}

func TestUploadFinishesOnce(t *testing.T) {
	pr, pw := io.Pipe()
	u := &upload{name: "t", pw: pw, done: make(chan error, 1)}
	go func() {
		_, _ = io.Copy(io.Discard, pr)
		u.done <- nil
	}()

	_, err := u.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, u.Close())
	assert.ErrorIs(t, u.Close(), errUploadClosed)
	assert.NoError(t, u.Abort())
}

// newTestStore connects to the MinIO server named by ROWQUANT_MINIO_ENDPOINT.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	endpoint := os.Getenv("ROWQUANT_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("ROWQUANT_MINIO_ENDPOINT not set")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	const bucket = "rowquant-test"
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		t.Skipf("MinIO not reachable: %v", err)
	}
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}
	return NewStore(client, bucket, "it-"+t.Name())
}

func TestTableFilesInMinIO(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := tablefile.NewStore(s, tablefile.WithCompression(tablefile.CompressionZstd))

	table := tablefile.Rowwise8Table(64, 24)
	data := bytes.Repeat([]byte{1, 2, 3, 4}, int(table.Size())/4)
	require.NoError(t, ts.Save(ctx, "emb.rqt", table, data))
	t.Cleanup(func() { _ = s.Delete(context.Background(), "emb.rqt") })

	meta, size, err := s.Metadata(ctx, "emb.rqt")
	require.NoError(t, err)
	assert.Equal(t, "rowwise8", meta["rq-format"])
	assert.Equal(t, "64", meta["rq-rows"])

	h, err := ts.Stat(ctx, "emb.rqt")
	require.NoError(t, err)
	assert.Equal(t, table, h.Table)
	assert.Equal(t, h.FileSize(), size)

	got, gotData, err := ts.Load(ctx, "emb.rqt")
	require.NoError(t, err)
	assert.Equal(t, table, got)
	assert.Equal(t, data, gotData)

	// The header bytes agree with the metadata.
	b, err := s.Open(ctx, "emb.rqt")
	require.NoError(t, err)
	fromBytes, err := tablefile.ReadHeader(io.NewSectionReader(readerAt{ctx, b}, 0, b.Size()))
	require.NoError(t, err)
	assert.Equal(t, h, fromBytes)
	require.NoError(t, b.Close())

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"emb.rqt"}, names)

	require.NoError(t, s.Delete(ctx, "emb.rqt"))
	_, err = ts.Stat(ctx, "emb.rqt")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "emb.rqt"))
}

type readerAt struct {
	ctx context.Context
	b   blobstore.Blob
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) { return r.b.ReadAt(r.ctx, p, off) }
