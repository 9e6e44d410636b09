package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/rowquant/blobstore"
	"github.com/minio/minio-go/v7"
)

const contentType = "application/vnd.rowquant.table"

// Store keeps table files as objects in a MinIO or S3-compatible bucket.
// It implements blobstore.MetadataStore: headers written by
// tablefile.Store.Save travel as user metadata, so Stat costs one HEAD
// request and uploads of known size skip multipart buffering.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.MetadataStore = (*Store)(nil)

// NewStore returns a Store for bucket. Object keys are rootPrefix joined
// with the blob name.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(rootPrefix, "/")}
}

func (s *Store) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// listPrefix joins the root with a slash so that a store rooted at "tables"
// never lists "tables-old/".
func (s *Store) listPrefix(prefix string) string {
	if s.prefix == "" {
		return prefix
	}
	return s.prefix + "/" + prefix
}

func (s *Store) blobName(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func (s *Store) stat(ctx context.Context, name string) (minio.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.objectKey(name), minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, objectError(name, err)
	}
	return info, nil
}

// Open returns a handle whose reads are ranged GET requests.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	info, err := s.stat(ctx, name)
	if err != nil {
		return nil, err
	}
	return &object{store: s, key: s.objectKey(name), size: info.Size}, nil
}

// Metadata returns the user metadata and size of name.
func (s *Store) Metadata(ctx context.Context, name string) (map[string]string, int64, error) {
	info, err := s.stat(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	return userMetadata(info.UserMetadata), info.Size, nil
}

// userMetadata lower-cases keys, which MinIO returns in canonical header
// form, and strips the x-amz-meta- prefix where a server leaves it.
func userMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		k = strings.ToLower(k)
		out[strings.TrimPrefix(k, "x-amz-meta-")] = v
	}
	return out
}

// Put uploads data in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(name), bytes.NewReader(data), int64(len(data)), putOptions(nil))
	return objectError(name, err)
}

// Create streams an upload of unknown size.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.CreateWithMetadata(ctx, name, -1, nil)
}

// CreateWithMetadata streams an upload carrying meta. Exactly size bytes
// must be written when size is not -1.
func (s *Store) CreateWithMetadata(ctx context.Context, name string, size int64, meta map[string]string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	u := &upload{name: name, pw: pw, done: make(chan error, 1)}
	key, opts := s.objectKey(name), putOptions(meta)
	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, size, opts)
		_ = pr.CloseWithError(err)
		u.done <- err
	}()
	return u, nil
}

func putOptions(meta map[string]string) minio.PutObjectOptions {
	return minio.PutObjectOptions{ContentType: contentType, UserMetadata: meta}
}

// Delete removes name. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return objectError(name, err)
	}
	return nil
}

// List returns the sorted names below prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{Prefix: s.listPrefix(prefix), Recursive: true}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if name := s.blobName(obj.Key); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func objectError(name string, err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return fmt.Errorf("minio: %s: %w", name, blobstore.ErrNotFound)
	default:
		return fmt.Errorf("minio: %s: %w", name, err)
	}
}

// object is an open table file; every read is one ranged GET.
type object struct {
	store *Store
	key   string
	size  int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

// byteRange clamps [off, off+n) to an object of size bytes and returns the
// inclusive HTTP range. ok is false when nothing remains at off.
func byteRange(off, n, size int64) (start, end int64, ok bool) {
	if off < 0 || off >= size || n <= 0 {
		return 0, 0, false
	}
	return off, min(off+n, size) - 1, true
}

func (o *object) get(ctx context.Context, start, end int64) (*minio.Object, error) {
	var opts minio.GetObjectOptions
	if err := opts.SetRange(start, end); err != nil {
		return nil, err
	}
	return o.store.client.GetObject(ctx, o.store.bucket, o.key, opts)
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	start, end, ok := byteRange(off, int64(len(p)), o.size)
	if !ok {
		return 0, io.EOF
	}
	body, err := o.get(ctx, start, end)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:end-start+1])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off > o.size || (off == o.size && length > 0) {
		return nil, io.EOF
	}
	start, end, ok := byteRange(off, length, o.size)
	if !ok {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	body, err := o.get(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return body, nil
}

var errUploadClosed = errors.New("minio: upload already finished")

// upload feeds a background PutObject through a pipe. The object appears
// once Close returns nil.
type upload struct {
	name     string
	pw       *io.PipeWriter
	done     chan error
	finished atomic.Bool
}

func (u *upload) Write(p []byte) (int, error) { return u.pw.Write(p) }

func (u *upload) Close() error {
	if !u.finished.CompareAndSwap(false, true) {
		return errUploadClosed
	}
	if err := u.pw.Close(); err != nil {
		return err
	}
	return objectError(u.name, <-u.done)
}

// Abort cancels the upload; no object is created.
func (u *upload) Abort() error {
	if !u.finished.CompareAndSwap(false, true) {
		return nil
	}
	return u.pw.CloseWithError(fmt.Errorf("minio: upload of %s aborted", u.name))
}

func (u *upload) Sync() error { return nil }
