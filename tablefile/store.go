package tablefile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/rowquant/blobstore"
	"github.com/hupe1980/rowquant/resource"
)

// Store saves and loads table files in a blobstore.Store.
type Store struct {
	blobs       blobstore.Store
	compression Compression
	rc          *resource.Controller
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCompression sets the compression used by Save. Default: CompressionNone.
func WithCompression(c Compression) StoreOption {
	return func(s *Store) { s.compression = c }
}

// WithResourceController throttles reads and writes with rc's IO limiter.
func WithResourceController(rc *resource.Controller) StoreOption {
	return func(s *Store) { s.rc = rc }
}

// NewStore returns a Store over blobs.
func NewStore(blobs blobstore.Store, opts ...StoreOption) *Store {
	s := &Store{blobs: blobs}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type aborter interface {
	Abort() error
}

// Save writes t and its encoded rows to name. A failed save leaves no blob
// behind. Stores implementing blobstore.MetadataStore also receive the
// header as object metadata.
func (s *Store) Save(ctx context.Context, name string, t Table, data []byte) error {
	h, payload, err := prepare(t, data, s.compression)
	if err != nil {
		return err
	}

	var w blobstore.WritableBlob
	if ms, ok := s.blobs.(blobstore.MetadataStore); ok {
		w, err = ms.CreateWithMetadata(ctx, name, h.FileSize(), h.Metadata())
	} else {
		w, err = s.blobs.Create(ctx, name)
	}
	if err != nil {
		return err
	}

	if _, err := h.writeFile(resource.NewRateLimitedWriter(ctx, w, s.rc), payload); err != nil {
		if a, ok := w.(aborter); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
			_ = s.blobs.Delete(ctx, name)
		}
		return fmt.Errorf("tablefile: save %s: %w", name, err)
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return fmt.Errorf("tablefile: save %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("tablefile: save %s: %w", name, err)
	}
	return nil
}

// Load reads the table file name.
func (s *Store) Load(ctx context.Context, name string) (Table, []byte, error) {
	b, err := s.blobs.Open(ctx, name)
	if err != nil {
		return Table{}, nil, err
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil, fmt.Errorf("%w: %s is empty", ErrCorrupt, name)
		}
		return Table{}, nil, err
	}
	defer rc.Close()

	r := resource.NewRateLimitedReader(ctx, rc, s.rc)
	h, err := ReadHeader(r)
	if err != nil {
		return Table{}, nil, fmt.Errorf("tablefile: load %s: %w", name, err)
	}
	if h.FileSize() != b.Size() {
		return Table{}, nil, fmt.Errorf("tablefile: load %s: %w: file is %d bytes, header describes %d",
			name, ErrCorrupt, b.Size(), h.FileSize())
	}
	data, err := readPayload(r, h, h.PayloadLen)
	if err != nil {
		return Table{}, nil, fmt.Errorf("tablefile: load %s: %w", name, err)
	}
	return h.Table, data, nil
}

// Stat returns the header of name. Metadata stores answer from object
// metadata; other stores read only the header bytes.
func (s *Store) Stat(ctx context.Context, name string) (Header, error) {
	if ms, ok := s.blobs.(blobstore.MetadataStore); ok {
		meta, size, err := ms.Metadata(ctx, name)
		if err != nil {
			return Header{}, err
		}
		h, ok, err := ParseMetadata(meta)
		if err != nil {
			return Header{}, fmt.Errorf("tablefile: stat %s: %w", name, err)
		}
		if ok {
			if h.FileSize() != size {
				return Header{}, fmt.Errorf("tablefile: stat %s: %w: object is %d bytes, metadata describes %d",
					name, ErrCorrupt, size, h.FileSize())
			}
			return h, nil
		}
	}

	b, err := s.blobs.Open(ctx, name)
	if err != nil {
		return Header{}, err
	}
	defer b.Close()

	h, err := ReadHeader(&blobReader{ctx: ctx, blob: b})
	if err != nil {
		return Header{}, fmt.Errorf("tablefile: stat %s: %w", name, err)
	}
	return h, nil
}

// Delete removes name.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.blobs.Delete(ctx, name)
}

// List returns the names of stored blobs with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return s.blobs.List(ctx, prefix)
}

// blobReader reads a blob sequentially through positioned reads.
type blobReader struct {
	ctx  context.Context
	blob blobstore.Blob
	off  int64
}

func (r *blobReader) Read(p []byte) (int, error) {
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}
