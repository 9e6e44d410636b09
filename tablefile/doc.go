// Package tablefile persists encoded tables.
//
// A table file is a small little-endian header followed by the encoded row
// buffer, optionally compressed:
//
//	magic "RQTF" | version u16 | format u8 | compression u8
//	rows u64 | stride u32 | cols u32 | nOffsets u32 | offsets i32...
//	rawLen u64 | payloadLen u64 | crc32c u32 | payload
//
// The CRC32C covers the uncompressed payload. Compression that does not
// shrink the payload below 90% of its size is dropped and the payload is
// stored raw. Headers are untrusted on read: a header whose lengths do not
// match the bytes that follow is ErrCorrupt.
//
// Store saves and loads table files through a blobstore.Store, throttled by
// an optional resource.Controller:
//
//	ts := tablefile.NewStore(blobstore.NewLocalStore(dir),
//	    tablefile.WithCompression(tablefile.CompressionZstd),
//	    tablefile.WithResourceController(rc),
//	)
//	err := ts.Save(ctx, "emb.rqt", tablefile.Rowwise8Table(rows, cols), encoded)
//	t, data, err := ts.Load(ctx, "emb.rqt")
//
// On a blobstore.MetadataStore the header is also kept as object metadata
// and Stat reads nothing else.
package tablefile
