package tablefile

import (
	"fmt"
	"strconv"
	"strings"
)

// Object metadata keys mirroring the file header.
const (
	metaVersion     = "rq-version"
	metaFormat      = "rq-format"
	metaRows        = "rq-rows"
	metaStride      = "rq-stride"
	metaCols        = "rq-cols"
	metaOffsets     = "rq-offsets"
	metaCompression = "rq-compression"
	metaRawLen      = "rq-raw-len"
	metaPayloadLen  = "rq-payload-len"
	metaChecksum    = "rq-crc32c"
)

// Metadata returns h as string metadata for object stores. ParseMetadata
// reverses it.
func (h Header) Metadata() map[string]string {
	t := h.Table
	m := map[string]string{
		metaVersion:     strconv.Itoa(int(Version)),
		metaFormat:      t.Format.String(),
		metaRows:        strconv.Itoa(t.Rows),
		metaStride:      strconv.Itoa(t.Stride),
		metaCols:        strconv.Itoa(t.Cols),
		metaCompression: h.Compression.String(),
		metaRawLen:      strconv.FormatInt(h.RawLen, 10),
		metaPayloadLen:  strconv.FormatInt(h.PayloadLen, 10),
		metaChecksum:    fmt.Sprintf("%08x", h.Checksum),
	}
	if len(t.Offsets) > 0 {
		parts := make([]string, len(t.Offsets))
		for i, o := range t.Offsets {
			parts[i] = strconv.Itoa(int(o))
		}
		m[metaOffsets] = strings.Join(parts, ",")
	}
	return m
}

// ParseMetadata rebuilds a header from Header.Metadata output. ok is false
// when meta carries no table header, e.g. for blobs written by another
// client; such blobs must be read with ReadHeader.
func ParseMetadata(meta map[string]string) (h Header, ok bool, err error) {
	v, found := meta[metaVersion]
	if !found {
		return Header{}, false, nil
	}
	if v != strconv.Itoa(int(Version)) {
		return Header{}, true, fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}

	p := metaParser{meta: meta}
	h.Table.Format = p.format()
	h.Table.Rows = int(p.num(metaRows, maxRawLen))
	h.Table.Stride = int(p.num(metaStride, 1<<32-1))
	h.Table.Cols = int(p.num(metaCols, 1<<32-1))
	h.Table.Offsets = p.offsets()
	h.Compression = p.compression()
	h.RawLen = p.num(metaRawLen, maxRawLen)
	h.PayloadLen = p.num(metaPayloadLen, maxRawLen)
	h.Checksum = p.checksum()
	if p.err != nil {
		return Header{}, true, p.err
	}
	if err := h.check(); err != nil {
		return Header{}, true, err
	}
	return h, true, nil
}

// metaParser keeps the first error of a sequence of lookups.
type metaParser struct {
	meta map[string]string
	err  error
}

func (p *metaParser) get(key string) string {
	v, ok := p.meta[key]
	if !ok && p.err == nil {
		p.err = fmt.Errorf("%w: metadata %s missing", ErrCorrupt, key)
	}
	return v
}

func (p *metaParser) fail(key, v string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: metadata %s=%q", ErrCorrupt, key, v)
	}
}

func (p *metaParser) num(key string, limit int64) int64 {
	v := p.get(key)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 || n > limit {
		p.fail(key, v)
		return 0
	}
	return n
}

func (p *metaParser) checksum() uint32 {
	v := p.get(metaChecksum)
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		p.fail(metaChecksum, v)
	}
	return uint32(n)
}

func (p *metaParser) format() Format {
	v := p.get(metaFormat)
	for f := FormatRowwise8; f <= FormatMixed8; f++ {
		if f.String() == v {
			return f
		}
	}
	p.fail(metaFormat, v)
	return 0
}

func (p *metaParser) compression() Compression {
	v := p.get(metaCompression)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd, CompressionS2} {
		if c.String() == v {
			return c
		}
	}
	p.fail(metaCompression, v)
	return 0
}

func (p *metaParser) offsets() []int32 {
	v, ok := p.meta[metaOffsets]
	if !ok {
		return nil
	}
	parts := strings.Split(v, ",")
	if len(parts) > maxOffsets {
		p.fail(metaOffsets, v)
		return nil
	}
	out := make([]int32, len(parts))
	for i, s := range parts {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			p.fail(metaOffsets, v)
			return nil
		}
		out[i] = int32(n)
	}
	return out
}
