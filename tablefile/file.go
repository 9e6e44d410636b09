package tablefile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/rowquant/internal/hash"
)

const (
	// Magic identifies a table file.
	Magic = "RQTF"
	// Version is the current file format version.
	Version uint16 = 1

	fixedHeaderSize = 4 + 2 + 1 + 1 + 8 + 4 + 4 + 4
	tailHeaderSize  = 8 + 8 + 4

	// maxOffsets bounds the offsets table read from untrusted input.
	maxOffsets = 1 << 20
	// maxRawLen bounds the payload size read from untrusted input.
	maxRawLen = 1 << 40
)

// Header is the parsed file header.
type Header struct {
	Table       Table
	Compression Compression
	RawLen      int64
	PayloadLen  int64
	Checksum    uint32
}

// HeaderSize returns the encoded header size for a table with n offsets.
func HeaderSize(n int) int {
	return fixedHeaderSize + 4*n + tailHeaderSize
}

// Encode writes t and its encoded rows to w. The payload is compressed with c
// when that pays off. It returns the number of bytes written.
func Encode(w io.Writer, t Table, data []byte, c Compression) (int64, error) {
	h, payload, err := prepare(t, data, c)
	if err != nil {
		return 0, err
	}
	return h.writeFile(w, payload)
}

// prepare validates t against data and returns the header and stored
// payload of its file.
func prepare(t Table, data []byte, c Compression) (Header, []byte, error) {
	if err := t.Validate(); err != nil {
		return Header{}, nil, err
	}
	if int64(len(data)) != t.Size() {
		return Header{}, nil, fmt.Errorf("%w: payload is %d bytes, table needs %d", ErrInvalidTable, len(data), t.Size())
	}
	if uint64(t.Stride) > math.MaxUint32 || uint64(t.Cols) > math.MaxUint32 {
		return Header{}, nil, fmt.Errorf("%w: dimension exceeds 32 bits", ErrInvalidTable)
	}

	payload, used, err := compress(data, c)
	if err != nil {
		return Header{}, nil, err
	}
	h := Header{
		Table:       t,
		Compression: used,
		RawLen:      int64(len(data)),
		PayloadLen:  int64(len(payload)),
		Checksum:    hash.CRC32C(data),
	}
	return h, payload, nil
}

func (h Header) writeFile(w io.Writer, payload []byte) (int64, error) {
	t := h.Table
	hdr := make([]byte, HeaderSize(len(t.Offsets)))
	copy(hdr, Magic)
	binary.LittleEndian.PutUint16(hdr[4:], Version)
	hdr[6] = byte(t.Format)
	hdr[7] = byte(h.Compression)
	binary.LittleEndian.PutUint64(hdr[8:], uint64(t.Rows))
	binary.LittleEndian.PutUint32(hdr[16:], uint32(t.Stride))
	binary.LittleEndian.PutUint32(hdr[20:], uint32(t.Cols))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(t.Offsets)))
	off := fixedHeaderSize
	for _, o := range t.Offsets {
		binary.LittleEndian.PutUint32(hdr[off:], uint32(o))
		off += 4
	}
	binary.LittleEndian.PutUint64(hdr[off:], uint64(h.RawLen))
	binary.LittleEndian.PutUint64(hdr[off+8:], uint64(h.PayloadLen))
	binary.LittleEndian.PutUint32(hdr[off+16:], h.Checksum)

	n, err := w.Write(hdr)
	written := int64(n)
	if err != nil {
		return written, err
	}
	n, err = w.Write(payload)
	written += int64(n)
	return written, err
}

// Marshal returns the encoded file for t and data.
func Marshal(t Table, data []byte, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize(len(t.Offsets)) + len(data))
	if _, err := Encode(&buf, t, data, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadHeader reads and validates a file header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var fixed [fixedHeaderSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Header{}, truncated(err)
	}
	if string(fixed[:4]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, fixed[:4])
	}
	if v := binary.LittleEndian.Uint16(fixed[4:]); v != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	h := Header{Compression: Compression(fixed[7])}
	rows := binary.LittleEndian.Uint64(fixed[8:])
	if rows > maxRawLen {
		return Header{}, fmt.Errorf("%w: row count %d", ErrCorrupt, rows)
	}
	h.Table = Table{
		Format: Format(fixed[6]),
		Rows:   int(rows),
		Stride: int(binary.LittleEndian.Uint32(fixed[16:])),
		Cols:   int(binary.LittleEndian.Uint32(fixed[20:])),
	}

	nOffsets := binary.LittleEndian.Uint32(fixed[24:])
	if nOffsets > maxOffsets {
		return Header{}, fmt.Errorf("%w: %d offsets", ErrCorrupt, nOffsets)
	}
	rest, err := readFull(r, 4*int64(nOffsets)+tailHeaderSize, readChunk)
	if err != nil {
		return Header{}, truncated(err)
	}
	if nOffsets > 0 {
		h.Table.Offsets = make([]int32, nOffsets)
		for i := range h.Table.Offsets {
			h.Table.Offsets[i] = int32(binary.LittleEndian.Uint32(rest[4*i:]))
		}
	}
	tail := rest[4*nOffsets:]
	raw := binary.LittleEndian.Uint64(tail)
	plen := binary.LittleEndian.Uint64(tail[8:])
	h.Checksum = binary.LittleEndian.Uint32(tail[16:])

	if raw > maxRawLen || plen > maxRawLen {
		return Header{}, fmt.Errorf("%w: payload length %d (stored %d)", ErrCorrupt, raw, plen)
	}
	h.RawLen = int64(raw)
	h.PayloadLen = int64(plen)
	if err := h.check(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// check validates a header parsed from untrusted input.
func (h Header) check() error {
	t := h.Table
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if rows := int64(t.Rows); rows > maxRawLen || (t.Stride != 0 && rows > maxRawLen/int64(t.Stride)) {
		return fmt.Errorf("%w: %d rows of %d bytes", ErrCorrupt, t.Rows, t.Stride)
	}
	if h.RawLen != t.Size() {
		return fmt.Errorf("%w: payload length %d for %d rows of %d bytes", ErrCorrupt, h.RawLen, t.Rows, t.Stride)
	}
	if h.PayloadLen < 0 || h.PayloadLen > h.RawLen {
		return fmt.Errorf("%w: stored payload %d larger than raw %d", ErrCorrupt, h.PayloadLen, h.RawLen)
	}
	return nil
}

// Decode reads a table file from r and returns its table and encoded rows.
// The payload buffer grows with the bytes actually read, so a forged header
// cannot force a large allocation.
func Decode(r io.Reader) (Table, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Table{}, nil, err
	}
	data, err := readPayload(r, h, readChunk)
	if err != nil {
		return Table{}, nil, err
	}
	return h.Table, data, nil
}

// readChunk is the initial buffer size for payloads of unverified length.
const readChunk = 64 << 10

// readPayload reads, expands and verifies the payload described by h. hint
// caps the initial buffer; callers that verified PayloadLen against the
// input size pass it as the hint.
func readPayload(r io.Reader, h Header, hint int64) ([]byte, error) {
	payload, err := readFull(r, h.PayloadLen, hint)
	if err != nil {
		return nil, truncated(err)
	}
	data, err := decompress(payload, h.Compression, int(h.RawLen))
	if err != nil {
		return nil, err
	}
	if sum := hash.CRC32C(data); sum != h.Checksum {
		return nil, fmt.Errorf("%w: got %08x, want %08x", ErrChecksumMismatch, sum, h.Checksum)
	}
	return data, nil
}

// readFull reads exactly n bytes from r. The buffer starts at min(n, hint)
// bytes and grows only with the data read.
func readFull(r io.Reader, n, hint int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(min(n, max(hint, 0))))
	if _, err := buf.ReadFrom(io.LimitReader(r, n)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) != n {
		return nil, io.ErrUnexpectedEOF
	}
	return buf.Bytes(), nil
}

// FileSize returns the total encoded file size described by h.
func (h Header) FileSize() int64 {
	return int64(HeaderSize(len(h.Table.Offsets))) + h.PayloadLen
}

// Unmarshal parses an encoded file.
func Unmarshal(b []byte) (Table, []byte, error) {
	r := bytes.NewReader(b)
	h, err := ReadHeader(r)
	if err != nil {
		return Table{}, nil, err
	}
	switch rest := int64(r.Len()); {
	case h.PayloadLen > rest:
		return Table{}, nil, fmt.Errorf("%w: truncated: payload is %d bytes, %d remain", ErrCorrupt, h.PayloadLen, rest)
	case h.PayloadLen < rest:
		return Table{}, nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, rest-h.PayloadLen)
	}
	data, err := readPayload(r, h, h.PayloadLen)
	if err != nil {
		return Table{}, nil, err
	}
	return h.Table, data, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	return err
}
