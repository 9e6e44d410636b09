// Package hash provides the checksum used for data integrity.
//
// Table files and S3 uploads are protected with CRC32-Castagnoli (CRC32C),
// which is hardware accelerated on x86 (SSE4.2) and ARM (CRC extension).
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
