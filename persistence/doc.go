// Package persistence implements the on-disk encoding of feature records.
//
// Every record is self-describing: a fixed header carries the magic number,
// format version, element kind, compression codec and matrix shape, followed
// by the label, the feature payload and a CRC32-Castagnoli trailer covering
// all preceding bytes.
//
//	magic    u32  "BHLD"
//	version  u16
//	kind     u8   model.ElementKind
//	codec    u8   Compression
//	rows     u32
//	cols     u32
//	rarity   i32
//	labelLen u16
//	label    [labelLen]byte
//	rawLen   u32  uncompressed payload size
//	dataLen  u32  stored payload size
//	data     [dataLen]byte  little-endian float32 values, possibly compressed
//	crc32c   u32
//
// All integers are little endian.
package persistence
