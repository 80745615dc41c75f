package persistence

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/behold/model"
)

// EncodeRecord serializes a validated record using the given payload codec.
func EncodeRecord(rec *model.FeatureRecord, c Compression) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if len(rec.Label) > MaxLabelLen {
		return nil, fmt.Errorf("%w: label length %d exceeds %d", model.ErrInvalidRecord, len(rec.Label), MaxLabelLen)
	}
	if rec.Rarity < math.MinInt32 || rec.Rarity > math.MaxInt32 {
		return nil, fmt.Errorf("%w: rarity %d out of range", model.ErrInvalidRecord, rec.Rarity)
	}

	raw := make([]byte, len(rec.Features)*4)
	for i, v := range rec.Features {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	data, used, err := compress(raw, c)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", c, err)
	}

	size := headerSize + len(rec.Label) + payloadHeaderSize + len(data) + checksumSize
	buf := make([]byte, 0, size)
	buf = le.AppendUint32(buf, MagicNumber)
	buf = le.AppendUint16(buf, Version)
	buf = append(buf, byte(rec.Kind), byte(used))
	buf = le.AppendUint32(buf, uint32(rec.Rows))
	buf = le.AppendUint32(buf, uint32(rec.Cols))
	buf = le.AppendUint32(buf, uint32(int32(rec.Rarity)))
	buf = le.AppendUint16(buf, uint16(len(rec.Label)))
	buf = append(buf, rec.Label...)
	buf = le.AppendUint32(buf, uint32(len(raw)))
	buf = le.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	buf = le.AppendUint32(buf, Checksum(buf))
	return buf, nil
}

// DecodeRecord parses bytes produced by EncodeRecord.
// The returned record does not alias data.
func DecodeRecord(data []byte) (model.FeatureRecord, error) {
	var rec model.FeatureRecord
	if len(data) < headerSize+payloadHeaderSize+checksumSize {
		return rec, fmt.Errorf("%w: %d bytes is shorter than the minimum record", ErrCorruptRecord, len(data))
	}

	if magic := le.Uint32(data[0:]); magic != MagicNumber {
		return rec, fmt.Errorf("%w: %08x", ErrInvalidMagic, magic)
	}
	if v := le.Uint16(data[4:]); v != Version {
		return rec, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	body, err := verifyTrailer(data)
	if err != nil {
		return rec, err
	}

	kind := model.ElementKind(body[6])
	codec := Compression(body[7])
	rows := le.Uint32(body[8:])
	cols := le.Uint32(body[12:])
	rarity := int32(le.Uint32(body[16:]))
	labelLen := int(le.Uint16(body[20:]))

	off := headerSize
	if off+labelLen+payloadHeaderSize > len(body) {
		return rec, fmt.Errorf("%w: truncated label", ErrCorruptRecord)
	}
	label := string(body[off : off+labelLen])
	off += labelLen
	rawLen := int(le.Uint32(body[off:]))
	dataLen := int(le.Uint32(body[off+4:]))
	off += payloadHeaderSize
	if off+dataLen != len(body) {
		return rec, fmt.Errorf("%w: payload length %d does not match record size", ErrCorruptRecord, dataLen)
	}
	if uint64(rows)*uint64(cols)*4 != uint64(rawLen) {
		return rec, fmt.Errorf("%w: %dx%d matrix does not match payload of %d bytes", ErrCorruptRecord, rows, cols, rawLen)
	}

	raw, err := decompress(body[off:], codec, rawLen)
	if err != nil {
		return rec, fmt.Errorf("%w: decompress %s: %w", ErrCorruptRecord, codec, err)
	}
	features := make([]float32, rawLen/4)
	for i := range features {
		features[i] = math.Float32frombits(le.Uint32(raw[i*4:]))
	}

	rec = model.FeatureRecord{
		Label:    label,
		Rows:     int(rows),
		Cols:     int(cols),
		Kind:     kind,
		Features: features,
		Rarity:   int(rarity),
	}
	if err := rec.Validate(); err != nil {
		return model.FeatureRecord{}, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return rec, nil
}
