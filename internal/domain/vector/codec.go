package vector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kailas-cloud/lessontutor/internal/domain"
)

// EncodeVector packs v as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks bytes written by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector payload of %d bytes is not a multiple of 4", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// EncodeMatrix packs equally sized vectors behind an 8-byte header holding
// the row count and the dimension.
func EncodeMatrix(vectors [][]float32) []byte {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	buf := make([]byte, 8, 8+len(vectors)*dim*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(dim))
	for _, v := range vectors {
		buf = append(buf, EncodeVector(v)...)
	}
	return buf
}

// DecodeMatrix unpacks bytes written by EncodeMatrix.
func DecodeMatrix(data []byte) ([][]float32, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("vector matrix header truncated (%d bytes)", len(data))
	}
	rows := int(binary.LittleEndian.Uint32(data[0:]))
	dim := int(binary.LittleEndian.Uint32(data[4:]))
	body := data[8:]
	if len(body) != rows*dim*4 {
		return nil, fmt.Errorf("vector matrix of %dx%d needs %d bytes, got %d: %w",
			rows, dim, rows*dim*4, len(body), domain.ErrVectorDimMismatch)
	}

	out := make([][]float32, rows)
	for i := range out {
		v, err := DecodeVector(body[i*dim*4 : (i+1)*dim*4])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
