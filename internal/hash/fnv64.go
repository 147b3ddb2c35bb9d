package hash

import "encoding/binary"

const (
	offset64 = 14695981039346656037
	prime64  = 1099511628211
)

// Sum64 computes FNV-1a 64-bit hash for the provided bytes.
func Sum64(data []byte) uint64 {
	var h uint64 = offset64
	for _, b := range data {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

// fnv64a is a streaming FNV-1a digest.
type fnv64a struct {
	h uint64
}

func newFNV64a() *fnv64a {
	return &fnv64a{h: offset64}
}

func (d *fnv64a) Write(p []byte) (int, error) {
	h := d.h
	for _, b := range p {
		h ^= uint64(b)
		h *= prime64
	}
	d.h = h
	return len(p), nil
}

func (d *fnv64a) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, d.h)
}

func (d *fnv64a) Sum64() uint64 { return d.h }
func (d *fnv64a) Reset()        { d.h = offset64 }
func (d *fnv64a) Size() int     { return 8 }
func (d *fnv64a) BlockSize() int {
	return 1
}
