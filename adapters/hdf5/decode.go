package hdf5

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kris96tian/MOFAX-Online/domain/core"

	"gonum.org/v1/gonum/mat"
)

// signature is the 8-byte HDF5 superblock magic
var signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// The superblock may sit at 0 or at any power of two from 512 onward when
// the file carries a user block.
const maxSuperblockOffset = 1 << 20

// CheckSignature reports core.ErrNotHDF5 unless r holds an HDF5 superblock
func CheckSignature(r io.ReaderAt) error {
	buf := make([]byte, len(signature))
	for off := int64(0); off <= maxSuperblockOffset; {
		n, err := r.ReadAt(buf, off)
		if n < len(buf) {
			if err == nil || err == io.EOF {
				break
			}
			return err
		}
		if bytes.Equal(buf, signature) {
			return nil
		}
		if off == 0 {
			off = 512
		} else {
			off *= 2
		}
	}
	return core.ErrNotHDF5
}

// decodeFixedStrings splits a buffer of n fixed-size string slots, dropping
// NUL and space padding
func decodeFixedStrings(buf []byte, n, size int) ([]string, error) {
	if size <= 0 || len(buf) < n*size {
		return nil, fmt.Errorf("string buffer of %d bytes cannot hold %d slots of %d", len(buf), n, size)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		slot := buf[i*size : (i+1)*size]
		if end := bytes.IndexByte(slot, 0); end >= 0 {
			slot = slot[:end]
		}
		out[i] = string(bytes.TrimRight(slot, " "))
	}
	return out, nil
}

// transposed converts a stored (factors x items) matrix into the
// (items x factors) orientation the model exposes
func transposed(rows, cols int, data []float64) *mat.Dense {
	stored := mat.NewDense(rows, cols, data)
	out := mat.NewDense(cols, rows, nil)
	out.Copy(stored.T())
	return out
}

// orientR2 returns per-factor R2 as views x factors. mofapy2 writes
// r2_per_factor/<group> as views x factors; the transposed layout is only
// accepted when its shape is unambiguous, so a square matrix (views equal
// to factors) is always read in the mofapy2 layout.
func orientR2(rows, cols int, data []float64, nViews, nFactors int) (*mat.Dense, error) {
	switch {
	case rows == nViews && cols == nFactors:
		return mat.NewDense(rows, cols, data), nil
	case rows == nFactors && cols == nViews:
		return transposed(rows, cols, data), nil
	default:
		return nil, fmt.Errorf("%w: variance explained is %dx%d for %d views and %d factors",
			core.ErrMalformedModel, rows, cols, nViews, nFactors)
	}
}

func float32To64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = float64(x)
	}
	return out
}
