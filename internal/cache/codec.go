package cache

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSON encodes values with encoding/json.
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }

func (JSON[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

// SymMatrix stores a symmetric matrix in gonum's dense binary format.
type SymMatrix struct{}

func (SymMatrix) Encode(m *mat.SymDense) ([]byte, error) {
	if m == nil || m.SymmetricDim() == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	var d mat.Dense
	d.CloneFrom(m)
	return d.MarshalBinary()
}

func (SymMatrix) Decode(b []byte) (*mat.SymDense, error) {
	var d mat.Dense
	if err := d.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	r, c := d.Dims()
	if r != c {
		return nil, fmt.Errorf("matrix is %dx%d, want square", r, c)
	}
	raw := d.RawMatrix()
	data := make([]float64, r*r)
	for i := 0; i < r; i++ {
		copy(data[i*r:(i+1)*r], raw.Data[i*raw.Stride:i*raw.Stride+r])
	}
	return mat.NewSymDense(r, data), nil
}
