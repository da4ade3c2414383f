package model

// Encoding is the fixed-length representation of one text. Sparse encodings
// list their non-zero positions in ascending order; dense encodings leave
// Indices nil and carry one value per dimension.
type Encoding struct {
	Indices []int
	Values  []float64
}

// Dense reports whether the encoding stores every dimension.
func (e Encoding) Dense() bool {
	return e.Indices == nil
}

// Len returns the number of stored values.
func (e Encoding) Len() int {
	return len(e.Values)
}

// index returns the dimension of the k-th stored value.
func (e Encoding) index(k int) int {
	if e.Indices == nil {
		return k
	}
	return e.Indices[k]
}

// Precision selects how activations are computed. Master parameters are
// always float64; reduced precision rounds products, sums and activations
// through float32.
type Precision int

const (
	FullPrecision Precision = iota
	ReducedPrecision
)

func (p Precision) String() string {
	if p == ReducedPrecision {
		return "reduced"
	}
	return "full"
}

// Round rounds x to the working precision.
func (p Precision) Round(x float64) float64 {
	if p == ReducedPrecision {
		return float64(float32(x))
	}
	return x
}

// dot computes bias + w[offset+i]*x_i over the stored values of x.
func dot(x Encoding, w []float64, offset int, bias float64, p Precision) float64 {
	if p == ReducedPrecision {
		sum := float32(bias)
		for k, v := range x.Values {
			sum += float32(w[offset+x.index(k)]) * float32(v)
		}
		return float64(sum)
	}
	sum := bias
	for k, v := range x.Values {
		sum += w[offset+x.index(k)] * v
	}
	return sum
}
