package audio

import (
	"fmt"
)

// Resample 线性插值重采样
func Resample(in []float32, inRate, outRate int) ([]float32, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", inRate, outRate)
	}

	if inRate == outRate || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out, nil
	}

	ratio := float64(inRate) / float64(outRate)
	n := int(float64(len(in)) / ratio)
	if n <= 0 {
		return []float32{}, nil
	}

	out := make([]float32, n)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = in[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx] + frac*(in[idx+1]-in[idx])
	}
	return out, nil
}
