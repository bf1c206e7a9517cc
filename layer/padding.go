package layer

import "fmt"

// Padding selects the spatial padding scheme of windowed layers
type Padding string

const (
	// Same pads so that the output is ceil(in/stride)
	Same Padding = "SAME"
	// Valid uses only full windows
	Valid Padding = "VALID"
)

// ParsePadding parses a padding name, defaulting to Same for the empty string
func ParsePadding(s string) (Padding, error) {
	switch Padding(s) {
	case "", Same, "same":
		return Same, nil
	case Valid, "valid":
		return Valid, nil
	}
	return "", fmt.Errorf("unknown padding %q", s)
}

// Window computes the output length and the leading padding of a window of size k
// sliding with stride over an input of length in.
func Window(in, k, stride int, p Padding) (out, before int) {
	if p == Valid {
		if in < k {
			return 0, 0
		}
		return (in-k)/stride + 1, 0
	}
	out = (in + stride - 1) / stride
	total := (out-1)*stride + k - in
	if total < 0 {
		total = 0
	}
	return out, total / 2
}
