package tensor

import "testing"
import "errors"

import "github.com/google/go-cmp/cmp"

func TestGemm(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5, 6}    // 2x3
	b := []float32{7, 8, 9, 10, 11, 12} // 3x2
	c := make([]float32, 4)
	Gemm(false, false, 2, 2, 3, 1, a, b, 0, c)
	if diff := cmp.Diff([]float32{58, 64, 139, 154}, c); diff != "" {
		t.Errorf("a*b mismatch (-want +got):\n%s", diff)
	}

	// a^T (3x2) * a (2x3) = 3x3
	c = make([]float32, 9)
	Gemm(true, false, 3, 3, 2, 1, a, a, 0, c)
	if diff := cmp.Diff([]float32{17, 22, 27, 22, 29, 36, 27, 36, 45}, c); diff != "" {
		t.Errorf("a^T*a mismatch (-want +got):\n%s", diff)
	}

	// a (2x3) * a^T (3x2), accumulated onto ones
	c = []float32{1, 1, 1, 1}
	Gemm(false, true, 2, 2, 3, 1, a, a, 1, c)
	if diff := cmp.Diff([]float32{15, 33, 33, 78}, c); diff != "" {
		t.Errorf("a*a^T+c mismatch (-want +got):\n%s", diff)
	}
}

func TestReshape(t *testing.T) {
	x := Zeros(2, 3, 4)
	if x.Stride() != 12 || x.Batch() != 2 || x.Dim(-1) != 4 {
		t.Fatalf("bad geometry %v stride %d", x.Shape, x.Stride())
	}
	y, err := x.Reshape(2, 12)
	if err != nil {
		t.Fatal(err)
	}
	y.Data[13] = 1
	if x.Row(1)[1] != 1 {
		t.Errorf("reshape must share storage")
	}
	if _, err := x.Reshape(5, 5); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}
