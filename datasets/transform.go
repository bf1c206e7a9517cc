package datasets

import "math"
import "math/rand/v2"

// Transform writes the network input for one example: src has srcShape and dst has dstShape,
// both [height, width, channels]
type Transform func(rng *rand.Rand, src []float32, srcShape []int, dst []float32, dstShape []int)

// Distort randomly crops, flips and adjusts brightness and contrast, then standardizes
func Distort(d Distortion) Transform {
	return func(rng *rand.Rand, src []float32, in []int, dst []float32, out []int) {
		y0 := rng.IntN(in[0] - out[0] + 1)
		x0 := rng.IntN(in[1] - out[1] + 1)
		flip := d.Flip && rng.IntN(2) == 1
		crop(src, in, dst, out, y0, x0, flip)
		if d.Brightness > 0 {
			delta := (2*rng.Float32() - 1) * d.Brightness
			for i := range dst {
				dst[i] += delta
			}
		}
		if d.ContrastUpper > d.ContrastLower {
			Contrast(dst, out[2], d.ContrastLower+rng.Float32()*(d.ContrastUpper-d.ContrastLower))
		}
		Standardize(dst)
	}
}

// CenterCrop crops the middle of the image, then standardizes
func CenterCrop() Transform {
	return func(_ *rand.Rand, src []float32, in []int, dst []float32, out []int) {
		crop(src, in, dst, out, (in[0]-out[0])/2, (in[1]-out[1])/2, false)
		Standardize(dst)
	}
}

func crop(src []float32, in []int, dst []float32, out []int, y0, x0 int, flip bool) {
	c := in[2]
	for y := 0; y < out[0]; y++ {
		for x := 0; x < out[1]; x++ {
			sx := x0 + x
			if flip {
				sx = x0 + out[1] - 1 - x
			}
			s := ((y0+y)*in[1] + sx) * c
			copy(dst[(y*out[1]+x)*c:(y*out[1]+x+1)*c], src[s:s+c])
		}
	}
}

// Contrast moves every channel value away from the channel mean by factor
func Contrast(img []float32, channels int, factor float32) {
	pixels := len(img) / channels
	for ch := 0; ch < channels; ch++ {
		var sum float32
		for i := ch; i < len(img); i += channels {
			sum += img[i]
		}
		mean := sum / float32(pixels)
		for i := ch; i < len(img); i += channels {
			img[i] = (img[i]-mean)*factor + mean
		}
	}
}

// Standardize scales the image to zero mean and unit variance; the deviation is
// floored at 1/sqrt(n) so uniform images do not divide by zero
func Standardize(img []float32) {
	var sum, sq float64
	for _, v := range img {
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	n := float64(len(img))
	mean := sum / n
	std := math.Sqrt(max(sq/n-mean*mean, 0))
	std = max(std, 1/math.Sqrt(n))
	for i, v := range img {
		img[i] = float32((float64(v) - mean) / std)
	}
}
