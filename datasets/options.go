package datasets

import "errors"
import "fmt"

import "github.com/neurlang/convtrain/definition"

// Options are the pipeline keys shared by every input kind
type Options struct {
	definition.Header

	Threads  int    `toml:"threads"`  // runner goroutines per queue
	Capacity int    `toml:"capacity"` // batches buffered per queue
	Crop     int    `toml:"crop"`     // side of the network input, 0 keeps the stored size
	Seed     uint64 `toml:"seed"`

	Distort Distortion `toml:"distort"`
}

// Distortion configures the random training transform
type Distortion struct {
	Flip          bool    `toml:"flip"`           // random horizontal flip
	Brightness    float32 `toml:"brightness"`     // max brightness delta in pixel units
	ContrastLower float32 `toml:"contrast_lower"` // contrast factor range
	ContrastUpper float32 `toml:"contrast_upper"`
}

// DefaultOptions are the options before a definition file is applied
func DefaultOptions() Options {
	return Options{
		Threads:  4,
		Capacity: 8,
		Seed:     1,
		Distort: Distortion{
			Flip:          true,
			Brightness:    63,
			ContrastLower: 0.2,
			ContrastUpper: 1.8,
		},
	}
}

// Validate checks the options against the stored image shape
func (o *Options) Validate(stored []int) error {
	var errs []error
	if o.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be positive, got %d", o.Threads))
	}
	if o.Capacity < 1 {
		errs = append(errs, fmt.Errorf("capacity must be positive, got %d", o.Capacity))
	}
	if o.Crop < 0 || o.Crop > stored[0] || o.Crop > stored[1] {
		errs = append(errs, fmt.Errorf("crop %d does not fit images of %dx%d", o.Crop, stored[0], stored[1]))
	}
	if o.Distort.Brightness < 0 {
		errs = append(errs, fmt.Errorf("brightness must not be negative, got %v", o.Distort.Brightness))
	}
	if o.Distort.ContrastLower < 0 || o.Distort.ContrastUpper < o.Distort.ContrastLower {
		errs = append(errs, fmt.Errorf("contrast range [%v, %v] is invalid", o.Distort.ContrastLower, o.Distort.ContrastUpper))
	}
	return errors.Join(errs...)
}
