//go:build !cuda

package device

// GPUs lists no devices without the cuda build tag
func GPUs() ([]GPU, error) {
	return nil, nil
}
