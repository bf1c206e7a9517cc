//go:build cuda

package device

import "fmt"

import "gorgonia.org/cu"

// GPUs lists the CUDA devices
func GPUs() ([]GPU, error) {
	n, err := cu.NumDevices()
	if err != nil {
		return nil, fmt.Errorf("cuda %d: %w", cu.Version(), err)
	}
	gpus := make([]GPU, 0, n)
	for d := 0; d < n; d++ {
		name, err := cu.Device(d).Name()
		if err != nil {
			return nil, err
		}
		mem, err := cu.Device(d).TotalMem()
		if err != nil {
			return nil, err
		}
		gpus = append(gpus, GPU{Index: d, Name: name, Memory: mem})
	}
	return gpus, nil
}
