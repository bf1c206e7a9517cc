// Package device describes the hardware the training runs on
package device

import "fmt"
import "log/slog"
import "runtime"
import "strings"

import "github.com/klauspost/cpuid/v2"

// CPU is the host processor
type CPU struct {
	Brand         string
	PhysicalCores int
	LogicalCores  int
	Features      []string
}

// GPU is an accelerator found by the CUDA probe
type GPU struct {
	Index  int
	Name   string
	Memory int64
}

// HostCPU reads the processor description
func HostCPU() CPU {
	c := CPU{
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
	}
	for _, f := range []struct {
		name string
		id   cpuid.FeatureID
	}{
		{"AVX2", cpuid.AVX2},
		{"AVX512F", cpuid.AVX512F},
		{"FMA3", cpuid.FMA3},
	} {
		if cpuid.CPU.Supports(f.id) {
			c.Features = append(c.Features, f.name)
		}
	}
	return c
}

// Threads returns the default worker count: the physical cores, or GOMAXPROCS when unknown
func Threads() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return min(n, runtime.GOMAXPROCS(0))
	}
	return runtime.GOMAXPROCS(0)
}

func (c CPU) String() string {
	return fmt.Sprintf("%s (%d cores, %d threads, %s)", c.Brand, c.PhysicalCores, c.LogicalCores, strings.Join(c.Features, " "))
}

// Log writes the host description at startup
func Log(log *slog.Logger) {
	c := HostCPU()
	log.Info("cpu", "brand", c.Brand, "cores", c.PhysicalCores, "threads", c.LogicalCores, "features", strings.Join(c.Features, ","))
	gpus, err := GPUs()
	if err != nil {
		log.Debug("cuda probe failed", "error", err)
		return
	}
	for _, g := range gpus {
		log.Info("gpu", "index", g.Index, "name", g.Name, "memory", g.Memory)
	}
	if len(gpus) > 0 {
		log.Info("the numerical core runs on the cpu; gpus are listed only")
	}
}
