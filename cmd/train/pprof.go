package main

import "os"
import "runtime/pprof"

// startProfile writes a CPU profile to default.pgo until the returned func is called
func startProfile() (func(), error) {
	f, err := os.Create("default.pgo")
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
