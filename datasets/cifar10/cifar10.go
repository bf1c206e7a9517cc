// Package cifar10 implements the cifar10 input kind: 32x32 colour images in ten classes,
// read from the binary release
package cifar10

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/neurlang/convtrain/datasets"
	"github.com/neurlang/convtrain/definition"
)

const (
	// ImgSize is the side of a stored image
	ImgSize = 32

	// DefaultURL is the binary release
	DefaultURL = "https://www.cs.toronto.edu/~kriz/cifar-10-binary.tar.gz"

	archive    = "cifar-10-binary.tar.gz"
	extracted  = "cifar-10-batches-bin"
	recordSize = 1 + ImgSize*ImgSize*3
)

var trainFiles = []string{"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin", "data_batch_4.bin", "data_batch_5.bin"}
var testFiles = []string{"test_batch.bin"}

// Config is the cifar10 input definition
type Config struct {
	datasets.Options

	URL    string `toml:"url"`
	SHA256 string `toml:"sha256"` // optional digest of the archive
}

// CIFAR10 is the cifar10 dataset
type CIFAR10 struct {
	URL    string
	SHA256 string
}

func init() {
	datasets.Kinds.Register("cifar10", New)
}

// New builds the cifar10 pipeline; images are cropped to 24x24 unless crop is set
func New(f *definition.File) (datasets.Input, error) {
	c := Config{Options: datasets.DefaultOptions(), URL: DefaultURL}
	c.Crop = 24
	if err := f.Decode(&c); err != nil {
		return nil, err
	}
	return datasets.NewPipeline(&CIFAR10{URL: c.URL, SHA256: c.SHA256}, c.Options)
}

func (c *CIFAR10) NumClasses() int { return 10 }
func (c *CIFAR10) Shape() []int    { return []int{ImgSize, ImgSize, 3} }

// MaybeDownloadAndExtract fetches and unpacks the archive unless the batches are present
func (c *CIFAR10) MaybeDownloadAndExtract(ctx context.Context, dataDir string) error {
	if _, err := os.Stat(filepath.Join(dataDir, extracted, testFiles[0])); err == nil {
		return nil
	}
	if err := datasets.Download(ctx, dataDir, datasets.Remote{URL: c.URL, Name: archive, SHA256: c.SHA256}); err != nil {
		return err
	}
	return Extract(filepath.Join(dataDir, archive), dataDir)
}

// Extract unpacks the .bin members of a tar.gz archive below dir
func Extract(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	defer zr.Close()
	tr := tar.NewReader(zr)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", archivePath, err)
		}
		name := path.Clean(h.Name)
		if h.Typeflag != tar.TypeReg || !strings.HasSuffix(name, ".bin") {
			continue
		}
		if !filepath.IsLocal(name) {
			return fmt.Errorf("extract %s: member %q escapes the target directory", archivePath, h.Name)
		}
		dst := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		out, err := os.Create(dst)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, tr)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", h.Name, err)
		}
	}
}

// Open reads the batch files of a split, converting the planar records to HWC
func (c *CIFAR10) Open(dataDir string, split datasets.Split) (datasets.Source, error) {
	files := trainFiles
	if split == datasets.Test {
		files = testFiles
	}
	var pixels []byte
	var labels []int
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dataDir, extracted, name))
		if err != nil {
			return nil, err
		}
		if len(data)%recordSize != 0 {
			return nil, fmt.Errorf("%s: %d bytes is not a whole number of records", name, len(data))
		}
		for r := 0; r < len(data); r += recordSize {
			label := int(data[r])
			if label > 9 {
				return nil, fmt.Errorf("%s: label %d out of range", name, label)
			}
			labels = append(labels, label)
			pixels = append(pixels, planarToHWC(data[r+1:r+recordSize])...)
		}
	}
	return datasets.NewMemory(c.Shape(), pixels, labels)
}

func planarToHWC(planes []byte) []byte {
	const n = ImgSize * ImgSize
	out := make([]byte, 3*n)
	for i := 0; i < n; i++ {
		out[3*i] = planes[i]
		out[3*i+1] = planes[n+i]
		out[3*i+2] = planes[2*n+i]
	}
	return out
}
