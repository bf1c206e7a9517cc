// Package mnist implements the mnist input kind: handwritten digits in gzipped idx files
package mnist

import "bytes"
import "compress/gzip"
import "context"
import "encoding/binary"
import "fmt"
import "os"
import "path/filepath"
import "strings"

import "github.com/neurlang/convtrain/datasets"
import "github.com/neurlang/convtrain/definition"

const inferSetImg = "t10k-images-idx3-ubyte.gz"
const inferSetVal = "t10k-labels-idx1-ubyte.gz"
const trainSetImg = "train-images-idx3-ubyte.gz"
const trainSetVal = "train-labels-idx1-ubyte.gz"
const inferDigImg = "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6"
const inferDigVal = "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6"
const trainDigImg = "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609"
const trainDigVal = "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c"

// ImgSize is the side of an mnist image
const ImgSize = 28

const imagesMagic = 0x803
const labelsMagic = 0x801

// DefaultMirror serves the original idx files
const DefaultMirror = "https://storage.googleapis.com/cvdf-datasets/mnist/"

// Config is the mnist input definition
type Config struct {
	datasets.Options

	Mirror string `toml:"mirror"`
	Dir    string `toml:"dir"` // subdirectory of the data dir
}

// MNIST is the mnist dataset
type MNIST struct {
	Mirror string
	Dir    string
}

func init() {
	datasets.Kinds.Register("mnist", New)
}

// New builds the mnist pipeline from its definition
func New(f *definition.File) (datasets.Input, error) {
	c := Config{Options: datasets.DefaultOptions(), Mirror: DefaultMirror, Dir: "mnist"}
	c.Distort.Flip = false
	if err := f.Decode(&c); err != nil {
		return nil, err
	}
	return datasets.NewPipeline(&MNIST{Mirror: c.Mirror, Dir: c.Dir}, c.Options)
}

func (m *MNIST) NumClasses() int { return 10 }
func (m *MNIST) Shape() []int    { return []int{ImgSize, ImgSize, 1} }

func (m *MNIST) remotes() []datasets.Remote {
	var files = map[string]string{
		inferDigImg: inferSetImg,
		inferDigVal: inferSetVal,
		trainDigImg: trainSetImg,
		trainDigVal: trainSetVal,
	}
	mirror := strings.TrimSuffix(m.Mirror, "/") + "/"
	var out []datasets.Remote
	for hash, name := range files {
		out = append(out, datasets.Remote{URL: mirror + name, Name: name, SHA256: hash})
	}
	return out
}

// MaybeDownloadAndExtract fetches the four idx files; the gzip files are read in place
func (m *MNIST) MaybeDownloadAndExtract(ctx context.Context, dataDir string) error {
	return datasets.Download(ctx, filepath.Join(dataDir, m.Dir), m.remotes()...)
}

// Open reads the images and labels of a split
func (m *MNIST) Open(dataDir string, split datasets.Split) (datasets.Source, error) {
	img, val := trainSetImg, trainSetVal
	if split == datasets.Test {
		img, val = inferSetImg, inferSetVal
	}
	dir := filepath.Join(dataDir, m.Dir)
	pixels, err := readIdx(filepath.Join(dir, img), imagesMagic)
	if err != nil {
		return nil, err
	}
	raw, err := readIdx(filepath.Join(dir, val), labelsMagic)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(raw))
	for i, l := range raw {
		if l > 9 {
			return nil, fmt.Errorf("mnist label %d of example %d out of range", l, i)
		}
		labels[i] = int(l)
	}
	return datasets.NewMemory(m.Shape(), pixels, labels)
}

// readIdx ungzips an idx file and returns its payload after checking the header
func readIdx(path string, magic uint32) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gzipReader, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip file '%s': %w", path, err)
	}
	defer gzipReader.Close()
	var uncompressedBuffer bytes.Buffer
	if _, err = uncompressedBuffer.ReadFrom(gzipReader); err != nil {
		return nil, fmt.Errorf("buffering file '%s': %w", path, err)
	}
	data := uncompressedBuffer.Bytes()

	header := 8
	if magic == imagesMagic {
		header = 16
	}
	if len(data) < header || binary.BigEndian.Uint32(data) != magic {
		return nil, fmt.Errorf("file '%s' is not an idx file with magic %#x", path, magic)
	}
	count := int(binary.BigEndian.Uint32(data[4:]))
	size := 1
	if magic == imagesMagic {
		rows, cols := binary.BigEndian.Uint32(data[8:]), binary.BigEndian.Uint32(data[12:])
		if rows != ImgSize || cols != ImgSize {
			return nil, fmt.Errorf("file '%s' has %dx%d images, want %dx%d", path, rows, cols, ImgSize, ImgSize)
		}
		size = ImgSize * ImgSize
	}
	if len(data)-header != count*size {
		return nil, fmt.Errorf("file '%s' holds %d bytes for %d items", path, len(data)-header, count)
	}
	return data[header:], nil
}
