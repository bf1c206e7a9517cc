// Package imagefolder implements the imagefolder input kind: image files sorted into
// <root>/<split>/<class>/ directories, resized to a square on load.
//
// A folder without a test directory can set test_percent: the test split is then a stable,
// name hashed share of the train directory.
package imagefolder

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/neurlang/convtrain/datasets"
	"github.com/neurlang/convtrain/definition"
	"github.com/neurlang/convtrain/hash"
	"github.com/neurlang/convtrain/parallel"
)

// Extensions are the decodable file extensions
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Config is the imagefolder input definition
type Config struct {
	datasets.Options

	Root     string   `toml:"root"`     // relative roots resolve against the data dir
	Size     int      `toml:"size"`     // stored side after resizing
	Channels int      `toml:"channels"` // 1 for grayscale, 3 for RGB
	Classes  []string `toml:"classes"`  // label order, default the sorted train directories

	TestPercent int `toml:"test_percent"` // share of train images held out when there is no test directory
}

// Folder is an image directory dataset
type Folder struct {
	Root        string
	Size        int
	Channels    int
	Classes     []string
	TestPercent int
}

// salt of the test split bucketing
const salt = 0x5eed

func init() {
	datasets.Kinds.Register("imagefolder", New)
}

// New builds the imagefolder pipeline from its definition
func New(f *definition.File) (datasets.Input, error) {
	c := Config{Options: datasets.DefaultOptions(), Size: 32, Channels: 3}
	if err := f.Decode(&c); err != nil {
		return nil, err
	}
	if c.Root == "" {
		return nil, errors.New("imagefolder: root is required")
	}
	if c.Size < 1 {
		return nil, fmt.Errorf("imagefolder: size must be positive, got %d", c.Size)
	}
	if c.Channels != 1 && c.Channels != 3 {
		return nil, fmt.Errorf("imagefolder: channels must be 1 or 3, got %d", c.Channels)
	}
	if c.TestPercent < 0 || c.TestPercent >= 100 {
		return nil, fmt.Errorf("imagefolder: test_percent must be in [0, 100), got %d", c.TestPercent)
	}
	return datasets.NewPipeline(&Folder{Root: c.Root, Size: c.Size, Channels: c.Channels, Classes: c.Classes, TestPercent: c.TestPercent}, c.Options)
}

func (d *Folder) NumClasses() int { return len(d.Classes) }
func (d *Folder) Shape() []int    { return []int{d.Size, d.Size, d.Channels} }

func (d *Folder) root(dataDir string) string {
	if filepath.IsAbs(d.Root) {
		return d.Root
	}
	return filepath.Join(dataDir, d.Root)
}

// MaybeDownloadAndExtract checks the folder exists and reads the class names when not configured
func (d *Folder) MaybeDownloadAndExtract(_ context.Context, dataDir string) error {
	train := filepath.Join(d.root(dataDir), datasets.Train.String())
	entries, err := os.ReadDir(train)
	if err != nil {
		return fmt.Errorf("imagefolder: %w", err)
	}
	if len(d.Classes) > 0 {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			d.Classes = append(d.Classes, e.Name())
		}
	}
	if len(d.Classes) == 0 {
		return fmt.Errorf("imagefolder: no class directories in %s", train)
	}
	return nil
}

type file struct {
	path  string
	label int
}

// Open decodes and resizes every image of a split
func (d *Folder) Open(dataDir string, split datasets.Split) (datasets.Source, error) {
	if len(d.Classes) == 0 {
		return nil, errors.New("imagefolder: classes are unknown before MaybeDownloadAndExtract")
	}
	files, err := d.list(dataDir, split)
	if err != nil {
		return nil, err
	}

	n := d.Size * d.Size * d.Channels
	pixels := make([]byte, len(files)*n)
	labels := make([]int, len(files))
	errs := make([]error, len(files))
	parallel.ForEach(len(files), 0, func(i int) {
		labels[i] = files[i].label
		errs[i] = d.load(files[i].path, pixels[i*n:(i+1)*n])
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return datasets.NewMemory(d.Shape(), pixels, labels)
}

// held reports whether a train directory image belongs to the hashed test share
func (d *Folder) held(class, name string) bool {
	return int(hash.Bucket(class+"/"+name, salt, 100)) < d.TestPercent
}

// list finds the image files of a split
func (d *Folder) list(dataDir string, split datasets.Split) ([]file, error) {
	dir := filepath.Join(d.root(dataDir), split.String())
	hashed := false
	if d.TestPercent > 0 {
		if _, err := os.Stat(filepath.Join(d.root(dataDir), datasets.Test.String())); errors.Is(err, os.ErrNotExist) {
			hashed = true
			dir = filepath.Join(d.root(dataDir), datasets.Train.String())
		}
	}
	var files []file
	for label, class := range d.Classes {
		entries, err := os.ReadDir(filepath.Join(dir, class))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			if hashed && d.held(class, e.Name()) != (split == datasets.Test) {
				continue
			}
			files = append(files, file{path: filepath.Join(dir, class, e.Name()), label: label})
		}
	}
	return files, nil
}

// load decodes one file into dst, scaled to Size x Size
func (d *Folder) load(path string, dst []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	rect := image.Rect(0, 0, d.Size, d.Size)
	if d.Channels == 1 {
		gray := image.NewGray(rect)
		draw.CatmullRom.Scale(gray, rect, src, src.Bounds(), draw.Src, nil)
		copy(dst, gray.Pix)
		return nil
	}
	rgba := image.NewRGBA(rect)
	draw.CatmullRom.Scale(rgba, rect, src, src.Bounds(), draw.Src, nil)
	for i := 0; i < d.Size*d.Size; i++ {
		copy(dst[3*i:3*i+3], rgba.Pix[4*i:4*i+3])
	}
	return nil
}
