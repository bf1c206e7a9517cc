package mnist

import "bytes"
import "compress/gzip"
import "encoding/binary"
import "os"
import "path/filepath"
import "testing"

import "github.com/neurlang/convtrain/datasets"

func writeIdx(t *testing.T, path string, magic uint32, dims []uint32, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	binary.Write(zw, binary.BigEndian, magic)
	for _, d := range dims {
		binary.Write(zw, binary.BigEndian, d)
	}
	zw.Write(payload)
	zw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpen(t *testing.T) {
	data := t.TempDir()
	dir := filepath.Join(data, "mnist")
	os.MkdirAll(dir, 0o755)

	pixels := make([]byte, 2*ImgSize*ImgSize)
	pixels[ImgSize*ImgSize] = 255
	writeIdx(t, filepath.Join(dir, inferSetImg), imagesMagic, []uint32{2, ImgSize, ImgSize}, pixels)
	writeIdx(t, filepath.Join(dir, inferSetVal), labelsMagic, []uint32{2}, []byte{3, 7})

	m := &MNIST{Dir: "mnist"}
	src, err := m.Open(data, datasets.Test)
	if err != nil {
		t.Fatal(err)
	}
	if src.Len() != 2 {
		t.Fatalf("Len = %d", src.Len())
	}
	img := make([]float32, ImgSize*ImgSize)
	if label := src.Example(1, img); label != 7 || img[0] != 255 {
		t.Errorf("example 1: label %d first pixel %v", label, img[0])
	}

	writeIdx(t, filepath.Join(dir, inferSetVal), imagesMagic, []uint32{2}, []byte{3, 7})
	if _, err := m.Open(data, datasets.Test); err == nil {
		t.Errorf("expected an error for a wrong magic number")
	}
}

func TestRemotes(t *testing.T) {
	m := &MNIST{Mirror: "http://mirror/mnist"}
	remotes := m.remotes()
	if len(remotes) != 4 {
		t.Fatalf("got %d remotes", len(remotes))
	}
	for _, r := range remotes {
		if r.URL != "http://mirror/mnist/"+r.Name || len(r.SHA256) != 64 {
			t.Errorf("unexpected remote %+v", r)
		}
	}
}
