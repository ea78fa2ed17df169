package cache

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
)

// Analysis payloads are stored as NPZ: a zip archive of NPY v1.0 arrays,
// one entry per named array, float32 little-endian throughout. The format
// is shared with numpy so curves survive tool changes.

var npyMagic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

// array is one named payload curve. 1D arrays leave Rows at 0; mel grids
// set Rows and store row-major data of Rows*Cols values.
type array struct {
	Rows int
	Data []float32
}

func (a array) cols() int {
	if a.Rows <= 0 {
		return len(a.Data)
	}
	return len(a.Data) / a.Rows
}

func writeNPY(w io.Writer, a array) error {
	var shape string
	if a.Rows > 0 {
		shape = fmt.Sprintf("(%d, %d)", a.Rows, a.cols())
	} else {
		shape = fmt.Sprintf("(%d,)", len(a.Data))
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': %s, }", shape)

	// Pad so magic+version+len+header is a multiple of 64, newline last.
	total := len(npyMagic) + 2 + 2 + len(header) + 1
	pad := (64 - total%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	buf := make([]byte, 4*len(a.Data))
	for i, v := range a.Data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

func readNPY(r io.Reader) (array, error) {
	head := make([]byte, 8)
	if _, err := io.ReadFull(r, head); err != nil {
		return array{}, fmt.Errorf("cache: npy header: %w", err)
	}
	if string(head[:6]) != string(npyMagic) {
		return array{}, fmt.Errorf("cache: not an npy array")
	}
	if head[6] != 1 {
		return array{}, fmt.Errorf("cache: unsupported npy version %d.%d", head[6], head[7])
	}
	var hlen uint16
	if err := binary.Read(r, binary.LittleEndian, &hlen); err != nil {
		return array{}, fmt.Errorf("cache: npy header: %w", err)
	}
	hdr := make([]byte, hlen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return array{}, fmt.Errorf("cache: npy header: %w", err)
	}
	header := string(hdr)
	if !strings.Contains(header, "'<f4'") {
		return array{}, fmt.Errorf("cache: npy dtype not <f4")
	}
	if strings.Contains(header, "'fortran_order': True") {
		return array{}, fmt.Errorf("cache: fortran order unsupported")
	}

	shape, err := parseShape(header)
	if err != nil {
		return array{}, err
	}
	n := 1
	for _, d := range shape {
		n *= d
	}

	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return array{}, fmt.Errorf("cache: npy data: %w", err)
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}

	a := array{Data: data}
	if len(shape) == 2 {
		a.Rows = shape[0]
	}
	return a, nil
}

func parseShape(header string) ([]int, error) {
	open := strings.Index(header, "(")
	end := strings.Index(header, ")")
	if open < 0 || end < open {
		return nil, fmt.Errorf("cache: npy shape missing")
	}
	var dims []int
	for _, part := range strings.Split(header[open+1:end], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("cache: bad npy shape %q", header[open:end+1])
		}
		dims = append(dims, d)
	}
	if len(dims) == 0 || len(dims) > 2 {
		return nil, fmt.Errorf("cache: npy rank %d unsupported", len(dims))
	}
	return dims, nil
}

// writeNPZ writes the named arrays as a deflate-compressed zip archive.
func writeNPZ(w io.Writer, arrays map[string]array) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	// Stable entry order keeps archives byte-comparable.
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, err := zw.Create(name + ".npy")
		if err != nil {
			zw.Close()
			return fmt.Errorf("cache: npz entry %s: %w", name, err)
		}
		if err := writeNPY(f, arrays[name]); err != nil {
			zw.Close()
			return fmt.Errorf("cache: npz entry %s: %w", name, err)
		}
	}
	return zw.Close()
}

func readNPZ(r io.ReaderAt, size int64) (map[string]array, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("cache: open npz: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})

	arrays := make(map[string]array, len(zr.File))
	for _, f := range zr.File {
		name := strings.TrimSuffix(f.Name, ".npy")
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("cache: npz entry %s: %w", f.Name, err)
		}
		a, err := readNPY(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("cache: npz entry %s: %w", f.Name, err)
		}
		arrays[name] = a
	}
	return arrays, nil
}
