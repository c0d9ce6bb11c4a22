// Package cubeio reads and writes cubes, masks and spectral axes in a small
// little-endian binary format.
//
// Every file starts with a 19 byte header:
//
//	magic    [4]byte  "CSUB"
//	version  uint16
//	kind     uint8    1 = float64 cube, 2 = bool mask, 3 = spectral axis
//	dims     [3]uint32 channels, height, width
//
// The payload follows in (channel, y, x) order: float64 values for cubes and
// axes, one byte per sample for masks.
package cubeio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"contsub/internal/models"
)

// Kind identifies the payload of a file.
type Kind uint8

const (
	KindCube Kind = 1
	KindMask Kind = 2
	KindAxis Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindCube:
		return "cube"
	case KindMask:
		return "mask"
	case KindAxis:
		return "axis"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Version is the format version written by this package.
const Version uint16 = 1

// maxElements bounds the payload size accepted from a header.
const maxElements = 1 << 31

var magic = [4]byte{'C', 'S', 'U', 'B'}

var (
	ErrBadMagic  = errors.New("cubeio: not a cube file")
	ErrVersion   = errors.New("cubeio: unsupported format version")
	ErrWrongKind = errors.New("cubeio: unexpected payload kind")
	ErrBadHeader = errors.New("cubeio: invalid dimensions in header")
	ErrTruncated = errors.New("cubeio: truncated payload")
)

type header struct {
	Magic   [4]byte
	Version uint16
	Kind    Kind
	Dims    [3]uint32
}

func writeHeader(w io.Writer, kind Kind, s models.Shape) error {
	h := header{Magic: magic, Version: Version, Kind: kind}
	h.Dims = [3]uint32{uint32(s.Channels), uint32(s.Height), uint32(s.Width)}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	return nil
}

func readHeader(r io.Reader, want Kind) (models.Shape, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return models.Shape{}, fmt.Errorf("%w: header", ErrTruncated)
		}
		return models.Shape{}, fmt.Errorf("error reading header: %w", err)
	}
	if h.Magic != magic {
		return models.Shape{}, ErrBadMagic
	}
	if h.Version != Version {
		return models.Shape{}, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if h.Kind != want {
		return models.Shape{}, fmt.Errorf("%w: got %s, want %s", ErrWrongKind, h.Kind, want)
	}
	s := models.Shape{Channels: int(h.Dims[0]), Height: int(h.Dims[1]), Width: int(h.Dims[2])}
	n := uint64(h.Dims[0]) * uint64(h.Dims[1]) * uint64(h.Dims[2])
	if n == 0 || n > maxElements {
		return models.Shape{}, fmt.Errorf("%w: %s", ErrBadHeader, s)
	}
	return s, nil
}

func readPayload(r io.Reader, data any) error {
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return fmt.Errorf("error reading payload: %w", err)
	}
	return nil
}

// WriteCube writes c to w.
func WriteCube(w io.Writer, c *models.Cube) error {
	if len(c.Data) != c.Size() || c.Size() == 0 {
		return fmt.Errorf("%w: %d values for shape %s", models.ErrDimensionMismatch, len(c.Data), c.Shape)
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, KindCube, c.Shape); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, c.Data); err != nil {
		return fmt.Errorf("error writing cube data: %w", err)
	}
	return bw.Flush()
}

// ReadCube reads a cube written by WriteCube.
func ReadCube(r io.Reader) (*models.Cube, error) {
	br := bufio.NewReader(r)
	s, err := readHeader(br, KindCube)
	if err != nil {
		return nil, err
	}
	data := make([]float64, s.Size())
	if err := readPayload(br, data); err != nil {
		return nil, err
	}
	return models.NewCubeFromData(data, s.Channels, s.Height, s.Width)
}

// WriteMask writes m to w, one byte per sample.
func WriteMask(w io.Writer, m *models.Mask) error {
	if len(m.Data) != m.Size() || m.Size() == 0 {
		return fmt.Errorf("%w: %d values for shape %s", models.ErrDimensionMismatch, len(m.Data), m.Shape)
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, KindMask, m.Shape); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, m.Data); err != nil {
		return fmt.Errorf("error writing mask data: %w", err)
	}
	return bw.Flush()
}

// ReadMask reads a mask written by WriteMask.
func ReadMask(r io.Reader) (*models.Mask, error) {
	br := bufio.NewReader(r)
	s, err := readHeader(br, KindMask)
	if err != nil {
		return nil, err
	}
	m := models.NewMask(s.Channels, s.Height, s.Width, false)
	if err := readPayload(br, m.Data); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteAxis writes a spectral axis as an (n, 1, 1) payload.
func WriteAxis(w io.Writer, axis models.SpectralAxis) error {
	if len(axis) == 0 {
		return fmt.Errorf("%w: empty axis", models.ErrEmptyCube)
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, KindAxis, models.Shape{Channels: len(axis), Height: 1, Width: 1}); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, []float64(axis)); err != nil {
		return fmt.Errorf("error writing axis: %w", err)
	}
	return bw.Flush()
}

// ReadAxis reads a spectral axis written by WriteAxis.
func ReadAxis(r io.Reader) (models.SpectralAxis, error) {
	br := bufio.NewReader(r)
	s, err := readHeader(br, KindAxis)
	if err != nil {
		return nil, err
	}
	if s.Height != 1 || s.Width != 1 {
		return nil, fmt.Errorf("%w: axis shape %s", ErrBadHeader, s)
	}
	axis := make([]float64, s.Channels)
	if err := readPayload(br, axis); err != nil {
		return nil, err
	}
	return models.SpectralAxis(axis), nil
}

// SaveCube writes c to path, creating parent directories.
func SaveCube(path string, c *models.Cube) error {
	return save(path, func(w io.Writer) error { return WriteCube(w, c) })
}

// LoadCube reads a cube from path.
func LoadCube(path string) (*models.Cube, error) {
	var c *models.Cube
	err := load(path, func(r io.Reader) (err error) {
		c, err = ReadCube(r)
		return err
	})
	return c, err
}

// SaveMask writes m to path, creating parent directories.
func SaveMask(path string, m *models.Mask) error {
	return save(path, func(w io.Writer) error { return WriteMask(w, m) })
}

// LoadMask reads a mask from path.
func LoadMask(path string) (*models.Mask, error) {
	var m *models.Mask
	err := load(path, func(r io.Reader) (err error) {
		m, err = ReadMask(r)
		return err
	})
	return m, err
}

// SaveAxis writes axis to path, creating parent directories.
func SaveAxis(path string, axis models.SpectralAxis) error {
	return save(path, func(w io.Writer) error { return WriteAxis(w, axis) })
}

// LoadAxis reads a spectral axis from path.
func LoadAxis(path string) (models.SpectralAxis, error) {
	var a models.SpectralAxis
	err := load(path, func(r io.Reader) (err error) {
		a, err = ReadAxis(r)
		return err
	})
	return a, err
}

func save(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func load(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()
	if err := read(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
