package cubeio

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contsub/internal/models"
)

func TestCube_WriteRead(t *testing.T) {
	c := models.NewCube(3, 2, 4)
	for i := range c.Data {
		c.Data[i] = float64(i) - 7.5
	}
	c.Data[5] = math.NaN()

	var buf bytes.Buffer
	require.NoError(t, WriteCube(&buf, c))
	assert.Equal(t, 19+8*c.Size(), buf.Len())
	assert.Equal(t, "CSUB", string(buf.Bytes()[:4]))

	got, err := ReadCube(&buf)
	require.NoError(t, err)
	assert.Equal(t, c.Shape, got.Shape)
	assert.True(t, math.IsNaN(got.Data[5]))
	got.Data[5], c.Data[5] = 0, 0
	assert.Equal(t, c.Data, got.Data)
}

func TestHeader_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAxis(&buf, models.SpectralAxis{1, 2, 3}))
	b := buf.Bytes()
	assert.Equal(t, Version, binary.LittleEndian.Uint16(b[4:6]))
	assert.Equal(t, byte(KindAxis), b[6])
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(b[7:11]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(b[11:15]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(b[15:19]))
	assert.Equal(t, 2.0, math.Float64frombits(binary.LittleEndian.Uint64(b[27:35])))
}

func TestFiles_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	mask := models.NewMask(2, 3, 3, true)
	mask.Set(1, 2, 0, false)
	require.NoError(t, SaveMask(filepath.Join(dir, "mask.csub"), mask))
	gotMask, err := LoadMask(filepath.Join(dir, "mask.csub"))
	require.NoError(t, err)
	assert.Equal(t, mask, gotMask)

	axis := models.SpectralAxis{1.42e9, 1.4201e9, 1.4202e9}
	require.NoError(t, SaveAxis(filepath.Join(dir, "axis.csub"), axis))
	gotAxis, err := LoadAxis(filepath.Join(dir, "axis.csub"))
	require.NoError(t, err)
	assert.Equal(t, axis, gotAxis)

	cube := models.NewCube(1, 1, 2)
	cube.Data[1] = 3
	require.NoError(t, SaveCube(filepath.Join(dir, "cube.csub"), cube))
	gotCube, err := LoadCube(filepath.Join(dir, "cube.csub"))
	require.NoError(t, err)
	assert.Equal(t, cube, gotCube)
}

func TestRead_Rejects(t *testing.T) {
	var cube bytes.Buffer
	require.NoError(t, WriteCube(&cube, models.NewCube(2, 2, 2)))
	valid := cube.Bytes()

	t.Run("wrong kind", func(t *testing.T) {
		_, err := ReadMask(bytes.NewReader(valid))
		assert.ErrorIs(t, err, ErrWrongKind)
	})
	t.Run("bad magic", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		b[0] = 'X'
		_, err := ReadCube(bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrBadMagic)
	})
	t.Run("version", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint16(b[4:6], 9)
		_, err := ReadCube(bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrVersion)
	})
	t.Run("zero dims", func(t *testing.T) {
		b := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(b[7:11], 0)
		_, err := ReadCube(bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrBadHeader)
	})
	t.Run("truncated payload", func(t *testing.T) {
		_, err := ReadCube(bytes.NewReader(valid[:len(valid)-3]))
		assert.ErrorIs(t, err, ErrTruncated)
	})
	t.Run("truncated header", func(t *testing.T) {
		_, err := ReadCube(bytes.NewReader(valid[:10]))
		assert.ErrorIs(t, err, ErrTruncated)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCube(filepath.Join(t.TempDir(), "none.csub"))
		assert.Error(t, err)
	})
}

func TestWrite_RejectsInconsistentShape(t *testing.T) {
	c := &models.Cube{Data: make([]float64, 3), Shape: models.Shape{Channels: 2, Height: 2, Width: 2}}
	assert.ErrorIs(t, WriteCube(&bytes.Buffer{}, c), models.ErrDimensionMismatch)
	assert.ErrorIs(t, WriteAxis(&bytes.Buffer{}, nil), models.ErrEmptyCube)
}
