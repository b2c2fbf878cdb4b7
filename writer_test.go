package shapefile

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// writeMem writes geoms to in-memory .shp and .shx files.
func writeMem(t *testing.T, st ShapeType, geoms ...orb.Geometry) (shp, shx *bin.MemFile) {
	t.Helper()
	shp, shx = bin.NewMemFile(nil), bin.NewMemFile(nil)
	w := NewWriter(shp, shx, nil)
	require.NoError(t, w.WriteHeader(st))
	for _, g := range geoms {
		require.NoError(t, w.WriteGeometry(g))
	}
	require.NoError(t, w.Close())
	return shp, shx
}

func TestWriter_PolygonWithHoleLayout(t *testing.T) {
	poly := orb.Polygon{cwSquare(0, 0, 10, 10), ccwSquare(2, 2, 4, 4)}
	shpFile, shxFile := writeMem(t, Polygon, poly)

	be, le := binary.BigEndian, binary.LittleEndian

	shp := shpFile.Bytes()
	require.Len(t, shp, 320)
	require.Equal(t, uint32(FileCode), be.Uint32(shp[0:4]))
	require.Equal(t, uint32(160), be.Uint32(shp[24:28]))
	require.Equal(t, uint32(Polygon), le.Uint32(shp[32:36]))

	h, err := ReadHeader(bin.FromBytes(shp))
	require.NoError(t, err)
	require.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}, h.Bound)

	require.Equal(t, uint32(1), be.Uint32(shp[100:104]))
	require.Equal(t, uint32(106), be.Uint32(shp[104:108]))

	content := shp[108:]
	require.Equal(t, uint32(5), le.Uint32(content[0:4]))
	require.Equal(t, uint32(2), le.Uint32(content[36:40]))
	require.Equal(t, uint32(10), le.Uint32(content[40:44]))
	require.Equal(t, uint32(0), le.Uint32(content[44:48]))
	require.Equal(t, uint32(5), le.Uint32(content[48:52]))

	shx := shxFile.Bytes()
	require.Len(t, shx, 108)
	require.Equal(t, uint32(54), be.Uint32(shx[24:28]))
	require.Equal(t, shp[28:100], shx[28:100])
	require.Equal(t, uint32(50), be.Uint32(shx[100:104]))
	require.Equal(t, uint32(106), be.Uint32(shx[104:108]))

	r, err := NewReader(shpFile, nil)
	require.NoError(t, err)
	s, err := r.RecordAt(HeaderSize)
	require.NoError(t, err)
	require.Equal(t, orb.MultiPolygon{poly}, s.Geometry)
}

func TestWriter_EmptyFile(t *testing.T) {
	shp, shx := writeMem(t, PointZ)

	require.Len(t, shp.Bytes(), HeaderSize)
	require.Len(t, shx.Bytes(), HeaderSize)

	h, err := ReadHeader(bin.FromBytes(shp.Bytes()))
	require.NoError(t, err)
	require.Equal(t, Header{ShapeType: PointZ, FileLength: 50}, h)
}

func TestWriter_NullRecordsAndOffsets(t *testing.T) {
	geoms := []orb.Geometry{
		orb.LineString{{0, 0}, {1, 1}},
		nil,
		orb.MultiLineString{{{5, 5}, {6, 7}}, {{-1, -2}, {0, 0}, {3, 3}}},
		nil,
	}
	shp, shx := writeMem(t, PolyLine, geoms...)

	idx, err := OpenIndex(shx)
	require.NoError(t, err)
	require.Equal(t, len(geoms), idx.Len())

	entries, err := idx.Entries()
	require.NoError(t, err)
	require.Equal(t, int32(50), entries[0].Offset)
	require.Equal(t, int32(2), entries[1].ContentLength)
	require.Equal(t, int32(2), entries[3].ContentLength)
	for i := 1; i < len(entries); i++ {
		prev := entries[i-1]
		require.Equal(t, prev.Offset+4+prev.ContentLength, entries[i].Offset)
	}

	last := entries[len(entries)-1]
	require.Equal(t, int64(len(shp.Bytes())), last.ByteOffset()+recordHeaderSize+last.ContentBytes())

	r, err := NewReader(shp, nil)
	require.NoError(t, err)
	require.Equal(t, orb.Bound{Min: orb.Point{-1, -2}, Max: orb.Point{6, 7}}, r.Header().Bound)

	for i, e := range entries {
		s, err := r.RecordAt(e.ByteOffset())
		require.NoError(t, err)
		require.Equal(t, geoms[i] == nil, s.IsNull(), "record %d", i)
	}
}

func TestWriter_IllegalState(t *testing.T) {
	w := NewWriter(bin.NewMemFile(nil), bin.NewMemFile(nil), nil)

	err := w.WriteGeometry(orb.Point{1, 1})
	require.ErrorIs(t, err, ErrIllegalState)

	require.ErrorIs(t, w.WriteHeader(NullShape), ErrUnsupportedShapeType)
	require.ErrorIs(t, w.WriteHeader(ShapeType(2)), ErrUnsupportedShapeType)

	require.NoError(t, w.WriteHeader(Point))
	require.NoError(t, w.WriteHeader(Point))
	require.ErrorIs(t, w.WriteHeader(PolyLine), ErrIllegalState)

	require.NoError(t, w.WriteGeometry(orb.Point{1, 1}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	require.ErrorIs(t, w.WriteGeometry(orb.Point{2, 2}), ErrClosed)
	require.ErrorIs(t, w.WriteHeader(Point), ErrClosed)
	require.Equal(t, 1, w.Count())
}

func TestWriter_RejectedRecordLeavesFileConsistent(t *testing.T) {
	shpFile, shxFile := bin.NewMemFile(nil), bin.NewMemFile(nil)
	w := NewWriter(shpFile, shxFile, nil)
	require.NoError(t, w.WriteHeader(Point))
	require.NoError(t, w.WriteGeometry(orb.Point{1, 1}))

	err := w.WriteGeometry(orb.LineString{{0, 0}, {1, 1}})
	require.ErrorIs(t, err, ErrGeometryType)
	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	require.Equal(t, int64(HeaderSize+28), recErr.Offset)

	require.NoError(t, w.WriteGeometry(orb.Point{3, 4}))
	require.NoError(t, w.Close())
	require.Equal(t, 2, w.Count())
	require.Equal(t, orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{3, 4}}, w.Bound())

	r, err := NewReader(shpFile, nil)
	require.NoError(t, err)
	var got []orb.Geometry
	var numbers []int32
	sc := r.Records()
	for sc.Next() {
		got = append(got, sc.Shape().Geometry)
		numbers = append(numbers, sc.Number())
	}
	require.NoError(t, sc.Err())
	require.Equal(t, []orb.Geometry{orb.Point{1, 1}, orb.Point{3, 4}}, got)
	require.Equal(t, []int32{1, 2}, numbers)
}

// discardAt accepts writes at any offset and keeps nothing.
type discardAt struct{}

func (discardAt) WriteAt(p []byte, off int64) (int, error) { return len(p), nil }

func TestWriter_SizeLimit(t *testing.T) {
	const pointRecord = 28

	tests := []struct {
		name   string
		offset int64
		fits   bool
	}{
		{"last record ends at limit", maxFileBytes - pointRecord, true},
		{"record crosses limit", maxFileBytes - pointRecord + 2, false},
		{"already at limit", maxFileBytes, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shx := bin.NewMemFile(nil)
			w := NewWriter(discardAt{}, shx, nil)
			require.NoError(t, w.WriteHeader(Point))
			w.offset = tt.offset

			err := w.WriteGeometry(orb.Point{1, 2})
			if tt.fits {
				require.NoError(t, err)
				require.Equal(t, 1, w.Count())
				require.Equal(t, int64(maxFileBytes), w.offset)

				entry := shx.Bytes()[HeaderSize:]
				require.Equal(t, uint32(tt.offset/2), binary.BigEndian.Uint32(entry))

				err = w.WriteGeometry(orb.Point{3, 4})
				tt.offset = maxFileBytes
			}
			require.ErrorIs(t, err, ErrFileTooLarge)
			var recErr *RecordError
			require.True(t, errors.As(err, &recErr))
			require.Equal(t, tt.offset, recErr.Offset)
			require.Equal(t, tt.offset, w.offset)

			want := 0
			if tt.fits {
				want = 1
			}
			require.Equal(t, want, w.Count())
			require.Len(t, shx.Bytes(), HeaderSize+want*indexEntrySize)
		})
	}
}

func TestCreateWriter_Files(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateWriter(filepath.Join(dir, "roads.SHP"), nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(MultiPointM))
	require.NoError(t, w.WriteShape(&Shape{
		Geometry: orb.MultiPoint{{1, 2}, {3, 4}},
		M:        []float64{10, 20},
	}))
	require.NoError(t, w.Close())

	shx, err := os.ReadFile(filepath.Join(dir, "roads.shx"))
	require.NoError(t, err)
	require.Len(t, shx, HeaderSize+indexEntrySize)

	r, err := OpenReader(filepath.Join(dir, "roads.shp"), nil)
	require.NoError(t, err)
	defer r.Close()

	s, err := r.RecordAt(HeaderSize)
	require.NoError(t, err)
	require.Equal(t, orb.MultiPoint{{1, 2}, {3, 4}}, s.Geometry)
	require.Equal(t, []float64{10, 20}, s.M)
}
