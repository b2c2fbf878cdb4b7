package shapefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/paulmach/orb"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/tingold/orb-shapefile/dbf"
)

// AttributeTable is the attribute side of a shapefile. *dbf.Table
// implements it.
type AttributeTable interface {
	RowCount() int
	FieldCount() int
	Row(i int) ([]interface{}, error)
	InsertRow(values []interface{}) error
	Close() error
}

// Driver merges geometry records with attribute rows. A logical row holds
// the geometry, as a *Shape, at the geometry column and the attribute values
// around it in table order. Null geometry records read back as nil.
type Driver struct {
	opts *Options

	// read side
	reader *Reader
	index  *IndexReader

	// write side
	writer *Writer

	table   AttributeTable
	fields  []dbf.Field
	closers []io.Closer

	geomCol int
	srid    int
	prj     string
	err     error
	closed  bool
}

// NewDriver returns a read driver over an open geometry reader, its index
// and its attribute table. The row counts of index and table must match.
func NewDriver(r *Reader, index *IndexReader, table AttributeTable, opts *Options) (*Driver, error) {
	opts = opts.withDefaults()
	if index.Len() != table.RowCount() {
		return nil, fmt.Errorf("%w: %d geometry records, %d attribute rows", ErrCardinality, index.Len(), table.RowCount())
	}
	d := &Driver{opts: opts, reader: r, index: index, table: table, geomCol: opts.GeometryColumn, srid: opts.SRID}
	if t, ok := table.(*dbf.Table); ok {
		d.fields = t.Fields()
	}
	return d, nil
}

// NewWriteDriver returns a write driver over a geometry writer whose header
// is already written and an attribute table accepting rows.
func NewWriteDriver(w *Writer, table AttributeTable, opts *Options) (*Driver, error) {
	opts = opts.withDefaults()
	if w.ShapeType() == NullShape {
		return nil, fmt.Errorf("%w: WriteHeader not called", ErrIllegalState)
	}
	d := &Driver{opts: opts, writer: w, table: table, geomCol: opts.GeometryColumn, srid: opts.SRID, prj: opts.PRJ}
	if t, ok := table.(*dbf.Table); ok {
		d.fields = t.Fields()
	}
	return d, nil
}

// Create creates path.shp, .shx and .dbf, plus .cpg and, when opts.PRJ is
// set, .prj. Text attributes are written as UTF-8 unless opts.Encoding says
// otherwise.
func Create(path string, t ShapeType, fields []dbf.Field, opts *Options) (d *Driver, err error) {
	opts = opts.withDefaults()
	base := trimExt(path)

	var closers []io.Closer
	defer func() {
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
		}
	}()

	w, err := CreateWriter(base, opts)
	if err != nil {
		return nil, err
	}
	closers = append(closers, w)
	if err := w.WriteHeader(t); err != nil {
		return nil, err
	}

	enc := opts.Encoding
	if enc == nil {
		enc = unicode.UTF8
	}
	table, err := dbf.CreateFile(base+".dbf", fields, enc)
	if err != nil {
		return nil, err
	}
	closers = append(closers, table)

	if name := dbf.CPGName(enc); name != "" {
		if err := os.WriteFile(base+".cpg", []byte(name+"\n"), 0o644); err != nil {
			return nil, err
		}
	}
	if opts.PRJ != "" {
		if err := os.WriteFile(base+".prj", []byte(opts.PRJ), 0o644); err != nil {
			return nil, err
		}
	}

	d, err = NewWriteDriver(w, table, opts)
	if err != nil {
		return nil, err
	}
	level.Debug(opts.Logger).Log("msg", "created shapefile", "path", base+".shp", "type", t, "fields", len(fields))
	return d, nil
}

// Open opens path.shp with its .shx and .dbf siblings, found regardless of
// extension case. A .cpg sibling selects the text encoding unless
// opts.Encoding is set; a .prj sibling is exposed by PRJ.
func Open(path string, opts *Options) (d *Driver, err error) {
	opts = opts.withDefaults()
	base := trimExt(path)

	var closers []io.Closer
	defer func() {
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
		}
	}()

	shpPath, ok := findSibling(base, ".shp")
	if !ok {
		return nil, fmt.Errorf("shapefile: %s.shp not found", base)
	}
	shxPath, ok := findSibling(base, ".shx")
	if !ok {
		return nil, fmt.Errorf("shapefile: index file for %s not found", shpPath)
	}
	dbfPath, ok := findSibling(base, ".dbf")
	if !ok {
		return nil, fmt.Errorf("shapefile: attribute file for %s not found", shpPath)
	}

	r, err := OpenReader(shpPath, opts)
	if err != nil {
		return nil, err
	}
	closers = append(closers, r)

	shx, err := os.Open(shxPath)
	if err != nil {
		return nil, err
	}
	closers = append(closers, shx)
	index, err := OpenIndex(shx)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", shxPath, err)
	}

	enc := opts.Encoding
	if enc == nil {
		enc = readCPG(base, opts)
	}
	table, err := dbf.OpenFile(dbfPath, enc)
	if err != nil {
		return nil, err
	}
	closers = append(closers, table)

	d, err = NewDriver(r, index, table, opts)
	if err != nil {
		return nil, err
	}
	d.closers = []io.Closer{shx}
	if prjPath, ok := findSibling(base, ".prj"); ok {
		if b, err := os.ReadFile(prjPath); err == nil {
			d.prj = strings.TrimSpace(string(b))
		}
	}
	level.Debug(opts.Logger).Log("msg", "opened shapefile", "path", shpPath, "type", r.ShapeType(), "rows", index.Len())
	return d, nil
}

// readCPG returns the encoding named by a .cpg sibling, or nil.
func readCPG(base string, opts *Options) encoding.Encoding {
	cpgPath, ok := findSibling(base, ".cpg")
	if !ok {
		return nil
	}
	f, err := os.Open(cpgPath)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil
	}
	enc, err := dbf.EncodingFor(sc.Text())
	if err != nil {
		level.Warn(opts.Logger).Log("msg", "ignoring code page file", "path", cpgPath, "err", err)
		return nil
	}
	return enc
}

// findSibling looks for base+ext, ignoring the case of the whole file name.
func findSibling(base, ext string) (string, bool) {
	for _, p := range []string{base + ext, base + strings.ToUpper(ext)} {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	dir, name := filepath.Split(base)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), name+ext) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// SetGeometryColumn sets the position of the geometry in logical rows.
func (d *Driver) SetGeometryColumn(i int) {
	d.geomCol = i
}

// GeometryColumn returns the position of the geometry in logical rows.
func (d *Driver) GeometryColumn() int {
	return d.geomCol
}

// SRID returns the spatial reference id carried with the data.
func (d *Driver) SRID() int {
	return d.srid
}

// SetSRID sets the spatial reference id. It is not written to any file.
func (d *Driver) SetSRID(srid int) {
	d.srid = srid
}

// PRJ returns the projection WKT read from or written to the .prj file.
func (d *Driver) PRJ() string {
	return d.prj
}

// Fields returns the attribute field definitions when the table is a
// *dbf.Table.
func (d *Driver) Fields() []dbf.Field {
	return d.fields
}

// ShapeType returns the geometry shape type.
func (d *Driver) ShapeType() ShapeType {
	if d.reader != nil {
		return d.reader.ShapeType()
	}
	return d.writer.ShapeType()
}

// Header returns the geometry header: the parsed one when reading, the
// running one when writing.
func (d *Driver) Header() Header {
	if d.reader != nil {
		return d.reader.Header()
	}
	return Header{
		ShapeType:  d.writer.ShapeType(),
		Bound:      d.writer.Bound(),
		FileLength: int32(d.writer.offset / 2),
	}
}

// RowCount returns the number of logical rows.
func (d *Driver) RowCount() int {
	return d.table.RowCount()
}

// FieldCount returns the number of values in a logical row.
func (d *Driver) FieldCount() int {
	return d.table.FieldCount() + 1
}

// Row returns logical row i. A deleted attribute row yields nil attribute
// values.
func (d *Driver) Row(i int) ([]interface{}, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.reader == nil {
		return nil, fmt.Errorf("%w: driver opened for writing", ErrIllegalState)
	}
	attrs, err := d.table.Row(i)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = make([]interface{}, d.table.FieldCount())
	}
	s, err := d.shapeAt(i)
	if err != nil {
		return nil, err
	}
	return d.splice(attrs, s), nil
}

// Attributes returns the attribute values of row i without the geometry.
// A deleted attribute row yields nil.
func (d *Driver) Attributes(i int) ([]interface{}, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.reader == nil {
		return nil, fmt.Errorf("%w: driver opened for writing", ErrIllegalState)
	}
	return d.table.Row(i)
}

// Shape returns the geometry of row i, or nil for a null record.
func (d *Driver) Shape(i int) (*Shape, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.reader == nil {
		return nil, fmt.Errorf("%w: driver opened for writing", ErrIllegalState)
	}
	return d.shapeAt(i)
}

func (d *Driver) shapeAt(i int) (*Shape, error) {
	e, err := d.index.Entry(i)
	if err != nil {
		return nil, err
	}
	s, err := d.reader.RecordAt(e.ByteOffset())
	if err != nil {
		return nil, err
	}
	if s.IsNull() {
		return nil, nil
	}
	return s, nil
}

// splice places s at the geometry column, or after the attributes when the
// column lies beyond them.
func (d *Driver) splice(attrs []interface{}, s *Shape) []interface{} {
	col := d.geomCol
	if col < 0 || col > len(attrs) {
		col = len(attrs)
	}
	row := make([]interface{}, 0, len(attrs)+1)
	row = append(row, attrs[:col]...)
	if s == nil {
		row = append(row, nil)
	} else {
		row = append(row, s)
	}
	return append(row, attrs[col:]...)
}

// InsertRow appends a logical row. The geometry column must hold a *Shape,
// a Shape or an orb.Geometry; shapefiles cannot store null geometry values.
// The geometry is validated before anything is written so that a rejected
// row leaves both files unchanged.
func (d *Driver) InsertRow(values []interface{}) error {
	switch {
	case d.closed:
		return ErrClosed
	case d.writer == nil:
		return fmt.Errorf("%w: driver opened for reading", ErrIllegalState)
	case d.err != nil:
		return d.err
	case d.geomCol < 0 || d.geomCol >= len(values):
		return fmt.Errorf("%w: geometry column %d outside row of %d values", ErrMissingGeometry, d.geomCol, len(values))
	}

	s, err := toShape(values[d.geomCol])
	if err != nil {
		return fmt.Errorf("column %d: %w", d.geomCol, err)
	}
	if _, err := ContentLength(d.writer.ShapeType(), s); err != nil {
		return err
	}

	attrs := make([]interface{}, 0, len(values)-1)
	attrs = append(attrs, values[:d.geomCol]...)
	attrs = append(attrs, values[d.geomCol+1:]...)
	if err := d.table.InsertRow(attrs); err != nil {
		return err
	}
	if err := d.writer.WriteShape(s); err != nil {
		// The attribute row is already written; the files are out of step.
		d.err = fmt.Errorf("%w: geometry write failed after attribute row %d: %v", ErrCardinality, d.table.RowCount()-1, err)
		return d.err
	}
	return nil
}

func toShape(v interface{}) (*Shape, error) {
	switch g := v.(type) {
	case nil:
		return nil, ErrMissingGeometry
	case *Shape:
		if g.IsNull() {
			return nil, ErrMissingGeometry
		}
		return g, nil
	case Shape:
		if g.IsNull() {
			return nil, ErrMissingGeometry
		}
		return &g, nil
	case orb.Geometry:
		return &Shape{Geometry: g}, nil
	}
	return nil, fmt.Errorf("%w: %T is not a geometry", ErrGeometryType, v)
}

// Close releases all files. For write drivers it finalizes the headers.
// It is safe to call more than once.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.writer != nil {
		errs = append(errs, d.writer.Close())
	}
	if d.reader != nil {
		errs = append(errs, d.reader.Close())
	}
	errs = append(errs, d.table.Close())
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
