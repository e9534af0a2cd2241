package lst

import (
	"errors"
	"reflect"
	"sort"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/samber/lo"
	stgpsr "github.com/yuin/stagparser"
)

// ArrayOpen is a helper func for opening a tiledb array.
func ArrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}

	err = array.Open(mode)
	if err != nil {
		array.Free()
		return nil, err
	}

	return array, nil
}

// ArrayOpenWrite opens a tiledb array in write mode.
func ArrayOpenWrite(ctx *tiledb.Context, uri string) (*tiledb.Array, error) {
	return ArrayOpen(ctx, uri, tiledb.TILEDB_WRITE)
}

// AddFilters sequentially appends compression filters to the filter pipeline list.
func AddFilters(filter_list *tiledb.FilterList, filter ...*tiledb.Filter) error {
	for _, filt := range filter {
		err := filter_list.AddFilter(filt)
		if err != nil {
			return errors.Join(ErrAddFilters, err)
		}
	}

	return nil
}

// AttachFilters acts as a helper for when setting the same pipeline filter list to
// a bunch of attributes.
func AttachFilters(filter_list *tiledb.FilterList, attrs ...*tiledb.Attribute) error {
	for _, attr := range attrs {
		err := attr.SetFilterList(filter_list)
		if err != nil {
			return err
		}
	}

	return nil
}

// ZstdFilter initialises the Zstandard compression filter and sets the compression
// level.
func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, err
	}

	err = filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level)
	if err != nil {
		filt.Free()
		return nil, err
	}

	return filt, nil
}

// GzipFilter initialises the deflate compression filter and sets the compression
// level.
func GzipFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_GZIP)
	if err != nil {
		return nil, err
	}

	err = filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level)
	if err != nil {
		filt.Free()
		return nil, err
	}

	return filt, nil
}

// Lz4Filter initialises the LZ4 compression filter and sets the compression
// level.
func Lz4Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_LZ4)
	if err != nil {
		return nil, err
	}

	err = filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level)
	if err != nil {
		filt.Free()
		return nil, err
	}

	return filt, nil
}

// CreateAttr creates a tiledb attribute along with the compression filter
// pipeline. The configuration is specified by the tags attached to the
// struct type.
// Tags for tiledb include: dtype, ftype.
// Where dtype is datatype and ftype is fieldtype (dim or attr) for dimension
// or attribute (dim skips the field).
// Supported datatype values are int8, uint8, int16, uint16, int32, uint32,
// int64, uint64, float32, float64.
// Tags for filters include: zstd(level=16), gzip(level=6), lz4(level=6),
// bysh, bish.
// Where level indicates the compression level, zstd is zstandard, gzip is
// deflate, bysh is byteshuffle and bish is bitshuffle.
// Filters will be set in the order they're specified in the tag.
// An example tag is `tiledb:"dtype=uint32,ftype=attr" filters:"zstd(level=16)"`
func CreateAttr(
	field_name string,
	filter_defs []stgpsr.Definition,
	tiledb_defs map[string]stgpsr.Definition,
	schema *tiledb.ArraySchema,
	ctx *tiledb.Context,
) error {

	var (
		tdb_dtype tiledb.Datatype
		def       stgpsr.Definition
		status    bool
	)

	def, status = tiledb_defs["dtype"]
	if !status {
		return errors.Join(ErrCreateAttributeTdb, errors.New("dtype tag not found"))
	}
	dtype, _ := def.Attribute("dtype")

	// define datatype
	switch dtype {
	case "int8":
		tdb_dtype = tiledb.TILEDB_INT8
	case "uint8":
		tdb_dtype = tiledb.TILEDB_UINT8
	case "int16":
		tdb_dtype = tiledb.TILEDB_INT16
	case "uint16":
		tdb_dtype = tiledb.TILEDB_UINT16
	case "int32":
		tdb_dtype = tiledb.TILEDB_INT32
	case "uint32":
		tdb_dtype = tiledb.TILEDB_UINT32
	case "int64":
		tdb_dtype = tiledb.TILEDB_INT64
	case "uint64":
		tdb_dtype = tiledb.TILEDB_UINT64
	case "float32":
		tdb_dtype = tiledb.TILEDB_FLOAT32
	case "float64":
		tdb_dtype = tiledb.TILEDB_FLOAT64
	default:
		return errors.Join(ErrCreateAttributeTdb, errors.New("unsupported dtype"))
	}

	attr_filts, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer attr_filts.Free()

	// filter pipeline
	for _, filter := range filter_defs {
		switch filter.Name() {
		case "zstd":
			level, status := filter.Attribute("level")
			if !status {
				return errors.Join(ErrCreateAttributeTdb, errors.New("zstd level not defined"))
			}
			filt, err := ZstdFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			err = attr_filts.AddFilter(filt)
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		case "gzip":
			level, status := filter.Attribute("level")
			if !status {
				return errors.Join(ErrCreateAttributeTdb, errors.New("gzip level not defined"))
			}
			filt, err := GzipFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			err = attr_filts.AddFilter(filt)
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		case "lz4":
			level, status := filter.Attribute("level")
			if !status {
				return errors.Join(ErrCreateAttributeTdb, errors.New("lz4 level not defined"))
			}
			filt, err := Lz4Filter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			err = attr_filts.AddFilter(filt)
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		case "bish":
			filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BITSHUFFLE)
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			err = attr_filts.AddFilter(filt)
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		case "bysh":
			filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BYTESHUFFLE)
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			err = attr_filts.AddFilter(filt)
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		}
	}

	// create attr
	attr, err := tiledb.NewAttribute(ctx, field_name, tdb_dtype)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer attr.Free()

	// attach filter pipeline to attr
	err = AttachFilters(attr_filts, attr)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}

	// attach attr to schema
	err = schema.AddAttributes(attr)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}

	return nil
}

// histogramCells defines the cell schema for an exported histogram cube.
// A single uint32 counts attribute compressed with zstandard.
type histogramCells struct {
	Counts []uint32 `tiledb:"dtype=uint32,ftype=attr" filters:"zstd(level=16)"`
}

// schemaAttrs establishes the tiledb attributes for the histogram cells.
func (d *Dataset) schemaAttrs(schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	var (
		field_tdb_defs map[string]stgpsr.Definition
		def            stgpsr.Definition
		status         bool
	)

	cells := &histogramCells{}
	values := reflect.ValueOf(cells).Elem()
	types := values.Type()
	filt_defs, _ := stgpsr.ParseStruct(cells, "filters")
	tdb_defs, _ := stgpsr.ParseStruct(cells, "tiledb")

	// process every field in the struct
	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name

		field_filt_defs := filt_defs[name]

		// a mapping just seemed easier to pull required defs
		// rather than a simple listing
		field_tdb_defs = make(map[string]stgpsr.Definition)
		for _, v := range tdb_defs[name] {
			field_tdb_defs[v.Name()] = v
		}

		// pull the field type and ignore dimension fields
		def, status = field_tdb_defs["ftype"]
		if !status {
			return errors.Join(ErrCreateHistogramTdb, errors.New("ftype tag not found"))
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			// ignore dimensions
			continue
		}

		err := CreateAttr(name, field_filt_defs, field_tdb_defs, schema, ctx)
		if err != nil {
			return errors.Join(ErrCreateHistogramTdb, err)
		}
	}

	return nil
}

// histogram_tiledb_array establishes the schema and array on disk/object store.
// The cube is stored as a dense 3D array with Y, X and CHANNEL as the
// queryable dimensions, matching the in-memory axis ordering.
func (d *Dataset) histogram_tiledb_array(file_uri string, ctx *tiledb.Context) error {
	ny := uint64(d.Data.Ny)
	nx := uint64(d.Data.Nx)
	nz := uint64(d.Data.Nz)

	// channel tiles bound the read granularity for spectrum extraction
	tile_z := min(nz, uint64(512))

	// array domain
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}
	defer domain.Free()

	dim_filters, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}
	defer dim_filters.Free()

	dim_filt, err := ZstdFilter(ctx, int32(16))
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}
	defer dim_filt.Free()

	err = AddFilters(dim_filters, dim_filt)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}

	dim_extents := []struct {
		name string
		n    uint64
		tile uint64
	}{
		{"Y", ny, ny},
		{"X", nx, nx},
		{"CHANNEL", nz, tile_z},
	}

	for _, extent := range dim_extents {
		dim, err := tiledb.NewDimension(ctx, extent.name, tiledb.TILEDB_UINT64, []uint64{0, extent.n - uint64(1)}, extent.tile)
		if err != nil {
			return errors.Join(ErrCreateHistogramTdb, err)
		}
		defer dim.Free()

		err = dim.SetFilterList(dim_filters)
		if err != nil {
			return errors.Join(ErrCreateHistogramTdb, err)
		}

		err = domain.AddDimensions(dim)
		if err != nil {
			return errors.Join(ErrCreateHistogramTdb, err)
		}
	}

	// setup schema
	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}
	defer schema.Free()

	err = schema.SetDomain(domain)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}

	err = schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}

	err = schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}

	// add the struct fields as tiledb attributes
	err = d.schemaAttrs(schema, ctx)
	if err != nil {
		return err
	}

	// finally, create the empty array on disk, object store, etc
	array, err := tiledb.NewArray(ctx, file_uri)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}
	defer array.Free()

	err = array.Create(schema)
	if err != nil {
		return errors.Join(ErrCreateHistogramTdb, err)
	}

	return nil
}

// ToTileDB writes the histogram cube to a dense TileDB array.
// Column structure:
// [Y (dim), X (dim), CHANNEL (dim), Counts (attr)].
// The dataset attributes are attached as array metadata along with the
// dataset name and cube shape.
func (d *Dataset) ToTileDB(file_uri string, ctx *tiledb.Context) error {
	err := d.histogram_tiledb_array(file_uri, ctx)
	if err != nil {
		return err
	}

	// open the array for writing the histogram data
	array, err := ArrayOpenWrite(ctx, file_uri)
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}
	defer array.Free()
	defer array.Close()

	// query construction
	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}
	defer query.Free()

	err = query.SetLayout(tiledb.TILEDB_ROW_MAJOR)
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}

	_, err = query.SetDataBuffer("Counts", d.Data.Data)
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}

	// define the subarray (dim coordinates that we'll write into)
	subarr, err := array.NewSubarray()
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}
	defer subarr.Free()

	ranges := map[string]uint64{
		"Y":       uint64(d.Data.Ny),
		"X":       uint64(d.Data.Nx),
		"CHANNEL": uint64(d.Data.Nz),
	}
	for _, name := range []string{"Y", "X", "CHANNEL"} {
		rng := tiledb.MakeRange(uint64(0), ranges[name]-uint64(1))
		err = subarr.AddRangeByName(name, rng)
		if err != nil {
			return errors.Join(ErrWriteHistogramTdb, err)
		}
	}

	err = query.SetSubarray(subarr)
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}

	// write the data flush
	err = query.Submit()
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}

	err = query.Finalize()
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}

	err = array.PutMetadata("dataset_name", d.Name)
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}

	shape, err := JsonDumps(d.Data.Shape())
	if err != nil {
		return err
	}
	err = array.PutMetadata("shape", shape)
	if err != nil {
		return errors.Join(ErrWriteHistogramTdb, err)
	}

	keys := lo.Keys(d.Attributes)
	sort.Strings(keys)
	for _, key := range keys {
		err = array.PutMetadata(key, d.Attributes[key])
		if err != nil {
			return errors.Join(ErrWriteHistogramTdb, err)
		}
	}

	return nil
}

// WriteArrayMetadata is a helper for attaching/writing metadata to a TileDB array.
// The metadata is converted to JSON before writing to TileDB.
func WriteArrayMetadata(ctx *tiledb.Context, array_uri, key string, md any) error {
	array, err := ArrayOpenWrite(ctx, array_uri)
	if err != nil {
		return errors.Join(err, errors.New("Error opening (w) TileDB array: "+array_uri))
	}
	defer array.Free()
	defer array.Close()

	jsn, err := JsonDumps(md)
	if err != nil {
		return errors.Join(err, errors.New("Error serialising metadata to JSON"))
	}

	err = array.PutMetadata(key, jsn)
	if err != nil {
		return errors.Join(err, errors.New("Error writing metadata to array: "+array_uri))
	}

	return nil
}
