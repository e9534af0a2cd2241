package lst

import (
	"encoding/json"
	"errors"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/samber/lo"
)

// ConversionMetadata is the JSON document summarising one converted LST
// file; the global attributes, the per-detector event tallies and the names
// of the emitted datasets.
type ConversionMetadata struct {
	Lst_uri           string            `json:"lst_uri"`
	Attributes        map[string]string `json:"attributes"`
	Nb_events         map[string]uint64 `json:"nb_events"`
	Datasets          []string          `json:"datasets"`
	Computed_datasets []string          `json:"computed_datasets"`
}

// Metadata summarises the parsing result for serialisation alongside the
// converted data.
func (r *ParsingResult) Metadata(lst_uri string) ConversionMetadata {
	names := func(dataset Dataset, _ int) string { return dataset.Name }

	return ConversionMetadata{
		Lst_uri:           lst_uri,
		Attributes:        r.Attributes,
		Nb_events:         r.Nb_events,
		Datasets:          lo.Map(r.Datasets, names),
		Computed_datasets: lo.Map(r.Computed_datasets, names),
	}
}

// WriteJson serialises data to a JSON file. The output location can be
// local or an object store such as s3.
func WriteJson(file_uri string, config_uri string, data any) (int, error) {
	var (
		config *tiledb.Config
		err    error
	)

	// get a generic config if no path provided
	if config_uri == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(config_uri)
	}
	if err != nil {
		return 0, errors.Join(ErrWriteJson, err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return 0, errors.Join(ErrWriteJson, err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return 0, errors.Join(ErrWriteJson, err)
	}
	defer vfs.Free()

	// the vfs api auto checks for a file's existence and removes it if we are wanting to write
	stream, err := vfs.Open(file_uri, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, errors.Join(ErrWriteJson, err)
	}
	defer stream.Close()

	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return 0, errors.Join(ErrWriteJson, err)
	}

	bytes_written, err := stream.Write(jsn)
	if err != nil {
		return 0, errors.Join(ErrWriteJson, err)
	}

	return bytes_written, nil
}

// JsonDumps constructs a JSON string of the supplied data.
func JsonDumps(data any) (string, error) {
	jsn, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return string(jsn), nil
}

// JsonIndentDumps constructs a json string of the supplied data using an
// indentation of four spaces.
func JsonIndentDumps(data any) (string, error) {
	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return "", err
	}

	return string(jsn), nil
}
