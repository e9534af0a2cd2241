package search

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

var ErrSearch = errors.New("Error Searching for LST files")

// Candidate is a single LST file discovered under a search uri, ready to be
// handed to OpenLst.
type Candidate struct {
	Uri  string
	Size uint64
}

// isLst reports whether a discovered path looks like an LST file.
// Acquisition stations have produced both .lst and .LST over the years, so
// the extension is matched case-insensitively.
func isLst(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".lst")
}

// FindLst recursively searches for LST files under a given URI.
// The TileDB VFS is used for the listing so the uri can point at a local
// filesystem or an object store such as AWS-S3; a TileDB config is required
// for object stores with permission constraints.
// Empty files are dropped here rather than surfacing later as header
// failures; an LST file always starts with a textual preamble, so a
// zero-byte file cannot be one. Candidates are returned in lexicographic
// uri order, keeping batch conversions deterministic between runs.
func FindLst(uri string, config_uri string) ([]Candidate, error) {
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
		return nil, errors.Join(ErrSearch, err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return nil, errors.Join(ErrSearch, err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return nil, errors.Join(ErrSearch, err)
	}
	defer vfs.Free()

	// iterative walk; directories still to visit are kept on a pending list
	pending := []string{uri}
	candidates := make([]Candidate, 0)

	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		dirs, files, err := vfs.List(current)
		if err != nil {
			return nil, errors.Join(ErrSearch, err)
		}
		pending = append(pending, dirs...)

		for _, file := range files {
			if !isLst(file) {
				continue
			}

			size, err := vfs.FileSize(file)
			if err != nil {
				return nil, errors.Join(ErrSearch, err)
			}
			if size == 0 {
				continue
			}

			candidates = append(candidates, Candidate{Uri: file, Size: size})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Uri < candidates[j].Uri })

	return candidates, nil
}
