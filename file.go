package lst

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// LstFile contains the relevant information for an opened LST file to enable
// streamed reading.
// The parser consumes an LST file strictly forward (the textual preamble,
// then the event words), so the stream handed to it is a plain io.Reader;
// seeking is not part of the contract.
type LstFile struct {
	Uri      string
	filesize uint64
	config   *tiledb.Config
	ctx      *tiledb.Context
	vfs      *tiledb.VFS
	handler  *tiledb.VFSfh
	stream   io.Reader
}

// OpenLst opens an LST file for streamed IO and constructs an LstFile type.
// The file is accessed through the TileDB VFS so the uri can point at a
// local filesystem or an object store. When in_memory is set, the whole
// file is materialised into an in-memory byte stream up front, which pays
// off when the backing store is remote and the event section is large.
// An empty file is rejected here; it cannot carry the [LISTDATA] preamble,
// so handing it to the parser would only produce a confusing header error.
func OpenLst(lst_uri string, config_uri string, in_memory bool) (LstFile, error) {
	var (
		lst    LstFile
		config *tiledb.Config
		err    error
	)

	lst.Uri = lst_uri

	// get a generic config if no path provided
	if config_uri == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(config_uri)
	}
	if err != nil {
		return lst, errors.Join(ErrOpenLst, err)
	}
	lst.config = config

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return lst, errors.Join(ErrOpenLst, err)
	}
	lst.ctx = ctx

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return lst, errors.Join(ErrOpenLst, err)
	}
	lst.vfs = vfs

	filesize, err := vfs.FileSize(lst_uri)
	if err != nil {
		return lst, errors.Join(ErrOpenLst, err)
	}
	if filesize == 0 {
		return lst, errors.Join(ErrOpenLst, errors.New("empty file: "+lst_uri))
	}
	lst.filesize = filesize

	handler, err := vfs.Open(lst_uri, tiledb.TILEDB_VFS_READ)
	if err != nil {
		return lst, errors.Join(ErrOpenLst, err)
	}
	lst.handler = handler

	if in_memory {
		buffer := make([]byte, filesize)
		err = binary.Read(handler, binary.LittleEndian, &buffer)
		if err != nil {
			return lst, errors.Join(ErrOpenLst, err)
		}
		lst.stream = bytes.NewReader(buffer)
	} else {
		lst.stream = handler
	}

	return lst, nil
}

// Size reports the file size in bytes. Progress observations emitted during
// parsing are byte offsets, so consumers can scale them against Size to
// report completion.
func (l *LstFile) Size() uint64 {
	return l.filesize
}

// Close releases the open tiledb file handler connections.
func (l *LstFile) Close() {
	l.handler.Close()
	l.vfs.Free()
	l.ctx.Free()
	l.config.Free()
}
