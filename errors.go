package lst

import (
	"errors"
)

var ErrHeaderMissing = errors.New("Error No Map size directive found in LST header")
var ErrHeaderIO = errors.New("Error Reading LST header")
var ErrEmptyMap = errors.New("Error Map geometry resolves to an empty raster")
var ErrDecoderInternal = errors.New("Error Converting payload bytes to channel values")
var ErrLoadConfig = errors.New("Error Loading detector configuration")
var ErrAdcCollision = errors.New("Error Duplicate ADC flag in detector catalog")
var ErrBadAdcFlag = errors.New("Error ADC flag is not a power of two")
var ErrNoChannels = errors.New("Error Detector declares zero channels")
var ErrUnknownMember = errors.New("Error Computed detector references unknown detector")
var ErrOpenLst = errors.New("Error Opening LST file")
var ErrCreateHistogramTdb = errors.New("Error Creating Histogram TileDB Array")
var ErrWriteHistogramTdb = errors.New("Error Writing Histogram TileDB Array")
var ErrCreateAttributeTdb = errors.New("Error Creating Attribute for TileDB Array")
var ErrAddFilters = errors.New("Error Adding Filter To FilterList")
var ErrWriteJson = errors.New("Error Writing JSON document")
