package lst

import (
	"encoding/binary"
	"errors"
	"sort"
	"strconv"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Detector describes a single acquisition detector; the ADC flag is the
// power-of-two bit value identifying the detector within a hit word's low-16
// mask, and Channels is the number of energy bins the detector resolves.
type Detector struct {
	Adc      uint32 `yaml:"adc" json:"adc"`
	Channels uint32 `yaml:"channels" json:"channels"`
	Tag      string `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// ComputedDetector is a named group of detectors whose histograms are summed
// into an additional output cube.
type ComputedDetector struct {
	Detectors []string `yaml:"detectors" json:"detectors"`
	Tag       string   `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// LstConfig carries the detector catalog along with the two reserved ADC
// flags denoting the beam position axes.
// The catalog is always iterated in lexicographic name order; the packed
// channel floor of each detector is defined by that order, so the ordering
// is part of the contract, not an implementation detail.
type LstConfig struct {
	X                  uint32                      `yaml:"x" json:"x"`
	Y                  uint32                      `yaml:"y" json:"y"`
	Detectors          map[string]Detector         `yaml:"detectors" json:"detectors"`
	Computed_detectors map[string]ComputedDetector `yaml:"computed_detectors,omitempty" json:"computed_detectors,omitempty"`

	// Emit_single_member_groups relaxes the computed-group emission rule so
	// that groups with a single resolvable member are still written out.
	// Some downstream tooling relies on the older behaviour.
	Emit_single_member_groups bool `yaml:"emit_single_member_groups,omitempty" json:"emit_single_member_groups,omitempty"`
}

// DetectorNames returns the catalog names in lexicographic order.
func (c *LstConfig) DetectorNames() []string {
	names := lo.Keys(c.Detectors)
	sort.Strings(names)

	return names
}

// ComputedNames returns the computed group names in lexicographic order.
func (c *LstConfig) ComputedNames() []string {
	names := lo.Keys(c.Computed_detectors)
	sort.Strings(names)

	return names
}

// TotalChannels is the depth of the packed dataset; the sum of every
// detector's channel count.
func (c *LstConfig) TotalChannels() uint32 {
	total := uint32(0)
	for _, detector := range c.Detectors {
		total += detector.Channels
	}

	return total
}

// FloorForDetectorName returns the starting packed-channel index for the
// named detector; the sum of the channel counts of every detector ordered
// before it. Unknown names return zero.
func (c *LstConfig) FloorForDetectorName(detector_name string) uint32 {
	floor := uint32(0)
	for _, name := range c.DetectorNames() {
		if name == detector_name {
			return floor
		}
		floor += c.Detectors[name].Channels
	}

	return 0
}

// DetectorFromAdc resolves an ADC flag to its catalog entry.
func (c *LstConfig) DetectorFromAdc(adc uint32) (string, Detector, bool) {
	for _, name := range c.DetectorNames() {
		detector := c.Detectors[name]
		if detector.Adc == adc {
			return name, detector, true
		}
	}

	return "", Detector{}, false
}

// AdcIndex returns the sorted list of every ADC flag mentioned anywhere in
// the configuration; the two axis flags plus one flag per detector.
func (c *LstConfig) AdcIndex() []uint32 {
	index := make([]uint32, 0, len(c.Detectors)+2)
	index = append(index, c.X, c.Y)
	for _, detector := range c.Detectors {
		index = append(index, detector.Adc)
	}

	sort.Slice(index, func(i, j int) bool { return index[i] < index[j] })

	return index
}

// CreateDataset allocates the zeroed packed histogram for the given raster
// extents. Rows are y, columns are x, and the depth axis is the
// concatenation of every detector's channel range in catalog order.
func (c *LstConfig) CreateDataset(max_x, max_y int) *Cube {
	return NewCube(max_y, max_x, int(c.TotalChannels()))
}

// Validate checks the catalog invariants; every ADC flag is a distinct
// power of two, every detector resolves at least one channel, and every
// computed group member resolves in the catalog.
func (c *LstConfig) Validate() error {
	flags := c.AdcIndex()

	for _, flag := range flags {
		if flag == 0 || flag&(flag-1) != 0 {
			return errors.Join(ErrBadAdcFlag, errors.New(strconv_u32(flag)))
		}
	}

	duplicates := lo.FindDuplicates(flags)
	if len(duplicates) > 0 {
		return errors.Join(ErrAdcCollision, errors.New(strconv_u32(duplicates[0])))
	}

	for _, name := range c.DetectorNames() {
		if c.Detectors[name].Channels == 0 {
			return errors.Join(ErrNoChannels, errors.New(name))
		}
	}

	for _, group_name := range c.ComputedNames() {
		for _, member := range c.Computed_detectors[group_name].Detectors {
			if _, exists := c.Detectors[member]; !exists {
				return errors.Join(ErrUnknownMember, errors.New(group_name+": "+member))
			}
		}
	}

	return nil
}

// strconv_u32 is a tiny helper for embedding flag values in error context.
func strconv_u32(value uint32) string {
	return strconv.FormatUint(uint64(value), 10)
}

// LoadLstConfig reads and validates a YAML detector catalog.
// The document is read through the TileDB VFS so the catalog can live
// locally or on an object store alongside the LST files.
func LoadLstConfig(uri string, config_uri string) (LstConfig, error) {
	var (
		lst_config LstConfig
		config     *tiledb.Config
		err        error
	)

	// get a generic config if no path provided
	if config_uri == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(config_uri)
	}
	if err != nil {
		return lst_config, errors.Join(ErrLoadConfig, err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return lst_config, errors.Join(ErrLoadConfig, err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return lst_config, errors.Join(ErrLoadConfig, err)
	}
	defer vfs.Free()

	handler, err := vfs.Open(uri, tiledb.TILEDB_VFS_READ)
	if err != nil {
		return lst_config, errors.Join(ErrLoadConfig, err)
	}
	defer handler.Close()

	filesize, err := vfs.FileSize(uri)
	if err != nil {
		return lst_config, errors.Join(ErrLoadConfig, err)
	}

	document := make([]byte, filesize)
	err = binary.Read(handler, binary.LittleEndian, &document)
	if err != nil {
		return lst_config, errors.Join(ErrLoadConfig, err)
	}

	err = yaml.Unmarshal(document, &lst_config)
	if err != nil {
		return lst_config, errors.Join(ErrLoadConfig, err)
	}

	err = lst_config.Validate()
	if err != nil {
		return lst_config, err
	}

	return lst_config, nil
}
