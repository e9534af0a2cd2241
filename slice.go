package lst

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// Dataset is a single named histogram cube plus its attributes.
type Dataset struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	Data       *Cube             `json:"-"`
}

// ParsingResult groups the per-detector cubes, the computed cubes and the
// global attributes extracted from the header.
// Nb_events tallies the deposited counts per catalog detector, including
// detectors that recorded nothing.
type ParsingResult struct {
	Attributes        map[string]string `json:"attributes"`
	Datasets          []Dataset         `json:"datasets"`
	Computed_datasets []Dataset         `json:"computed_datasets"`
	Nb_events         map[string]uint64 `json:"nb_events"`
}

// resultAttributes assembles the global attribute map from the header.
func resultAttributes(header *Header, acquisition_time string) map[string]string {
	attributes := map[string]string{
		"acquisition_time":  acquisition_time,
		"map_size_width":    strconv_u32(header.Map_size.Width),
		"map_size_height":   strconv_u32(header.Map_size.Height),
		"pixel_size_width":  strconv_u32(header.Map_size.Pixel_size_width),
		"pixel_size_height": strconv_u32(header.Map_size.Pixel_size_height),
		"pen_size":          strconv_u32(header.Map_size.Pen_size),
	}

	if header.Exp_info != nil {
		attributes["particle"] = header.Exp_info.Particle
		attributes["beam_energy"] = header.Exp_info.Beam_energy
		attributes["le0_filter"] = header.Exp_info.Le0_filter
		attributes["he1_filter"] = header.Exp_info.He1_filter
		attributes["he2_filter"] = header.Exp_info.He2_filter
		attributes["he3_filter"] = header.Exp_info.He3_filter
		attributes["he4_filter"] = header.Exp_info.He4_filter
	}

	for key, value := range header.Tags {
		attributes[key] = value
	}

	return attributes
}

// detectorAttributes assembles the per-dataset attributes for one catalog
// detector.
func detectorAttributes(name string, detector Detector, exp_info *ExpInfo) map[string]string {
	attributes := make(map[string]string)

	if detector.Tag != "" {
		attributes["tag"] = detector.Tag
	}

	if exp_info != nil {
		if filter, ok := exp_info.FilterForDetector(name); ok {
			attributes["filter"] = filter
		}
	}

	return attributes
}

// assembleResult slices the packed histogram back into per-detector cubes
// and composes the computed group cubes.
// Per-detector cubes with zero total counts are skipped silently; they are
// still tallied in Nb_events.
func assembleResult(packed *Cube, config *LstConfig, header *Header, acquisition_time string) *ParsingResult {
	result := &ParsingResult{
		Attributes:        resultAttributes(header, acquisition_time),
		Datasets:          make([]Dataset, 0, len(config.Detectors)),
		Computed_datasets: make([]Dataset, 0, len(config.Computed_detectors)),
		Nb_events:         make(map[string]uint64),
	}

	for _, name := range config.DetectorNames() {
		detector := config.Detectors[name]
		floor := int(config.FloorForDetectorName(name))
		sub := packed.SliceZ(floor, floor+int(detector.Channels))

		total := sub.Sum()
		result.Nb_events[name] = total
		if total == 0 {
			continue
		}

		result.Datasets = append(result.Datasets, Dataset{
			Name:       name,
			Attributes: detectorAttributes(name, detector, header.Exp_info),
			Data:       sub,
		})
	}

	for _, group_name := range config.ComputedNames() {
		group := config.Computed_detectors[group_name]
		if dataset, ok := composeGroup(packed, config, header, group_name, group); ok {
			result.Computed_datasets = append(result.Computed_datasets, dataset)
		}
	}

	return result
}

// composeGroup builds the summed cube for one computed detector group.
// Members missing from the catalog are logged and skipped without failing
// the group. A group is emitted when at least two members resolve in the
// catalog (catalog resolution, not runtime hit presence; single-member
// groups are redundant with the base detector dataset) and the summed cube
// is non-empty. The Emit_single_member_groups policy knob relaxes the
// two-member rule.
func composeGroup(packed *Cube, config *LstConfig, header *Header, group_name string, group ComputedDetector) (Dataset, bool) {
	resolved := lo.Filter(group.Detectors, func(member string, _ int) bool {
		_, exists := config.Detectors[member]
		return exists
	})

	min_members := 2
	if config.Emit_single_member_groups {
		min_members = 1
	}
	if len(resolved) < min_members {
		return Dataset{}, false
	}

	max_channels := lo.Max(lo.Map(resolved, func(member string, _ int) uint32 {
		return config.Detectors[member].Channels
	}))

	out := NewCube(packed.Ny, packed.Nx, int(max_channels))
	attributes := make(map[string]string)
	if group.Tag != "" {
		attributes["tag"] = group.Tag
	}

	for _, member := range group.Detectors {
		detector, exists := config.Detectors[member]
		if !exists {
			log.Warn("Skipping unknown computed member", "group", group_name, "member", member)
			continue
		}

		floor := int(config.FloorForDetectorName(member))
		sub := packed.SliceZ(floor, floor+int(detector.Channels))

		// member cubes are summed into the leading channel positions
		AddCube(out, sub)

		if header.Exp_info != nil {
			if filter, ok := header.Exp_info.FilterForDetector(member); ok {
				attributes[strings.ToLower(member)+"_filter"] = filter
			}
		}
	}

	if out.Sum() == 0 {
		return Dataset{}, false
	}

	dataset := Dataset{
		Name:       strings.Join(resolved, "+"),
		Attributes: attributes,
		Data:       out,
	}

	return dataset, true
}
