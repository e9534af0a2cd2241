package lst

import (
	"bufio"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// MapSize describes the scanned map geometry as declared by the
// "Map size:" directive of the header.
// All units are as recorded by the acquisition electronics; the raster
// extents are derived via MaxX and MaxY.
type MapSize struct {
	Width             uint32
	Height            uint32
	Pixel_size_width  uint32
	Pixel_size_height uint32
	Pen_size          uint32
}

// ParseMapSize decodes a "Map size" directive.
// The five fields follow the last colon, separated by commas.
// Missing or invalid fields decode to zero.
func ParseMapSize(content string) (MapSize, bool) {
	split := strings.Split(content, ":")
	params := strings.Split(split[len(split)-1], ",")

	map_size := MapSize{
		Width:             parseU32Field(params, 0),
		Height:            parseU32Field(params, 1),
		Pixel_size_width:  parseU32Field(params, 2),
		Pixel_size_height: parseU32Field(params, 3),
		Pen_size:          parseU32Field(params, 4),
	}

	return map_size, true
}

// MaxX is the raster width in pixels; zero when the pixel size is unusable.
func (m *MapSize) MaxX() int {
	if m.Pixel_size_width == 0 {
		return 0
	}
	return int(math.Round(float64(m.Width) / float64(m.Pixel_size_width)))
}

// MaxY is the raster height in pixels; zero when the pixel size is unusable.
func (m *MapSize) MaxY() int {
	if m.Pixel_size_height == 0 {
		return 0
	}
	return int(math.Round(float64(m.Height) / float64(m.Pixel_size_height)))
}

// ExpInfo carries the experiment description from the optional "Exp.Info"
// directive; the particle and beam energy, plus the filter labels for the
// five fixed acquisition detectors.
type ExpInfo struct {
	Particle    string
	Beam_energy string
	Le0_filter  string
	He1_filter  string
	He2_filter  string
	He3_filter  string
	He4_filter  string
}

// ParseExpInfo decodes an "Exp.Info" directive.
// Seven comma separated tokens follow the last colon. A short token list is
// indistinguishable from a corrupt line and decodes as absent.
func ParseExpInfo(content string) (ExpInfo, bool) {
	split := strings.Split(content, ":")
	params := strings.Split(split[len(split)-1], ",")

	if len(params) < 7 {
		return ExpInfo{}, false
	}

	exp_info := ExpInfo{
		Particle:    strings.TrimSpace(params[0]),
		Beam_energy: strings.TrimSpace(params[1]),
		Le0_filter:  strings.TrimSpace(params[2]),
		He1_filter:  strings.TrimSpace(params[3]),
		He2_filter:  strings.TrimSpace(params[4]),
		He3_filter:  strings.TrimSpace(params[5]),
		He4_filter:  strings.TrimSpace(params[6]),
	}

	return exp_info, true
}

// FilterForDetector returns the filter label associated with one of the
// fixed detector names (LE0, HE1..HE4).
func (e *ExpInfo) FilterForDetector(detector_name string) (string, bool) {
	switch detector_name {
	case "LE0":
		return e.Le0_filter, true
	case "HE1":
		return e.He1_filter, true
	case "HE2":
		return e.He2_filter, true
	case "HE3":
		return e.He3_filter, true
	case "HE4":
		return e.He4_filter, true
	}

	return "", false
}

// Header holds everything extracted from the textual preamble of an LST file.
type Header struct {
	Map_size     MapSize
	Exp_info     *ExpInfo
	Timer_reduce uint32
	Tags         map[string]string
}

// cmline_commands maps the recognised "cmlineN= <cmd>: <value>" commands to
// the attribute key the value is stored under.
var cmline_commands = map[string]string{
	"Prj-Euphrosyne":  "prj_euphrosyne",
	"Run-Euphrosyne":  "run_euphrosyne",
	"Obj-Euphrosyne":  "obj_euphrosyne",
	"Prj-AGLAE":       "prj_aglae",
	"Obj-AGLAE":       "obj_aglae",
	"Material-AGLAE":  "material_aglae",
}

// parseCmline decodes an optional "cmlineN= <cmd>: <value>" tag.
// Unrecognised commands are ignored.
func parseCmline(content string) (key string, value string, ok bool) {
	split := strings.SplitN(content, "=", 2)
	if len(split) != 2 {
		return "", "", false
	}

	split = strings.SplitN(split[1], ":", 2)
	if len(split) != 2 {
		return "", "", false
	}

	key, ok = cmline_commands[strings.TrimSpace(split[0])]
	if !ok {
		return "", "", false
	}

	return key, strings.TrimSpace(split[1]), true
}

// parseU32Field decodes a single comma separated field; missing or invalid
// fields decode to zero.
func parseU32Field(params []string, i int) uint32 {
	if i >= len(params) {
		return 0
	}

	value, err := strconv.ParseUint(strings.TrimSpace(params[i]), 10, 32)
	if err != nil {
		return 0
	}

	return uint32(value)
}

// ReadHeader scans the textual preamble of an LST file up to the [LISTDATA]
// sentinel (or EOF), extracting the map geometry, the optional experiment
// info, the timer reduction factor and any recognised cmline tags.
// The number of bytes consumed is returned so the caller can report byte
// offsets for the binary section that follows.
// The header phase is strict; a missing Map size directive or a failing
// stream are fatal.
func ReadHeader(reader *bufio.Reader) (Header, int64, error) {
	var (
		header     Header
		bytes_read int64
		got_map    bool
	)

	header.Tags = make(map[string]string)

	for {
		line, err := reader.ReadString('\n')
		bytes_read += int64(len(line))

		if err != nil && !errors.Is(err, io.EOF) {
			return header, bytes_read, errors.Join(ErrHeaderIO, err)
		}

		content := strings.TrimSpace(line)

		if strings.Contains(content, "Map size") {
			header.Map_size, got_map = ParseMapSize(content)
		}

		if strings.Contains(content, "Exp.Info") {
			if exp_info, ok := ParseExpInfo(content); ok {
				header.Exp_info = &exp_info
			}
		}

		if strings.Contains(content, "timerreduce") {
			split := strings.Split(content, "=")
			header.Timer_reduce = parseU32Field(split, len(split)-1)
		}

		if strings.HasPrefix(content, "cmline") {
			if key, value, ok := parseCmline(content); ok {
				header.Tags[key] = value
			}
		}

		if errors.Is(err, io.EOF) || strings.Contains(content, "[LISTDATA]") {
			// done reading the header
			break
		}
	}

	if !got_map {
		return header, bytes_read, ErrHeaderMissing
	}

	return header, bytes_read, nil
}
