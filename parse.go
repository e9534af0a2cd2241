package lst

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Position is the current beam position. Axis events update it and every
// subsequent hit inherits it until the next axis event, so the cell is
// shared across the whole event loop.
type Position struct {
	X uint16
	Y uint16
}

// decodePayload walks the 16-bit payload values of one hit event in
// ascending ADC bit order.
// Axis values inside the raster update the beam position; axis values at or
// beyond the raster extent are treated as noise and must not move the
// position, as they would misroute every subsequent hit. Detector values of
// zero mean "no hit" per instrument convention, and anything above the top
// bin saturates to it. Pairs matching nothing in the catalog are dropped.
// Hits are emitted as soon as their pair is decoded, so an axis pair only
// affects the detector pairs that follow it within the payload; position
// updates are positional.
func decodePayload(
	adcnum []uint32,
	buffer []byte,
	config *LstConfig,
	position *Position,
	max_x, max_y int,
	emit func(name string, channel uint32),
) error {
	for i, adc := range adcnum {
		if len(buffer) < i*2+2 {
			return errors.Join(ErrDecoderInternal, fmt.Errorf("payload slot %d out of range", i))
		}

		int_value := binary.LittleEndian.Uint16(buffer[i*2 : i*2+2])

		if adc == config.X && int(int_value) < max_x {
			position.X = int_value
		} else if adc == config.Y && int(int_value) < max_y {
			position.Y = int_value
		} else if name, detector, ok := config.DetectorFromAdc(adc); ok && int_value > 0 {
			channel := min(uint32(int_value), detector.Channels-1)
			emit(name, channel)
		}
	}

	return nil
}

// FormatAcquisitionTime renders a millisecond tally as HH:MM:SS, wrapping
// at 24 hours.
func FormatAcquisitionTime(milliseconds uint64) string {
	seconds := milliseconds / 1000

	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600%24, seconds%3600/60, seconds%60)
}

// Parse streams the opened LST file into a ParsingResult.
// See ParseStream for the progress contract.
func (l *LstFile) Parse(config *LstConfig, progress chan<- int64) (*ParsingResult, error) {
	return ParseStream(l.stream, config, progress)
}

// ParseStream drives the end-to-end conversion; scan the textual header,
// allocate the packed histogram, stream the 32-bit event words, then slice
// the packed histogram into the per-detector and computed datasets.
//
// The header phase is strict; any failure aborts. The streaming phase is
// lenient; a short read mid-word or mid-payload abandons the current event
// and ends the loop gracefully, leaving a valid partial result.
//
// progress may be nil. When supplied, the current byte offset is offered on
// it at every timer event without blocking; observations are advisory and
// lossy, and carry no correctness-bearing data.
func ParseStream(stream io.Reader, config *LstConfig, progress chan<- int64) (*ParsingResult, error) {
	var (
		position Position
		word     uint32
	)

	reader := bufio.NewReader(stream)

	header, offset, err := ReadHeader(reader)
	if err != nil {
		return nil, err
	}

	log.Info("Map size",
		"width", header.Map_size.Width,
		"height", header.Map_size.Height,
		"pixel_size_width", header.Map_size.Pixel_size_width,
		"pixel_size_height", header.Map_size.Pixel_size_height,
		"pen_size", header.Map_size.Pen_size,
	)
	if header.Exp_info != nil {
		log.Info("Exp info", "particle", header.Exp_info.Particle, "beam_energy", header.Exp_info.Beam_energy)
	}

	max_x := header.Map_size.MaxX()
	max_y := header.Map_size.MaxY()
	if max_x < 1 || max_y < 1 {
		return nil, errors.Join(ErrEmptyMap, fmt.Errorf("max_x=%d max_y=%d", max_x, max_y))
	}

	dataset := config.CreateDataset(max_x, max_y)

	total_events := uint64(0)
	total_timer_events := uint64(0)
	buffer := make([]byte, 4)

	parsing_started_at := time.Now()

	// read 4 bytes at a time
stream_loop:
	for {
		if _, err := io.ReadFull(reader, buffer); err != nil {
			break
		}
		offset += 4

		word = binary.LittleEndian.Uint32(buffer)
		event, has_dummy, ok := InspectEvent(word)
		if !ok {
			continue
		}

		switch event {
		case TIMER:
			total_timer_events++
			if progress != nil {
				// advisory only; drop the observation when the receiver lags
				select {
				case progress <- offset:
				default:
				}
			}
		case SYNCHRON:
			continue
		case ADC:
			total_events++

			if has_dummy {
				// dummy word was inserted, skip 2 bytes
				n, err := reader.Discard(2)
				offset += int64(n)
				if err != nil {
					log.Warn("Abandoning truncated hit payload", "offset", offset)
					break stream_loop
				}
			}

			adcnum := AdcNum(word)
			adc_buffer := make([]byte, len(adcnum)*2)
			if _, err := io.ReadFull(reader, adc_buffer); err != nil {
				// the declared payload never arrived; abandon the hit
				log.Warn("Abandoning truncated hit payload", "offset", offset)
				break stream_loop
			}
			offset += int64(len(adc_buffer))

			err := decodePayload(adcnum, adc_buffer, config, &position, max_x, max_y, func(name string, channel uint32) {
				floor := config.FloorForDetectorName(name)
				dataset.Incr(int(position.Y), int(position.X), int(floor+channel))
			})
			if err != nil {
				return nil, err
			}
		}
	}

	parsing_duration := time.Since(parsing_started_at)

	acquisition_time := FormatAcquisitionTime(total_timer_events * uint64(header.Timer_reduce))

	result := assembleResult(dataset, config, &header, acquisition_time)

	log.Info("Parsing done",
		"duration", parsing_duration,
		"total_events", total_events,
		"total_timer_events", total_timer_events,
		"acquisition_time", acquisition_time,
	)
	log.Info("Nb events", "per_detector", result.Nb_events)

	return result, nil
}
