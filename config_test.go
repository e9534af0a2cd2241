package lst

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// aglaeConfig mirrors the standard acquisition catalog.
func aglaeConfig() LstConfig {
	return LstConfig{
		X: 256,
		Y: 512,
		Detectors: map[string]Detector{
			"GAMMA":    {Adc: 1, Channels: 4096},
			"GAMMA_20": {Adc: 2, Channels: 4096},
			"HE1":      {Adc: 4, Channels: 2048},
			"HE2":      {Adc: 8, Channels: 2048},
			"HE3":      {Adc: 16, Channels: 2048},
			"HE4":      {Adc: 32, Channels: 2048},
			"LE0":      {Adc: 64, Channels: 2048},
			"RBS":      {Adc: 1024, Channels: 512},
		},
	}
}

func TestLstConfig(t *testing.T) {
	config := aglaeConfig()

	t.Run("CatalogOrder", func(t *testing.T) {
		names := config.DetectorNames()
		require.Equal(t, []string{"GAMMA", "GAMMA_20", "HE1", "HE2", "HE3", "HE4", "LE0", "RBS"}, names)
	})

	t.Run("Floors", func(t *testing.T) {
		require.Equal(t, uint32(0), config.FloorForDetectorName("GAMMA"))
		require.Equal(t, uint32(4096), config.FloorForDetectorName("GAMMA_20"))
		require.Equal(t, uint32(8192), config.FloorForDetectorName("HE1"))
		require.Equal(t, uint32(18432), config.FloorForDetectorName("RBS"))
		require.Equal(t, uint32(18944), config.TotalChannels())
	})

	t.Run("FloorsAreStrictlyIncreasing", func(t *testing.T) {
		previous := int64(-1)
		for _, name := range config.DetectorNames() {
			floor := config.FloorForDetectorName(name)
			require.Greater(t, int64(floor), previous)
			require.LessOrEqual(t, floor+config.Detectors[name].Channels, config.TotalChannels())
			previous = int64(floor)
		}
	})

	t.Run("AdcIndex", func(t *testing.T) {
		require.Equal(t, []uint32{1, 2, 4, 8, 16, 32, 64, 256, 512, 1024}, config.AdcIndex())
	})

	t.Run("DetectorFromAdc", func(t *testing.T) {
		name, detector, ok := config.DetectorFromAdc(1024)
		require.True(t, ok)
		require.Equal(t, "RBS", name)
		require.Equal(t, uint32(512), detector.Channels)

		_, _, ok = config.DetectorFromAdc(2048)
		require.False(t, ok)

		// the axis flags are not detectors
		_, _, ok = config.DetectorFromAdc(256)
		require.False(t, ok)
	})

	t.Run("CreateDataset", func(t *testing.T) {
		dataset := config.CreateDataset(40, 60)
		require.Equal(t, []int{60, 40, 18944}, dataset.Shape())
		require.Len(t, dataset.Data, 60*40*18944)
	})
}

func TestLstConfigValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		config := aglaeConfig()
		require.NoError(t, config.Validate())
	})

	t.Run("AdcCollision", func(t *testing.T) {
		config := aglaeConfig()
		detector := config.Detectors["RBS"]
		detector.Adc = 4
		config.Detectors["RBS"] = detector

		require.ErrorIs(t, config.Validate(), ErrAdcCollision)
	})

	t.Run("AxisCollision", func(t *testing.T) {
		config := aglaeConfig()
		config.X = 1024

		require.ErrorIs(t, config.Validate(), ErrAdcCollision)
	})

	t.Run("NotAPowerOfTwo", func(t *testing.T) {
		config := aglaeConfig()
		config.Detectors["BAD"] = Detector{Adc: 3, Channels: 512}

		require.ErrorIs(t, config.Validate(), ErrBadAdcFlag)
	})

	t.Run("ZeroChannels", func(t *testing.T) {
		config := aglaeConfig()
		config.Detectors["EMPTY"] = Detector{Adc: 2048, Channels: 0}

		require.ErrorIs(t, config.Validate(), ErrNoChannels)
	})

	t.Run("UnknownComputedMember", func(t *testing.T) {
		config := aglaeConfig()
		config.Computed_detectors = map[string]ComputedDetector{
			"HE10-13": {Detectors: []string{"HE1", "NOPE"}},
		}

		require.ErrorIs(t, config.Validate(), ErrUnknownMember)
	})
}
