package lst

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// composerConfig pairs a small two detector catalog with a computed group.
func composerConfig() LstConfig {
	return LstConfig{
		X: 1,
		Y: 2,
		Detectors: map[string]Detector{
			"HE1": {Adc: 4, Channels: 8},
			"LE0": {Adc: 8, Channels: 4, Tag: "SDD"},
		},
		Computed_detectors: map[string]ComputedDetector{
			"HE10-11": {Detectors: []string{"HE1", "LE0"}},
		},
	}
}

func composerHeader() *Header {
	exp_info, _ := ParseExpInfo("Exp.Info: proton,3000 keV,75 um Be,50 um Al,none,none,none")

	return &Header{
		Map_size: MapSize{Width: 4, Height: 4, Pixel_size_width: 2, Pixel_size_height: 2, Pen_size: 1},
		Exp_info: &exp_info,
		Tags:     map[string]string{},
	}
}

func TestAssembleResult(t *testing.T) {
	config := composerConfig()
	header := composerHeader()

	// catalog order is HE1 then LE0; floors 0 and 8
	packed := config.CreateDataset(2, 2)
	require.Equal(t, []int{2, 2, 12}, packed.Shape())

	// two HE1 counts, LE0 stays empty
	packed.Incr(1, 0, 5)
	packed.Incr(1, 1, 5)

	result := assembleResult(packed, &config, header, "00:00:10")

	t.Run("EmptyDetectorsAreSkipped", func(t *testing.T) {
		require.Len(t, result.Datasets, 1)
		require.Equal(t, "HE1", result.Datasets[0].Name)
		require.Equal(t, uint64(2), result.Nb_events["HE1"])
		require.Equal(t, uint64(0), result.Nb_events["LE0"])
	})

	t.Run("DetectorCubeIsMemberRelative", func(t *testing.T) {
		he1 := result.Datasets[0]
		require.Equal(t, []int{2, 2, 8}, he1.Data.Shape())
		require.Equal(t, uint32(1), he1.Data.At(1, 0, 5))
		require.Equal(t, uint32(1), he1.Data.At(1, 1, 5))
	})

	t.Run("DatasetAttributes", func(t *testing.T) {
		require.Equal(t, "50 um Al", result.Datasets[0].Attributes["filter"])
	})

	t.Run("GlobalAttributes", func(t *testing.T) {
		require.Equal(t, "00:00:10", result.Attributes["acquisition_time"])
		require.Equal(t, "4", result.Attributes["map_size_width"])
		require.Equal(t, "2", result.Attributes["pixel_size_height"])
		require.Equal(t, "proton", result.Attributes["particle"])
	})

	t.Run("ComputedGroup", func(t *testing.T) {
		require.Len(t, result.Computed_datasets, 1)
		group := result.Computed_datasets[0]

		require.Equal(t, "HE1+LE0", group.Name)
		// the group cube spans the widest member
		require.Equal(t, []int{2, 2, 8}, group.Data.Shape())
		require.Equal(t, uint32(1), group.Data.At(1, 0, 5))
		require.Equal(t, uint64(2), group.Data.Sum())

		require.Equal(t, "50 um Al", group.Attributes["he1_filter"])
		require.Equal(t, "75 um Be", group.Attributes["le0_filter"])
	})
}

func TestComposeGroupEmission(t *testing.T) {
	header := composerHeader()

	t.Run("EmittedWhenOnlyOneMemberHasHits", func(t *testing.T) {
		// emission depends on catalog resolution, not on runtime presence
		config := composerConfig()
		packed := config.CreateDataset(2, 2)
		packed.Incr(0, 0, 3)

		result := assembleResult(packed, &config, header, "00:00:00")
		require.Len(t, result.Computed_datasets, 1)
	})

	t.Run("SingleResolvedMemberIsSuppressed", func(t *testing.T) {
		config := composerConfig()
		config.Computed_detectors = map[string]ComputedDetector{
			"SOLO": {Detectors: []string{"HE1"}},
		}
		packed := config.CreateDataset(2, 2)
		packed.Incr(0, 0, 3)

		result := assembleResult(packed, &config, header, "00:00:00")
		require.Empty(t, result.Computed_datasets)
	})

	t.Run("SingleMemberPolicyKnob", func(t *testing.T) {
		config := composerConfig()
		config.Emit_single_member_groups = true
		config.Computed_detectors = map[string]ComputedDetector{
			"SOLO": {Detectors: []string{"HE1"}},
		}
		packed := config.CreateDataset(2, 2)
		packed.Incr(0, 0, 3)

		result := assembleResult(packed, &config, header, "00:00:00")
		require.Len(t, result.Computed_datasets, 1)
		require.Equal(t, "HE1", result.Computed_datasets[0].Name)
	})

	t.Run("UnresolvableMemberIsSkipped", func(t *testing.T) {
		config := composerConfig()
		config.Computed_detectors = map[string]ComputedDetector{
			"HE10-11": {Detectors: []string{"HE1", "LE0", "NOPE"}},
		}
		packed := config.CreateDataset(2, 2)
		packed.Incr(0, 0, 3)

		result := assembleResult(packed, &config, header, "00:00:00")
		require.Len(t, result.Computed_datasets, 1)
		require.Equal(t, "HE1+LE0", result.Computed_datasets[0].Name)
	})

	t.Run("EmptyGroupIsSuppressed", func(t *testing.T) {
		config := composerConfig()
		packed := config.CreateDataset(2, 2)

		result := assembleResult(packed, &config, header, "00:00:00")
		require.Empty(t, result.Computed_datasets)
	})
}

func TestResultMetadata(t *testing.T) {
	config := composerConfig()
	packed := config.CreateDataset(2, 2)
	packed.Incr(0, 0, 3)

	result := assembleResult(packed, &config, composerHeader(), "00:00:00")
	metadata := result.Metadata("scan.lst")

	require.Equal(t, "scan.lst", metadata.Lst_uri)
	require.Equal(t, []string{"HE1"}, metadata.Datasets)
	require.Equal(t, []string{"HE1+LE0"}, metadata.Computed_datasets)
	require.Equal(t, uint64(1), metadata.Nb_events["HE1"])
}
