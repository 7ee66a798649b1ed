package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/stemforge/api/internal/config"
)

// Stem vocabulary produced by the separation engine.
const (
	StemDrums  = "drums"
	StemBass   = "bass"
	StemGuitar = "guitar"
	StemOther  = "other"
	StemPiano  = "piano"
	StemVocals = "vocals"
)

// silenceThresholdDB is the fixed peak-loudness cutoff below which a stem is
// treated as silent. Not configurable per request.
const silenceThresholdDB = -50.0

// Stem is one separated instrument track.
type Stem struct {
	Path   string
	PeakDB float64
	Silent bool
}

// StemSet maps stem names to their classified tracks. Built once per task and
// never mutated afterward.
type StemSet map[string]Stem

// MixDef is one entry of the fixed remix cascade.
type MixDef struct {
	FileName string
	Required []string
}

// MixPlan is the fixed cascade of remixes, in production order. Each mix is
// cumulative over the previous one's stems; the output file names are part of
// the webhook contract.
var MixPlan = []MixDef{
	{FileName: "drums.mp3", Required: []string{StemDrums}},
	{FileName: "drums_bass.mp3", Required: []string{StemDrums, StemBass}},
	{FileName: "drums_bass_guitar.mp3", Required: []string{StemDrums, StemBass, StemGuitar}},
	{FileName: "drums_bass_guitar_other_piano.mp3", Required: []string{StemDrums, StemBass, StemGuitar, StemOther, StemPiano}},
}

// PlannedMix is a cascade entry after silent and missing stems are dropped.
type PlannedMix struct {
	FileName string
	Inputs   []string
}

// PlanMixes applies the cascade to a stem set. A required stem that is silent
// or missing is dropped from its mixes; a mix with zero surviving inputs is
// omitted entirely. Pure function of the stem set.
func PlanMixes(stems StemSet) []PlannedMix {
	var planned []PlannedMix
	for _, def := range MixPlan {
		var inputs []string
		for _, name := range def.Required {
			stem, ok := stems[name]
			if !ok || stem.Silent {
				continue
			}
			inputs = append(inputs, stem.Path)
		}
		if len(inputs) == 0 {
			log.Printf("All inputs for %s are silent or missing, skipping", def.FileName)
			continue
		}
		planned = append(planned, PlannedMix{FileName: def.FileName, Inputs: inputs})
	}
	return planned
}

// IsSilentPeak is the silence predicate: true digital silence (-Inf) or a
// peak at or below the threshold.
func IsSilentPeak(peakDB float64) bool {
	return math.IsInf(peakDB, -1) || peakDB <= silenceThresholdDB
}

// Composer classifies stems and renders the remix cascade with ffmpeg.
type Composer struct {
	ffmpegPath string
}

func NewComposer(cfg config.FFmpegConfig) *Composer {
	return &Composer{ffmpegPath: cfg.BinPath}
}

// Compose builds the remix files from the stems in stemsDir plus the trimmed
// original, writing mp3s into outputDir. It returns produced file names
// mapped to local paths. The original is always produced; cascade entries are
// omitted when all their stems are silent.
func (c *Composer) Compose(ctx context.Context, stemsDir, trimmedPath, outputDir string) (map[string]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, compositionError("create output dir: %w", err)
	}

	stems, err := c.classifyStems(ctx, stemsDir)
	if err != nil {
		return nil, err
	}

	produced := make(map[string]string)
	for _, mix := range PlanMixes(stems) {
		outPath := filepath.Join(outputDir, mix.FileName)
		if err := c.merge(ctx, mix.Inputs, outPath); err != nil {
			return nil, err
		}
		produced[mix.FileName] = outPath
	}

	// The trimmed original is the one guaranteed artifact.
	origPath := filepath.Join(outputDir, "original_trimmed.mp3")
	if err := c.encode(ctx, trimmedPath, origPath); err != nil {
		return nil, err
	}
	produced["original_trimmed.mp3"] = origPath

	log.Printf("Composed %d artifacts in %s", len(produced), outputDir)
	return produced, nil
}

// classifyStems finds the stem wav files and measures each one's peak
// loudness. A failed measurement counts as not silent.
func (c *Composer) classifyStems(ctx context.Context, stemsDir string) (StemSet, error) {
	paths, err := filepath.Glob(filepath.Join(stemsDir, "*.wav"))
	if err != nil || len(paths) == 0 {
		return nil, compositionError("no stem files found in %s", stemsDir)
	}

	stems := make(StemSet, len(paths))
	for _, path := range paths {
		base := strings.TrimSuffix(filepath.Base(path), ".wav")
		name := matchStemName(base)
		if name == "" {
			continue
		}

		peak, err := c.measurePeak(ctx, path)
		if err != nil {
			log.Printf("Peak measurement failed for %s, treating as audible: %v", path, err)
			stems[name] = Stem{Path: path, PeakDB: 0, Silent: false}
			continue
		}

		silent := IsSilentPeak(peak)
		if silent {
			log.Printf("Stem %s is silent (%.1f dB)", name, peak)
		}
		stems[name] = Stem{Path: path, PeakDB: peak, Silent: silent}
	}
	return stems, nil
}

func matchStemName(fileBase string) string {
	for _, name := range []string{StemDrums, StemBass, StemGuitar, StemOther, StemPiano, StemVocals} {
		if strings.Contains(fileBase, name) {
			return name
		}
	}
	return ""
}

var maxVolumeRe = regexp.MustCompile(`max_volume: (-?[\d.]+|-inf) dB`)

// measurePeak runs the mixer's loudness filter over the file and parses the
// reported peak. Returns -Inf for true digital silence.
func (c *Composer) measurePeak(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-i", path,
		"-af", "volumedetect",
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("volumedetect: %w", err)
	}

	m := maxVolumeRe.FindStringSubmatch(stderr.String())
	if m == nil {
		return 0, fmt.Errorf("no max_volume in volumedetect output")
	}
	if m[1] == "-inf" {
		return math.Inf(-1), nil
	}
	peak, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse max_volume %q: %w", m[1], err)
	}
	return peak, nil
}

// merge combines the input waveforms with equal weight, normalized to the
// longest input, and encodes to mp3 at the fixed distribution quality.
func (c *Composer) merge(ctx context.Context, inputs []string, outPath string) error {
	args := make([]string, 0, 2*len(inputs)+8)
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", fmt.Sprintf("amix=inputs=%d:duration=longest:dropout_transition=0", len(inputs)),
		"-c:a", "libmp3lame",
		"-q:a", "2",
		"-y",
		outPath,
	)

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return compositionError("merge %s: %w: %s", filepath.Base(outPath), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *Composer) encode(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-i", inPath,
		"-c:a", "libmp3lame",
		"-q:a", "2",
		"-y",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return compositionError("encode %s: %w: %s", filepath.Base(outPath), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
