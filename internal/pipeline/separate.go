package pipeline

import (
	"bytes"
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stemforge/api/internal/config"
)

// Separator is a thin adapter over the external stem-separation engine. It
// does not inspect the engine's output beyond checking that stems exist.
type Separator struct {
	cfg config.SeparationConfig
}

func NewSeparator(cfg config.SeparationConfig) *Separator {
	return &Separator{cfg: cfg}
}

// Separate runs the engine on audioPath, writing under outputDir. It returns
// the directory holding the stem wav files.
func (s *Separator) Separate(ctx context.Context, audioPath, outputDir string) (string, error) {
	args := []string{
		"-d", s.cfg.Device,
		"--out=" + outputDir,
		"--name=" + s.cfg.Model,
		"--shifts", strconv.Itoa(s.cfg.Shifts),
		audioPath,
	}

	log.Printf("Running separation on %s (model %s)", audioPath, s.cfg.Model)
	cmd := exec.CommandContext(ctx, s.cfg.BinPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", separationError("separation engine: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// The engine writes stems to {out}/{model}/{input file stem}/
	inputStem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	stemsDir := filepath.Join(outputDir, s.cfg.Model, inputStem)

	entries, err := os.ReadDir(stemsDir)
	if err != nil || len(entries) == 0 {
		return "", separationError("separation produced no output files in %s", stemsDir)
	}

	log.Printf("Separation complete, stems at %s", stemsDir)
	return stemsDir, nil
}
