package syncer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/heathweaver/video-transcription/internal/utils"
)

// Syncer repairs zero-byte files in a mirror directory by copying the same
// relative path from a source directory when the source copy is non-empty.
type Syncer struct {
	SourceDir string
	MirrorDir string
	DryRun    bool
}

// Report tallies one sync pass.
type Report struct {
	Scanned  int
	ZeroByte int
	Repaired int
	Missing  int
}

func New(sourceDir, mirrorDir string, dryRun bool) (*Syncer, error) {
	if _, err := os.Stat(sourceDir); err != nil {
		return nil, fmt.Errorf("source path does not exist: %s", sourceDir)
	}
	if _, err := os.Stat(mirrorDir); err != nil {
		return nil, fmt.Errorf("mirror path does not exist: %s", mirrorDir)
	}
	return &Syncer{SourceDir: sourceDir, MirrorDir: mirrorDir, DryRun: dryRun}, nil
}

// Run scans the mirror for zero-byte files and repairs them from the source.
func (s *Syncer) Run() (Report, error) {
	log := utils.GetLogger("syncer")
	var report Report

	log.Info().Str("dir", s.MirrorDir).Msg("Scanning for zero-byte files")
	err := filepath.WalkDir(s.MirrorDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Could not access")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		report.Scanned++
		info, err := d.Info()
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Could not stat")
			return nil
		}
		if info.Size() != 0 {
			return nil
		}
		report.ZeroByte++

		rel, err := filepath.Rel(s.MirrorDir, path)
		if err != nil {
			return nil
		}
		sourcePath := filepath.Join(s.SourceDir, rel)
		sourceInfo, err := os.Stat(sourcePath)
		if err != nil || sourceInfo.Size() == 0 {
			log.Warn().Str("file", rel).Msg("No non-empty source copy found")
			report.Missing++
			return nil
		}

		if s.DryRun {
			log.Info().Str("file", rel).Str("size", utils.FormatBytes(uint64(sourceInfo.Size()))).Msg("Would copy (dry run)")
			report.Repaired++
			return nil
		}
		if err := copyFile(sourcePath, path); err != nil {
			log.Error().Err(err).Str("file", rel).Msg("Copy failed")
			report.Missing++
			return nil
		}
		log.Info().Str("file", rel).Str("size", utils.FormatBytes(uint64(sourceInfo.Size()))).Msg("Repaired zero-byte file")
		report.Repaired++
		return nil
	})
	return report, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
