package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/PFKey/pkg/reader/modmap"
	"github.com/ChrisMcGann/PFKey/pkg/reader/msp"
	"github.com/ChrisMcGann/PFKey/pkg/reader/mzml"
	"github.com/ChrisMcGann/PFKey/pkg/reader/sptxt"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

// customModsFile is picked up from the working directory when no
// --mod-map is given.
const customModsFile = "unimod_custom.csv"

// source is the iterator shape shared by all readers.
type source interface {
	Next() bool
	Spectrum() *spectrum.Spectrum
	Err() error
}

// detectFormat maps a file extension to an input format.
func detectFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".msp":
		return "msp", nil
	case ".sptxt":
		return "sptxt", nil
	case ".mzml":
		return "mzml", nil
	default:
		return "", fmt.Errorf("cannot auto-detect format from extension '%s', please specify --from", ext)
	}
}

// loadModMap returns the default aliases extended by a name,proforma CSV.
func loadModMap(path string) (*modmap.Map, error) {
	mods := modmap.Default()
	if path == "" {
		if _, err := os.Stat(customModsFile); err != nil {
			return mods, nil
		}
		path = customModsFile
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modification map: %w", err)
	}
	defer f.Close()
	if err := mods.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Debug("loaded modification map", "path", path)
	return mods, nil
}

// openSource opens a spectrum reader for path. The caller closes the
// returned file.
func openSource(path, format string, mods *modmap.Map, msLevel int) (source, io.Closer, error) {
	if err := checkFile(path); err != nil {
		return nil, nil, err
	}
	if format == "" {
		var err error
		if format, err = detectFormat(path); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	var src source
	switch strings.ToLower(format) {
	case "msp":
		src = msp.NewReader(f, mods)
	case "sptxt":
		src = sptxt.NewReader(f, mods)
	case "mzml":
		src = mzml.NewReader(f, msLevel)
	default:
		f.Close()
		return nil, nil, fmt.Errorf("invalid input format '%s', must be msp, sptxt, or mzml", format)
	}
	return src, f, nil
}
