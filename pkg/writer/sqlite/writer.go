// Package sqlite writes annotated spectra to a SQLite database.
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/PFKey/pkg/annotate"
	"github.com/ChrisMcGann/PFKey/pkg/chem"
	"github.com/ChrisMcGann/PFKey/pkg/filter"
	"github.com/ChrisMcGann/PFKey/pkg/fragment"
	"github.com/ChrisMcGann/PFKey/pkg/spectrum"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	schemaVersion    = 1
)

// Writer handles writing annotated spectra to SQLite database files. All
// rows are written in one transaction that Finalize commits.
type Writer struct {
	db           *sql.DB
	tx           *sql.Tx
	outputPath   string
	spectrumStmt *sql.Stmt
	peakStmt     *sql.Stmt
	fragmentStmt *sql.Stmt
	spectrumID   int
	// Fragments controls whether every theoretical fragment is stored, or
	// only the matched ones.
	Fragments bool
	// Description is stored in HeaderTable.
	Description string
	tolerance   string
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		spectrumID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	w.tx, err = db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := w.prepareStatements(); err != nil {
		w.tx.Rollback()
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER PRIMARY KEY,
		Title TEXT,
		ProForma TEXT,
		Charge INTEGER,
		PrecursorMZ DOUBLE,
		NeutralMass DOUBLE,
		RetentionTime DOUBLE,
		CollisionEnergy DOUBLE,
		FragmentationMode TEXT,
		MassAnalyzer TEXT,
		InstrumentName TEXT,
		ScanNumber TEXT,
		SourceFile TEXT,
		blobMass BLOB,
		blobIntensity BLOB,
		PeaksMatched INTEGER,
		PeaksTotal INTEGER,
		FragmentsFound INTEGER,
		FragmentsTotal INTEGER,
		MeanError DOUBLE,
		ErrorVariance DOUBLE,
		IntensityCoverage DOUBLE,
		PeakCoverage DOUBLE,
		PositionCoverage DOUBLE,
		Score DOUBLE,
		FDR DOUBLE,
		IntensityFDR DOUBLE,
		Error TEXT
	);

	CREATE TABLE IF NOT EXISTS PeakTable (
		SpectrumId INTEGER REFERENCES SpectrumTable(SpectrumId),
		PeakIndex INTEGER,
		MZ DOUBLE,
		Intensity DOUBLE,
		Annotation TEXT,
		Series TEXT,
		Ordinal INTEGER,
		Charge INTEGER,
		ErrorPPM DOUBLE
	);

	CREATE TABLE IF NOT EXISTS FragmentTable (
		SpectrumId INTEGER REFERENCES SpectrumTable(SpectrumId),
		Label TEXT,
		Series TEXT,
		Ordinal INTEGER,
		Charge INTEGER,
		Formula TEXT,
		MZ DOUBLE,
		Member INTEGER,
		Peptidoform INTEGER,
		Matched BOOL
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Description TEXT,
		Tolerance TEXT,
		SpectrumCount INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.spectrumStmt, err = w.tx.Prepare(`
		INSERT INTO SpectrumTable (
			SpectrumId, Title, ProForma, Charge, PrecursorMZ, NeutralMass,
			RetentionTime, CollisionEnergy, FragmentationMode, MassAnalyzer,
			InstrumentName, ScanNumber, SourceFile, blobMass, blobIntensity,
			PeaksMatched, PeaksTotal, FragmentsFound, FragmentsTotal,
			MeanError, ErrorVariance, IntensityCoverage, PeakCoverage,
			PositionCoverage, Score, FDR, IntensityFDR, Error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	w.peakStmt, err = w.tx.Prepare(`
		INSERT INTO PeakTable (
			SpectrumId, PeakIndex, MZ, Intensity, Annotation, Series, Ordinal, Charge, ErrorPPM
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare peak statement: %w", err)
	}

	w.fragmentStmt, err = w.tx.Prepare(`
		INSERT INTO FragmentTable (
			SpectrumId, Label, Series, Ordinal, Charge, Formula, MZ, Member, Peptidoform, Matched
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare fragment statement: %w", err)
	}

	return nil
}

// WriteSpectrum writes a spectrum and its annotation. A result with Err set
// is stored with its message and unannotated peaks.
func (w *Writer) WriteSpectrum(spec *spectrum.Spectrum, result annotate.Result) error {
	if !spec.ArePeaksSorted() {
		spec.SortPeaks()
	}
	if result.Annotated != nil && w.tolerance == "" {
		w.tolerance = result.Annotated.Tolerance.String()
	}

	var stats annotate.Stats
	fdr, intensityFDR := any(nil), any(nil)
	var errText any
	if result.Annotated != nil {
		stats = result.Annotated.Stats
		fdr = nullable(result.Fdr.FDR())
		intensityFDR = nullable(result.Fdr.IntensityFDR())
	}
	if result.Err != nil {
		errText = result.Err.Error()
	}

	_, err := w.spectrumStmt.Exec(
		w.spectrumID,
		spec.Name(),
		spec.Peptide,
		spec.Charge,
		spec.PrecursorMZ,
		neutralMass(spec),
		optional(spec.RetentionTime),
		optional(spec.CollisionEnergy),
		spec.FragmentationMode,
		spec.MassAnalyzer,
		spec.Instrument,
		spec.Scan,
		spec.SourceFile,
		encodePeaksFloat64(spec.Peaks, true),
		encodePeaksFloat64(spec.Peaks, false),
		stats.Matched,
		len(spec.Peaks),
		stats.FragmentsFound,
		stats.FragmentsTotal,
		stats.MeanError,
		stats.ErrorVariance,
		stats.IntensityCoverage,
		stats.PeakCoverage,
		stats.PositionCoverage,
		stats.Score,
		fdr,
		intensityFDR,
		errText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert spectrum: %w", err)
	}

	if err := w.writePeaks(spec, result.Annotated); err != nil {
		return err
	}
	if result.Annotated != nil {
		if err := w.writeFragments(result.Annotated); err != nil {
			return err
		}
	}

	w.spectrumID++
	return nil
}

func (w *Writer) writePeaks(spec *spectrum.Spectrum, a *annotate.Annotated) error {
	peaks := make([]annotate.AnnotatedPeak, len(spec.Peaks))
	if a != nil && len(a.Peaks) == len(spec.Peaks) {
		copy(peaks, a.Peaks)
		sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].MZ < peaks[j].MZ })
	} else {
		for i, p := range spec.Peaks {
			peaks[i] = annotate.AnnotatedPeak{Peak: p}
		}
	}
	for i, p := range peaks {
		var series, ordinal, errPPM any
		if p.Annotation != "" {
			if info, err := filter.ParseLabel(p.Annotation); err == nil {
				series = info.Series.String()
				if info.Ordinal > 0 {
					ordinal = info.Ordinal
				}
			}
		}
		if p.Matched() {
			errPPM = p.Error
		}
		_, err := w.peakStmt.Exec(w.spectrumID, i, p.MZ, p.Intensity, p.Annotation, series, ordinal, p.Charge, errPPM)
		if err != nil {
			return fmt.Errorf("failed to insert peak: %w", err)
		}
	}
	return nil
}

func (w *Writer) writeFragments(a *annotate.Annotated) error {
	matched := make(map[*fragment.Fragment]bool)
	for _, p := range a.Peaks {
		if p.Fragment != nil {
			matched[p.Fragment] = true
		}
	}
	for i := range a.Fragments {
		f := &a.Fragments[i]
		if !w.Fragments && !matched[f] {
			continue
		}
		var ordinal any
		if f.Ordinal > 0 {
			ordinal = f.Ordinal
		}
		_, err := w.fragmentStmt.Exec(w.spectrumID, f.Label(), f.Series.String(), ordinal, f.Charge,
			f.Formula.String(), f.MZ, f.Member, f.Peptidoform, matched[f])
		if err != nil {
			return fmt.Errorf("failed to insert fragment: %w", err)
		}
	}
	return nil
}

// neutralMass derives the neutral precursor mass from m/z and charge,
// assuming protons as charge carriers.
func neutralMass(spec *spectrum.Spectrum) any {
	if spec.Charge <= 0 || spec.PrecursorMZ <= 0 {
		return nil
	}
	z := float64(spec.Charge)
	return spec.PrecursorMZ*z - chem.Proton.MonoisotopicMass()*z
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// encodePeaksFloat64 encodes peak data as little-endian float64 blob
func encodePeaksFloat64(peaks []spectrum.Peak, useMZ bool) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, peak := range peaks {
		var value float64
		if useMZ {
			value = peak.MZ
		} else {
			value = peak.Intensity
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// Count returns the number of spectra written so far.
func (w *Writer) Count() int { return w.spectrumID - 1 }

// Finalize writes the header table, commits and closes the database.
func (w *Writer) Finalize() error {
	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, Description, Tolerance, SpectrumCount)
		VALUES (?, ?, ?, ?, ?)
	`, schemaVersion, time.Now().Format(headerDateFormat), w.Description, w.tolerance, w.Count())
	if err != nil {
		w.tx.Rollback()
		w.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	for _, stmt := range []*sql.Stmt{w.spectrumStmt, w.peakStmt, w.fragmentStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to commit: %w", err)
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Abort discards everything written since NewWriter and closes the
// database.
func (w *Writer) Abort() error {
	for _, stmt := range []*sql.Stmt{w.spectrumStmt, w.peakStmt, w.fragmentStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	w.tx.Rollback()
	return w.db.Close()
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
