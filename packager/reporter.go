package packager

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// DefaultReportUnit is the unit the final size is reported in.
const DefaultReportUnit = "MB"

// CompletionReport describes a finalized deployment artifact.
type CompletionReport struct {
	FinalSizeBytes int64
	FormattedSize  string
	OutputPath     string
	Entries        int
}

func (r *CompletionReport) String() string {
	return fmt.Sprintf("Deployment artifact created at %s (%s)", r.OutputPath, r.FormattedSize)
}

// Reporter turns a finalized archive into a CompletionReport.
type Reporter struct {
	unit      string
	unitBytes int64
	logger    logrus.FieldLogger
}

// NewReporter reports sizes in unit, a binary size unit such as B, KB, MB or
// GB. An empty unit selects DefaultReportUnit.
func NewReporter(unit string, logger logrus.FieldLogger) (*Reporter, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = DefaultReportUnit
	}

	unitBytes, err := units.RAMInBytes("1" + unit)
	if err != nil {
		return nil, fmt.Errorf("report unit %q: %w", unit, err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Reporter{
		unit:      unit,
		unitBytes: unitBytes,
		logger:    logger,
	}, nil
}

// FormatSize rounds size half-up to whole units.
func (r *Reporter) FormatSize(size int64) string {
	rounded := math.Round(float64(size) / float64(r.unitBytes))

	return fmt.Sprintf("%d %s", int64(rounded), r.unit)
}

// Report reads the size of the file at outputPath. The file is not modified.
func (r *Reporter) Report(outputPath string) (*CompletionReport, error) {
	fi, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact size: %w", err)
	}

	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("artifact %s is not a regular file", outputPath)
	}

	report := &CompletionReport{
		FinalSizeBytes: fi.Size(),
		FormattedSize:  r.FormatSize(fi.Size()),
		OutputPath:     outputPath,
	}

	r.logger.WithFields(logrus.Fields{
		"output": outputPath,
		"size":   report.FormattedSize,
		"bytes":  report.FinalSizeBytes,
	}).Infoln("Deployment artifact created")

	return report, nil
}
