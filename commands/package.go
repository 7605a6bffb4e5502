package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"gitlab.com/gitlab-org/deploy-packager/archive"
	"gitlab.com/gitlab-org/deploy-packager/archive/compressor"
	"gitlab.com/gitlab-org/deploy-packager/archive/source"
	"gitlab.com/gitlab-org/deploy-packager/archive/zipfile"
	"gitlab.com/gitlab-org/deploy-packager/common"
	"gitlab.com/gitlab-org/deploy-packager/helpers/meter"
	"gitlab.com/gitlab-org/deploy-packager/helpers/prometheus"
	"gitlab.com/gitlab-org/deploy-packager/log"
	"gitlab.com/gitlab-org/deploy-packager/packager"
)

//nolint:lll
type PackageCommand struct {
	meter.TransferMeterCommand

	ConfigFile         string   `long:"config" env:"PACKAGER_CONFIG" description:"TOML file with the packaging configuration"`
	Output             string   `long:"output" env:"PACKAGER_OUTPUT" description:"Path of the deployment artifact"`
	CompressionLevel   string   `long:"compression-level" env:"PACKAGER_COMPRESSION_LEVEL" description:"Compression level (0-9, or store, fastest, fast, default, slow, slowest)"`
	Method             string   `long:"method" env:"PACKAGER_METHOD" description:"Compression method (deflate, zstd)"`
	Symlinks           string   `long:"symlinks" env:"PACKAGER_SYMLINKS" description:"Symbolic link policy (skip, follow, error)"`
	IncludeDirectories bool     `long:"include-directories" env:"PACKAGER_INCLUDE_DIRECTORIES" description:"Store an entry for every directory"`
	ReportUnit         string   `long:"report-unit" env:"PACKAGER_REPORT_UNIT" description:"Unit the artifact size is reported in (B, KB, MB, GB)"`
	Dirs               []string `long:"dir" description:"Directory to package, as SRC[:PREFIX]; the prefix defaults to the directory name"`
	Files              []string `long:"file" description:"File to package, as SRC[:ARCHIVE_PATH]; the archive path defaults to the file name"`
	Exclude            []string `long:"exclude" description:"Pattern of archive paths left out of every directory source"`
	SourceDateEpoch    string   `long:"source-date-epoch" env:"SOURCE_DATE_EPOCH" description:"Unix time stored as the modification time of every entry"`
	MetricsFile        string   `long:"metrics-file" env:"PACKAGER_METRICS_FILE" description:"Write packaging metrics to this file in the Prometheus text format"`

	logger *logrus.Logger
}

// packageSettings are the flags merged with the configuration file.
type packageSettings struct {
	output      string
	level       archive.CompressionLevel
	method      archive.Method
	symlinks    source.SymlinkPolicy
	directories bool
	reportUnit  string
	modTime     time.Time
	metricsFile string
	sources     []packager.Source
}

func (c *PackageCommand) loadConfig() (*common.PackageConfig, error) {
	if c.ConfigFile == "" {
		return new(common.PackageConfig), nil
	}

	config, err := common.LoadConfig(c.ConfigFile)
	if err != nil {
		return nil, err
	}

	if err := log.Configuration().ApplyDefaults(config.LogLevel, config.LogFormat); err != nil {
		return nil, fmt.Errorf("config %s: %w", c.ConfigFile, err)
	}

	return config, nil
}

// settings merges the configuration file with the flags. Flags win; flag
// sources are added after the configured ones.
func (c *PackageCommand) settings(config *common.PackageConfig) (*packageSettings, error) {
	s := &packageSettings{
		output:      firstNonEmpty(c.Output, config.Output),
		directories: c.IncludeDirectories || (config.IncludeDirectories != nil && *config.IncludeDirectories),
		reportUnit:  firstNonEmpty(c.ReportUnit, config.ReportUnit),
		modTime:     config.ModTime(),
		metricsFile: firstNonEmpty(c.MetricsFile, config.MetricsFile),
	}

	if s.output == "" {
		return nil, errors.New("missing --output")
	}

	var err error

	levelName := c.CompressionLevel
	if levelName == "" && config.CompressionLevel != nil {
		levelName = strconv.Itoa(*config.CompressionLevel)
	}
	if s.level, err = archive.ParseCompressionLevel(levelName); err != nil {
		return nil, err
	}

	if s.method, err = archive.ParseMethod(firstNonEmpty(c.Method, config.Method)); err != nil {
		return nil, err
	}

	if s.symlinks, err = source.ParseSymlinkPolicy(firstNonEmpty(c.Symlinks, config.Symlinks)); err != nil {
		return nil, err
	}

	if c.SourceDateEpoch != "" {
		epoch, err := strconv.ParseInt(c.SourceDateEpoch, 10, 64)
		if err != nil || epoch < 0 {
			return nil, fmt.Errorf("invalid --source-date-epoch %q", c.SourceDateEpoch)
		}
		s.modTime = time.Unix(epoch, 0).UTC()
	}

	if s.sources, err = c.sources(config); err != nil {
		return nil, err
	}

	return s, nil
}

func (c *PackageCommand) sources(config *common.PackageConfig) ([]packager.Source, error) {
	var sources []packager.Source

	for _, sc := range config.Sources {
		if sc.Type == common.SourceTypeFile {
			sources = append(sources, packager.FileSource(sc.Path, sc.ArchivePath))
			continue
		}

		exclude := append(append([]string(nil), sc.Exclude...), c.Exclude...)
		sources = append(sources, packager.DirectorySource(sc.Root, sc.Prefix, exclude...))
	}

	for _, spec := range c.Dirs {
		root, prefix, ok := splitSourceSpec(spec)
		if root == "" {
			return nil, fmt.Errorf("invalid --dir %q", spec)
		}
		if !ok {
			prefix = filepath.Base(filepath.Clean(root))
		}

		sources = append(sources, packager.DirectorySource(root, prefix, c.Exclude...))
	}

	for _, spec := range c.Files {
		p, archivePath, _ := splitSourceSpec(spec)
		if p == "" {
			return nil, fmt.Errorf("invalid --file %q", spec)
		}

		sources = append(sources, packager.FileSource(p, archivePath))
	}

	return sources, nil
}

// splitSourceSpec splits SRC[:DEST]. A Windows volume name is part of SRC.
func splitSourceSpec(spec string) (string, string, bool) {
	volume := filepath.VolumeName(spec)

	src, dest, ok := strings.Cut(spec[len(volume):], ":")

	return volume + src, dest, ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *PackageCommand) newOrchestrator(s *packageSettings, metrics *packager.Metrics) (*packager.Orchestrator, error) {
	comp, err := compressor.New(s.method, s.level)
	if err != nil {
		return nil, err
	}

	reporter, err := packager.NewReporter(s.reportUnit, c.logger)
	if err != nil {
		return nil, err
	}

	enumerator := source.New(
		source.WithSymlinks(s.symlinks),
		source.WithDirectories(s.directories),
		source.WithModTime(s.modTime),
		source.WithLogger(c.logger),
	)

	progressLine := meter.EntriesRateFormat(os.Stderr, "Writing "+filepath.Base(s.output))
	writer := zipfile.NewWriter(
		zipfile.WithLogger(c.logger),
		zipfile.WithProgress(c.TransferMeterFrequency, func(p zipfile.Progress) {
			progressLine(p.Entries, uint64(p.Bytes), p.Elapsed, p.Done)
		}),
	)

	opts := []packager.Option{
		packager.WithLogger(c.logger),
		packager.WithReporter(reporter),
		packager.WithModTime(s.modTime),
	}
	if metrics != nil {
		opts = append(opts, packager.WithMetrics(metrics))
	}

	return packager.New(enumerator, comp, writer, opts...), nil
}

// newMetrics returns nil when no metrics file is requested.
func (c *PackageCommand) newMetrics(s *packageSettings) (*packager.Metrics, error) {
	if s.metricsFile == "" {
		return nil, nil
	}

	metrics := packager.NewMetrics()

	if err := metrics.Register(common.AppVersion.NewMetricsCollector()); err != nil {
		return nil, err
	}

	hook := prometheus.NewLogHook()
	if err := metrics.Register(hook); err != nil {
		return nil, err
	}
	c.logger.AddHook(hook)

	return metrics, nil
}

func (c *PackageCommand) run(ctx context.Context) (*packager.CompletionReport, error) {
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}

	config, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	s, err := c.settings(config)
	if err != nil {
		return nil, err
	}

	if len(s.sources) == 0 {
		c.logger.Warningln("No sources configured, the archive will be empty")
	}

	metrics, err := c.newMetrics(s)
	if err != nil {
		return nil, err
	}

	orchestrator, err := c.newOrchestrator(s, metrics)
	if err != nil {
		return nil, err
	}

	report, runErr := orchestrator.Run(ctx, s.sources, s.output)

	if metrics != nil {
		if err := metrics.WriteTextfile(s.metricsFile); err != nil {
			c.logger.WithError(err).Warningln("Failed to write metrics file")
		}
	}

	return report, runErr
}

func (c *PackageCommand) Execute(*cli.Context) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the reporter logs the created artifact
	if _, err := c.run(ctx); err != nil {
		logrus.WithError(err).Fatalln("Packaging failed")
	}
}

func init() {
	common.RegisterCommand(
		"package",
		"assemble the deployment artifact from the configured sources",
		&PackageCommand{},
	)
}
