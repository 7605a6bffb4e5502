// Package packager assembles the configured sources into one deployment
// artifact.
package packager

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"gitlab.com/gitlab-org/deploy-packager/archive"
)

type Option func(*Orchestrator)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithReporter(reporter *Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = reporter
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithModTime overrides the modification time of single file sources.
// Directory trees take theirs from the enumerator.
func WithModTime(t time.Time) Option {
	return func(o *Orchestrator) {
		o.modTime = t
	}
}

// Orchestrator drives the enumerator, the compressor and the writer for
// every source of a run.
type Orchestrator struct {
	enumerator archive.Enumerator
	compressor archive.Compressor
	writer     archive.Writer

	reporter *Reporter
	metrics  *Metrics
	logger   logrus.FieldLogger
	modTime  time.Time
}

func New(enumerator archive.Enumerator, compressor archive.Compressor, writer archive.Writer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		enumerator: enumerator,
		compressor: compressor,
		writer:     writer,
		logger:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.reporter == nil {
		o.reporter, _ = NewReporter(DefaultReportUnit, o.logger)
	}

	return o
}

// run holds the state of one Run call.
type run struct {
	seen        map[string]string
	entries     int
	directories int
	excluded    int
}

// Run packages sources, in order, into outputPath. The first failure aborts
// the writer and no report is produced.
func (o *Orchestrator) Run(ctx context.Context, sources []Source, outputPath string) (report *CompletionReport, err error) {
	started := time.Now()
	defer func() {
		o.metrics.observeRun(report, time.Since(started))
	}()

	o.logger.WithFields(logrus.Fields{
		"output":  outputPath,
		"sources": len(sources),
		"method":  o.compressor.Method(),
		"level":   o.compressor.Level(),
	}).Infoln("Packaging deployment artifact")

	// Open removes the previous artifact, so a failing source never leaves
	// a stale archive at outputPath
	if err := o.writer.Open(ctx, outputPath); err != nil {
		o.abort()
		return nil, err
	}

	if err := o.preflight(sources); err != nil {
		o.abort()
		return nil, err
	}

	r := &run{seen: make(map[string]string)}

	for _, src := range sources {
		if err := o.addSource(ctx, r, src); err != nil {
			o.abort()
			return nil, err
		}
	}

	if err := o.writer.Finalize(ctx); err != nil {
		o.abort()
		return nil, err
	}

	report, err = o.reporter.Report(outputPath)
	if err != nil {
		return nil, err
	}
	report.Entries = r.entries

	o.logger.WithFields(logrus.Fields{
		"entries":     r.entries,
		"directories": r.directories,
		"excluded":    r.excluded,
		"duration":    time.Since(started),
	}).Debugln("Packaging finished")

	return report, nil
}

// preflight resolves every source before the first entry is written.
func (o *Orchestrator) preflight(sources []Source) error {
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return err
		}

		fi, err := o.enumerator.Stat(src.root())
		if err != nil {
			return err
		}

		switch {
		case src.Type == DirectoryTree && !fi.IsDir():
			return archive.Errorf(archive.ErrRead, nil, "%s: not a directory", src.Root)
		case src.Type == SingleFile && !fi.Mode().IsRegular():
			return archive.Errorf(archive.ErrRead, nil, "%s: not a regular file", src.Path)
		}
	}

	return nil
}

// abort discards the output. The writer may already have aborted itself.
func (o *Orchestrator) abort() {
	err := o.writer.Abort()
	if err != nil && !errors.Is(err, archive.ErrInvalidState) {
		o.logger.WithError(err).Warningln("Failed to remove partial archive")
	}
}

func (o *Orchestrator) addSource(ctx context.Context, r *run, src Source) error {
	if src.Type == SingleFile {
		return o.addFile(ctx, r, src)
	}

	for entry, err := range o.enumerator.Walk(ctx, src.Root, src.Prefix) {
		if err != nil {
			return err
		}

		if pattern, ok := src.excluded(entry.Path); ok {
			r.excluded++
			o.metrics.observeExcluded()
			o.logger.WithFields(logrus.Fields{
				"entry":   entry.Path,
				"pattern": pattern,
			}).Debugln("Entry excluded")
			continue
		}

		if err := o.add(ctx, r, entry); err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) addFile(ctx context.Context, r *run, src Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fi, err := o.enumerator.Stat(src.Path)
	if err != nil {
		return err
	}

	modTime := fi.ModTime()
	if !o.modTime.IsZero() {
		modTime = o.modTime
	}

	return o.add(ctx, r, archive.Entry{
		Path:    src.archivePath(),
		Source:  src.Path,
		Kind:    archive.KindFile,
		Mode:    fi.Mode(),
		ModTime: modTime,
		Size:    fi.Size(),
	})
}

func (o *Orchestrator) add(ctx context.Context, r *run, entry archive.Entry) error {
	if previous, ok := r.seen[entry.Path]; ok {
		return archive.Errorf(archive.ErrDuplicateEntry, nil, "%s from %s and %s", entry.Path, previous, entry.Source)
	}
	r.seen[entry.Path] = entry.Source

	stats, err := o.write(ctx, entry)
	if err != nil {
		return err
	}

	if entry.Kind == archive.KindDirectory {
		r.directories++
	} else {
		r.entries++
	}
	o.metrics.observeEntry(entry.Kind, stats)

	return nil
}

// write returns once the writer accepted every byte of the entry.
func (o *Orchestrator) write(ctx context.Context, entry archive.Entry) (archive.EntryStats, error) {
	if entry.Kind == archive.KindDirectory {
		return o.writer.AddEntry(ctx, entry, nil)
	}

	body, err := o.enumerator.Open(entry)
	if err != nil {
		return archive.EntryStats{}, err
	}
	defer closeBody(body, o.logger)

	stream := o.compressor.Compress(body)
	defer stream.Close()

	return o.writer.AddEntry(ctx, entry, stream)
}

func closeBody(body io.Closer, logger logrus.FieldLogger) {
	if err := body.Close(); err != nil {
		logger.WithError(err).Warningln("Failed to close entry source")
	}
}
