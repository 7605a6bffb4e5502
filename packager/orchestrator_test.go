//go:build !integration

package packager

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/gitlab-org/deploy-packager/archive"
)

func scenarioFiles() map[string]string {
	return map[string]string{
		"build/dist/index.js":       "console.log('hello')",
		"build/dist/assets/app.css": "body { color: red }",
		"build/package.json":        `{"name":"app"}`,
	}
}

func scenarioSources() []Source {
	return []Source{
		DirectorySource("build/dist", "dist"),
		FileSource("build/package.json", "package.json"),
	}
}

func newTestOrchestrator(t *testing.T, enumerator archive.Enumerator, writer archive.Writer, opts ...Option) *Orchestrator {
	t.Helper()

	logger, _ := test.NewNullLogger()
	reporter, err := NewReporter("B", logger)
	require.NoError(t, err)

	opts = append([]Option{WithLogger(logger), WithReporter(reporter)}, opts...)

	return New(enumerator, storeCompressor{}, writer, opts...)
}

func outputPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "deploy.zip")
}

func TestRunScenario(t *testing.T) {
	files := scenarioFiles()
	writer := newFakeWriter()
	output := outputPath(t)

	report, err := newTestOrchestrator(t, newFakeEnumerator(files), writer).Run(context.Background(), scenarioSources(), output)
	require.NoError(t, err)

	assert.Equal(t, []string{"dist/index.js", "dist/assets/app.css", "package.json"}, writer.paths())
	assert.Equal(t, files["build/dist/index.js"], writer.bodies["dist/index.js"])
	assert.Equal(t, files["build/dist/assets/app.css"], writer.bodies["dist/assets/app.css"])
	assert.Equal(t, files["build/package.json"], writer.bodies["package.json"])
	assert.Equal(t, archive.StateFinalized, writer.State())

	fi, err := os.Stat(output)
	require.NoError(t, err)

	assert.Equal(t, output, report.OutputPath)
	assert.Equal(t, fi.Size(), report.FinalSizeBytes)
	assert.Equal(t, 3, report.Entries)
}

func TestRunSingleFileEntry(t *testing.T) {
	files := map[string]string{"manifests/app.yaml": "kind: app"}
	modTime := time.Unix(1700000000, 0).UTC()

	tests := map[string]struct {
		source          Source
		opts            []Option
		expectedPath    string
		expectedModTime time.Time
	}{
		"explicit archive path": {
			source:          FileSource("manifests/app.yaml", "config/app.yaml"),
			expectedPath:    "config/app.yaml",
			expectedModTime: fakeModTime,
		},
		"base name by default": {
			source:          FileSource("manifests/app.yaml", ""),
			expectedPath:    "app.yaml",
			expectedModTime: fakeModTime,
		},
		"archive path is cleaned": {
			source:          FileSource("manifests/app.yaml", "/config//./app.yaml"),
			expectedPath:    "config/app.yaml",
			expectedModTime: fakeModTime,
		},
		"modification time override": {
			source:          FileSource("manifests/app.yaml", "app.yaml"),
			opts:            []Option{WithModTime(modTime)},
			expectedPath:    "app.yaml",
			expectedModTime: modTime,
		},
	}

	for tn, tc := range tests {
		t.Run(tn, func(t *testing.T) {
			writer := newFakeWriter()

			_, err := newTestOrchestrator(t, newFakeEnumerator(files), writer, tc.opts...).
				Run(context.Background(), []Source{tc.source}, outputPath(t))
			require.NoError(t, err)

			require.Len(t, writer.entries, 1)
			entry := writer.entries[0]
			assert.Equal(t, tc.expectedPath, entry.Path)
			assert.Equal(t, "manifests/app.yaml", entry.Source)
			assert.Equal(t, archive.KindFile, entry.Kind)
			assert.Equal(t, int64(9), entry.Size)
			assert.True(t, tc.expectedModTime.Equal(entry.ModTime))
			assert.Equal(t, "kind: app", writer.bodies[tc.expectedPath])
		})
	}
}

func TestRunEmptySources(t *testing.T) {
	writer := newFakeWriter()
	output := outputPath(t)

	report, err := newTestOrchestrator(t, newFakeEnumerator(nil), writer).Run(context.Background(), nil, output)
	require.NoError(t, err)

	assert.Empty(t, writer.entries)
	assert.Equal(t, 0, report.Entries)
	assert.Equal(t, int64(0), report.FinalSizeBytes)
	assert.Equal(t, archive.StateFinalized, writer.State())
}

func TestRunPreflightFailures(t *testing.T) {
	files := scenarioFiles()

	tests := map[string]struct {
		sources       []Source
		expectedError error
	}{
		"missing directory": {
			sources:       []Source{DirectorySource("build/dist", "dist"), DirectorySource("node_modules", "node_modules")},
			expectedError: archive.ErrSourceNotFound,
		},
		"missing file": {
			sources:       []Source{DirectorySource("build/dist", "dist"), FileSource("package-lock.json", "")},
			expectedError: archive.ErrSourceNotFound,
		},
		"directory is a file": {
			sources:       []Source{DirectorySource("build/package.json", "")},
			expectedError: archive.ErrRead,
		},
		"file is a directory": {
			sources:       []Source{FileSource("build/dist", "dist")},
			expectedError: archive.ErrRead,
		},
	}

	for tn, tc := range tests {
		t.Run(tn, func(t *testing.T) {
			output := outputPath(t)

			// the archive is opened, which removes a previous artifact, and
			// aborted before any entry
			writer := archive.NewMockWriter(t)
			writer.On("Open", mock.Anything, output).Return(nil).Once()
			writer.On("Abort").Return(nil).Once()

			report, err := newTestOrchestrator(t, newFakeEnumerator(files), writer).Run(context.Background(), tc.sources, output)
			assert.ErrorIs(t, err, tc.expectedError)
			assert.Nil(t, report)
			assert.NoFileExists(t, output)
		})
	}
}

func TestRunPreflightStatsEverySourceBeforeWalking(t *testing.T) {
	enumerator := archive.NewMockEnumerator(t)
	enumerator.On("Stat", "build/dist").Return(fakeFileInfo{name: "dist", mode: os.ModeDir | 0o755}, nil).Once()
	enumerator.On("Stat", "node_modules").
		Return(nil, archive.Errorf(archive.ErrSourceNotFound, os.ErrNotExist, "node_modules")).Once()

	comp := archive.NewMockCompressor(t)
	comp.On("Method").Return(archive.Deflate).Maybe()
	comp.On("Level").Return(archive.SlowestCompression).Maybe()

	writer := archive.NewMockWriter(t)
	writer.On("Open", mock.Anything, mock.Anything).Return(nil).Once()
	writer.On("Abort").Return(nil).Once()

	logger, _ := test.NewNullLogger()
	o := New(enumerator, comp, writer, WithLogger(logger))

	_, err := o.Run(context.Background(), []Source{
		DirectorySource("build/dist", "dist"),
		DirectorySource("node_modules", "node_modules"),
	}, outputPath(t))
	assert.ErrorIs(t, err, archive.ErrSourceNotFound)

	enumerator.AssertNotCalled(t, "Walk", mock.Anything, mock.Anything, mock.Anything)
	comp.AssertNotCalled(t, "Compress", mock.Anything)
}

func TestRunInvalidSource(t *testing.T) {
	writer := archive.NewMockWriter(t)
	writer.On("Open", mock.Anything, mock.Anything).Return(nil).Once()
	writer.On("Abort").Return(nil).Once()

	_, err := newTestOrchestrator(t, newFakeEnumerator(nil), writer).
		Run(context.Background(), []Source{{Type: "tarball", Path: "x.tar"}}, outputPath(t))
	assert.ErrorContains(t, err, `source type "tarball" is invalid`)
}

func TestRunCompressesEveryFileEntry(t *testing.T) {
	files := scenarioFiles()

	comp := archive.NewMockCompressor(t)
	comp.On("Method").Return(archive.Store).Maybe()
	comp.On("Level").Return(archive.StoreCompression).Maybe()
	comp.On("Compress", mock.Anything).Return(storeCompressor{}.Compress).Times(3)

	writer := newFakeWriter()
	logger, _ := test.NewNullLogger()

	report, err := New(newFakeEnumerator(files), comp, writer, WithLogger(logger)).
		Run(context.Background(), scenarioSources(), outputPath(t))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, files["build/dist/assets/app.css"], writer.bodies["dist/assets/app.css"])
	assert.Equal(t, files["build/package.json"], writer.bodies["package.json"])
}

func TestRunEntryOpenFailureAborts(t *testing.T) {
	entry := archive.Entry{
		Path:    "dist/index.js",
		Source:  "build/dist/index.js",
		Kind:    archive.KindFile,
		Mode:    0o644,
		ModTime: fakeModTime,
	}

	var walk iter.Seq2[archive.Entry, error] = func(yield func(archive.Entry, error) bool) {
		yield(entry, nil)
	}

	openErr := archive.Errorf(archive.ErrRead, os.ErrPermission, "opening build/dist/index.js")

	enumerator := archive.NewMockEnumerator(t)
	enumerator.On("Stat", "build/dist").Return(fakeFileInfo{name: "dist", mode: os.ModeDir | 0o755}, nil).Once()
	enumerator.On("Walk", mock.Anything, "build/dist", "dist").Return(walk).Once()
	enumerator.On("Open", entry).Return(nil, openErr).Once()

	writer := newFakeWriter()
	output := outputPath(t)

	report, err := newTestOrchestrator(t, enumerator, writer).
		Run(context.Background(), []Source{DirectorySource("build/dist", "dist")}, output)
	assert.ErrorIs(t, err, archive.ErrRead)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Nil(t, report)
	assert.Equal(t, archive.StateAborted, writer.State())
	assert.Empty(t, writer.paths())
	assert.NoFileExists(t, output)
}

func TestRunDuplicateEntry(t *testing.T) {
	files := map[string]string{
		"build/package.json": "from build",
		"package.json":       "from root",
		"build/index.js":     "index",
	}

	writer := newFakeWriter()
	output := outputPath(t)

	sources := []Source{
		DirectorySource("build", ""),
		FileSource("package.json", "package.json"),
	}

	_, err := newTestOrchestrator(t, newFakeEnumerator(files), writer).Run(context.Background(), sources, output)
	assert.ErrorIs(t, err, archive.ErrDuplicateEntry)
	assert.ErrorContains(t, err, "package.json from build/package.json and package.json")

	assert.Equal(t, archive.StateAborted, writer.State())
	assert.Equal(t, []string{"index.js", "package.json"}, writer.paths())
	assert.Equal(t, "from build", writer.bodies["package.json"])
	assert.NoFileExists(t, output)
}

func TestRunExclude(t *testing.T) {
	files := map[string]string{
		"dist/index.js":          "index",
		"dist/index.js.map":      "map",
		"dist/assets/app.css":    "css",
		"dist/assets/app.css.gz": "gz",
		"dist/tmp/cache.bin":     "cache",
		"dist/tmp/nested/a.bin":  "a",
	}

	tests := map[string]struct {
		exclude          []string
		expectedPaths    []string
		expectedExcluded float64
	}{
		"no patterns": {
			expectedPaths: []string{
				"dist/index.js", "dist/index.js.map",
				"dist/assets/app.css", "dist/assets/app.css.gz",
				"dist/tmp/cache.bin", "dist/tmp/nested/a.bin",
			},
		},
		"source maps": {
			exclude: []string{"**/*.map"},
			expectedPaths: []string{
				"dist/index.js",
				"dist/assets/app.css", "dist/assets/app.css.gz",
				"dist/tmp/cache.bin", "dist/tmp/nested/a.bin",
			},
			expectedExcluded: 1,
		},
		"directory pattern": {
			exclude: []string{"dist/tmp"},
			expectedPaths: []string{
				"dist/index.js", "dist/index.js.map",
				"dist/assets/app.css", "dist/assets/app.css.gz",
			},
			expectedExcluded: 2,
		},
		"several patterns": {
			exclude:          []string{"**/*.{map,gz}", "dist/tmp/**"},
			expectedPaths:    []string{"dist/index.js", "dist/assets/app.css"},
			expectedExcluded: 4,
		},
	}

	for tn, tc := range tests {
		t.Run(tn, func(t *testing.T) {
			writer := newFakeWriter()
			metrics := NewMetrics()

			report, err := newTestOrchestrator(t, newFakeEnumerator(files), writer, WithMetrics(metrics)).
				Run(context.Background(), []Source{DirectorySource("dist", "dist", tc.exclude...)}, outputPath(t))
			require.NoError(t, err)

			assert.Equal(t, tc.expectedPaths, writer.paths())
			assert.Equal(t, len(tc.expectedPaths), report.Entries)
			assert.Equal(t, tc.expectedExcluded, testutil.ToFloat64(metrics.excluded))
		})
	}
}

func TestRunWalkFailureAborts(t *testing.T) {
	enumerator := newFakeEnumerator(scenarioFiles())
	enumerator.walkErr = archive.Errorf(archive.ErrRead, errors.New("permission denied"), "listing build/dist/assets")
	enumerator.walkErrAfter = "build/dist/index.js"

	writer := newFakeWriter()
	output := outputPath(t)

	report, err := newTestOrchestrator(t, enumerator, writer).Run(context.Background(), scenarioSources(), output)
	assert.ErrorIs(t, err, archive.ErrRead)
	assert.Nil(t, report)

	assert.Equal(t, archive.StateAborted, writer.State())
	assert.Equal(t, []string{"dist/index.js"}, writer.paths())
	assert.NoFileExists(t, output)
}

func TestRunWriterFailures(t *testing.T) {
	writeErr := archive.Errorf(archive.ErrWrite, errors.New("no space left on device"), "writing dist/index.js")

	tests := map[string]struct {
		setup func(w *archive.MockWriter)
	}{
		"open": {
			setup: func(w *archive.MockWriter) {
				w.On("Open", mock.Anything, mock.Anything).Return(writeErr).Once()
				w.On("Abort").Return(archive.ErrInvalidState).Once()
			},
		},
		"add entry": {
			setup: func(w *archive.MockWriter) {
				w.On("Open", mock.Anything, mock.Anything).Return(nil).Once()
				w.On("AddEntry", mock.Anything, mock.Anything, mock.Anything).Return(archive.EntryStats{}, writeErr).Once()
				w.On("Abort").Return(archive.ErrInvalidState).Once()
			},
		},
		"finalize": {
			setup: func(w *archive.MockWriter) {
				w.On("Open", mock.Anything, mock.Anything).Return(nil).Once()
				w.On("AddEntry", mock.Anything, mock.Anything, mock.Anything).Return(archive.EntryStats{}, nil).Times(3)
				w.On("Finalize", mock.Anything).Return(writeErr).Once()
				w.On("Abort").Return(nil).Once()
			},
		},
		"abort failure is logged": {
			setup: func(w *archive.MockWriter) {
				w.On("Open", mock.Anything, mock.Anything).Return(nil).Once()
				w.On("AddEntry", mock.Anything, mock.Anything, mock.Anything).Return(archive.EntryStats{}, writeErr).Once()
				w.On("Abort").Return(errors.New("removing partial file")).Once()
			},
		},
	}

	for tn, tc := range tests {
		t.Run(tn, func(t *testing.T) {
			writer := archive.NewMockWriter(t)
			tc.setup(writer)

			metrics := NewMetrics()
			output := outputPath(t)

			report, err := newTestOrchestrator(t, newFakeEnumerator(scenarioFiles()), writer, WithMetrics(metrics)).
				Run(context.Background(), scenarioSources(), output)
			assert.ErrorIs(t, err, archive.ErrWrite)
			assert.Nil(t, report)
			assert.NoFileExists(t, output)
			assert.Equal(t, float64(0), testutil.ToFloat64(metrics.success))
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := newFakeWriter()
	output := outputPath(t)

	_, err := newTestOrchestrator(t, newFakeEnumerator(scenarioFiles()), writer).Run(ctx, scenarioSources(), output)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, archive.StateAborted, writer.State())
	assert.NoFileExists(t, output)
}

func TestRunMetrics(t *testing.T) {
	metrics := NewMetrics()
	writer := newFakeWriter()

	report, err := newTestOrchestrator(t, newFakeEnumerator(scenarioFiles()), writer, WithMetrics(metrics)).
		Run(context.Background(), scenarioSources(), outputPath(t))
	require.NoError(t, err)

	var total float64
	for _, content := range scenarioFiles() {
		total += float64(len(content))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.entries.WithLabelValues("file")))
	assert.Equal(t, total, testutil.ToFloat64(metrics.uncompressedBytes))
	assert.Equal(t, total, testutil.ToFloat64(metrics.compressedBytes))
	assert.Equal(t, float64(report.FinalSizeBytes), testutil.ToFloat64(metrics.archiveSize))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.success))

	textfile := filepath.Join(t.TempDir(), "deploy_packager.prom")
	require.NoError(t, metrics.WriteTextfile(textfile))

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `deploy_packager_entries_total{kind="file"} 3`)
	assert.Contains(t, string(data), "deploy_packager_run_success 1")
}

func TestRunLogsProgress(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	reporter, err := NewReporter("", logger)
	require.NoError(t, err)

	o := New(newFakeEnumerator(scenarioFiles()), storeCompressor{}, newFakeWriter(), WithLogger(logger), WithReporter(reporter))

	_, err = o.Run(context.Background(), []Source{DirectorySource("build/dist", "dist", "**/*.css")}, outputPath(t))
	require.NoError(t, err)

	var messages []string
	for _, entry := range hook.AllEntries() {
		messages = append(messages, entry.Message)
	}

	assert.Equal(t, []string{
		"Packaging deployment artifact",
		"Entry excluded",
		"Deployment artifact created",
		"Packaging finished",
	}, messages)
}
