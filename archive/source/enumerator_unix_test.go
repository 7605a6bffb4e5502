//go:build unix && !integration

package source

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkSkipsNamedPipes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.js": "index"})
	require.NoError(t, syscall.Mkfifo(filepath.Join(root, "pipe"), 0o600))

	logger, hook := test.NewNullLogger()

	entries, err := collect(t, New(WithLogger(logger)), root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js"}, paths(entries))

	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "File ignored")
	assert.Equal(t, filepath.Join(root, "pipe"), hook.LastEntry().Data["path"])
}
