package ingest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestEnsureDestination(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home", "apex")
	require.NoError(t, EnsureDestination(dir))
	require.NoError(t, EnsureDestination(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")
	assert.Error(t, EnsureDestination(filepath.Join(file, "sub")))
}

func TestCopyTreeSkipsExisting(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "new file")
	writeFile(t, filepath.Join(src, "b.txt"), "from usb")
	writeFile(t, filepath.Join(dst, "b.txt"), "sentinel")

	sum, err := CopyTree(quietLog(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, "new file", readFile(t, filepath.Join(dst, "a.txt")))
	assert.Equal(t, "sentinel", readFile(t, filepath.Join(dst, "b.txt")))
	assert.Equal(t, Summary{Files: 1, Skipped: 1, Bytes: 8}, sum)
}

func TestCopyTreeSkipsExistingDirectory(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "photos", "1.jpg"), "usb")
	writeFile(t, filepath.Join(dst, "photos", "old.jpg"), "sentinel")

	sum, err := CopyTree(quietLog(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.NoFileExists(t, filepath.Join(dst, "photos", "1.jpg"))
	assert.Equal(t, "sentinel", readFile(t, filepath.Join(dst, "photos", "old.jpg")))
}

func TestCopyTreeRecursive(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "videos", "intro.mp4"), "intro")
	writeFile(t, filepath.Join(src, "videos", "2024", "clip.mp4"), "clip")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "videos", "empty"), 0o755))

	sum, err := CopyTree(quietLog(), src, dst)
	require.NoError(t, err)

	assert.Equal(t, "intro", readFile(t, filepath.Join(dst, "videos", "intro.mp4")))
	assert.Equal(t, "clip", readFile(t, filepath.Join(dst, "videos", "2024", "clip.mp4")))
	assert.DirExists(t, filepath.Join(dst, "videos", "empty"))
	assert.Equal(t, Summary{Files: 2, Dirs: 3, Bytes: 9}, sum)
}

func TestCopyTreePreservesMetadata(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	file := filepath.Join(src, "script.sh")
	writeFile(t, file, "#!/bin/sh\n")
	require.NoError(t, os.Chmod(file, 0o750))
	mtime := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)
	require.NoError(t, os.Chtimes(file, mtime, mtime))

	dir := filepath.Join(src, "dir")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.Chtimes(dir, mtime, mtime))

	_, err := CopyTree(quietLog(), src, dst)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dst, "script.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime), "file mtime %v", info.ModTime())

	info, err = os.Stat(filepath.Join(dst, "dir"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), "dir mtime %v", info.ModTime())
}

func TestCopyTreeFollowsSymlinks(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(src, "real.txt"), "content")
	require.NoError(t, os.Symlink("real.txt", filepath.Join(src, "link.txt")))

	_, err := CopyTree(quietLog(), src, dst)
	require.NoError(t, err)

	info, err := os.Lstat(filepath.Join(dst, "link.txt"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
	assert.Equal(t, "content", readFile(t, filepath.Join(dst, "link.txt")))
}

func TestCopyTreeErrors(t *testing.T) {
	dst := t.TempDir()
	missing := filepath.Join(t.TempDir(), "gone")

	_, err := CopyTree(quietLog(), missing, dst)
	var cerr *CopyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, missing, cerr.Source)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	require.NoError(t, os.Symlink(filepath.Join(src, "nowhere"), filepath.Join(src, "dangling")))
	_, err = CopyTree(quietLog(), src, dst)
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, filepath.Join(src, "dangling"), cerr.Source)
	assert.Contains(t, err.Error(), "copy "+filepath.Join(src, "dangling"))
}

func TestSummaryString(t *testing.T) {
	s := Summary{Files: 3, Dirs: 1, Skipped: 2, Bytes: 5 * 1024 * 1024}
	assert.Equal(t, "3 files, 1 directories, 2 skipped, 5.0 MiB", s.String())
}
