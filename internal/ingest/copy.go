// Package ingest copies the contents of USB volumes onto local storage,
// once for every volume attached at startup and again for every volume
// plugged in later.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// CopyError is a failed volume copy.  Whatever was copied before the
// failure stays in place.
type CopyError struct {
	Source      string
	Destination string
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s to %s: %v", e.Source, e.Destination, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Summary counts what one CopyTree call did.
type Summary struct {
	Files   int
	Dirs    int
	Skipped int
	Bytes   int64
}

func (s Summary) String() string {
	return fmt.Sprintf("%d files, %d directories, %d skipped, %s",
		s.Files, s.Dirs, s.Skipped, humanize.IBytes(uint64(s.Bytes)))
}

// EnsureDestination creates dir and its parents if they are missing.
func EnsureDestination(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", dir, err)
	}
	return nil
}

// CopyTree copies every direct entry of src into dst.  An entry whose name
// already exists in dst is skipped and left untouched.  New files are copied
// with their permission bits and modification time; new directories are
// copied recursively.  Symlinks are followed.  The first error stops the
// copy and is returned as a *CopyError.
func CopyTree(log logrus.FieldLogger, src, dst string) (Summary, error) {
	var sum Summary
	entries, err := os.ReadDir(src)
	if err != nil {
		return sum, &CopyError{Source: src, Destination: dst, Err: err}
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		if _, err := os.Lstat(to); err == nil {
			log.WithField("path", to).Info("skipping, already exists")
			sum.Skipped++
			continue
		} else if !os.IsNotExist(err) {
			return sum, &CopyError{Source: from, Destination: to, Err: err}
		}

		info, err := os.Stat(from)
		if err != nil {
			return sum, &CopyError{Source: from, Destination: to, Err: err}
		}
		switch {
		case info.Mode().IsRegular():
			log.WithFields(logrus.Fields{"from": from, "to": to}).Info("copying file")
			n, err := copyFile(from, to, info)
			if err != nil {
				return sum, &CopyError{Source: from, Destination: to, Err: err}
			}
			sum.Files++
			sum.Bytes += n
		case info.IsDir():
			log.WithFields(logrus.Fields{"from": from, "to": to}).Info("copying directory")
			if err := copyDir(from, to, info, &sum); err != nil {
				return sum, &CopyError{Source: from, Destination: to, Err: err}
			}
		default:
			log.WithFields(logrus.Fields{"path": from, "mode": info.Mode().String()}).Debug("skipping special file")
		}
	}
	return sum, nil
}

// copyDir copies the tree at src into dst, creating dst if needed.  Inside
// the tree existing files are overwritten.
func copyDir(src, dst string, info os.FileInfo, sum *Summary) error {
	if err := os.MkdirAll(dst, info.Mode().Perm()|0o700); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		fi, err := os.Stat(from)
		if err != nil {
			return err
		}
		switch {
		case fi.Mode().IsRegular():
			n, err := copyFile(from, to, fi)
			if err != nil {
				return err
			}
			sum.Files++
			sum.Bytes += n
		case fi.IsDir():
			if err := copyDir(from, to, fi, sum); err != nil {
				return err
			}
		}
	}
	sum.Dirs++
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// copyFile duplicates src's content, permission bits and modification
// time at dst and returns the number of bytes written.
func copyFile(src, dst string, info os.FileInfo) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return n, err
	}
	return n, os.Chtimes(dst, info.ModTime(), info.ModTime())
}
