package devices

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// mountWatch watches the directories desktop automounters mount into
// (/media/<user>/<label>, /run/media/<user>/<label>, /mnt/<label>).  A new
// directory is reported as an arrival; the device behind it is looked up
// once it is mounted.
//
// Only newly created directories count as arrivals.  Automounters that
// mount onto fixed, pre-existing directories (usbmount's /media/usb0 to
// /media/usb7) produce no event here; use the netlink or udisks2 backend
// with them.
type mountWatch struct {
	roots    []string
	resolver *Resolver
	log      logrus.FieldLogger
}

func newMountWatch(opts Options) *mountWatch {
	roots := make([]string, 0, len(opts.MountRoots))
	for _, r := range opts.MountRoots {
		roots = append(roots, filepath.Clean(r))
	}
	return &mountWatch{roots: roots, resolver: opts.Resolver, log: opts.Log}
}

// List returns the mounts found below any of the roots.
func (m *mountWatch) List(context.Context) ([]Volume, error) {
	mounts, err := readMounts(m.resolver.MountsPath)
	if err != nil {
		return nil, err
	}
	var vols []Volume
	for _, mt := range mounts {
		if !m.underRoot(mt.Path) {
			continue
		}
		vols = append(vols, m.resolver.Resolve(Volume{Device: m.resolver.canonical(mt.Device), MountPoint: mt.Path}))
	}
	sort.Slice(vols, func(i, j int) bool { return vols[i].MountPoint < vols[j].MountPoint })
	return vols, nil
}

func (m *mountWatch) underRoot(path string) bool {
	for _, root := range m.roots {
		if strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (m *mountWatch) Resolve(v Volume) Volume { return m.resolver.Resolve(v) }

// Subscribe watches every existing root and its first-level
// subdirectories (the per-user directories).
func (m *mountWatch) Subscribe(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create mount watcher: %w", err)
	}
	watched := 0
	for _, root := range m.roots {
		if err := watcher.Add(root); err != nil {
			m.log.WithError(err).WithField("root", root).Debug("mount root not watched")
			continue
		}
		watched++
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				if err := watcher.Add(filepath.Join(root, e.Name())); err == nil {
					watched++
				}
			}
		}
	}
	if watched == 0 {
		watcher.Close()
		return nil, fmt.Errorf("none of the mount roots %v can be watched", m.roots)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.WithError(err).Warn("mount watcher error")
			case fe, ok := <-watcher.Events:
				if !ok {
					return
				}
				ev, ok := m.handle(watcher, fe)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// handle converts a filesystem event.  A directory created directly under
// a root may be a per-user directory, so it is watched as well before the
// event is reported.
func (m *mountWatch) handle(watcher *fsnotify.Watcher, fe fsnotify.Event) (Event, bool) {
	switch {
	case fe.Has(fsnotify.Create):
		info, err := os.Stat(fe.Name)
		if err != nil || !info.IsDir() {
			return Event{}, false
		}
		if m.isRoot(filepath.Dir(fe.Name)) {
			if err := watcher.Add(fe.Name); err != nil {
				m.log.WithError(err).WithField("dir", fe.Name).Debug("cannot watch new directory")
			}
		}
		return Event{Action: ActionAdd, Volume: Volume{MountPoint: fe.Name}}, true
	case fe.Has(fsnotify.Remove):
		return Event{Action: ActionRemove, Volume: Volume{MountPoint: fe.Name}}, true
	}
	return Event{}, false
}

func (m *mountWatch) isRoot(dir string) bool {
	for _, root := range m.roots {
		if root == dir {
			return true
		}
	}
	return false
}
