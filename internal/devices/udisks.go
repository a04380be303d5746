package devices

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	udisksDest          = "org.freedesktop.UDisks2"
	udisksPath          = "/org/freedesktop/UDisks2"
	udisksBlock         = "org.freedesktop.UDisks2.Block"
	udisksPartition     = "org.freedesktop.UDisks2.Partition"
	udisksFilesystem    = "org.freedesktop.UDisks2.Filesystem"
	udisksDrive         = "org.freedesktop.UDisks2.Drive"
	dbusObjectManager   = "org.freedesktop.DBus.ObjectManager"
	signalIfacesAdded   = dbusObjectManager + ".InterfacesAdded"
	signalIfacesRemoved = dbusObjectManager + ".InterfacesRemoved"
)

// interfaces maps interface name to its properties, as returned by
// GetManagedObjects and InterfacesAdded.
type interfaces map[string]map[string]dbus.Variant

// udisksMonitor asks the UDisks2 daemon on the system bus.  UDisks2 already
// knows the drive's connection bus and the filesystem mount points, so no
// sysfs walk is needed except to resolve late mounts.
type udisksMonitor struct {
	resolver *Resolver
	log      logrus.FieldLogger
	connect  func() (*dbus.Conn, error)
}

func newUDisks(opts Options) *udisksMonitor {
	return &udisksMonitor{
		resolver: opts.Resolver,
		log:      opts.Log,
		connect:  func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() },
	}
}

func (u *udisksMonitor) List(ctx context.Context) ([]Volume, error) {
	conn, err := u.connect()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	defer conn.Close()

	var objects map[dbus.ObjectPath]interfaces
	call := conn.Object(udisksDest, udisksPath).CallWithContext(ctx, dbusObjectManager+".GetManagedObjects", 0)
	if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("udisks2 GetManagedObjects: %w", err)
	}
	return volumesFromObjects(objects), nil
}

func (u *udisksMonitor) Resolve(v Volume) Volume { return u.resolver.Resolve(v) }

func (u *udisksMonitor) Subscribe(ctx context.Context) (<-chan Event, error) {
	conn, err := u.connect()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	for _, member := range []string{"InterfacesAdded", "InterfacesRemoved"} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchObjectPath(udisksPath),
			dbus.WithMatchInterface(dbusObjectManager),
			dbus.WithMatchMember(member),
		); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe to udisks2 %s: %w", member, err)
		}
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	events := make(chan Event)
	go func() {
		defer close(events)
		defer conn.Close()
		known := make(map[dbus.ObjectPath]Volume)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				ev, ok := u.eventFromSignal(conn, sig, known)
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

// eventFromSignal turns an ObjectManager signal into an Event.  known
// remembers added partitions so removals can report the device.
func (u *udisksMonitor) eventFromSignal(conn *dbus.Conn, sig *dbus.Signal, known map[dbus.ObjectPath]Volume) (Event, bool) {
	switch sig.Name {
	case signalIfacesAdded:
		if len(sig.Body) < 2 {
			return Event{}, false
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
		vol, ok := partitionVolume(ifaces)
		if !ok {
			return Event{}, false
		}
		if drive := driveOf(ifaces); drive != "" {
			bus, err := conn.Object(udisksDest, drive).GetProperty(udisksDrive + ".ConnectionBus")
			if err != nil {
				u.log.WithError(err).WithField("drive", drive).Debug("udisks2 drive lookup failed")
			} else if s, ok := bus.Value().(string); ok {
				vol.Bus = s
			}
		}
		known[path] = vol
		return Event{Action: ActionAdd, Volume: vol}, true

	case signalIfacesRemoved:
		if len(sig.Body) < 2 {
			return Event{}, false
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		removed, _ := sig.Body[1].([]string)
		if !containsString(removed, udisksBlock) {
			return Event{}, false
		}
		vol, ok := known[path]
		delete(known, path)
		if !ok {
			return Event{}, false
		}
		return Event{Action: ActionRemove, Volume: vol}, true
	}
	return Event{}, false
}

// volumesFromObjects extracts partitions from a GetManagedObjects reply,
// sorted by device for stable output.
func volumesFromObjects(objects map[dbus.ObjectPath]interfaces) []Volume {
	var vols []Volume
	for _, ifaces := range objects {
		vol, ok := partitionVolume(ifaces)
		if !ok {
			continue
		}
		if drive := driveOf(ifaces); drive != "" {
			if d, ok := objects[drive][udisksDrive]; ok {
				vol.Bus = variantString(d["ConnectionBus"])
			}
		}
		vols = append(vols, vol)
	}
	sort.Slice(vols, func(i, j int) bool { return vols[i].Device < vols[j].Device })
	return vols
}

// partitionVolume builds a Volume from an object that carries both the
// Block and Partition interfaces.
func partitionVolume(ifaces map[string]map[string]dbus.Variant) (Volume, bool) {
	block, ok := ifaces[udisksBlock]
	if !ok {
		return Volume{}, false
	}
	if _, ok := ifaces[udisksPartition]; !ok {
		return Volume{}, false
	}
	vol := Volume{
		Device: variantBytesString(block["Device"]),
		Label:  variantString(block["IdLabel"]),
	}
	if fs, ok := ifaces[udisksFilesystem]; ok {
		if mps, ok := fs["MountPoints"].Value().([][]byte); ok && len(mps) > 0 {
			vol.MountPoint = string(bytes.TrimRight(mps[0], "\x00"))
		}
	}
	return vol, vol.Device != ""
}

func driveOf(ifaces map[string]map[string]dbus.Variant) dbus.ObjectPath {
	p, _ := ifaces[udisksBlock]["Drive"].Value().(dbus.ObjectPath)
	if p == "/" {
		return ""
	}
	return p
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

// variantBytesString decodes UDisks2's NUL-terminated byte-array strings.
func variantBytesString(v dbus.Variant) string {
	b, _ := v.Value().([]byte)
	return string(bytes.TrimRight(b, "\x00"))
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
