// Package devices reports removable block partitions: the ones attached
// right now and the ones that arrive later.  Three backends are available
// (kernel uevents over netlink, UDisks2 over D-Bus, and a watch on the
// automounter's mount directories); they all produce the same Volume and
// Event values and share a Resolver for /proc/mounts and sysfs lookups.
package devices

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// BusUSB is the bus name reported for USB-attached partitions.
const BusUSB = "usb"

// Action is what happened to a device.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Volume is a block partition.  Any field may be empty when unknown; in
// particular MountPoint is often empty in arrival events because the
// automounter has not finished yet.
type Volume struct {
	Device     string // e.g. /dev/sda1
	Bus        string // "usb" for USB-attached devices
	Label      string
	MountPoint string
}

// String returns a display string for the volume.
func (v Volume) String() string {
	name := v.Device
	if name == "" {
		name = v.MountPoint
	}
	if v.Label != "" {
		return fmt.Sprintf("%s (%s)", v.Label, name)
	}
	return name
}

// IsUSB reports whether the volume sits on the USB bus.
func (v Volume) IsUSB() bool { return v.Bus == BusUSB }

// Event is a single device notification.
type Event struct {
	Action Action
	Volume Volume
}

// Monitor is the device-event boundary used by the ingest watcher.
type Monitor interface {
	// List returns the removable partitions currently attached.
	List(ctx context.Context) ([]Volume, error)
	// Subscribe streams device events until ctx is done, then closes the
	// channel.  A Monitor can only be subscribed once.
	Subscribe(ctx context.Context) (<-chan Event, error)
	// Resolve fills in what can be looked up now (mount point, device, bus,
	// label) for a volume taken from an event.
	Resolve(v Volume) Volume
}

// Backend names accepted by New.
const (
	KindNetlink    = "netlink"
	KindUDisks2    = "udisks2"
	KindMountWatch = "mountwatch"
)

// Options selects and configures a backend.
type Options struct {
	Kind       string
	MountRoots []string  // mountwatch only
	Resolver   *Resolver // nil means the live /sys, /proc/mounts and /dev
	Log        logrus.FieldLogger
}

// New returns the requested backend.
func New(opts Options) (Monitor, error) {
	if opts.Resolver == nil {
		opts.Resolver = DefaultResolver()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	switch strings.ToLower(opts.Kind) {
	case KindNetlink, "":
		return newNetlink(opts)
	case KindUDisks2:
		return newUDisks(opts), nil
	case KindMountWatch:
		return newMountWatch(opts), nil
	default:
		return nil, fmt.Errorf("unknown device monitor %q", opts.Kind)
	}
}
