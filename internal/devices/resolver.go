package devices

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver answers questions about block devices from sysfs, /proc/mounts
// and the /dev/disk symlink farm.  The roots are configurable so tests can
// point it at a fake tree.
type Resolver struct {
	SysRoot    string // usually /sys
	MountsPath string // usually /proc/mounts
	DevRoot    string // usually /dev
}

// DefaultResolver inspects the live system.
func DefaultResolver() *Resolver {
	return &Resolver{SysRoot: "/sys", MountsPath: "/proc/mounts", DevRoot: "/dev"}
}

// Bus returns "usb" when device is attached through a USB controller and
// "" otherwise.
func (r *Resolver) Bus(device string) string {
	link := filepath.Join(r.SysRoot, "class", "block", filepath.Base(device))
	resolved, err := filepath.EvalSymlinks(link)
	if err != nil {
		return ""
	}
	return busFromDevPath(resolved)
}

// busFromDevPath classifies a sysfs device path such as
// /devices/platform/soc/3f980000.usb/usb1/1-1/1-1:1.0/host0/.../block/sda/sda1.
func busFromDevPath(devpath string) string {
	for _, part := range strings.Split(devpath, "/") {
		if strings.HasPrefix(part, "usb") {
			return BusUSB
		}
	}
	return ""
}

// MountPoint returns where device is mounted, or "" if it is not.
func (r *Resolver) MountPoint(device string) string {
	mounts, err := readMounts(r.MountsPath)
	if err != nil {
		return ""
	}
	for _, m := range mounts {
		if m.Device == device || r.canonical(m.Device) == device {
			return m.Path
		}
	}
	return ""
}

// DeviceAt returns the device mounted at path, or "" if nothing is.
func (r *Resolver) DeviceAt(path string) string {
	mounts, err := readMounts(r.MountsPath)
	if err != nil {
		return ""
	}
	clean := filepath.Clean(path)
	for _, m := range mounts {
		if m.Path == clean {
			return r.canonical(m.Device)
		}
	}
	return ""
}

// canonical resolves /dev/disk/by-* aliases to the kernel device node.
func (r *Resolver) canonical(device string) string {
	if !strings.HasPrefix(device, filepath.Join(r.DevRoot, "disk")+string(filepath.Separator)) {
		return device
	}
	resolved, err := filepath.EvalSymlinks(device)
	if err != nil {
		return device
	}
	return resolved
}

// Label finds the filesystem label for a device by checking the
// /dev/disk/by-label symlinks.
func (r *Resolver) Label(device string) string {
	dir := filepath.Join(r.DevRoot, "disk", "by-label")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		link := filepath.Join(dir, entry.Name())
		target, err := os.Readlink(link)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if filepath.Clean(target) == device || filepath.Base(target) == filepath.Base(device) {
			return unescapeLabel(entry.Name())
		}
	}
	return ""
}

// unescapeLabel undoes udev's \x20 style escaping in by-label names.
func unescapeLabel(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, ok := hexByte(s[i+2], s[i+3]); ok {
				b.WriteByte(v)
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexNibble(hi)
	l, ok2 := hexNibble(lo)
	return h<<4 | l, ok1 && ok2
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Resolve fills in whatever the volume is missing.
func (r *Resolver) Resolve(v Volume) Volume {
	if v.Device == "" && v.MountPoint != "" {
		v.Device = r.DeviceAt(v.MountPoint)
	}
	if v.Device == "" {
		return v
	}
	if v.MountPoint == "" {
		v.MountPoint = r.MountPoint(v.Device)
	}
	if v.Bus == "" {
		v.Bus = r.Bus(v.Device)
	}
	if v.Label == "" {
		v.Label = r.Label(v.Device)
	}
	return v
}

// Partitions lists the partitions known to sysfs, as /dev paths.
func (r *Resolver) Partitions() ([]string, error) {
	dir := filepath.Join(r.SysRoot, "class", "block")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(dir, e.Name(), "partition")); err != nil {
			continue
		}
		out = append(out, filepath.Join(r.DevRoot, e.Name()))
	}
	return out, nil
}
