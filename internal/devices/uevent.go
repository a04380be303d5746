package devices

import (
	"bytes"
	"path"
	"strings"
)

// parseUevent decodes a kernel uevent datagram:
//
//	add@/devices/.../block/sda/sda1\0ACTION=add\0DEVPATH=...\0SUBSYSTEM=block\0DEVNAME=sda1\0DEVTYPE=partition\0...
//
// Only add and remove events for block partitions are reported.
func parseUevent(msg []byte) (Event, bool) {
	fields := bytes.Split(msg, []byte{0})
	if len(fields) < 2 || !bytes.Contains(fields[0], []byte("@")) {
		return Event{}, false
	}
	env := make(map[string]string, len(fields))
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(string(f), "=")
		if ok {
			env[k] = v
		}
	}
	if env["SUBSYSTEM"] != "block" || env["DEVTYPE"] != "partition" {
		return Event{}, false
	}

	var act Action
	switch env["ACTION"] {
	case "add":
		act = ActionAdd
	case "remove":
		act = ActionRemove
	default:
		return Event{}, false
	}

	name := env["DEVNAME"]
	if name == "" {
		name = path.Base(env["DEVPATH"])
	}
	if !strings.HasPrefix(name, "/") {
		name = "/dev/" + name
	}
	return Event{
		Action: act,
		Volume: Volume{Device: name, Bus: busFromDevPath(env["DEVPATH"])},
	}, true
}
