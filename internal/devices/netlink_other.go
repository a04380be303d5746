//go:build !linux

package devices

import "errors"

func newNetlink(Options) (Monitor, error) {
	return nil, errors.New("netlink device monitor is only available on Linux")
}
