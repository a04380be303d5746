//go:build linux

package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// kernelGroup is the multicast group the kernel broadcasts uevents on.
const kernelGroup = 1

// netlinkMonitor listens to kernel uevents directly, without udevd.
type netlinkMonitor struct {
	resolver *Resolver
	log      logrus.FieldLogger
}

func newNetlink(opts Options) (Monitor, error) {
	return &netlinkMonitor{resolver: opts.Resolver, log: opts.Log}, nil
}

// List walks the sysfs partitions.
func (n *netlinkMonitor) List(context.Context) ([]Volume, error) {
	parts, err := n.resolver.Partitions()
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	vols := make([]Volume, 0, len(parts))
	for _, dev := range parts {
		vols = append(vols, n.resolver.Resolve(Volume{Device: dev}))
	}
	return vols, nil
}

func (n *netlinkMonitor) Resolve(v Volume) Volume { return n.resolver.Resolve(v) }

func (n *netlinkMonitor) Subscribe(ctx context.Context) (<-chan Event, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("open uevent socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind uevent socket: %w", err)
	}
	// A receive timeout lets the reader notice cancellation.
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set uevent socket timeout: %w", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer unix.Close(fd)
		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		buf := make([]byte, 64*1024)
		for ctx.Err() == nil {
			nr, _, err := unix.Recvfrom(fd, buf, 0)
			if err != nil {
				switch classifyRecvError(err) {
				case recvRetry:
					continue
				case recvOverflow:
					n.log.WithError(err).Warn("uevent socket overflowed, events dropped; rescanning partitions")
					if !n.rescan(ctx, send) {
						return
					}
					continue
				default:
					n.log.WithError(err).Error("uevent socket read failed")
					return
				}
			}
			ev, ok := parseUevent(buf[:nr])
			if !ok {
				continue
			}
			if !send(ev) {
				return
			}
		}
	}()
	return events, nil
}

type recvOutcome int

const (
	recvFatal recvOutcome = iota
	recvRetry
	recvOverflow
)

// classifyRecvError decides what a failed uevent read means for the reader.
// ENOBUFS loses the queued events but leaves the socket usable.
func classifyRecvError(err error) recvOutcome {
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
		return recvRetry
	case errors.Is(err, unix.ENOBUFS):
		return recvOverflow
	default:
		return recvFatal
	}
}

// rescan reports every attached partition as an arrival so that one lost in
// an overflow is still seen.  It returns false once ctx is done.
func (n *netlinkMonitor) rescan(ctx context.Context, send func(Event) bool) bool {
	vols, err := n.List(ctx)
	if err != nil {
		n.log.WithError(err).Warn("partition rescan failed")
		return ctx.Err() == nil
	}
	for _, v := range vols {
		if !send(Event{Action: ActionAdd, Volume: v}) {
			return false
		}
	}
	return true
}
