//go:build linux

package main

import (
	"sstproute/application/logging"
	"sstproute/application/network/routing"
	"sstproute/infrastructure/PAL"
	"sstproute/infrastructure/PAL/linux/route"
	"sstproute/settings"
)

func newManager(s settings.RouteSettings, logger logging.Logger) (routing.Manager, error) {
	return route.NewAutoManager(s, PAL.NewExecCommander(), logger)
}
