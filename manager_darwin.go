//go:build darwin

package main

import (
	"sstproute/application/logging"
	"sstproute/application/network/routing"
	"sstproute/infrastructure/PAL"
	"sstproute/infrastructure/PAL/darwin/route"
	"sstproute/settings"
)

func newManager(_ settings.RouteSettings, _ logging.Logger) (routing.Manager, error) {
	return route.NewManager(PAL.NewExecCommander()), nil
}
