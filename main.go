package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"sstproute/infrastructure/logging"
	"sstproute/infrastructure/routing/client_routing"
	"sstproute/settings"
)

const PackageName = "sstproute"

func main() {
	backend := flag.String("backend", "auto", "route backend: auto, netlink or shell")
	pin := flag.Bool("pin", false, "also pin and unpin a host route (needs admin privileges)")
	flag.Usage = printUsage
	flag.Parse()

	target := "4.4.2.2"
	if flag.NArg() > 0 {
		target = flag.Arg(0)
	}
	dst := net.ParseIP(target)
	if dst == nil {
		fmt.Printf("invalid destination address: %s\n", target)
		os.Exit(1)
	}

	parsedBackend, err := settings.ParseRouteBackend(*backend)
	if err != nil {
		fmt.Printf("invalid backend: %s\n", *backend)
		os.Exit(1)
	}
	routeSettings := settings.RouteSettings{Backend: parsedBackend}

	logger := logging.NewLogLogger()
	manager, err := newManager(routeSettings, logger)
	if err != nil {
		fmt.Printf("failed to open a route manager: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = manager.Close() }()

	route, err := manager.Get(dst)
	if err != nil {
		fmt.Printf("failed to get route to %s: %v\n", dst, err)
		os.Exit(1)
	}
	fmt.Printf("got route to %s from %s via %s dev %s\n",
		route.DstIP(), route.SrcIP(), route.GwyIP(), route.IfName)

	if !*pin {
		return
	}
	if os.Geteuid() != 0 {
		fmt.Printf("Warning: %s must be run with admin privileges to pin routes\n", PackageName)
		os.Exit(1)
	}

	keeper := client_routing.NewRouteKeeper(manager, logger)
	if err := keeper.Pin(dst); err != nil {
		fmt.Printf("failed to pin route to %s: %v\n", dst, err)
		os.Exit(1)
	}
	if err := keeper.Unpin(); err != nil {
		fmt.Printf("failed to unpin route to %s: %v\n", dst, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`Usage: %s [flags] [destination]

Looks up the host route to destination (default 4.4.2.2) and prints it.
Flags:
`, PackageName)
	flag.PrintDefaults()
}
