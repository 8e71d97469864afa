package ip

import (
	"fmt"
	"strings"

	"sstproute/infrastructure/PAL"
)

// Wrapper is a wrapper around the route subcommands of the ip command from
// the iproute2 tool collection
type Wrapper struct {
	commander PAL.Commander
}

func NewWrapper(commander PAL.Commander) Contract {
	return &Wrapper{commander: commander}
}

// RouteReplace installs a route described by an ip-route specification,
// overwriting an equivalent existing one
func (i *Wrapper) RouteReplace(spec ...string) error {
	args := append([]string{"route", "replace"}, spec...)
	output, err := i.commander.CombinedOutput("ip", args...)
	if err != nil {
		return fmt.Errorf("failed to replace route %v: %v, output: %s", spec, err, output)
	}

	return nil
}

// RouteDel removes a route described by an ip-route specification
func (i *Wrapper) RouteDel(spec ...string) error {
	args := append([]string{"route", "del"}, spec...)
	output, err := i.commander.CombinedOutput("ip", args...)
	if err != nil {
		return fmt.Errorf("failed to del route %v: %v, output: %s", spec, err, output)
	}

	return nil
}

// RouteGet gets route to host by host ip
func (i *Wrapper) RouteGet(hostIp string) (string, error) {
	routeBytes, err := i.commander.Output("ip", "route", "get", hostIp)
	if err != nil {
		return "", fmt.Errorf("failed to get route to %s: %v", hostIp, err)
	}
	if len(strings.TrimSpace(string(routeBytes))) == 0 {
		return "", fmt.Errorf("failed to get route to %s: empty output", hostIp)
	}

	return string(routeBytes), nil
}

// RouteDefault Gets a default network device name
func (i *Wrapper) RouteDefault() (string, error) {
	out, err := i.commander.Output("ip", "route")
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(out), "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "default") {
			fields := strings.Fields(line)
			if len(fields) >= 5 {
				return fields[4], nil
			}
		}
	}
	return "", fmt.Errorf("failed to get default interface")
}
