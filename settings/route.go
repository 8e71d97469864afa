package settings

import (
	"encoding/json"
	"errors"
	"strings"
)

// RouteBackend selects how routing-table changes are applied.
type RouteBackend int

const (
	// RouteBackendAuto probes the routing socket and falls back to the ip command.
	RouteBackendAuto RouteBackend = iota
	RouteBackendNetlink
	RouteBackendShell
)

func (b RouteBackend) MarshalJSON() ([]byte, error) {
	var backendStr string
	switch b {
	case RouteBackendAuto:
		backendStr = "auto"
	case RouteBackendNetlink:
		backendStr = "netlink"
	case RouteBackendShell:
		backendStr = "shell"
	default:
		return nil, errors.New("invalid route backend")
	}
	return json.Marshal(backendStr)
}

func (b *RouteBackend) UnmarshalJSON(data []byte) error {
	var backendStr string
	if err := json.Unmarshal(data, &backendStr); err != nil {
		return err
	}
	backend, err := ParseRouteBackend(backendStr)
	if err != nil {
		return err
	}
	*b = backend
	return nil
}

// ParseRouteBackend maps a configuration string onto a RouteBackend.
func ParseRouteBackend(s string) (RouteBackend, error) {
	switch strings.ToLower(s) {
	case "auto", "":
		return RouteBackendAuto, nil
	case "netlink":
		return RouteBackendNetlink, nil
	case "shell":
		return RouteBackendShell, nil
	default:
		return 0, errors.New("invalid route backend")
	}
}

type RouteSettings struct {
	Backend RouteBackend `json:"Backend"`
}
