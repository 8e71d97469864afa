package ip

type Contract interface {
	RouteReplace(spec ...string) error
	RouteDel(spec ...string) error
	RouteGet(hostIp string) (string, error)
	RouteDefault() (string, error)
}
