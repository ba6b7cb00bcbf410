package config

import (
	"os"
	"sync"
)

// containerMarkers identify a container runtime by filesystem probe: Docker
// creates /.dockerenv, podman creates /run/.containerenv.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

// loopbackHosts are the spellings of "this machine" that cannot reach the
// host's services from inside a container.
var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

var (
	inContainerOnce sync.Once
	inContainer     bool
)

// IsRunningInDocker reports whether the engine itself runs inside a
// container. Cached after the first probe.
func IsRunningInDocker() bool {
	inContainerOnce.Do(func() {
		for _, marker := range containerMarkers {
			if _, err := os.Stat(marker); err == nil {
				inContainer = true
				return
			}
		}
	})
	return inContainer
}

// ResolveHostForDocker rewrites loopback datasource hosts to
// host.docker.internal when the engine runs containerized, so a database on
// the host machine stays reachable. Every other host passes through
// unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() || !loopbackHosts[host] {
		return host
	}
	return "host.docker.internal"
}
