package config

import "testing"

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	// Never rewritten, containerized or not.
	for _, host := range []string{
		"db.example.com",
		"192.168.1.100",
		"host.docker.internal",
		"",
	} {
		if got := ResolveHostForDocker(host); got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, got)
		}
	}
}

func TestResolveHostForDocker_Loopback(t *testing.T) {
	// The rewrite itself depends on where the test process runs, so assert
	// both legs against IsRunningInDocker.
	for _, host := range []string{"localhost", "127.0.0.1", "::1"} {
		got := ResolveHostForDocker(host)
		if IsRunningInDocker() {
			if got != "host.docker.internal" {
				t.Errorf("ResolveHostForDocker(%q) = %q, want host.docker.internal", host, got)
			}
		} else if got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged outside a container", host, got)
		}
	}
}
