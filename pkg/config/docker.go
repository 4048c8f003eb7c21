package config

import (
	"net/url"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv file which exists in all Docker containers.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps a loopback host to host.docker.internal when
// running in Docker, so a feed-manager on the host machine stays reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return dockerHost(host)
}

// ResolveURLForDocker applies ResolveHostForDocker to the host of rawURL,
// keeping its port. Unparseable URLs are returned unchanged.
func ResolveURLForDocker(rawURL string) string {
	if !IsRunningInDocker() {
		return rawURL
	}
	return rewriteLoopback(rawURL)
}

func dockerHost(host string) string {
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}

func rewriteLoopback(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := dockerHost(u.Hostname())
	if host == u.Hostname() {
		return rawURL
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	return u.String()
}
