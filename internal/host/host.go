// Package host resolves who runs the wrapper and where. The values are
// looked up once and injected into the composer and the mail transports.
package host

import (
	"context"
	"net"
	"os"
	"strings"
	"time"
)

const DefaultUser = "root"

// LookupTimeout bounds the DNS queries of Lookup, the command must not wait
// for a stuck resolver.
const LookupTimeout = 2 * time.Second

type Identity struct {
	User     string // USER, then LOGNAME, then root
	Hostname string // fully qualified when resolvable
}

// Resolver is the subset of net.Resolver used to qualify the host name.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Lookup reads the identity of the current process.
func Lookup(ctx context.Context) Identity {
	ctx, cancel := context.WithTimeout(ctx, LookupTimeout)
	defer cancel()
	return Identity{
		User:     User(os.Getenv),
		Hostname: FQDN(ctx, net.DefaultResolver, os.Hostname),
	}
}

func User(getenv func(string) string) string {
	for _, key := range []string{"USER", "LOGNAME"} {
		if v := getenv(key); v != "" {
			return v
		}
	}
	return DefaultUser
}

// FQDN returns the first name containing a dot found by resolving the host
// name to addresses and back. It falls back to the plain host name, or to
// "localhost" if even that is not available.
func FQDN(ctx context.Context, r Resolver, hostname func() (string, error)) string {
	name, err := hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	if strings.Contains(name, ".") {
		return name
	}

	addrs, err := r.LookupHost(ctx, name)
	if err != nil {
		return name
	}
	for _, addr := range addrs {
		names, err := r.LookupAddr(ctx, addr)
		if err != nil {
			continue
		}
		for _, n := range names {
			n = strings.TrimSuffix(n, ".")
			if strings.Contains(n, ".") {
				return n
			}
		}
	}
	return name
}
