package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// PreflightError reports a target host that could not be resolved before the run started.
type PreflightError struct {
	Host string
	Err  error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("cannot resolve target host %q: %v", e.Host, e.Err)
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}

// Resolver is the subset of *net.Resolver used by Preflight.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Preflight resolves the target's host once so an unresolvable target aborts
// before any request is claimed. IP literals skip the lookup.
func Preflight(ctx context.Context, target string, resolver Resolver) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse target: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return &PreflightError{Host: target, Err: fmt.Errorf("no host in URL")}
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return &PreflightError{Host: host, Err: err}
	}
	if len(addrs) == 0 {
		return &PreflightError{Host: host, Err: fmt.Errorf("no addresses")}
	}
	return nil
}
