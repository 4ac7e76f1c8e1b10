package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/pithecene-io/pressroom/log"
)

// ErrNoListeners is returned when no listening socket could be bound.
var ErrNoListeners = errors.New("no listening socket could be bound")

// endpoint is one socket to bind.
type endpoint struct {
	network string // tcp4 or tcp6
	host    string
}

// planEndpoints decides which sockets to bind for host.
//
//   - empty host: the IPv4 and IPv6 wildcards
//   - IP literal: that address
//   - name: the first resolved address of each family
func planEndpoints(ctx context.Context, host string) ([]endpoint, error) {
	if host == "" {
		return []endpoint{
			{network: "tcp4", host: "0.0.0.0"},
			{network: "tcp6", host: "::"},
		}, nil
	}

	if ip := net.ParseIP(host); ip != nil {
		return []endpoint{endpointFor(ip)}, nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}

	var out []endpoint
	seen := make(map[string]bool)
	for _, addr := range addrs {
		ep := endpointFor(addr.IP)
		if seen[ep.network] {
			continue
		}
		seen[ep.network] = true
		out = append(out, ep)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", host)
	}
	return out, nil
}

func endpointFor(ip net.IP) endpoint {
	if ip.To4() != nil {
		return endpoint{network: "tcp4", host: ip.String()}
	}
	return endpoint{network: "tcp6", host: ip.String()}
}

// listenAll binds every planned endpoint on port. A bind failure is logged
// and skipped. When port is 0 the port assigned to the first socket is
// reused for the rest, so all families share one port.
//
// Returns ErrNoListeners if nothing could be bound.
func listenAll(ctx context.Context, host string, port int, logger *log.Logger) ([]net.Listener, error) {
	endpoints, err := planEndpoints(ctx, host)
	if err != nil {
		return nil, errors.Join(ErrNoListeners, err)
	}

	var listeners []net.Listener
	for _, ep := range endpoints {
		lc := net.ListenConfig{Control: socketControl}
		address := net.JoinHostPort(ep.host, strconv.Itoa(port))

		ln, err := lc.Listen(ctx, ep.network, address)
		if err != nil {
			logger.Warn("bind failed, skipping", map[string]any{
				"network": ep.network,
				"address": address,
				"error":   err.Error(),
			})
			continue
		}

		if port == 0 {
			if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
				port = tcpAddr.Port
			}
		}
		logger.Info("listening", map[string]any{
			"network": ep.network,
			"address": ln.Addr().String(),
		})
		listeners = append(listeners, ln)
	}

	if len(listeners) == 0 {
		return nil, ErrNoListeners
	}
	return listeners, nil
}
