// Package netguard keeps the verifier from being used as a proxy into
// private or internal networks. Every hostname is resolved and rejected when
// any of its addresses is not globally routable.
package netguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"sort"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/models"
	"golang.org/x/net/idna"
)

// MaxHostLength is the longest hostname the guard will resolve
const MaxHostLength = 253

// Reason prefixes recorded on rejected verdicts
const (
	ReasonInvalidHost = "invalid_host"
	ReasonIDNA        = "idna_error"
	ReasonDNSFailure  = "dns_failure"
	ReasonNonPublicIP = "non_public_ip"
)

// hostProfile maps IDNs to ASCII for lookup without the STD3 and hyphen
// rules, which reject resolvable names like my_host.example.com
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
	idna.ValidateLabels(false),
	idna.VerifyDNSLength(true),
)

// ErrNonPublicAddress is returned by DialControl and CheckRedirect
var ErrNonPublicAddress = errors.New("destination is not a public address")

// Resolver looks up the addresses of a host
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard resolves hostnames and decides whether they are safe to contact
type Guard struct {
	resolver Resolver
}

// NewGuard creates a guard using resolver, or the system resolver when nil
func NewGuard(resolver Resolver) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Guard{resolver: resolver}
}

// Check resolves host and fails closed when resolution fails or any address
// is outside public address space. It never connects to the host.
func (g *Guard) Check(ctx context.Context, host string) models.NetworkVerdict {
	host = strings.TrimSuffix(strings.Trim(strings.TrimSpace(host), "[]"), ".")
	verdict := models.NetworkVerdict{Host: host, ResolvedIPs: []string{}}

	if host == "" || len(host) > MaxHostLength {
		verdict.ErrorReason = ReasonInvalidHost
		return verdict
	}

	var addrs []netip.Addr
	if literal, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{literal}
	} else {
		ascii, err := hostProfile.ToASCII(host)
		if err != nil {
			verdict.ErrorReason = fmt.Sprintf("%s:%v", ReasonIDNA, err)
			return verdict
		}

		resolved, err := g.resolver.LookupIPAddr(ctx, ascii)
		if err != nil {
			verdict.ErrorReason = fmt.Sprintf("%s:%s", ReasonDNSFailure, dnsErrorDetail(err))
			return verdict
		}

		for _, ipAddr := range resolved {
			if addr, ok := netip.AddrFromSlice(ipAddr.IP); ok {
				addrs = append(addrs, addr.Unmap())
			}
		}
	}

	if len(addrs) == 0 {
		verdict.ErrorReason = ReasonDNSFailure + ":no_addresses"
		return verdict
	}

	verdict.ResolvedIPs = uniqueSorted(addrs)

	for _, addr := range addrs {
		if !IsPublicAddr(addr) {
			verdict.ErrorReason = fmt.Sprintf("%s:%s", ReasonNonPublicIP, addr)
			logrus.WithFields(logrus.Fields{
				"host": host,
				"ip":   addr.String(),
			}).Warn("Refusing non-public destination")
			return verdict
		}
	}

	verdict.PublicDNSOK = true
	return verdict
}

// DialControl rejects connections to non-public addresses at connect time.
// It is meant for net.Dialer.Control so that a host re-resolving to a private
// address between Check and the fetch is still refused.
func (g *Guard) DialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid dial address %q: %w", address, err)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("invalid dial address %q: %w", address, err)
	}

	if !IsPublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, addr)
	}

	return nil
}

// CheckRedirect validates every redirect hop with the same rules as Check
func (g *Guard) CheckRedirect(req *http.Request, _ []*http.Request) error {
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: redirect to scheme %q", ErrNonPublicAddress, req.URL.Scheme)
	}

	verdict := g.Check(req.Context(), req.URL.Hostname())
	if !verdict.PublicDNSOK {
		return fmt.Errorf("%w: redirect to %s (%s)", ErrNonPublicAddress, req.URL.Hostname(), verdict.ErrorReason)
	}

	return nil
}

func dnsErrorDetail(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return "not_found"
		case dnsErr.IsTimeout:
			return "timeout"
		case dnsErr.IsTemporary:
			return "temporary"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

func uniqueSorted(addrs []netip.Addr) []string {
	seen := make(map[string]bool, len(addrs))
	var out []string
	for _, addr := range addrs {
		s := addr.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
