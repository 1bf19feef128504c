package geo

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"github.com/dolos-sec/dolos/internal/logger"
)

// ErrInvalidAddress is returned when the input is not a parseable IP.
var ErrInvalidAddress = errors.New("invalid address")

// Resolver supplies the country code for an address. The zero result ("")
// means unknown.
type Resolver interface {
	Country(address string) (string, error)
}

// MaxMindResolver resolves countries from a local MaxMind GeoIP2/GeoLite2
// database file.
type MaxMindResolver struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens the mmdb at path. Callers should Close the resolver when
// done.
func OpenMaxMind(path string) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

// Country returns the ISO 3166-1 alpha-2 code for the address, or "" when
// the database has no record for it.
func (r *MaxMindResolver) Country(address string) (string, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	rec, err := r.reader.Country(ip)
	if err != nil {
		return "", fmt.Errorf("geoip lookup: %w", err)
	}
	return rec.Country.IsoCode, nil
}

// Close releases the underlying database.
func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}

// GateMode selects how the country gate treats its country list.
type GateMode string

const (
	// GateDisabled admits every address.
	GateDisabled GateMode = "disabled"
	// GateAllow admits only listed countries.
	GateAllow GateMode = "allow"
	// GateDeny admits everything except listed countries.
	GateDeny GateMode = "deny"
)

// Gate is the country allow/deny collaborator. The decision engine consumes
// its verdict and country code; it never blocks on its own.
type Gate struct {
	mu        sync.RWMutex
	resolver  Resolver
	mode      GateMode
	countries map[string]bool
}

// NewGate builds a Gate over the resolver. A nil resolver leaves every
// lookup unknown, which fails open.
func NewGate(resolver Resolver, mode GateMode, countries []string) *Gate {
	set := make(map[string]bool, len(countries))
	for _, c := range countries {
		set[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return &Gate{resolver: resolver, mode: mode, countries: set}
}

// Check resolves the address's country and applies the gate policy. Unknown
// countries are admitted: a honeypot prefers observing to refusing, and a
// missing database must not break the request path.
func (g *Gate) Check(address string) (allowed bool, country string) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.resolver != nil {
		code, err := g.resolver.Country(address)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"address": address,
				"error":   err.Error(),
			}).Debug("country lookup failed")
		} else {
			country = strings.ToUpper(code)
		}
	}

	switch g.mode {
	case GateAllow:
		if country == "" {
			return true, country
		}
		return g.countries[country], country
	case GateDeny:
		if country == "" {
			return true, country
		}
		return !g.countries[country], country
	default:
		return true, country
	}
}

// SetPolicy atomically replaces the gate mode and country list.
func (g *Gate) SetPolicy(mode GateMode, countries []string) {
	set := make(map[string]bool, len(countries))
	for _, c := range countries {
		set[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = mode
	g.countries = set
}
