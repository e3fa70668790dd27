package enrichment

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/mssola/user_agent"
	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
	"github.com/hirepulse/visitor-telemetry/internal/domain/providers"
	apperrors "github.com/hirepulse/visitor-telemetry/pkg/errors"
)

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
)

// cityReader is the subset of *geoip2.Reader used for lookups.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Provider derives geo facts from a MaxMind City database and device facts
// from the user agent. Without a database only device facts are returned.
type Provider struct {
	mu     sync.RWMutex
	reader cityReader
}

var _ providers.EnrichmentProvider = (*Provider)(nil)

// NewProvider opens the MaxMind database at dbPath. A missing or unreadable
// database is logged and the provider falls back to user agent parsing only.
func NewProvider(dbPath string) *Provider {
	p := &Provider{}
	if dbPath == "" {
		log.Warn().Msg("GeoIP database path not set, geo enrichment disabled")
		return p
	}

	reader, err := geoip2.Open(dbPath)
	if err != nil {
		log.Warn().Err(err).Str("path", dbPath).Msg("failed to open GeoIP database, geo enrichment disabled")
		return p
	}

	meta := reader.Metadata()
	log.Info().Str("path", dbPath).Uint("build_epoch", meta.BuildEpoch).Msg("loaded GeoIP database")
	p.reader = reader
	return p
}

// Enrich returns whatever facts can be derived. When the geo lookup fails the
// device facts are still returned together with an EnrichmentUnavailable error.
func (p *Provider) Enrich(ctx context.Context, ip, userAgent string) (entities.EnrichmentFacts, error) {
	var facts entities.EnrichmentFacts
	if err := ctx.Err(); err != nil {
		return facts, apperrors.NewEnrichmentUnavailableError("enrichment cancelled", err)
	}

	parseUserAgent(userAgent, &facts)

	if err := p.lookupGeo(ip, &facts); err != nil {
		return facts, apperrors.NewEnrichmentUnavailableError("geo lookup failed", err)
	}
	return facts, nil
}

func (p *Provider) lookupGeo(ipStr string, facts *entities.EnrichmentFacts) error {
	p.mu.RLock()
	reader := p.reader
	p.mu.RUnlock()

	if reader == nil {
		return nil
	}

	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return nil
	}

	record, err := reader.City(ip)
	if err != nil {
		return err
	}

	if name, ok := record.Country.Names["en"]; ok {
		facts.Country = name
	} else {
		facts.Country = record.Country.IsoCode
	}
	if len(record.Subdivisions) > 0 {
		facts.Region = record.Subdivisions[0].Names["en"]
	}
	facts.City = record.City.Names["en"]
	facts.Timezone = record.Location.TimeZone
	return nil
}

// Close releases the GeoIP database.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reader == nil {
		return nil
	}
	err := p.reader.Close()
	p.reader = nil
	return err
}

func parseUserAgent(raw string, facts *entities.EnrichmentFacts) {
	if strings.TrimSpace(raw) == "" {
		return
	}

	ua := user_agent.New(raw)
	facts.Browser, facts.BrowserVersion = ua.Browser()
	facts.OS = ua.OS()

	lower := strings.ToLower(raw)
	switch {
	case ua.Bot():
		facts.Device = DeviceBot
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		facts.Device = DeviceTablet
	case ua.Mobile():
		facts.Device = DeviceMobile
	default:
		facts.Device = DeviceDesktop
	}
}
