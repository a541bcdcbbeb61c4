package config

import (
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

// IngressRule opens one TCP port; Description names the service behind it.
type IngressRule struct {
	Port        int    `yaml:"port"`
	Description string `yaml:"description"`
}

// DefaultHostIngress is the port table for the EC2 development hosts.
func DefaultHostIngress() []IngressRule {
	return []IngressRule{
		{Port: 22, Description: "SSH"},
		{Port: 80, Description: "HTTP"},
		{Port: 5432, Description: "PostgreSQL"},
		{Port: 3000, Description: "Frontend"},
		{Port: 3001, Description: "Frontend2"},
		{Port: 8080, Description: "Backend"},
		{Port: 8081, Description: "Batch"},
		{Port: 6379, Description: "Redis"},
		{Port: 8001, Description: "RedisInsight"},
	}
}

// NormalizeCIDR turns a bare IPv4 address into a /32 and validates CIDRs.
func NormalizeCIDR(v string) (string, error) {
	v = strings.TrimSpace(v)
	if strings.Contains(v, "/") {
		p, err := netip.ParsePrefix(v)
		if err != nil || !p.Addr().Is4() {
			return "", errors.Errorf("invalid IPv4 CIDR %q", v)
		}
		return p.Masked().String(), nil
	}
	a, err := netip.ParseAddr(v)
	if err != nil || !a.Is4() {
		return "", errors.Errorf("invalid IPv4 address %q", v)
	}
	return netip.PrefixFrom(a, 32).String(), nil
}

// NormalizeCIDRs drops blanks, normalizes each entry and removes duplicates
// while keeping first-seen order.
func NormalizeCIDRs(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		cidr, err := NormalizeCIDR(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[cidr]; ok {
			continue
		}
		seen[cidr] = struct{}{}
		out = append(out, cidr)
	}
	return out, nil
}

func validateIngress(rules []IngressRule) error {
	ports := make(map[int]struct{}, len(rules))
	for _, r := range rules {
		if r.Port < 1 || r.Port > 65535 {
			return errors.Errorf("ingress rule %q: port %d out of range", r.Description, r.Port)
		}
		if r.Description == "" {
			return errors.Errorf("ingress rule for port %d has no description", r.Port)
		}
		if _, dup := ports[r.Port]; dup {
			return errors.Errorf("ingress port %d listed twice", r.Port)
		}
		ports[r.Port] = struct{}{}
	}
	return nil
}
