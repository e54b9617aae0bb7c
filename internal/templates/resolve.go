package templates

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"keepsake/internal/logging"
	"keepsake/internal/services"
)

// Host is a hostname split around its registrable domain.
type Host struct {
	Subdomain string
	SLD       string
	TLD       string
}

// SplitHost splits hostname using the public suffix list, so
// "www.example.co.uk" yields subdomain "www", SLD "example", TLD "co.uk".
func SplitHost(hostname string) Host {
	hostname = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(hostname)), ".")
	if hostname == "" {
		return Host{}
	}
	if net.ParseIP(hostname) != nil {
		return Host{SLD: hostname}
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return splitLabels(hostname)
	}
	suffix, _ := publicsuffix.PublicSuffix(hostname)
	return Host{
		Subdomain: strings.TrimSuffix(strings.TrimSuffix(hostname, registrable), "."),
		SLD:       strings.TrimSuffix(registrable, "."+suffix),
		TLD:       suffix,
	}
}

func splitLabels(hostname string) Host {
	labels := strings.Split(hostname, ".")
	switch len(labels) {
	case 1:
		return Host{SLD: labels[0]}
	case 2:
		return Host{SLD: labels[0], TLD: labels[1]}
	}
	n := len(labels)
	return Host{
		Subdomain: strings.Join(labels[:n-2], "."),
		SLD:       labels[n-2],
		TLD:       labels[n-1],
	}
}

// Match is a URL resolved against a template.
type Match struct {
	Template *Template
	URL      *url.URL
	Host     Host
}

// ParseURL parses an absolute http(s) URL.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "templates", "parse url", raw, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return nil, services.Wrap(services.ErrValidation, "templates", "parse url", fmt.Sprintf("%q is not an absolute URL", raw), nil)
	}
	return u, nil
}

// Resolve finds the template for raw. The template named after the URL's
// second-level domain is tried first; otherwise templates are scanned in
// lexical file-name order.
func (r *Registry) Resolve(raw string) (*Match, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	host := SplitHost(u.Hostname())

	if tpl, ok := r.templates[host.SLD]; ok && tpl.Domain.Matches(host) {
		return &Match{Template: tpl, URL: u, Host: host}, nil
	}
	for _, key := range r.order {
		tpl := r.templates[key]
		if tpl.Domain.Matches(host) {
			r.logger.Debug("template matched by scan",
				logging.String("url", raw),
				logging.String(logging.FieldScheme, tpl.Name),
			)
			return &Match{Template: tpl, URL: u, Host: host}, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "templates", "resolve", "no template for "+u.Hostname(), nil)
}

// Segment returns path segment index of u. Index 0 is the empty segment
// before the leading slash, so index 1 is the first path component.
func Segment(u *url.URL, index int) (string, bool) {
	if u == nil || index < 0 {
		return "", false
	}
	segments := strings.Split(u.Path, "/")
	if index >= len(segments) || segments[index] == "" {
		return "", false
	}
	return segments[index], true
}

// CategoryName returns the path segment at the category index, whether or
// not the template declares it.
func (m *Match) CategoryName() (string, bool) {
	if !m.Template.Categories.Enabled {
		return "", false
	}
	return Segment(m.URL, m.Template.Categories.Index())
}

// Category returns the matched category. ok is false when categories are
// disabled, the segment is missing, or the segment is not a declared
// category.
func (m *Match) Category() (string, Category, bool) {
	name, ok := m.CategoryName()
	if !ok {
		return "", Category{}, false
	}
	cat, ok := m.Template.Category(name)
	if !ok {
		return "", Category{}, false
	}
	return name, cat, true
}

// SubscriptionName extracts the subscription name from the URL path.
func (m *Match) SubscriptionName() (string, error) {
	if !m.Template.Subscription.Enabled {
		return "", services.Wrap(services.ErrValidation, "templates", m.Template.Name, "subscriptions are disabled", nil)
	}
	name, ok := Segment(m.URL, m.Template.Subscription.NameLocator)
	if !ok {
		return "", services.Wrap(services.ErrNotFound, "templates", m.Template.Name,
			fmt.Sprintf("no path segment %d in %s", m.Template.Subscription.NameLocator, m.URL.Path), nil)
	}
	return name, nil
}

// SubscriptionURL synthesizes the canonical subscription URL from the
// template blueprint.
func (m *Match) SubscriptionURL() (string, error) {
	sub := m.Template.Subscription
	if !sub.Enabled {
		return "", services.Wrap(services.ErrValidation, "templates", m.Template.Name, "subscriptions are disabled", nil)
	}
	values := map[string]string{
		"scheme":           m.URL.Scheme,
		"subdomain":        m.Host.Subdomain,
		"sld":              m.Host.SLD,
		"tld":              m.Host.TLD,
		"subscription_url": sub.SubscriptionURL,
	}
	if name, cat, ok := m.Category(); ok {
		values["category"] = name
		if cat.SubscriptionURL != "" {
			values["subscription_url"] = cat.SubscriptionURL
		}
	}
	if name, err := m.SubscriptionName(); err == nil {
		values["subscription_name"] = name
	}
	return Synthesize(sub.URLBlueprint, values)
}
