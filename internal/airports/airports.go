// Package airports provides the airport directory behind alternate-airport
// search and local time-zone resolution.
//
// The built-in directory is a hand-maintained YAML file of metro clusters
// (airports sharing a city code) and countries. It is a reasonable default,
// not an authoritative dataset; deployments can replace it with their own
// file through LoadFile or supply any AlternateSource implementation.
package airports

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/navuara/flightsearch/internal/timezone"
)

//go:embed data/airports.yaml
var defaultDirectory []byte

const schemaVersion = 1

var iataPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// AlternateSource yields the airports worth trying in place of iata. The
// first element is always iata itself and the order is stable.
type AlternateSource interface {
	Alternates(iata string) []string
}

type Airport struct {
	IATA     string `yaml:"iata"`
	City     string `yaml:"city"`
	Country  string `yaml:"country"`
	Metro    string `yaml:"metro,omitempty"`
	TimeZone string `yaml:"tz,omitempty"`
}

type file struct {
	Version  int       `yaml:"version"`
	Airports []Airport `yaml:"airports"`
}

type Options struct {
	// IncludeCountry appends same-country airports after metro siblings.
	IncludeCountry bool
}

// Directory is an immutable, concurrency-safe airport index.
type Directory struct {
	airports  []Airport
	byIATA    map[string]int
	locations map[string]*time.Location
	opts      Options
}

func LoadDefault(opts Options) (*Directory, error) {
	return Parse(defaultDirectory, opts)
}

func LoadFile(path string, opts Options) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read airport directory: %w", err)
	}
	return Parse(data, opts)
}

func Parse(data []byte, opts Options) (*Directory, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse airport directory: %w", err)
	}
	if f.Version != schemaVersion {
		return nil, fmt.Errorf("unsupported airport directory version %d (want %d)", f.Version, schemaVersion)
	}
	return NewDirectory(f.Airports, opts)
}

func NewDirectory(list []Airport, opts Options) (*Directory, error) {
	d := &Directory{
		airports:  make([]Airport, 0, len(list)),
		byIATA:    make(map[string]int, len(list)),
		locations: make(map[string]*time.Location),
		opts:      opts,
	}

	for _, a := range list {
		a.IATA = strings.ToUpper(strings.TrimSpace(a.IATA))
		a.Metro = strings.ToUpper(strings.TrimSpace(a.Metro))
		a.Country = strings.ToUpper(strings.TrimSpace(a.Country))

		if !iataPattern.MatchString(a.IATA) {
			return nil, fmt.Errorf("invalid IATA code %q in airport directory", a.IATA)
		}
		if _, dup := d.byIATA[a.IATA]; dup {
			return nil, fmt.Errorf("duplicate airport %s in airport directory", a.IATA)
		}
		if a.TimeZone != "" {
			loc := timezone.LoadLocation(a.TimeZone)
			if loc == nil {
				return nil, fmt.Errorf("unknown time zone %q for airport %s", a.TimeZone, a.IATA)
			}
			d.locations[a.IATA] = loc
		}

		d.byIATA[a.IATA] = len(d.airports)
		d.airports = append(d.airports, a)
	}
	return d, nil
}

func (d *Directory) Lookup(iata string) (Airport, bool) {
	i, ok := d.byIATA[strings.ToUpper(iata)]
	if !ok {
		return Airport{}, false
	}
	return d.airports[i], true
}

func (d *Directory) Len() int {
	return len(d.airports)
}

// Location implements timezone.Locator.
func (d *Directory) Location(iata string) *time.Location {
	return d.locations[strings.ToUpper(iata)]
}

// Alternates returns iata, then its metro siblings, then (optionally) its
// same-country siblings, each group in directory order.
func (d *Directory) Alternates(iata string) []string {
	iata = strings.ToUpper(iata)
	out := []string{iata}

	self, ok := d.Lookup(iata)
	if !ok {
		return out
	}

	seen := map[string]bool{iata: true}
	add := func(match func(Airport) bool) {
		for _, a := range d.airports {
			if !seen[a.IATA] && match(a) {
				seen[a.IATA] = true
				out = append(out, a.IATA)
			}
		}
	}

	if self.Metro != "" {
		add(func(a Airport) bool { return a.Metro == self.Metro })
	}
	if d.opts.IncludeCountry && self.Country != "" {
		add(func(a Airport) bool { return a.Country == self.Country })
	}
	return out
}

// StaticSource is a fixed IATA -> siblings table, mainly for tests and
// small deployments. Siblings must not include the key itself.
type StaticSource map[string][]string

func (s StaticSource) Alternates(iata string) []string {
	iata = strings.ToUpper(iata)
	return append([]string{iata}, s[iata]...)
}
