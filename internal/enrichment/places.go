package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
	places "google.golang.org/api/places/v1"

	"github.com/lifely/lifely/internal/logging"
)

// placesFieldMask limits search responses to the fields a LocationEntry uses.
const placesFieldMask = "places.id,places.displayName,places.formattedAddress,places.types,places.primaryType,places.location,places.addressComponents"

// Locations mentioning these are meeting links or placeholders, never venues.
var geocodeSkip = []string{"zoom", "google meet", "meet link", "see attached"}

// PlaceResolver looks locations up with the Google Places text search. It
// resolves Maps share links the model cannot read and fills in coordinates
// for address-like text.
type PlaceResolver struct {
	service *places.Service
	logger  *slog.Logger
}

// NewPlaceResolver builds a resolver authorized by apiKey. Extra client
// options are appended, which tests use to point at a fake server.
func NewPlaceResolver(ctx context.Context, apiKey string, logger *slog.Logger, opts ...option.ClientOption) (*PlaceResolver, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("places api key is required")
	}
	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := places.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create places service: %w", err)
	}
	return NewPlaceResolverFromService(service, logger), nil
}

// NewPlaceResolverFromService wraps an existing service.
func NewPlaceResolverFromService(service *places.Service, logger *slog.Logger) *PlaceResolver {
	return &PlaceResolver{
		service: service,
		logger:  logging.OrDiscard(logger),
	}
}

// Resolve returns the first place matching location. ok is false when the
// search has no usable match.
func (r *PlaceResolver) Resolve(ctx context.Context, location string) (LocationEntry, bool, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return LocationEntry{}, false, nil
	}

	call := r.service.Places.SearchText(&places.GoogleMapsPlacesV1SearchTextRequest{TextQuery: location})
	call.Header().Set("X-Goog-FieldMask", placesFieldMask)
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return LocationEntry{}, false, fmt.Errorf("places search: %w", err)
	}
	if resp == nil || len(resp.Places) == 0 || resp.Places[0] == nil {
		return LocationEntry{}, false, nil
	}

	place := resp.Places[0]
	var entry LocationEntry
	if place.DisplayName != nil {
		entry.VenueName = cleanString(&place.DisplayName.Text)
	}
	entry.Neighborhood, entry.City = neighborhoodCity(place.AddressComponents)
	entry.Cuisine = cuisineFromTypes(place.PrimaryType, place.Types)
	if place.Location != nil {
		lat, lng := place.Location.Latitude, place.Location.Longitude
		entry.Latitude = validCoordinate(&lat, 90)
		entry.Longitude = validCoordinate(&lng, 180)
		if entry.Latitude == nil || entry.Longitude == nil {
			entry.Latitude, entry.Longitude = nil, nil
		}
	}

	if entry.VenueName == nil && entry.Latitude == nil {
		return LocationEntry{}, false, nil
	}
	r.logger.Debug("resolved place", "place_id", place.Id, "coordinates", entry.hasCoordinates())
	return entry, true, nil
}

// cuisine derives a cuisine from place types such as "thai_restaurant".
func cuisineFromTypes(primary string, types []string) *string {
	for _, t := range append([]string{primary}, types...) {
		base, ok := strings.CutSuffix(t, "_restaurant")
		if !ok {
			base, ok = strings.CutSuffix(t, "_food")
		}
		if !ok || base == "" {
			continue
		}
		name := cases.Title(language.English).String(strings.ReplaceAll(base, "_", " "))
		return &name
	}
	return nil
}

func neighborhoodCity(components []*places.GoogleMapsPlacesV1PlaceAddressComponent) (neighborhood, city *string) {
	var borough *string
	for _, c := range components {
		if c == nil {
			continue
		}
		name := cleanString(&c.LongText)
		if name == nil {
			continue
		}
		for _, t := range c.Types {
			switch t {
			case "neighborhood", "sublocality", "sublocality_level_1":
				if neighborhood == nil {
					neighborhood = name
				}
				if borough == nil && t != "neighborhood" {
					borough = name
				}
			case "locality", "postal_town", "administrative_area_level_2":
				if city == nil {
					city = name
				}
			}
		}
	}
	// NYC boroughs come back as sublocalities with no locality.
	if city == nil {
		city = borough
	}
	return neighborhood, city
}

// IsMapsURL reports whether location is a Google Maps share link.
func IsMapsURL(location string) bool {
	location = strings.TrimSpace(location)
	if !hasURLScheme(location) {
		return false
	}
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)
	switch {
	case host == "maps.google.com" || host == "maps.app.goo.gl":
		return true
	case host == "goo.gl" && strings.HasPrefix(path, "/maps"):
		return true
	case (host == "google.com" || strings.HasSuffix(host, ".google.com")) && strings.HasPrefix(path, "/maps"):
		return true
	}
	return false
}

// geocodable reports whether location looks like an address worth a
// coordinate lookup.
func geocodable(location string) bool {
	lower := strings.ToLower(strings.TrimSpace(location))
	if lower == "" || hasURLScheme(lower) {
		return false
	}
	for _, skip := range geocodeSkip {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	return true
}

// merge fills fields missing from e with those of other. Coordinates are
// taken as a pair.
func (e LocationEntry) merge(other LocationEntry) LocationEntry {
	if e.NoResult {
		return other
	}
	if e.VenueName == nil {
		e.VenueName = other.VenueName
	}
	if e.Neighborhood == nil {
		e.Neighborhood = other.Neighborhood
	}
	if e.City == nil {
		e.City = other.City
	}
	if e.Cuisine == nil {
		e.Cuisine = other.Cuisine
	}
	if (e.Latitude == nil || e.Longitude == nil) && other.Latitude != nil && other.Longitude != nil {
		e.Latitude, e.Longitude = other.Latitude, other.Longitude
	}
	return e
}

func (e LocationEntry) hasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}
