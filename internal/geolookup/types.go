// Package geolookup is the Status/Lookup Facade: it translates an
// edition+locale+IP request into Reader Pool operations and typed schema
// queries, and publishes per-edition health.
package geolookup

import "time"

// Subdivision is one localized administrative subdivision entry.
type Subdivision struct {
	GeoNameID uint32 `json:"geoname_id,omitempty"`
	IsoCode   string `json:"iso_code,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Record is the single optional output shape shared by both the ASN and
// Enterprise schema variants; unused fields are left at their zero value
// and omitted from JSON.
type Record struct {
	ContinentID   uint32        `json:"continent_geoname_id,omitempty"`
	ContinentCode string        `json:"continent_code,omitempty"`
	ContinentName string        `json:"continent_name,omitempty"`
	CountryID     uint32        `json:"country_geoname_id,omitempty"`
	CountryCode   string        `json:"country_iso_code,omitempty"`
	CountryName   string        `json:"country_name,omitempty"`
	IsInEU        bool          `json:"is_in_european_union,omitempty"`
	Subdivisions  []Subdivision `json:"subdivisions,omitempty"`
	CityID        uint32        `json:"city_geoname_id,omitempty"`
	CityName      string        `json:"city_name,omitempty"`
	Latitude      float64       `json:"latitude,omitempty"`
	Longitude     float64       `json:"longitude,omitempty"`
	AccuracyKM    uint16        `json:"accuracy_radius_km,omitempty"`
	MetroCode     uint16        `json:"metro_code,omitempty"`
	TimeZone      string        `json:"time_zone,omitempty"`
	PosixTimeZone string        `json:"posix_timezone,omitempty"`
	PostalCode    string        `json:"postal_code,omitempty"`

	IsAnonymousProxy    bool `json:"is_anonymous_proxy,omitempty"`
	IsAnycast           bool `json:"is_anycast,omitempty"`
	IsSatelliteProvider bool `json:"is_satellite_provider,omitempty"`

	AutonomousSystemNumber       uint   `json:"autonomous_system_number,omitempty"`
	AutonomousSystemOrganization string `json:"autonomous_system_organization,omitempty"`
}

// LookupResult is what a lookup call returns: the resolved edition, the
// record (nil when the query matched no network), and timing.
type LookupResult struct {
	Edition   string  `json:"edition"`
	IP        string  `json:"ip"`
	Info      *Record `json:"info"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// DatabaseStatus reports one configured edition's current health.
type DatabaseStatus struct {
	Edition         string     `json:"edition"`
	Timestamp       *time.Time `json:"timestamp"`
	Locales         []string   `json:"locales,omitempty"`
	FileSize        *int64     `json:"file_size,omitempty"`
	ArchiveFileSize *int64     `json:"archive_file_size,omitempty"`
	Error           *string    `json:"error,omitempty"`
	LastUpdateCheck *time.Time `json:"last_update_check,omitempty"`
}

// Status is the aggregate response for the status endpoint.
type Status struct {
	Databases []DatabaseStatus `json:"databases"`
}
