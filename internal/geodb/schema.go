package geodb

import "net"

// AsnDatabaseType is the mmdb metadata database_type value that selects the
// ASN schema instead of the Enterprise schema.
const AsnDatabaseType = "GeoLite2-ASN"

// AsnRecord is the typed query result for GeoLite2-ASN editions.
type AsnRecord struct {
	AutonomousSystemNumber       uint   `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

type localizedNames struct {
	GeoNameID uint32            `maxminddb:"geoname_id"`
	IsoCode   string            `maxminddb:"iso_code"`
	Names     map[string]string `maxminddb:"names"`
}

// EnterpriseRecord is the typed query result for the Enterprise/City/Country
// family of editions: continent, country, subdivisions, city, location,
// postal code, and traits.
type EnterpriseRecord struct {
	Continent struct {
		GeoNameID uint32            `maxminddb:"geoname_id"`
		Code      string            `maxminddb:"code"`
		Names     map[string]string `maxminddb:"names"`
	} `maxminddb:"continent"`
	Country struct {
		GeoNameID         uint32            `maxminddb:"geoname_id"`
		IsoCode           string            `maxminddb:"iso_code"`
		Names             map[string]string `maxminddb:"names"`
		IsInEuropeanUnion bool              `maxminddb:"is_in_european_union"`
	} `maxminddb:"country"`
	Subdivisions []localizedNames `maxminddb:"subdivisions"`
	City         struct {
		GeoNameID uint32            `maxminddb:"geoname_id"`
		Names     map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude       float64 `maxminddb:"latitude"`
		Longitude      float64 `maxminddb:"longitude"`
		AccuracyRadius uint16  `maxminddb:"accuracy_radius"`
		MetroCode      uint16  `maxminddb:"metro_code"`
		TimeZone       string  `maxminddb:"time_zone"`
	} `maxminddb:"location"`
	Postal struct {
		Code string `maxminddb:"code"`
	} `maxminddb:"postal"`
	Traits struct {
		IsAnonymousProxy             bool   `maxminddb:"is_anonymous_proxy"`
		IsAnycast                    bool   `maxminddb:"is_anycast"`
		IsSatelliteProvider          bool   `maxminddb:"is_satellite_provider"`
		AutonomousSystemNumber       uint   `maxminddb:"autonomous_system_number"`
		AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
	} `maxminddb:"traits"`
}

// LookupASN queries h as an ASN-schema database.
func (h *ReaderHandle) LookupASN(ip net.IP) (AsnRecord, bool, error) {
	var rec AsnRecord
	_, ok, err := h.reader.LookupNetwork(ip, &rec)
	return rec, ok, err
}

// LookupEnterprise queries h as an Enterprise-schema database.
func (h *ReaderHandle) LookupEnterprise(ip net.IP) (EnterpriseRecord, bool, error) {
	var rec EnterpriseRecord
	_, ok, err := h.reader.LookupNetwork(ip, &rec)
	return rec, ok, err
}
