package tzinfo

// region is a latitude/longitude box mapped to one zone. Boxes are checked
// in order, so narrower boxes come before the wider ones they overlap.
type region struct {
	minLat, maxLat float64
	minLng, maxLng float64
	zone           string
}

var regions = []region{
	// Hawaii, Alaska.
	{18, 23, -161, -154, "Pacific/Honolulu"},
	{51, 72, -170, -129, "America/Anchorage"},
	// Continental US and southern Canada, rough split by longitude.
	{24, 50, -82.5, -52, "America/New_York"},
	{24, 50, -97.5, -82.5, "America/Chicago"},
	{24, 50, -112.5, -97.5, "America/Denver"},
	{24, 50, -125, -112.5, "America/Los_Angeles"},
	{14, 24, -118, -86, "America/Mexico_City"},
	// South America.
	{-5, 13, -80, -66, "America/Bogota"},
	{-19, -5, -82, -68, "America/Lima"},
	{-56, -17, -76, -66.5, "America/Santiago"},
	{-56, -21, -66.5, -53, "America/Buenos_Aires"},
	{-34, 5, -53, -34, "America/Sao_Paulo"},
	// Europe.
	{49.9, 61, -11, 2, "Europe/London"},
	{36, 44, -10, -6, "Europe/Lisbon"},
	{36, 44, -6, 3.5, "Europe/Madrid"},
	{42, 51, -5, 8, "Europe/Paris"},
	{45.4, 47, 13.3, 16.6, "Europe/Ljubljana"},
	{36, 47.1, 6.6, 18.6, "Europe/Rome"},
	{47, 55, 5.8, 15, "Europe/Berlin"},
	{34, 42, 19, 28, "Europe/Athens"},
	{35, 72, 15, 30, "Europe/Warsaw"},
	{35, 72, 30, 60, "Europe/Moscow"},
	// Asia.
	{22, 27, 51, 57, "Asia/Dubai"},
	{6, 36, 68, 89, "Asia/Kolkata"},
	{5, 21, 97, 106, "Asia/Bangkok"},
	{18, 54, 73, 135, "Asia/Shanghai"},
	{33, 39, 124, 130, "Asia/Seoul"},
	{24, 46, 129, 146, "Asia/Tokyo"},
	// Oceania.
	{-34, -10, 138, 154, "Australia/Brisbane"},
	{-39.2, -28, 141, 154, "Australia/Sydney"},
	{-36, -13, 112, 129, "Australia/Perth"},
	{-48, -34, 166, 179, "Pacific/Auckland"},
	// Africa.
	{22, 32, 25, 35, "Africa/Cairo"},
	{-35, -22, 16, 33, "Africa/Johannesburg"},
	{4, 14, 2, 15, "Africa/Lagos"},
	{-5, 5, 33, 42, "Africa/Nairobi"},
}

// LatLngToZone maps coordinates to an IANA name with coarse offline rules.
// It returns "" when no rule matches or the coordinates are out of range.
func LatLngToZone(latitude, longitude float64) string {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return ""
	}
	for _, r := range regions {
		if latitude >= r.minLat && latitude <= r.maxLat && longitude >= r.minLng && longitude <= r.maxLng {
			return r.zone
		}
	}
	return ""
}
