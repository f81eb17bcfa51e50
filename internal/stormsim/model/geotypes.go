package model

import "strings"

// Numeric codes for the geography hierarchy levels, used by the geo-type row
// schema to keep tables small and joins fast. 0 is reserved.
const (
	GeoTypeUnknown = -1
	GeoTypeState   = 1
	GeoTypeCounty  = 2
	GeoTypeZip     = 3
	GeoTypeTotal   = 4
)

const (
	GeoTypeTotalStr   = "total"
	GeoTypeStateStr   = "state"
	GeoTypeCountyStr  = "county"
	GeoTypeZipStr     = "zip"
	GeoTypeUnknownStr = "_unknown_geo_type_"
)

var geoTypeValues = map[string]int{
	GeoTypeTotalStr:   GeoTypeTotal,
	GeoTypeStateStr:   GeoTypeState,
	GeoTypeCountyStr:  GeoTypeCounty,
	GeoTypeZipStr:     GeoTypeZip,
	GeoTypeUnknownStr: GeoTypeUnknown,
}

// GeoTypeValue maps a geo-type name to its numeric code, returning
// GeoTypeUnknown for anything unrecognised.
func GeoTypeValue(geoType string) int {
	if v, ok := geoTypeValues[strings.ToLower(strings.TrimSpace(geoType))]; ok {
		return v
	}
	return GeoTypeUnknown
}

// GeoTypeName maps a numeric geo-type code back to its name.
func GeoTypeName(value int) string {
	for name, v := range geoTypeValues {
		if v == value {
			return name
		}
	}
	return GeoTypeUnknownStr
}
