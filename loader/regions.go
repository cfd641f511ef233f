package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/rgeocount/geomodel"
)

// DefaultIDProperty is the forward sortation area code used by Canada Post boundary files.
const DefaultIDProperty = "CFSAUID"

// LoadRegions reads regions from a GeoJSON file. See ParseRegions.
func LoadRegions(name, idProperty string) ([]geomodel.Region, error) {
	data, err := readFile(name)
	if err != nil {
		return nil, fmt.Errorf("error reading regions file: %w", err)
	}

	regions, err := ParseRegions(data, idProperty)
	if err != nil {
		return nil, fmt.Errorf("error parsing regions file %s: %w", name, err)
	}
	return regions, nil
}

// ParseRegions parses a FeatureCollection, or a JSON array whose first element is
// a FeatureCollection. Every feature must be a Polygon or MultiPolygon with a
// string id in idProperty. All properties are kept as region attributes.
func ParseRegions(data []byte, idProperty string) ([]geomodel.Region, error) {
	if idProperty == "" {
		idProperty = DefaultIDProperty
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, errors.New("empty feature collection list")
		}
		data = list[0]
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	regions := make([]geomodel.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		case nil:
			return nil, fmt.Errorf("feature %d has no geometry", i)
		default:
			return nil, fmt.Errorf("feature %d has unsupported geometry %s", i, g.GeoJSONType())
		}

		raw, ok := f.Properties[idProperty]
		if !ok {
			return nil, fmt.Errorf("feature %d has no %q property", i, idProperty)
		}
		id, ok := raw.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("feature %d property %q is not a non-empty string: %v", i, idProperty, raw)
		}

		regions = append(regions, geomodel.Region{
			ID:         id,
			Geometry:   mp,
			Attributes: map[string]any(f.Properties),
		})
	}

	return regions, nil
}
