package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/royalcat/rgeocount/geomodel"
)

type PointsConfig struct {
	LonColumn  string
	LatColumn  string
	TimeColumn string
	// IDColumn is optional, records without it are identified by position.
	IDColumn string
	// Location is used for timestamps without a zone.
	Location *time.Location
	// Convert moves zoned timestamps into Location. Without it a timestamp keeps
	// its own offset and its calendar date is the one written in the file.
	Convert bool
}

func PointsConfigDefault() PointsConfig {
	return PointsConfig{
		LonColumn:  "lng",
		LatColumn:  "lat",
		TimeColumn: "started_at",
		IDColumn:   "id",
		Location:   time.UTC,
	}
}

func LoadPoints(name string, cfg PointsConfig) ([]geomodel.PointRecord, error) {
	r, err := openReader(name)
	if err != nil {
		return nil, fmt.Errorf("error opening points file: %w", err)
	}
	defer r.Close()

	points, err := ReadPoints(r, cfg)
	if err != nil {
		return nil, fmt.Errorf("error reading points file %s: %w", name, err)
	}
	return points, nil
}

// ReadPoints reads CSV records with a header row. Columns other than the
// coordinate and time columns become string attributes.
func ReadPoints(r io.Reader, cfg PointsConfig) ([]geomodel.PointRecord, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header")
		}
		return nil, err
	}
	header = slices.Clone(header)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	lonCol := slices.Index(header, cfg.LonColumn)
	latCol := slices.Index(header, cfg.LatColumn)
	timeCol := slices.Index(header, cfg.TimeColumn)
	idCol := -1
	if cfg.IDColumn != "" {
		idCol = slices.Index(header, cfg.IDColumn)
	}
	for name, col := range map[string]int{cfg.LonColumn: lonCol, cfg.LatColumn: latCol, cfg.TimeColumn: timeCol} {
		if col < 0 {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var points []geomodel.PointRecord
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		lon, err := parseCoordinate(record[lonCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, cfg.LonColumn, err)
		}
		lat, err := parseCoordinate(record[latCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, cfg.LatColumn, err)
		}
		ts, err := ParseTimestamp(record[timeCol], cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if cfg.Convert {
			ts = ts.In(cfg.Location)
		}

		p := geomodel.PointRecord{
			Index:      len(points),
			Point:      orb.Point{lon, lat},
			Timestamp:  ts,
			Attributes: make(map[string]any, len(header)-3),
		}
		if idCol >= 0 {
			p.ID = record[idCol]
		}
		for i, name := range header {
			if i == lonCol || i == latCol || i == timeCol || i == idCol {
				continue
			}
			p.Attributes[name] = record[i]
		}

		points = append(points, p)
	}

	return points, nil
}

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05 -0700",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses RFC3339 and the common "YYYY-MM-DD hh:mm:ss" forms.
// Fractional seconds are accepted. Zoned values keep their offset, values
// without a zone are taken in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
