package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mailru/easyjson/jwriter"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/royalcat/rgeocount/geomodel"
	"github.com/royalcat/rgeocount/pipeline"
	"github.com/royalcat/rgeocount/tally"
)

const (
	// CountProperty is the feature property holding the count in GeoJSON output.
	CountProperty = "order_count"
	// LabelProperty holds the [lon, lat] label position of a region.
	LabelProperty = "label"
)

func WriteCSV(w io.Writer, counts []geomodel.RegionCount) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"region_id", CountProperty}); err != nil {
		return err
	}
	for _, c := range counts {
		if err := cw.Write([]string{c.RegionID, strconv.Itoa(c.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes an aligned, human readable table followed by a total row.
func WriteTable(w io.Writer, counts []geomodel.RegionCount) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "REGION\tORDERS\t\n")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%s\t\n", c.RegionID, humanize.Comma(int64(c.Count)))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t\n", humanize.Comma(int64(tally.Total(counts))))
	return tw.Flush()
}

// WriteJSON writes counts and diagnostics of res as a single JSON object.
func WriteJSON(out io.Writer, res *pipeline.Result) error {
	w := jwriter.Writer{}
	MarshalResult(&w, res)
	if w.Error != nil {
		return w.Error
	}
	_, err := w.DumpTo(out)
	return err
}

func MarshalResult(w *jwriter.Writer, res *pipeline.Result) {
	w.RawString(`{"window":`)
	w.String(res.Window.String())

	w.RawString(`,"counts":`)
	MarshalCounts(w, res.Counts)

	d := res.Diagnostics
	w.RawString(`,"diagnostics":{"points":`)
	w.Int(d.Points)
	w.RawString(`,"within":`)
	w.Int(d.Within)
	w.RawString(`,"on_boundary":`)
	w.Int(d.OnBoundary)
	w.RawString(`,"outside":`)
	w.Int(d.Outside)
	w.RawString(`,"dropped_duplicates":`)
	w.Int(d.DroppedDuplicates)
	w.RawString(`,"resolved":`)
	w.Int(d.Resolved)
	w.RawString(`,"selected":`)
	w.Int(d.Selected)
	w.RawString(`,"empty":`)
	w.Bool(d.Empty)
	if d.EmptyDate != nil {
		w.RawString(`,"empty_date":`)
		w.String(d.EmptyDate.String())
	}
	w.RawString(`}}`)
}

func MarshalCounts(w *jwriter.Writer, counts []geomodel.RegionCount) {
	w.RawByte('[')
	for i, c := range counts {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawString(`{"region_id":`)
		w.String(c.RegionID)
		w.RawString(`,"order_count":`)
		w.Int(c.Count)
		if len(c.Attributes) > 0 {
			w.RawString(`,"attributes":`)
			w.Raw(json.Marshal(c.Attributes))
		}
		w.RawByte('}')
	}
	w.RawByte(']')
}

// WriteGeoJSON writes every region with its count as a FeatureCollection, ready
// to be joined by a choropleth renderer. counts must be in region order, as
// returned by the pipeline.
func WriteGeoJSON(w io.Writer, regions []geomodel.Region, counts []geomodel.RegionCount) error {
	if len(regions) != len(counts) {
		return fmt.Errorf("got %d counts for %d regions", len(counts), len(regions))
	}

	fc := geojson.NewFeatureCollection()
	for i, r := range regions {
		if counts[i].RegionID != r.ID {
			return fmt.Errorf("count %d is for region %q, expected %q", i, counts[i].RegionID, r.ID)
		}

		f := geojson.NewFeature(r.Geometry)
		f.Properties = geojson.Properties(maps.Clone(r.Attributes))
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties[CountProperty] = counts[i].Count
		label := LabelPoint(r.Geometry, labelPrecision(r.Geometry.Bound()))
		f.Properties[LabelProperty] = []float64{label.Lon(), label.Lat()}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func labelPrecision(b orb.Bound) float64 {
	return max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]) / 1000
}
