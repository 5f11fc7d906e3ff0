package tiledb

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/batchatco/go-native-mdim/mdim/api"
)

// legacyRaster is the blob kept for 2-D raster readers:
//
//	<PAMDataset>
//	  <Raster XSize="4" YSize="3"/>
//	  <SRS>...</SRS>
//	  <GeoTransform>440720, 60, 0, 3751320, 0, -60</GeoTransform>
//	</PAMDataset>
type legacyRaster struct {
	XMLName      xml.Name   `xml:"PAMDataset"`
	Raster       legacySize `xml:"Raster"`
	SRS          string     `xml:"SRS,omitempty"`
	GeoTransform string     `xml:"GeoTransform,omitempty"`
}

type legacySize struct {
	XSize uint64 `xml:"XSize,attr"`
	YSize uint64 `xml:"YSize,attr"`
}

func formatTransform(gt []float64) string {
	parts := make([]string, len(gt))
	for i, v := range gt {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}

// transform parses the GeoTransform element.
func (lr *legacyRaster) transform() ([6]float64, bool) {
	var gt [6]float64
	if lr.GeoTransform == "" {
		return gt, false
	}
	parts := strings.Split(lr.GeoTransform, ",")
	if len(parts) != len(gt) {
		logger.Warn("geotransform with ", len(parts), " terms")
		return gt, false
	}
	for i, p := range parts {
		v, err := cast.ToFloat64E(strings.TrimSpace(p))
		if err != nil {
			logger.Warn("geotransform: ", err)
			return gt, false
		}
		gt[i] = v
	}
	return gt, true
}

func encodeLegacy(lr *legacyRaster) (string, error) {
	b, err := xml.Marshal(lr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeLegacy(blob string) (*legacyRaster, error) {
	var lr legacyRaster
	if err := xml.Unmarshal([]byte(blob), &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

// legacyFor builds the blob of m, nil when there is nothing to record.
func (m *MDArray) legacyFor() *legacyRaster {
	ax := axisMapping(m.dims)
	if ax == nil || (m.srs == nil && m.geoTransform == nil) {
		return nil
	}
	lr := &legacyRaster{
		Raster: legacySize{XSize: m.dims[ax[0]-1].Size(), YSize: m.dims[ax[1]-1].Size()},
	}
	if m.srs != nil {
		lr.SRS = m.srs.Definition
	}
	if m.geoTransform != nil {
		lr.GeoTransform = formatTransform(m.geoTransform)
	}
	return lr
}

func (m *MDArray) refreshLegacy() error {
	lr := m.legacyFor()
	if lr == nil {
		return m.setReserved(KeyLegacyRaster, nil)
	}
	blob, err := encodeLegacy(lr)
	if err != nil {
		return fail(err)
	}
	buf := api.StringBuffer([]string{blob})
	return m.setReserved(KeyLegacyRaster, &buf)
}

// ClassicRaster is what a 2-D raster reader needs from an array.
type ClassicRaster struct {
	XSize           uint64
	YSize           uint64
	SRS             string
	GeoTransform    [6]float64
	HasGeoTransform bool
}

// ClassicView describes a stored array as a classic raster, from its
// legacy blob if it has one and from its dimensions otherwise.
func ClassicView(a api.MDArray) (*ClassicRaster, error) {
	m, ok := a.(*MDArray)
	if !ok {
		return nil, failf(api.ErrNotSupported, "%q is not a stored array", a.FullName())
	}
	if err := m.live(); err != nil {
		return nil, err
	}
	ax := axisMapping(m.dims)
	if ax == nil {
		return nil, failf(api.ErrNotSupported, "%q has fewer than two dimensions", m.FullName())
	}
	if attr := m.attrs.Lookup(KeyLegacyRaster); attr != nil {
		blob, err := attr.ReadAsString()
		if err != nil {
			return nil, err
		}
		lr, err := decodeLegacy(blob)
		if err != nil {
			return nil, failf(api.ErrIOFailure, "legacy raster blob of %q: %v", m.FullName(), err)
		}
		cr := &ClassicRaster{XSize: lr.Raster.XSize, YSize: lr.Raster.YSize, SRS: lr.SRS}
		cr.GeoTransform, cr.HasGeoTransform = lr.transform()
		return cr, nil
	}
	cr := &ClassicRaster{XSize: m.dims[ax[0]-1].Size(), YSize: m.dims[ax[1]-1].Size()}
	if m.srs != nil {
		cr.SRS = m.srs.Definition
	}
	cr.GeoTransform, cr.HasGeoTransform = m.GeoTransform()
	return cr, nil
}
