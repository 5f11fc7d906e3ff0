package cmd

import (
	"math"

	"github.com/spf13/cast"

	"github.com/batchatco/go-native-mdim/mdim/api"
)

type attributeInfo struct {
	Name  string      `json:"name" yaml:"name"`
	Type  string      `json:"type" yaml:"type"`
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

type dimensionInfo struct {
	Name             string `json:"name" yaml:"name"`
	Type             string `json:"type,omitempty" yaml:"type,omitempty"`
	Direction        string `json:"direction,omitempty" yaml:"direction,omitempty"`
	Size             uint64 `json:"size" yaml:"size"`
	IndexingVariable string `json:"indexing_variable,omitempty" yaml:"indexing_variable,omitempty"`
}

type arrayInfo struct {
	Name       string          `json:"name" yaml:"name"`
	Type       string          `json:"type" yaml:"type"`
	Dimensions []string        `json:"dimensions" yaml:"dimensions"`
	Shape      []uint64        `json:"shape" yaml:"shape"`
	BlockSize  []uint64        `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	NoData     string          `json:"nodata,omitempty" yaml:"nodata,omitempty"`
	Unit       string          `json:"unit,omitempty" yaml:"unit,omitempty"`
	SRS        string          `json:"srs,omitempty" yaml:"srs,omitempty"`
	Attributes []attributeInfo `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type groupInfo struct {
	Name       string          `json:"name" yaml:"name"`
	Attributes []attributeInfo `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Dimensions []dimensionInfo `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Arrays     []arrayInfo     `json:"arrays,omitempty" yaml:"arrays,omitempty"`
	Groups     []groupInfo     `json:"groups,omitempty" yaml:"groups,omitempty"`
}

func describeGroup(g api.Group, opts api.Options) (groupInfo, error) {
	info := groupInfo{
		Name:       g.FullName(),
		Attributes: describeAttributes(g, opts),
	}
	for _, d := range g.ListDimensions(opts) {
		di := dimensionInfo{
			Name:      d.Name(),
			Type:      d.Type(),
			Direction: d.Direction(),
			Size:      d.Size(),
		}
		if v := d.IndexingVariable(); v != nil {
			di.IndexingVariable = v.FullName()
		}
		info.Dimensions = append(info.Dimensions, di)
	}
	for _, name := range g.ListMDArrays(opts) {
		a, err := g.GetMDArray(name, opts)
		if err != nil {
			return groupInfo{}, err
		}
		info.Arrays = append(info.Arrays, describeArray(a, opts))
	}
	for _, name := range g.ListGroups(opts) {
		child, err := g.GetGroup(name, opts)
		if err != nil {
			return groupInfo{}, err
		}
		ci, err := describeGroup(child, opts)
		if err != nil {
			return groupInfo{}, err
		}
		info.Groups = append(info.Groups, ci)
	}
	return info, nil
}

func describeArray(a api.MDArray, opts api.Options) arrayInfo {
	info := arrayInfo{
		Name:       a.FullName(),
		Type:       a.DataType().String(),
		Shape:      a.Shape(),
		Unit:       a.Unit(),
		Attributes: describeAttributes(a, opts),
	}
	for _, d := range a.Dimensions() {
		info.Dimensions = append(info.Dimensions, d.Name())
	}
	for _, b := range a.BlockSize() {
		if b != 0 {
			info.BlockSize = a.BlockSize()
			break
		}
	}
	if v, ok := a.NoDataValue(); ok {
		info.NoData = cast.ToString(v)
	}
	if srs := a.SpatialRef(); srs != nil {
		info.SRS = srs.Definition
	}
	return info
}

func describeAttributes(h api.AttributeHolder, opts api.Options) []attributeInfo {
	var ret []attributeInfo
	for _, a := range h.ListAttributes(opts) {
		ai := attributeInfo{Name: a.Name(), Type: a.DataType().String()}
		switch {
		case a.DataType().Class() == api.ClassString:
			if vals, err := a.ReadAsStrings(); err == nil {
				ai.Value = single(vals, len(a.DimensionsSize()) == 0)
			}
		case !a.DataType().Numeric().IsComplex():
			if vals, err := a.ReadAsFloat64s(); err == nil {
				ai.Value = single(finite(vals), len(a.DimensionsSize()) == 0)
			}
		}
		ret = append(ret, ai)
	}
	return ret
}

// finite spells out values JSON cannot hold.
func finite(vals []float64) interface{} {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return cast.ToStringSlice(toInterfaces(vals))
		}
	}
	return vals
}

func toInterfaces(vals []float64) []interface{} {
	ret := make([]interface{}, len(vals))
	for i, v := range vals {
		ret[i] = v
	}
	return ret
}

// single unwraps the value of a scalar attribute.
func single(vals interface{}, scalar bool) interface{} {
	if !scalar {
		return vals
	}
	switch v := vals.(type) {
	case []string:
		if len(v) == 1 {
			return v[0]
		}
	case []float64:
		if len(v) == 1 {
			return v[0]
		}
	}
	return vals
}
