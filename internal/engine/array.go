package engine

import (
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/batchatco/go-native-mdim/internal"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/strided"
)

// fragment is the manifest of one write: for each attribute, the digest
// of every tile it replaced.
type fragment struct {
	Timestamp uint64                              `json:"timestamp"`
	Tiles     map[string]map[string]digest.Digest `json:"tiles"`
}

// Array is an open dense array handle.
type Array struct {
	object
	schema *Schema
	// timestamp pins reads to fragments at or before it and stamps writes
	// with it. Zero means latest.
	timestamp uint64
}

// CreateArray creates an empty array at p.
func CreateArray(ctx *Context, p string, schema *Schema) error {
	kind, err := ObjectType(ctx, p)
	if err != nil {
		return err
	}
	if kind != KindNone {
		return errorf(ErrExists, "%s already at %q", kind, p)
	}
	s := *schema
	s.ByteOrder = hostByteOrder()
	if err := s.Validate(); err != nil {
		return err
	}
	return putJSON(ctx.store, Join(p, schemaKey), &s)
}

// OpenArray opens the array at p in mode, pinned at timestamp (0 for
// latest).
func OpenArray(ctx *Context, p string, mode Mode, timestamp uint64) (*Array, error) {
	a := &Array{object: object{ctx: ctx, path: p}, timestamp: timestamp}
	if err := a.Open(mode); err != nil {
		return nil, err
	}
	return a, nil
}

// Open (re)loads the schema and metadata in the given mode.
func (a *Array) Open(mode Mode) error {
	if err := a.ctx.check(); err != nil {
		return err
	}
	var schema Schema
	if err := getJSON(a.ctx.store, Join(a.path, schemaKey), &schema); err != nil {
		if isNotFound(err) {
			return errorf(ErrNotFound, "no array at %q", a.path)
		}
		return err
	}
	if schema.ByteOrder != hostByteOrder() {
		return errorf(ErrUnsupported, "%q was written in %s-endian order", a.path, schema.ByteOrder)
	}
	if err := a.loadMetadata(); err != nil {
		return err
	}
	a.schema = &schema
	a.mode = mode
	a.open = true
	return nil
}

func (a *Array) Close() {
	a.open = false
}

// Reopen closes the handle and opens it again in mode.
func (a *Array) Reopen(mode Mode) error {
	a.Close()
	return a.Open(mode)
}

// Schema returns the schema the handle was opened with.
func (a *Array) Schema() *Schema {
	return a.schema
}

// EvolveFill replaces the fill value of an attribute of the array at p.
// It is the only schema change the engine allows; open handles see it
// after a reopen.
func EvolveFill(ctx *Context, p, attr string, fill []byte) error {
	if err := ctx.check(); err != nil {
		return err
	}
	var schema Schema
	if err := getJSON(ctx.store, Join(p, schemaKey), &schema); err != nil {
		return err
	}
	as, err := schema.attribute(attr)
	if err != nil {
		return err
	}
	as.Fill = append([]byte(nil), fill...)
	if err := schema.Validate(); err != nil {
		return err
	}
	return putJSON(ctx.store, Join(p, schemaKey), &schema)
}

func fragmentKey(p string, ts uint64) string {
	return Join(p, fragmentsDir, strconv.FormatUint(ts, 10)+".json")
}

// fragments lists the fragments visible at the handle timestamp, newest
// first.
func (a *Array) fragments() ([]*fragment, error) {
	keys, err := a.ctx.store.List(Join(a.path, fragmentsDir))
	if err != nil {
		return nil, err
	}
	frags := []*fragment{}
	for _, k := range keys {
		ts, err := strconv.ParseUint(strings.TrimSuffix(path.Base(k), ".json"), 10, 64)
		if err != nil {
			logger.Warn("ignoring stray fragment entry ", k)
			continue
		}
		if a.timestamp != 0 && ts > a.timestamp {
			continue
		}
		var f fragment
		if err := getJSON(a.ctx.store, k, &f); err != nil {
			return nil, err
		}
		frags = append(frags, &f)
	}
	sort.Slice(frags, func(i, j int) bool {
		return frags[i].Timestamp > frags[j].Timestamp
	})
	return frags, nil
}

// FragmentTimestamps lists the timestamps of the visible fragments, oldest
// first.
func (a *Array) FragmentTimestamps() ([]uint64, error) {
	if err := a.check(false); err != nil {
		return nil, err
	}
	frags, err := a.fragments()
	if err != nil {
		return nil, err
	}
	ts := make([]uint64, len(frags))
	for i, f := range frags {
		ts[len(frags)-1-i] = f.Timestamp
	}
	return ts, nil
}

// cellType is a numeric type of the given byte size. Same-type copies
// move bytes untouched, so it stands in for any cell of that size.
func cellType(size int) api.ExtendedDataType {
	switch size {
	case 1:
		return api.NewNumeric(api.UInt8)
	case 2:
		return api.NewNumeric(api.UInt16)
	case 4:
		return api.NewNumeric(api.UInt32)
	case 8:
		return api.NewNumeric(api.UInt64)
	}
	return api.NewNumeric(api.CFloat64)
}

// region is a box of cells, relative to the domain origin, with the tiles
// it touches.
type region struct {
	lo, count  []uint64
	ext        []uint64
	t0, t1     []uint64
	tileCells  int
	cellSize   int
	bufStrides []int64
}

func (a *Array) region(attr string, lo, count []uint64, bufLen int) (*region, *AttributeSchema, error) {
	as, err := a.schema.attribute(attr)
	if err != nil {
		return nil, nil, err
	}
	shape := a.schema.Shape()
	if len(lo) != len(shape) || len(count) != len(shape) {
		return nil, nil, errorf(ErrInvalid, "region rank %d for a rank %d array", len(lo), len(shape))
	}
	r := &region{
		lo:        lo,
		count:     count,
		ext:       a.schema.TileShape(),
		t0:        make([]uint64, len(shape)),
		t1:        make([]uint64, len(shape)),
		tileCells: 1,
		cellSize:  as.CellSize(),
	}
	cells := uint64(1)
	for i := range shape {
		if count[i] == 0 || lo[i] >= shape[i] || count[i] > shape[i]-lo[i] {
			return nil, nil, errorf(ErrInvalid, "region [%d,+%d) outside dimension %q of size %d",
				lo[i], count[i], a.schema.Dimensions[i].Name, shape[i])
		}
		r.t0[i] = lo[i] / r.ext[i]
		r.t1[i] = (lo[i] + count[i] - 1) / r.ext[i]
		r.tileCells *= int(r.ext[i])
		cells *= count[i]
	}
	if cells > math.MaxInt/uint64(r.cellSize) || int(cells)*r.cellSize != bufLen {
		return nil, nil, errorf(ErrInvalid, "buffer of %d bytes for %d cells", bufLen, cells)
	}
	r.bufStrides = strided.RowMajorStrides(count)
	return r, as, nil
}

// eachTile calls fn with the grid indices of every tile of the region.
func (r *region) eachTile(fn func(idx []uint64) error) error {
	idx := append([]uint64(nil), r.t0...)
	for {
		if err := fn(idx); err != nil {
			return err
		}
		d := len(idx) - 1
		for ; d >= 0; d-- {
			if idx[d] < r.t1[d] {
				idx[d]++
				break
			}
			idx[d] = r.t0[d]
		}
		if d < 0 {
			return nil
		}
	}
}

// overlap returns the part of the region inside the tile at idx: the start
// within the tile, the cell count, and the offset in the region buffer.
func (r *region) overlap(idx []uint64) (tileStart, count []uint64, bufOff int64) {
	tileStart = make([]uint64, len(idx))
	count = make([]uint64, len(idx))
	for i := range idx {
		origin := idx[i] * r.ext[i]
		s := max(r.lo[i], origin)
		e := min(r.lo[i]+r.count[i], origin+r.ext[i])
		tileStart[i] = s - origin
		count[i] = e - s
		bufOff += int64(s-r.lo[i]) * r.bufStrides[i]
	}
	return tileStart, count, bufOff
}

func (a *Array) tileData(key string, ts uint64, attr string) string {
	return Join(a.path, tilesDir, strconv.FormatUint(ts, 10), attr, key)
}

// resolveTile returns the cells of a tile as of the newest fragment that
// holds it, or the fill value.
func (a *Array) resolveTile(frags []*fragment, as *AttributeSchema, r *region, key string) ([]byte, error) {
	for _, f := range frags {
		want, ok := f.Tiles[as.Name][key]
		if !ok {
			continue
		}
		dataKey := a.tileData(key, f.Timestamp, as.Name)
		data, err := loadTile(a.ctx.store, dataKey, want)
		if err != nil {
			return nil, err
		}
		raw, err := decodeTile(data, a.schema.Compression, r.tileCells*r.cellSize)
		if err != nil {
			return nil, errorf(ErrCorrupt, "%s: %v", dataKey, err)
		}
		a.ctx.stats.tile("read", len(data))
		return raw, nil
	}
	raw := make([]byte, r.tileCells*r.cellSize)
	if as.Fill != nil {
		internal.Fill(raw, as.Fill)
	}
	a.ctx.stats.tile("fill", 0)
	return raw, nil
}

// ReadRegion reads the box [lo, lo+count) of attr into dst, row-major.
func (a *Array) ReadRegion(attr string, lo, count []uint64, dst []byte) error {
	if err := a.check(false); err != nil {
		return err
	}
	if a.mode != ModeRead {
		return errorf(ErrMode, "%q is open for %v", a.path, a.mode)
	}
	defer a.ctx.stats.since("read", time.Now())
	r, as, err := a.region(attr, lo, count, len(dst))
	if err != nil {
		return err
	}
	frags, err := a.fragments()
	if err != nil {
		return err
	}
	ct := cellType(r.cellSize)
	return r.eachTile(func(idx []uint64) error {
		raw, err := a.resolveTile(frags, as, r, tileKey(idx))
		if err != nil {
			return err
		}
		start, n, off := r.overlap(idx)
		sub := api.Buffer{Type: ct, Raw: dst[off*int64(r.cellSize):]}
		return strided.Read(api.Buffer{Type: ct, Raw: raw}, strided.Layout{Shape: r.ext},
			start, n, nil, r.bufStrides, sub)
	})
}

// WriteRegion writes src, row-major, into the box [lo, lo+count) of attr
// as a new fragment. Tiles are rewritten whole.
func (a *Array) WriteRegion(attr string, lo, count []uint64, src []byte) error {
	if err := a.check(true); err != nil {
		return err
	}
	defer a.ctx.stats.since("write", time.Now())
	r, as, err := a.region(attr, lo, count, len(src))
	if err != nil {
		return err
	}
	ts := a.timestamp
	if ts == 0 {
		ts = a.ctx.nextTimestamp()
	}
	saved := a.timestamp
	a.timestamp = ts
	frags, err := a.fragments()
	a.timestamp = saved
	if err != nil {
		return err
	}

	frag := &fragment{Timestamp: ts, Tiles: map[string]map[string]digest.Digest{}}
	if len(frags) > 0 && frags[0].Timestamp == ts {
		frag = frags[0]
	}
	if frag.Tiles[as.Name] == nil {
		frag.Tiles[as.Name] = map[string]digest.Digest{}
	}

	ct := cellType(r.cellSize)
	err = r.eachTile(func(idx []uint64) error {
		key := tileKey(idx)
		raw, err := a.resolveTile(frags, as, r, key)
		if err != nil {
			return err
		}
		start, n, off := r.overlap(idx)
		sub := api.Buffer{Type: ct, Raw: src[off*int64(r.cellSize):]}
		err = strided.Write(api.Buffer{Type: ct, Raw: raw}, strided.Layout{Shape: r.ext},
			start, n, nil, r.bufStrides, sub)
		if err != nil {
			return err
		}
		data, err := encodeTile(raw, a.schema.Compression, a.schema.CompressionLevel)
		if err != nil {
			return err
		}
		d, err := storeTile(a.ctx.store, a.tileData(key, ts, as.Name), data)
		if err != nil {
			return err
		}
		a.ctx.stats.tile("write", len(data))
		frag.Tiles[as.Name][key] = d
		return nil
	})
	if err != nil {
		return err
	}
	return putJSON(a.ctx.store, fragmentKey(a.path, ts), frag)
}
