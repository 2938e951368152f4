package pipeline

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/confluence"
	"github.com/sells-group/flo2d-schematizer/internal/fpxs"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/levee"
	"github.com/sells-group/flo2d-schematizer/internal/store"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// batch accumulates rows per table in insertion order.
type batch struct {
	order []string
	rows  map[string][]store.Row
}

func newBatch() *batch {
	return &batch{rows: map[string][]store.Row{}}
}

func (b *batch) add(table string, r store.Row) {
	if _, ok := b.rows[table]; !ok {
		b.order = append(b.order, table)
	}
	b.rows[table] = append(b.rows[table], r)
}

func (b *batch) len(table string) int { return len(b.rows[table]) }

func wkt(pl geometry.Polyline) (any, error) {
	if len(pl) == 0 {
		return nil, nil
	}
	s, err := pl.WKT()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func channelRows(b *batch, channels []*channel.Channel) error {
	for _, c := range channels {
		geom, err := wkt(c.SpinePoints)
		if err != nil {
			return eris.Wrapf(err, "pipeline: segment %d", c.SegmentID)
		}
		row := store.Row{
			"segment_id": c.SegmentID, "name": c.Name, "lb_fid": c.LeftBankFID,
			"depinitial": c.DepInitial, "froudc": c.FroudC, "roughadj": c.RoughAdj,
			"isedn": c.Isedn, "rank": c.Rank, "geom": geom,
		}
		if c.RightBankFID != 0 {
			row["rb_fid"] = c.RightBankFID
		}
		if c.WSE != nil {
			row["istart"], row["wselstart"] = c.WSE.IStart, c.WSE.WSELStart
			row["iend"], row["wselend"] = c.WSE.IEnd, c.WSE.WSELEnd
		}
		b.add(store.TableChan, row)

		if len(c.RightSpinePoints) > 0 {
			rg, err := wkt(c.RightSpinePoints)
			if err != nil {
				return eris.Wrapf(err, "pipeline: segment %d right bank", c.SegmentID)
			}
			b.add(store.TableRightBank, store.Row{"segment_id": c.SegmentID, "rb_fid": c.RightBankFID, "geom": rg})
		}

		for _, x := range c.XS {
			xg, err := wkt(x.Geometry)
			if err != nil {
				return eris.Wrapf(err, "pipeline: segment %d cross-section %d", c.SegmentID, x.Order)
			}
			b.add(store.TableChanElems, store.Row{
				"id": x.ID, "segment_id": x.SegmentID, "order_in_segment": x.Order,
				"user_xs_fid": x.UserXSFID, "interpolated": x.Interpolated,
				"fcn": x.FCN, "xlen": x.XLen, "lbankgrid": x.LeftCell, "rbankgrid": x.RightCell, "geom": xg,
			})
		}
		for _, ic := range c.Interior {
			b.add(store.TableInterior, store.Row{"segment_id": ic.SegmentID, "xs_id": ic.XSID, "cell_id": ic.CellID})
		}
		for _, d := range c.Distances {
			b.add(store.TableDistances, store.Row{
				"xs_id": d.XSID, "segment_id": d.SegmentID, "up_id": d.UpID, "lo_id": d.LoID,
				"dist_lb": d.DistLB, "dist_rb": d.DistRB, "total_lb": d.TotalLB, "total_rb": d.TotalRB,
			})
		}
	}
	return nil
}

func confluenceRows(b *batch, confluences []confluence.Confluence) {
	for _, cf := range confluences {
		b.add(store.TableConfluences, store.Row{
			"trib_segment": cf.TributarySegment, "trib_cell": cf.TributaryCell,
			"main_segment": cf.MainSegment, "main_cell": cf.MainCell, "side": string(cf.Side),
		})
	}
}

func noExchangeRows(b *batch, cells []int64) {
	for _, c := range cells {
		b.add(store.TableNoExchange, store.Row{"cell_id": c})
	}
}

// userXSRows snapshots the user cross-sections, including the values the
// elevation pass wrote into them.
func userXSRows(b *batch, cat *xsec.Catalog) error {
	if cat == nil {
		return nil
	}
	for _, x := range cat.All() {
		geom, err := wkt(x.Geometry)
		if err != nil {
			return eris.Wrapf(err, "pipeline: user cross-section %d", x.FID)
		}
		row := store.Row{"fid": x.FID, "name": x.Name, "type": string(x.Type()), "geom": geom}
		if n := x.Manning(); n > 0 {
			row["manning"] = n
		}
		if x.Type().Parametric() {
			params := map[string]float64{}
			for _, name := range xsec.TypeSignature()[x.Type()] {
				params[name], _ = x.Param(name)
			}
			buf, err := json.Marshal(params)
			if err != nil {
				return eris.Wrapf(err, "pipeline: user cross-section %d params", x.FID)
			}
			row["params"] = string(buf)
		} else {
			for i, st := range x.Stations() {
				b.add(store.TableStations, store.Row{"user_xs_fid": x.FID, "station_order": i + 1, "x": st.X, "y": st.Y})
			}
		}
		b.add(store.TableUserXS, row)
	}
	return nil
}

func leveeRows(b *batch, res *levee.Result) error {
	for _, r := range res.Records {
		geom, err := wkt(r.Geometry)
		if err != nil {
			return eris.Wrapf(err, "pipeline: levee cell %d", r.CellID)
		}
		b.add(store.TableLevees, store.Row{
			"cell_id": r.CellID, "direction": int64(r.Direction), "crest": r.Crest, "line_fid": r.LineFID, "geom": geom,
		})
	}
	for _, f := range res.Failures {
		b.add(store.TableFailures, store.Row{
			"cell_id": f.CellID, "direction": int64(f.Direction), "fail_elev": f.FailElev, "line_fid": f.LineFID,
			"failtime": f.FailTime, "levbase": f.LevBase, "failwidthmax": f.FailWidthMax,
			"failrate": f.FailRate, "failwidrate": f.FailWidRate,
		})
	}
	return nil
}

func floodplainRows(b *batch, res *fpxs.Result) error {
	for _, s := range res.Sections {
		geom, err := wkt(s.Geometry)
		if err != nil {
			return eris.Wrapf(err, "pipeline: floodplain cross-section %d", s.FID)
		}
		b.add(store.TableFPXS, store.Row{
			"fid": s.FID, "name": s.Name, "iflo": int64(s.Iflo), "azimuth": s.Azimuth, "n_cells": len(s.Cells), "geom": geom,
		})
		for i, cell := range s.Cells {
			b.add(store.TableFPXSCells, store.Row{"fpxsec_fid": s.FID, "cell_order": i + 1, "cell_id": cell})
		}
	}
	return nil
}
