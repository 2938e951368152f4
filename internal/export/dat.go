// Package export writes schematization results out of the workspace: FLO-2D
// data files from a run outcome and ESRI shapefiles from committed tables.
package export

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/datfile"
	"github.com/sells-group/flo2d-schematizer/internal/pipeline"
	"github.com/sells-group/flo2d-schematizer/internal/project"
)

// Data file names.
const (
	FileChan     = "CHAN.DAT"
	FileXSec     = "XSEC.DAT"
	FileChanBank = "CHANBANK.DAT"
	FileLevee    = "LEVEE.DAT"
	FileFPXSec   = "FPXSEC.DAT"
	FileTopo     = "TOPO.DAT"
)

// DATOptions carries the control switches that shape the data files.
type DATOptions struct {
	ISED     bool
	NXPRT    int
	RaiseLev float64
	// Topo also writes the grid as TOPO.DAT.
	Topo bool
}

// WriteDAT writes the data files of every stage the run executed into dir
// and returns the names written. XSEC.DAT is only written when the channels
// use natural cross-sections.
func WriteDAT(dir string, proj *project.Project, out *pipeline.Outcome, opts DATOptions) ([]string, error) {
	if proj == nil || out == nil {
		return nil, eris.New("export: nothing to write")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dir)
	}

	var written []string
	put := func(name string, fn func(io.Writer) error) error {
		if err := writeFile(filepath.Join(dir, name), fn); err != nil {
			return err
		}
		written = append(written, name)
		return nil
	}

	for _, st := range out.Stages {
		switch st {
		case pipeline.StageChannel:
			ch, naturals, err := datfile.BuildChan(datfile.ChanInput{
				Channels:      out.Channels,
				CrossSections: proj.CrossSections,
				Confluences:   out.Confluences,
				NoExchange:    out.NoExchange,
				ISED:          opts.ISED,
			})
			if err != nil {
				return written, eris.Wrap(err, "export: build CHAN.DAT")
			}
			if err := put(FileChan, ch.Write); err != nil {
				return written, err
			}
			if len(naturals) > 0 {
				if err := put(FileXSec, func(w io.Writer) error { return datfile.WriteXSec(w, naturals) }); err != nil {
					return written, err
				}
			}
			banks := datfile.BuildChanBank(out.Channels)
			if err := put(FileChanBank, func(w io.Writer) error { return datfile.WriteChanBank(w, banks) }); err != nil {
				return written, err
			}
		case pipeline.StageLevee:
			if out.Levees == nil {
				continue
			}
			lv := datfile.BuildLevee(out.Levees.Records, out.Levees.Failures, opts.RaiseLev)
			if err := put(FileLevee, lv.Write); err != nil {
				return written, err
			}
		case pipeline.StageFloodplain:
			if out.Floodplain == nil {
				continue
			}
			fp := datfile.BuildFPXSec(out.Floodplain.Sections, opts.NXPRT)
			if err := put(FileFPXSec, fp.Write); err != nil {
				return written, err
			}
		}
	}

	if opts.Topo && proj.Grid != nil {
		if err := put(FileTopo, func(w io.Writer) error { return datfile.WriteTopo(w, proj.Grid) }); err != nil {
			return written, err
		}
	}

	zap.L().Info("export: data files written", zap.String("dir", dir), zap.Strings("files", written))
	return written, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}
