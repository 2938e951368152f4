// Package pipeline runs schematization passes against a project and persists
// the derived tables in a single store transaction.
package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/confluence"
	"github.com/sells-group/flo2d-schematizer/internal/elevation"
	"github.com/sells-group/flo2d-schematizer/internal/fpxs"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/levee"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/project"
	"github.com/sells-group/flo2d-schematizer/internal/store"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// Stage selects a schematization pass.
type Stage string

// Stages in execution order.
const (
	StageChannel    Stage = "channel"
	StageLevee      Stage = "levee"
	StageFloodplain Stage = "fpxs"
)

// AllStages lists every stage in execution order.
var AllStages = []Stage{StageChannel, StageLevee, StageFloodplain}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range AllStages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", eris.Errorf("pipeline: unknown stage %q", s)
}

var stageTables = map[Stage][]string{
	StageChannel: {
		store.TableChan, store.TableChanElems, store.TableInterior, store.TableRightBank,
		store.TableDistances, store.TableConfluences, store.TableNoExchange,
		store.TableUserXS, store.TableStations,
	},
	StageLevee:      {store.TableLevees, store.TableFailures},
	StageFloodplain: {store.TableFPXS, store.TableFPXSCells},
}

// Options tune a pipeline.
type Options struct {
	// DefaultManning applies to cross-sections without their own roughness.
	DefaultManning float64
	// Sampler, when set, fills natural profiles and bank elevations.
	Sampler elevation.Sampler
	// SampleStep is the station spacing of natural profiles. Zero uses a
	// quarter of the cell size.
	SampleStep float64
	Progress   model.ProgressFunc
}

// CommitObserver is told about every committed run.
type CommitObserver func(ctx context.Context, out *Outcome)

// Outcome is everything a run produced.
type Outcome struct {
	RunID       string
	Stages      []Stage
	Report      *model.Report
	Channels    []*channel.Channel
	Confluences []confluence.Confluence
	NoExchange  []int64
	Levees      *levee.Result
	Floodplain  *fpxs.Result
	// CrossSections is the sampled copy of the project catalog. It replaces
	// the project's catalog once the run commits.
	CrossSections *xsec.Catalog
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Pipeline schematizes projects into a store.
type Pipeline struct {
	store     store.Store
	opts      Options
	observers []CommitObserver
}

// New creates a Pipeline writing to st.
func New(st store.Store, opts Options) *Pipeline {
	return &Pipeline{store: st, opts: opts}
}

// OnCommit registers an observer called after each successful commit.
func (p *Pipeline) OnCommit(fn CommitObserver) {
	p.observers = append(p.observers, fn)
}

// Run executes the given stages against proj. With no stages every stage
// whose input layer is present runs. Derived tables of the selected stages
// are cleared and rewritten in one transaction; on error or cancellation the
// transaction is rolled back and the store keeps its previous state.
//
// The returned outcome is never nil; its report says whether the run was
// committed.
func (p *Pipeline) Run(ctx context.Context, proj *project.Project, stages ...Stage) (*Outcome, error) {
	out := &Outcome{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	out.Stages = p.selectStages(proj, stages)
	out.Report = model.NewReport(kindOf(out.Stages))
	out.Report.RunID = out.RunID

	log := zap.L().With(zap.String("run_id", out.RunID), zap.String("kind", out.Report.Kind))
	log.Info("pipeline: starting run")

	if proj == nil || proj.Grid == nil || proj.Grid.Len() == 0 {
		err := model.NewPrecondition(model.KindEmptyGrid, 0, "project has no grid")
		out.Report.Fail(err)
		return out, err
	}

	if ctx.Err() != nil {
		return out, p.fail(out, model.ErrCancelled)
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return out, eris.Wrap(err, "pipeline: begin")
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Warn("pipeline: rollback failed", zap.Error(rbErr))
			}
		}
	}()

	var tables []string
	for _, st := range out.Stages {
		tables = append(tables, stageTables[st]...)
	}
	if err := tx.Clear(ctx, tables...); err != nil {
		return out, p.fail(out, eris.Wrap(err, "pipeline: clear tables"))
	}

	b := newBatch()
	for i, st := range out.Stages {
		start := time.Now()
		var stErr error
		switch st {
		case StageChannel:
			stErr = p.runChannel(ctx, proj, out, b)
		case StageLevee:
			stErr = p.runLevee(ctx, proj, out, b)
		case StageFloodplain:
			stErr = p.runFloodplain(ctx, proj, out, b)
		}
		if stErr != nil {
			log.Error("pipeline: stage failed", zap.String("stage", string(st)), zap.Error(stErr))
			return out, p.fail(out, stErr)
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", string(st)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		p.progress(float64(i+1)/float64(len(out.Stages))*90, "stage "+string(st)+" complete")
	}

	for _, table := range b.order {
		if err := ctx.Err(); err != nil {
			return out, p.fail(out, model.ErrCancelled)
		}
		if err := tx.InsertBatch(ctx, table, b.rows[table]); err != nil {
			return out, p.fail(out, eris.Wrapf(err, "pipeline: insert %s", table))
		}
		out.Report.Add("rows_"+table, b.len(table))
	}

	out.FinishedAt = time.Now().UTC()
	run, err := runRow(out)
	if err != nil {
		return out, p.fail(out, err)
	}
	if err := tx.InsertBatch(ctx, store.TableRuns, []store.Row{run}); err != nil {
		return out, p.fail(out, eris.Wrap(err, "pipeline: insert run"))
	}
	if err := tx.Commit(); err != nil {
		return out, p.fail(out, eris.Wrap(err, "pipeline: commit"))
	}
	committed = true
	if out.CrossSections != nil {
		proj.CrossSections = out.CrossSections
	}
	p.progress(100, "committed")

	log.Info("pipeline: run committed",
		zap.Int("skipped", out.Report.Skipped),
		zap.Int("warnings", len(out.Report.Warnings)),
		zap.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)))
	for _, fn := range p.observers {
		fn(ctx, out)
	}
	return out, nil
}

// fail records err on the outcome and returns it.
func (p *Pipeline) fail(out *Outcome, err error) error {
	out.FinishedAt = time.Now().UTC()
	out.Report.Fail(err)
	return err
}

func (p *Pipeline) progress(pct float64, msg string) {
	if p.opts.Progress != nil {
		p.opts.Progress(pct, msg)
	}
}

func (p *Pipeline) selectStages(proj *project.Project, stages []Stage) []Stage {
	if len(stages) > 0 {
		out := append([]Stage(nil), stages...)
		sort.Slice(out, func(i, j int) bool { return stageIndex(out[i]) < stageIndex(out[j]) })
		return out
	}
	if proj == nil {
		return nil
	}
	var out []Stage
	if len(proj.LeftBanks) > 0 {
		out = append(out, StageChannel)
	}
	if len(proj.LeveeLines) > 0 {
		out = append(out, StageLevee)
	}
	if len(proj.Floodplain) > 0 {
		out = append(out, StageFloodplain)
	}
	return out
}

func stageIndex(s Stage) int {
	for i, st := range AllStages {
		if st == s {
			return i
		}
	}
	return len(AllStages)
}

func kindOf(stages []Stage) string {
	if len(stages) == 0 {
		return "empty"
	}
	kind := string(stages[0])
	for _, st := range stages[1:] {
		kind += "+" + string(st)
	}
	return kind
}

func (p *Pipeline) runChannel(ctx context.Context, proj *project.Project, out *Outcome, b *batch) error {
	in := proj.ChannelInput(p.opts.DefaultManning)
	in.Progress = p.opts.Progress
	res, err := channel.Schematize(ctx, in)
	if err != nil {
		return err
	}
	out.Report.Merge(res.Report)

	cf, err := confluence.Resolve(ctx, res.Channels)
	if err != nil {
		return err
	}
	out.Report.Merge(cf.Report)
	out.Channels, out.Confluences, out.NoExchange = cf.Channels, cf.Confluences, res.NoExchange

	catalog := proj.CrossSections
	if p.opts.Sampler != nil && catalog != nil {
		catalog = catalog.Clone()
		step := p.opts.SampleStep
		if step <= 0 {
			step = proj.Grid.CellSize() / 4
		}
		lefts := map[int64]geometry.Polyline{}
		for _, lb := range proj.LeftBanks {
			lefts[lb.FID] = lb.Geometry
		}
		rights := map[int64]geometry.Polyline{}
		for _, rb := range proj.RightBanks {
			rights[rb.FID] = rb.Geometry
		}
		rep, err := elevation.Enrich(ctx, elevation.Input{
			Sampler: p.opts.Sampler, CrossSections: catalog,
			LeftBanks: lefts, RightBanks: rights, Step: step,
		})
		if err != nil {
			return err
		}
		out.Report.Merge(rep)
		out.CrossSections = catalog
	}

	if err := channelRows(b, out.Channels); err != nil {
		return err
	}
	confluenceRows(b, out.Confluences)
	noExchangeRows(b, out.NoExchange)
	return userXSRows(b, catalog)
}

func (p *Pipeline) runLevee(ctx context.Context, proj *project.Project, out *Outcome, b *batch) error {
	in := proj.LeveeInput()
	in.Progress = p.opts.Progress
	res, err := levee.Schematize(ctx, in)
	if err != nil {
		return err
	}
	out.Report.Merge(res.Report)
	out.Levees = res
	return leveeRows(b, res)
}

func (p *Pipeline) runFloodplain(ctx context.Context, proj *project.Project, out *Outcome, b *batch) error {
	in := proj.FloodplainInput()
	in.Progress = p.opts.Progress
	res, err := fpxs.Schematize(ctx, in)
	if err != nil {
		return err
	}
	out.Report.Merge(res.Report)
	out.Floodplain = res
	return floodplainRows(b, res)
}

func runRow(out *Outcome) (store.Row, error) {
	counts, err := json.Marshal(out.Report.Counts)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: encode counts")
	}
	return store.Row{
		"id":          out.RunID,
		"kind":        out.Report.Kind,
		"started_at":  out.StartedAt.Format(time.RFC3339Nano),
		"finished_at": out.FinishedAt.Format(time.RFC3339Nano),
		"ok":          out.Report.OK,
		"cancelled":   out.Report.Cancelled,
		"skipped":     out.Report.Skipped,
		"counts":      string(counts),
	}, nil
}
