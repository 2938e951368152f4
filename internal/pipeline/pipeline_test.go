package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/elevation"
	"github.com/sells-group/flo2d-schematizer/internal/fpxs"
	"github.com/sells-group/flo2d-schematizer/internal/geometry"
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/levee"
	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/project"
	"github.com/sells-group/flo2d-schematizer/internal/store"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

func f64(v float64) *float64 { return &v }

// testProject is a 5x7 grid of 10 unit cells with a south flowing channel in
// column 1, a levee along the north edge of row 0 and one floodplain
// cross-section in column 1.
func testProject(t *testing.T) *project.Project {
	t.Helper()
	g, err := grid.NewRegular(5, 7, 10, 5, 5, func(col, row int) float64 { return float64(100 + row) })
	require.NoError(t, err)

	var xs []*xsec.CrossSection
	for i, l := range []geometry.Polyline{{{X: 12, Y: 55}, {X: 38, Y: 55}}, {{X: 12, Y: 15}, {X: 38, Y: 15}}} {
		x, err := xsec.New(int64(i+1), "", xsec.Rectangular, l)
		require.NoError(t, err)
		xs = append(xs, x)
	}
	cat, err := xsec.NewCatalog(xs...)
	require.NoError(t, err)

	return &project.Project{
		Grid:          g,
		LeftBanks:     []channel.LeftBank{{FID: 1, Name: "main", Geometry: geometry.Polyline{{X: 14, Y: 55}, {X: 14, Y: 15}}, DepInitial: 0.5}},
		CrossSections: cat,
		NoExchange:    []int64{30},
		LeveeLines:    []levee.Line{{FID: 1, Geometry: geometry.Polyline{{X: 0, Y: 9}, {X: 50, Y: 9}}, Elev: f64(1000)}},
		Floodplain:    []fpxs.Line{{FID: 1, Geometry: geometry.Polyline{{X: 15, Y: 5}, {X: 15, Y: 45}}, Iflo: model.West}},
	}
}

func query(t *testing.T, st store.Store, table string) []store.Row {
	t.Helper()
	rows, err := st.Query(context.Background(), table, nil)
	require.NoError(t, err)
	return rows
}

func TestPipeline_Run_AllStages(t *testing.T) {
	st := store.NewMemory()
	p := New(st, Options{DefaultManning: 0.04})

	var observed []string
	p.OnCommit(func(_ context.Context, out *Outcome) { observed = append(observed, out.RunID) })

	var progress []float64
	p.opts.Progress = func(pct float64, _ string) { progress = append(progress, pct) }

	out, err := p.Run(context.Background(), testProject(t))
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageChannel, StageLevee, StageFloodplain}, out.Stages)
	assert.True(t, out.Report.OK)
	assert.Equal(t, "channel+levee+fpxs", out.Report.Kind)
	assert.Equal(t, []string{out.RunID}, observed)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100.0, progress[len(progress)-1])

	assert.Len(t, query(t, st, store.TableChan), 1)
	assert.Len(t, query(t, st, store.TableChanElems), 5)
	assert.Len(t, query(t, st, store.TableDistances), 3)
	assert.Len(t, query(t, st, store.TableUserXS), 2)
	assert.Len(t, query(t, st, store.TableNoExchange), 1)
	assert.Len(t, query(t, st, store.TableLevees), len(out.Levees.Records))
	assert.NotEmpty(t, out.Levees.Records)
	assert.Len(t, query(t, st, store.TableFPXS), 1)
	assert.Len(t, query(t, st, store.TableFPXSCells), 5)
	assert.Equal(t, 5, out.Report.Counts["rows_chan_elems"])

	elems, err := st.Query(context.Background(), store.TableChanElems, store.Filter{"order_in_segment": 3})
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.Equal(t, int64(1), elems[0]["interpolated"])
	assert.Equal(t, 0.04, elems[0]["fcn"])

	fp := query(t, st, store.TableFPXS)[0]
	assert.Equal(t, int64(model.West), fp["iflo"])

	runs := query(t, st, store.TableRuns)
	require.Len(t, runs, 1)
	assert.Equal(t, out.RunID, runs[0]["id"])
	assert.Equal(t, int64(1), runs[0]["ok"])
	assert.Equal(t, int64(0), runs[0]["cancelled"])
}

func TestPipeline_Run_SelectedStage(t *testing.T) {
	st := store.NewMemory()
	out, err := New(st, Options{}).Run(context.Background(), testProject(t), StageFloodplain)
	require.NoError(t, err)
	assert.Equal(t, "fpxs", out.Report.Kind)
	assert.Nil(t, out.Channels)
	assert.Empty(t, query(t, st, store.TableChan))
	assert.Len(t, query(t, st, store.TableFPXS), 1)
}

func TestPipeline_Run_PreconditionKeepsCommittedState(t *testing.T) {
	st := store.NewMemory()
	p := New(st, Options{})
	_, err := p.Run(context.Background(), testProject(t))
	require.NoError(t, err)

	bad := testProject(t)
	bad.CrossSections, err = xsec.NewCatalog()
	require.NoError(t, err)

	out, err := p.Run(context.Background(), bad, StageChannel)
	require.Error(t, err)
	assert.True(t, model.IsPrecondition(err))
	assert.False(t, out.Report.OK)
	assert.False(t, out.Report.Cancelled)
	require.Len(t, out.Report.Errors, 1)
	assert.Equal(t, model.KindMissingLayer, out.Report.Errors[0].Kind)

	assert.Len(t, query(t, st, store.TableChan), 1)
	assert.Len(t, query(t, st, store.TableChanElems), 5)
	assert.Len(t, query(t, st, store.TableRuns), 1)
}

func TestPipeline_Run_Cancelled(t *testing.T) {
	st := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := New(st, Options{}).Run(ctx, testProject(t))
	require.Error(t, err)
	assert.True(t, model.IsCancelled(err))
	assert.True(t, out.Report.Cancelled)
	assert.False(t, out.Report.OK)
	assert.Empty(t, query(t, st, store.TableChan))
	assert.Empty(t, query(t, st, store.TableRuns))
}

func TestPipeline_Run_NoGrid(t *testing.T) {
	out, err := New(store.NewMemory(), Options{}).Run(context.Background(), &project.Project{})
	require.Error(t, err)
	assert.True(t, model.IsPrecondition(err))
	assert.False(t, out.Report.OK)
}

func TestPipeline_Run_SamplesBankElevations(t *testing.T) {
	st := store.NewMemory()
	proj := testProject(t)
	p := New(st, Options{Sampler: &elevation.GridSampler{Grid: proj.Grid}})
	out, err := p.Run(context.Background(), proj, StageChannel)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Report.Counts["bank_elevations"])

	rows, err := st.Query(context.Background(), store.TableUserXS, store.Filter{"fid": 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var params map[string]float64
	require.NoError(t, json.Unmarshal([]byte(rows[0]["params"].(string)), &params))
	assert.Equal(t, 105.0, params["bankell"])
	assert.Equal(t, 105.0, params["bankelr"])

	require.NotNil(t, out.CrossSections)
	assert.Same(t, out.CrossSections, proj.CrossSections)
	x, ok := proj.CrossSections.Get(1)
	require.True(t, ok)
	v, _ := x.Param("bankell")
	assert.Equal(t, 105.0, v)
}

func TestPipeline_Run_RollbackKeepsCrossSections(t *testing.T) {
	tx := &mockTx{}
	tx.On("Clear", mock.Anything, mock.Anything).Return(nil)
	tx.On("InsertBatch", mock.Anything, store.TableUserXS, mock.Anything).Return(eris.New("constraint"))
	tx.On("InsertBatch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tx.On("Rollback").Return(nil)

	st := &mockStore{}
	st.On("Begin", mock.Anything).Return(tx, nil)

	proj := testProject(t)
	before := proj.CrossSections
	p := New(st, Options{Sampler: &elevation.GridSampler{Grid: proj.Grid}})
	out, err := p.Run(context.Background(), proj, StageChannel)
	require.Error(t, err)
	assert.Equal(t, 2, out.Report.Counts["bank_elevations"])
	tx.AssertNotCalled(t, "Commit")

	assert.Same(t, before, proj.CrossSections)
	for _, x := range proj.CrossSections.All() {
		v, ok := x.Param("bankell")
		require.True(t, ok)
		assert.Zero(t, v, "cross-section %d", x.FID)
	}
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"channel", StageChannel, false},
		{"levee", StageLevee, false},
		{"fpxs", StageFloodplain, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectStages(t *testing.T) {
	p := New(store.NewMemory(), Options{})
	proj := testProject(t)
	proj.LeveeLines = nil
	assert.Equal(t, []Stage{StageChannel, StageFloodplain}, p.selectStages(proj, nil))
	assert.Equal(t, []Stage{StageChannel, StageLevee}, p.selectStages(proj, []Stage{StageLevee, StageChannel}))
	assert.Nil(t, p.selectStages(nil, nil))
	assert.Equal(t, "empty", kindOf(nil))
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Begin(ctx context.Context) (store.Tx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(store.Tx)
	return tx, args.Error(1)
}

func (m *mockStore) Query(ctx context.Context, table string, f store.Filter) ([]store.Row, error) {
	args := m.Called(ctx, table, f)
	rows, _ := args.Get(0).([]store.Row)
	return rows, args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                      { return m.Called().Error(0) }

type mockTx struct{ mock.Mock }

func (m *mockTx) Clear(ctx context.Context, tables ...string) error {
	return m.Called(ctx, tables).Error(0)
}

func (m *mockTx) InsertBatch(ctx context.Context, table string, rows []store.Row) error {
	return m.Called(ctx, table, rows).Error(0)
}

func (m *mockTx) Commit() error   { return m.Called().Error(0) }
func (m *mockTx) Rollback() error { return m.Called().Error(0) }

func TestPipeline_Run_BeginError(t *testing.T) {
	st := &mockStore{}
	st.On("Begin", mock.Anything).Return(nil, eris.New("disk full"))

	_, err := New(st, Options{}).Run(context.Background(), testProject(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: begin")
	st.AssertExpectations(t)
}

func TestPipeline_Run_InsertErrorRollsBack(t *testing.T) {
	tx := &mockTx{}
	tx.On("Clear", mock.Anything, mock.Anything).Return(nil)
	tx.On("InsertBatch", mock.Anything, store.TableFPXS, mock.Anything).Return(eris.New("constraint"))
	tx.On("Rollback").Return(nil)

	st := &mockStore{}
	st.On("Begin", mock.Anything).Return(tx, nil)

	out, err := New(st, Options{}).Run(context.Background(), testProject(t), StageFloodplain)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: insert fpxsec")
	assert.False(t, out.Report.OK)
	tx.AssertCalled(t, "Rollback")
	tx.AssertNotCalled(t, "Commit")
}
