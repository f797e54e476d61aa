package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/factory"
	"github.com/warp/carbon-engine/scenario"
)

func TestDemos_AllProduceBalancedModels(t *testing.T) {
	for _, d := range demos {
		t.Run(d.ID, func(t *testing.T) {
			in, err := engine.Normalize(d.inputs())
			require.NoError(t, err)
			_, err = engine.Run(in, engine.WithPolicy(engine.PolicyStrict))
			assert.NoError(t, err)
		})
	}
}

func TestDemos_GhanaMatchesFixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "testdata", "ghana", "engine_inputs.json"))
	require.NoError(t, err)
	fixture, err := factory.NewInputFactory().ParseEngineInputs(data)
	require.NoError(t, err)

	in, err := engine.Normalize(GhanaCookstoves())
	require.NoError(t, err)

	want, err := engine.Run(fixture)
	require.NoError(t, err)
	got, err := engine.Run(in)
	require.NoError(t, err)
	assert.True(t, want.Returns.NPV.Equal(got.Returns.NPV))
	assert.Equal(t, want.Returns.IRR.String(), got.Returns.IRR.String())
}

func TestDemos_BiocharHasNoDSCR(t *testing.T) {
	in, err := engine.Normalize(biocharEquity())
	require.NoError(t, err)
	m, err := engine.Run(in)
	require.NoError(t, err)
	for _, d := range m.DebtSchedule {
		assert.Equal(t, engine.NotAvailable, d.DSCR.String())
	}
}

func TestLoadDemo(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/demos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]DemoDTO](t, rec), len(demos))

	rec = s.do(t, http.MethodPost, "/api/demos/load", LoadDemoRequest{DemoID: "amazon-arr"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sc := decode[scenario.Scenario](t, rec)
	assert.Equal(t, "Amazon Reforestation", sc.Name)
	assert.Equal(t, 15, sc.Inputs.Years)

	rec = s.do(t, http.MethodPost, "/api/demos/load", LoadDemoRequest{DemoID: "moon-base"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
