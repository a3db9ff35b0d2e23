package study

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseRecords(t *testing.T) {
	p := mustParse(t, sampleSMGR)

	records, err := p.CaseRecords("MILIEU")
	require.NoError(t, err)
	require.Len(t, records, 2, "disabled case excluded")

	first := records[0]
	assert.Equal(t, "GRID", first.Label)
	assert.Equal(t, "custom", first.RunID)
	assert.Equal(t, "4", first.NProcs)
	assert.Equal(t, 90, first.ExpectedTime, `expected_time="01:30" is 90 minutes`)
	assert.Equal(t, "MILIEU/OTHER/run1", first.Depends)
	assert.Equal(t, []string{"fine", "coarse", "test"}, first.Tags, "case tags first, then study tags")
	assert.Equal(t, "a=1 b=2", first.Notebook, "args accumulate in document order")
	assert.Equal(t, "data.csv", first.Fields["user_input_files"])
	assert.NotContains(t, first.Fields, "compare", "structural children are not scalar fields")
	assert.NotContains(t, first.Fields, "depends")

	second := records[1]
	assert.Equal(t, "GRID", second.Label)
	assert.Equal(t, "run2", second.RunID, "second same-label occurrence gets run2")
	assert.Equal(t, "", second.NProcs)
	assert.Equal(t, ExpectedTimeUnset, second.ExpectedTime)
	assert.Equal(t, "", second.Depends)
	assert.Equal(t, []string{"coarse", "test"}, second.Tags, "study tags inherited")
}

func TestCaseRecords_EmptyRunID(t *testing.T) {
	p := mustParse(t, `<studymanager>
  <study label="S" status="on">
    <case label="C" status="on" run_id=""/>
  </study>
</studymanager>`)

	records, err := p.CaseRecords("S")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run1", records[0].RunID, "empty run_id falls back to occurrence index")
}

func TestCaseRecords_Deprecations(t *testing.T) {
	p := mustParse(t, `<studymanager>
  <study label="S" status="on">
    <case label="C" status="on" compute="on" post="off"/>
  </study>
</studymanager>`)

	records, err := p.CaseRecords("S")
	require.NoError(t, err)
	require.Len(t, records, 1)

	deps := p.Deprecations()
	require.Len(t, deps, 1)
	assert.Equal(t, "S", deps[0].Study)
	assert.Equal(t, "C", deps[0].Case)
	assert.Equal(t, []string{"compute", "post"}, deps[0].Attrs)

	// Querying the same study again must not multiply warnings.
	_, err = p.CaseRecords("S")
	require.NoError(t, err)
	assert.Len(t, p.Deprecations(), 1)
}

func TestCaseRecords_MalformedExpectedTime(t *testing.T) {
	p := mustParse(t, `<studymanager>
  <study label="S" status="on">
    <case label="C" status="on" expected_time="soon"/>
  </study>
</studymanager>`)

	records, err := p.CaseRecords("S")
	require.NoError(t, err)
	assert.Equal(t, ExpectedTimeUnset, records[0].ExpectedTime)
}

func TestDepends(t *testing.T) {
	p := mustParse(t, sampleSMGR)
	records, err := p.CaseRecords("MILIEU")
	require.NoError(t, err)

	depends, err := p.Depends(records[0].Node)
	require.NoError(t, err)
	assert.Equal(t, "MILIEU/OTHER/run1", depends)

	_, err = p.Depends(records[1].Node)
	var merr *MissingNodeError
	require.ErrorAs(t, err, &merr)
}

func TestCompareDirectives(t *testing.T) {
	p := mustParse(t, `<studymanager>
  <study label="S" status="on">
    <case label="C" status="on">
      <compare repo="ra" dest="da" threshold="1e-2" args="--section P"/>
      <compare repo="rb" dest="db" status="off"/>
    </case>
  </study>
</studymanager>`)

	records, err := p.CaseRecords("S")
	require.NoError(t, err)
	dirs, err := p.CompareDirectives(records[0].Node)
	require.NoError(t, err)
	require.Len(t, dirs, 2)

	assert.True(t, dirs[0].Enabled, "missing status means enabled")
	assert.Equal(t, "ra", dirs[0].Repo)
	assert.Equal(t, "da", dirs[0].Dest)
	assert.Equal(t, "1e-2", dirs[0].Threshold)
	assert.Equal(t, "--section P", dirs[0].Args)

	assert.False(t, dirs[1].Enabled)
	assert.Equal(t, "", dirs[1].Threshold)
}

func TestCompareDirectives_MissingRepo(t *testing.T) {
	p := mustParse(t, `<studymanager>
  <study label="S" status="on">
    <case label="C" status="on">
      <compare dest="d"/>
    </case>
  </study>
</studymanager>`)

	records, err := p.CaseRecords("S")
	require.NoError(t, err)
	_, err = p.CompareDirectives(records[0].Node)
	var aerr *MissingAttributeError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "repo", aerr.Attr)
}

func TestPreproDirectives(t *testing.T) {
	p := mustParse(t, sampleSMGR)
	records, err := p.CaseRecords("MILIEU")
	require.NoError(t, err)

	dirs, err := p.PreproDirectives(records[0].Node)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.True(t, dirs[0].Enabled)
	assert.Equal(t, "pre.py", dirs[0].Label)
	assert.Equal(t, "--mesh", dirs[0].Args)

	dirs, err = p.PreproDirectives(records[1].Node)
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestScriptDirectives(t *testing.T) {
	p := mustParse(t, sampleSMGR)
	records, err := p.CaseRecords("MILIEU")
	require.NoError(t, err)

	dirs, err := p.ScriptDirectives(records[0].Node)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.True(t, dirs[0].Enabled)
	assert.Equal(t, "post.py", dirs[0].Label)
	assert.Equal(t, "r1", dirs[0].Repo)
	assert.Equal(t, "d1", dirs[0].Dest)
}

func TestPostproDirectives(t *testing.T) {
	p := mustParse(t, sampleSMGR)

	dirs, err := p.PostproDirectives("MILIEU")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.True(t, dirs[0].Enabled)
	assert.Equal(t, "compare.py", dirs[0].Label)
	assert.Equal(t, "-v", dirs[0].Args)
}

func TestResultDescriptor(t *testing.T) {
	p := mustParse(t, `<studymanager>
  <data file="profile.dat" dest="20240101">
    <plot fig="1" xcol="1" ycol="2"/>
    <plot fig="2" xcol="1" ycol="3"/>
  </data>
  <resu file="run.log"/>
</studymanager>`)

	data := p.Children(p.root, "data")[0]
	d, err := p.Result(data)
	require.NoError(t, err)
	assert.Equal(t, "profile.dat", d.File)
	assert.Equal(t, "20240101", d.Dest)
	assert.Equal(t, "", d.Repo)
	assert.Len(t, d.Plots, 2, "data nodes expose plot children")

	resu := p.Children(p.root, "resu")[0]
	d, err = p.Result(resu)
	require.NoError(t, err)
	assert.Empty(t, d.Plots, "non-data nodes expose no plots")

	resu.RemoveAttr("file")
	_, err = p.Result(resu)
	var aerr *MissingAttributeError
	require.ErrorAs(t, err, &aerr)
}

func TestInputDescriptor(t *testing.T) {
	p := mustParse(t, `<studymanager><input file="mesh.png" tex="caption"/></studymanager>`)
	node := p.Children(p.root, "input")[0]

	d, err := p.Input(node)
	require.NoError(t, err)
	assert.Equal(t, "mesh.png", d.File)
	assert.Equal(t, "caption", d.Tex)
	assert.Equal(t, "", d.Repo)
}

func TestProbeDescriptor(t *testing.T) {
	p := mustParse(t, `<studymanager><probes file="monitoring_pressure.dat" fig="3"/></studymanager>`)
	node := p.Children(p.root, "probes")[0]

	d, err := p.Probes(node)
	require.NoError(t, err)
	assert.Equal(t, "monitoring_pressure.dat", d.File)
	assert.Equal(t, "3", d.Fig)
	assert.Equal(t, "", d.Dest)
}

func TestSubplotsFigures(t *testing.T) {
	p := mustParse(t, sampleSMGR)

	subplots, err := p.Subplots("MILIEU")
	require.NoError(t, err)
	assert.Len(t, subplots, 1)

	figures, err := p.Figures("MILIEU")
	require.NoError(t, err)
	assert.Len(t, figures, 1)
}

func TestPlotCommands(t *testing.T) {
	p := mustParse(t, `<studymanager>
  <subplot>
    <plt_command>set grid</plt_command>
    <plt_command>set xlabel "x"</plt_command>
    <plt_command/>
  </subplot>
</studymanager>`)
	node := p.Children(p.root, "subplot")[0]

	cmds := p.PlotCommands(node)
	assert.Equal(t, []string{"set grid", `set xlabel "x"`}, cmds, "empty commands skipped")
}
