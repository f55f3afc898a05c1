package playbook

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"callos/internal/milestones"
	"callos/internal/objections"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	org        string
	milestones []milestones.DefinitionInput
	objections []objections.DefinitionInput
}

func (r *recorder) UpsertDefinitions(ctx context.Context, org string, defs []milestones.DefinitionInput) ([]milestones.Milestone, error) {
	r.org = org
	r.milestones = defs
	return make([]milestones.Milestone, len(defs)), nil
}

type objRecorder struct{ defs []objections.DefinitionInput }

func (r *objRecorder) UpsertDefinitions(ctx context.Context, org string, defs []objections.DefinitionInput) ([]objections.Objection, error) {
	r.defs = defs
	return make([]objections.Objection, len(defs)), nil
}

func repoFile(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", rel)
}

func TestLoad_ShippedPlaybook(t *testing.T) {
	pb, err := Load(repoFile(t, "configs/playbook.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "demo-org", pb.Organization)
	require.Len(t, pb.Milestones, 5)
	assert.Equal(t, 2, pb.Milestones[1].OrderIndex)
	assert.True(t, pb.Milestones[1].Questions[0].Required)
	require.Len(t, pb.Objections, 6)

	for _, o := range pb.Objections {
		if o.Type == objections.TypeSkepticism {
			assert.NotContains(t, o.AllowedOutcomes, objections.OutcomeDeferred)
		}
		if o.Type == objections.TypePrice {
			assert.Len(t, o.AllowedOutcomes, 3)
		}
	}
}

func TestParse_Validation(t *testing.T) {
	_, err := Parse([]byte("organization: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(`
milestones:
  - number: 1
    title: A
  - number: 1
    title: B
objections:
  - type: Budget
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated")
	assert.Contains(t, err.Error(), "Budget")

	_, err = Parse([]byte("milestones: [\n"))
	assert.Error(t, err)
}

func TestSeed_UsesOverrideOrganization(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
organization: from-file
milestones:
  - number: 1
    title: Intro
    questions:
      - {id: q1, text: Hi, required: true}
objections:
  - type: Timing
`), 0o600))
	pb, err := Load(path)
	require.NoError(t, err)

	mr, or := &recorder{}, &objRecorder{}
	res, err := Seed(context.Background(), pb, "org-9", mr, or)
	require.NoError(t, err)
	assert.Equal(t, "org-9", res.OrganizationID)
	assert.Equal(t, 1, res.Milestones)
	assert.Equal(t, 1, res.Objections)
	assert.Equal(t, "org-9", mr.org)
	assert.Equal(t, []milestones.ItemDef{{ID: "q1", Text: "Hi", Required: true}}, mr.milestones[0].RequiredQuestions)
	assert.Equal(t, "Timing", or.defs[0].Title)

	_, err = Seed(context.Background(), &Playbook{}, "", mr, or)
	assert.Error(t, err)
}
