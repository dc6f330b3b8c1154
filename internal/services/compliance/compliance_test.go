package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

func detections(classes ...string) []models.Detection {
	out := make([]models.Detection, 0, len(classes))
	for _, c := range classes {
		out = append(out, models.Detection{Class: c, Score: 0.9, Box: []float64{0, 0, 10, 10}})
	}
	return out
}

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()

	e, err := New(Rules{
		PersonLabel:   "person",
		RequiredItems: []string{"helmet", "vest", "boots"},
	}, nil)
	require.NoError(t, err)

	return e
}

func TestEvaluatePersonMissingItems(t *testing.T) {
	e := newEvaluator(t)

	out := e.Evaluate(detections("person", "helmet"))

	assert.True(t, out.PersonPresent)
	assert.Equal(t, []string{"vest", "boots"}, out.Missing)
	assert.Equal(t, "missing vest", out.Summary)
	assert.True(t, out.AlertWorthy)
	assert.Equal(t, models.LevelHigh, out.Level)
	require.Len(t, out.Items, 3)
	assert.Equal(t, StatusPresent, out.Items[0].Status)
	assert.Equal(t, StatusMissing, out.Items[1].Status)
	assert.Equal(t, StatusMissing, out.Items[2].Status)
}

func TestEvaluateNoDetections(t *testing.T) {
	e := newEvaluator(t)

	out := e.Evaluate(nil)

	assert.False(t, out.PersonPresent)
	assert.False(t, out.AlertWorthy)
	assert.False(t, out.HasDetection)
	assert.Empty(t, out.Missing)
	assert.Empty(t, out.Summary)
	for _, item := range out.Items {
		assert.Equal(t, StatusNotApplicable, item.Status)
	}
}

func TestEvaluateEquipmentWithoutPerson(t *testing.T) {
	e := newEvaluator(t)

	out := e.Evaluate(detections("helmet", "vest"))

	assert.False(t, out.PersonPresent)
	assert.True(t, out.HasDetection)
	assert.False(t, out.AlertWorthy)
}

func TestEvaluateFullyCompliant(t *testing.T) {
	e := newEvaluator(t)

	out := e.Evaluate(detections("boots", "person", "vest", "helmet"))

	assert.True(t, out.Compliant())
	assert.True(t, out.AlertWorthy)
	assert.Equal(t, models.LevelPositive, out.Level)
	assert.Empty(t, out.Summary)
}

func TestEvaluateIsPure(t *testing.T) {
	e := newEvaluator(t)
	in := detections("person", "vest")

	assert.Equal(t, e.Evaluate(in), e.Evaluate(in))
}

func TestEvaluateFollowsConfiguredOrder(t *testing.T) {
	e, err := New(Rules{
		PersonLabel:   "human",
		RequiredItems: []string{"boots", "vest", "helmet"},
	}, nil)
	require.NoError(t, err)

	out := e.Evaluate(detections("human"))

	assert.Equal(t, []string{"boots", "vest", "helmet"}, out.Missing)
	assert.Equal(t, "missing boots", out.Summary)
}

func TestEvaluateCustomPersonLabel(t *testing.T) {
	e, err := New(Rules{PersonLabel: "human", RequiredItems: []string{"helmet"}}, nil)
	require.NoError(t, err)

	assert.False(t, e.Evaluate(detections("person")).PersonPresent)
	assert.True(t, e.Evaluate(detections("human")).PersonPresent)
}

func TestNewValidatesVocabulary(t *testing.T) {
	_, err := New(Rules{
		PersonLabel:   "person",
		RequiredItems: []string{"helmet", "vest"},
	}, []string{"human", "helmet", "vest"})

	require.ErrorIs(t, err, errs.ErrUnknownLabel)
	assert.Contains(t, err.Error(), "person")
}

func TestNewAcceptsKnownVocabulary(t *testing.T) {
	_, err := New(Rules{
		PersonLabel:   "person",
		RequiredItems: []string{"helmet", "vest", "boots"},
	}, []string{"person", "helmet", "vest", "boots", "gloves"})

	require.NoError(t, err)
}

func TestNewRejectsEmptyRules(t *testing.T) {
	_, err := New(Rules{PersonLabel: "person"}, nil)
	require.Error(t, err)

	_, err = New(Rules{RequiredItems: []string{"helmet"}}, nil)
	require.Error(t, err)
}

func TestDisplayNames(t *testing.T) {
	e, err := New(Rules{
		PersonLabel:   "person",
		RequiredItems: []string{"helmet", "vest"},
		DisplayNames:  map[string]string{"helmet": "Casco"},
	}, nil)
	require.NoError(t, err)

	out := e.Evaluate(detections("person"))

	assert.Equal(t, "Casco", out.Items[0].DisplayName)
	assert.Equal(t, "vest", out.Items[1].DisplayName)
	assert.Equal(t, "Casco", e.DisplayName("helmet"))
}
