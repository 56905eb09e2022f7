package manifold

import (
	"testing"
	"time"

	"github.com/jonnyspicer/mango"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketkeeper/internal/value"
)

func choiceMarket() *MarketData {
	return &MarketData{
		ID:          "mc1",
		OutcomeType: value.MultipleChoice,
		Answers: []Answer{
			{ID: 0, Text: "red", Probability: 0.5},
			{ID: 1, Text: "green", Probability: 0.3},
			{ID: 2, Text: "blue", Probability: 0.2},
		},
	}
}

func TestAnswerMap(t *testing.T) {
	m := choiceMarket()

	all, err := m.AnswerMap(nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 0.5, 1: 0.3, 2: 0.2}, all)

	some, err := m.AnswerMap(map[int]bool{1: true})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 0.5, 2: 0.2}, some)

	filtered, err := m.AnswerMap(nil, func(id int, probability float64) bool {
		return probability < 0.25
	})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 0.5, 1: 0.3}, filtered)
}

func TestAnswerMap_BinaryMarketRejected(t *testing.T) {
	m := &MarketData{ID: "b1", OutcomeType: value.Binary}
	_, err := m.AnswerMap(nil)
	require.Error(t, err)
	var aerr *APIError
	assert.ErrorAs(t, err, &aerr)
}

func TestAnswerOrder(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, choiceMarket().AnswerOrder())
}

func TestStatus(t *testing.T) {
	m := &MarketData{CloseTime: time.Now().Add(time.Hour)}
	assert.Equal(t, value.StatusOpen, m.Status())

	m.CloseTime = time.Now().Add(-time.Hour)
	assert.Equal(t, value.StatusClosed, m.Status())

	m.IsResolved = true
	assert.Equal(t, value.StatusResolved, m.Status())
}

func TestFromFullMarket_ResolutionProbability(t *testing.T) {
	m := fromFullMarket(mango.FullMarket{
		Id:                    "b2",
		OutcomeType:           "BINARY",
		Probability:           0.9,
		ResolutionProbability: 0.3,
		IsResolved:            true,
		Resolution:            "MKT",
	})

	// A MKT resolution settles at the creator's chosen probability, not at
	// the last-traded one.
	assert.Equal(t, 0.3, m.ResolutionProb)
	assert.Equal(t, 0.9, m.Probability)
}

func TestFromFullMarket_SkipsNonNumericAnswerIDs(t *testing.T) {
	m := fromFullMarket(mango.FullMarket{
		Id:          "mc2",
		OutcomeType: "MULTIPLE_CHOICE",
		Answers: []mango.Answer{
			{Id: "0", Text: "red", Probability: 0.6},
			{Id: "opaque", Text: "green", Probability: 0.4},
		},
	})
	require.Len(t, m.Answers, 1)
	assert.Equal(t, 0, m.Answers[0].ID)
}
