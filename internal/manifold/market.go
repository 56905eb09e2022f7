package manifold

import (
	"strconv"
	"time"

	"github.com/jonnyspicer/mango"

	"marketkeeper/internal/value"
)

// MarketData is the local snapshot of a Manifold market that rules evaluate
// against. It is read-only during an evaluation pass; the only mutation in
// the whole subsystem is the orchestrator flipping IsResolved after a
// successful resolve or cancel call.
type MarketData struct {
	ID          string
	Question    string
	OutcomeType value.Outcome
	Mechanism   string
	CreatorID   string
	URL         string

	Probability    float64
	ResolutionProb float64
	Pool           map[string]float64
	P              float64
	Min            float64
	Max            float64
	IsLogScale     bool

	Answers []Answer

	Volume         float64
	Volume24Hours  float64
	TotalLiquidity float64

	CloseTime   time.Time
	CreatedTime time.Time
	IsResolved  bool
	Resolution  string
}

// Answer is one entry of a multi-outcome market. Manifold reports ids as
// strings but the resolution protocol works in integer indices, so they are
// parsed on conversion.
type Answer struct {
	ID          int
	Text        string
	Probability float64
	Resolution  string
}

// Status reports whether the market is open, past its close time, or resolved.
func (m *MarketData) Status() value.MarketStatus {
	switch {
	case m.IsResolved:
		return value.StatusResolved
	case !m.CloseTime.IsZero() && m.CloseTime.Before(time.Now()):
		return value.StatusClosed
	}
	return value.StatusOpen
}

// AnswerFilter excludes an answer when it returns true for its id and live
// probability.
type AnswerFilter func(id int, probability float64) bool

// AnswerMap extracts the market's current answers as an id-to-probability
// mapping, dropping excluded ids and anything a filter rejects. The result is
// NOT normalized. Only MC-like markets carry answers.
func (m *MarketData) AnswerMap(exclude map[int]bool, filters ...AnswerFilter) (map[int]float64, error) {
	if !m.OutcomeType.MCLike() {
		return nil, &APIError{Op: "answer map", Detail: "market " + m.ID + " is not a multi-outcome market"}
	}
	out := make(map[int]float64, len(m.Answers))
	for _, a := range m.Answers {
		if exclude[a.ID] {
			continue
		}
		rejected := false
		for _, f := range filters {
			if f(a.ID, a.Probability) {
				rejected = true
				break
			}
		}
		if !rejected {
			out[a.ID] = a.Probability
		}
	}
	return out, nil
}

// AnswerOrder returns answer ids in the order the platform lists them. Rules
// that break probability ties do so by this encounter order.
func (m *MarketData) AnswerOrder() []int {
	ids := make([]int, 0, len(m.Answers))
	for _, a := range m.Answers {
		ids = append(ids, a.ID)
	}
	return ids
}

func fromFullMarket(m mango.FullMarket) *MarketData {
	answers := make([]Answer, 0, len(m.Answers))
	for _, a := range m.Answers {
		id, err := strconv.Atoi(a.Id)
		if err != nil {
			// Non-numeric answer ids cannot participate in index-keyed
			// resolutions; skip them rather than corrupt the mapping.
			continue
		}
		answers = append(answers, Answer{
			ID:          id,
			Text:        a.Text,
			Probability: a.Probability,
			Resolution:  a.Resolution,
		})
	}

	pool := make(map[string]float64, len(m.Pool))
	for k, v := range m.Pool {
		pool[k] = v
	}

	// Min, Max, and IsLogScale stay zero here: mango's FullMarket does not
	// model the numeric-range parameters, so the client fills them from the
	// raw market JSON for PSEUDO_NUMERIC markets.
	return &MarketData{
		ID:             m.Id,
		Question:       m.Question,
		OutcomeType:    value.Outcome(m.OutcomeType),
		Mechanism:      m.Mechanism,
		CreatorID:      m.CreatorId,
		URL:            m.Url,
		Probability:    m.Probability,
		ResolutionProb: m.ResolutionProbability,
		Pool:           pool,
		P:              m.P,
		Answers:        answers,
		Volume:         m.Volume,
		Volume24Hours:  m.Volume24Hours,
		TotalLiquidity: m.TotalLiquidity,
		CloseTime:      time.UnixMilli(m.CloseTime),
		CreatedTime:    time.UnixMilli(m.CreatedTime),
		IsResolved:     m.IsResolved,
		Resolution:     m.Resolution,
	}
}
