package routing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom/backend"
	"controlroom/logging"
)

// voter proposes proposal and casts vote on the ballot.
func voter(id, proposal, vote string) *fakeBackend {
	f := newFakeBackend(id, proposal)
	f.onSend = func(messages []backend.ChatMessage, _ backend.SamplingParams) (*backend.Reply, error) {
		content := proposal
		if isBallot(messages) {
			content = vote
		}
		return &backend.Reply{Content: content, BackendID: id, Tokens: 5, Cost: 0.01, Timestamp: time.Now().UTC()}, nil
	}
	return f
}

func TestVoting_MajorityWins(t *testing.T) {
	a := voter("a", "answer-a", "2")
	b := voter("b", "answer-b", "2")
	c := voter("c", "answer-c", "1")

	s := &Voting{logger: logging.NoOpLogger{}}
	replies := s.Route(context.Background(), "hello", []backend.Backend{a, b, c}, nil, backend.SamplingParams{})

	require.Len(t, replies, 1)
	assert.Equal(t, "b", replies[0].BackendID)
	assert.Equal(t, "answer-b", replies[0].Content)

	voting, ok := replies[0].Metadata["voting"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, voting["votes"])
	assert.Equal(t, 3, voting["total_proposals"])
}

func TestVoting_TieGoesToLowestNumberedProposal(t *testing.T) {
	// Two votes each for proposals 1 and 2.
	a := voter("a", "answer-a", "2")
	b := voter("b", "answer-b", "1")
	c := voter("c", "answer-c", "1")
	d := voter("d", "answer-d", "2")

	s := &Voting{logger: logging.NoOpLogger{}}
	replies := s.Route(context.Background(), "hello", []backend.Backend{a, b, c, d}, nil, backend.SamplingParams{})

	require.Len(t, replies, 1)
	assert.Equal(t, "a", replies[0].BackendID)
}

func TestVoting_MalformedVotesAreDiscarded(t *testing.T) {
	a := voter("a", "answer-a", "definitely proposal 1")
	b := voter("b", "answer-b", "99")
	c := voter("c", "answer-c", "2")

	s := &Voting{logger: logging.NoOpLogger{}}
	replies := s.Route(context.Background(), "hello", []backend.Backend{a, b, c}, nil, backend.SamplingParams{})

	require.Len(t, replies, 1)
	assert.Equal(t, "b", replies[0].BackendID)
}

func TestVoting_NoValidVotesReturnsAllProposals(t *testing.T) {
	a := voter("a", "answer-a", "none of them")
	b := voter("b", "answer-b", "0")

	s := &Voting{logger: logging.NoOpLogger{}}
	replies := s.Route(context.Background(), "hello", []backend.Backend{a, b}, nil, backend.SamplingParams{})

	require.Len(t, replies, 2)
	assert.Equal(t, "a", replies[0].BackendID)
	assert.Equal(t, "b", replies[1].BackendID)
}

func TestVoting_FailedProposalsRenumberSurvivors(t *testing.T) {
	// a's proposal fails; survivors b and c become proposals 1 and 2, and a
	// still votes on them.
	a := newFakeBackend("a", "")
	b := voter("b", "answer-b", "2")
	c := voter("c", "answer-c", "2")
	a.onSend = func(messages []backend.ChatMessage, _ backend.SamplingParams) (*backend.Reply, error) {
		if isBallot(messages) {
			return &backend.Reply{Content: "2", BackendID: "a", Timestamp: time.Now().UTC()}, nil
		}
		return nil, fmt.Errorf("boom")
	}

	s := &Voting{logger: logging.NoOpLogger{}}
	replies := s.Route(context.Background(), "hello", []backend.Backend{a, b, c}, nil, backend.SamplingParams{})

	require.Len(t, replies, 1)
	assert.Equal(t, "c", replies[0].BackendID)
}

func TestVoting_SingleSurvivorSkipsVotePhase(t *testing.T) {
	a := newFakeBackend("a", "")
	a.err = fmt.Errorf("boom")
	b := voter("b", "answer-b", "1")

	s := &Voting{logger: logging.NoOpLogger{}}
	replies := s.Route(context.Background(), "hello", []backend.Backend{a, b}, nil, backend.SamplingParams{})

	require.Len(t, replies, 1)
	assert.Equal(t, "b", replies[0].BackendID)
	assert.Nil(t, replies[0].Metadata)
	// One proposal call, no ballot.
	assert.Equal(t, 1, b.callCount())
}

func TestVoting_FewerThanTwoBackendsFallsBackToBroadcast(t *testing.T) {
	a := newFakeBackend("a", "answer-a")

	s := &Voting{logger: logging.NoOpLogger{}}
	replies := s.Route(context.Background(), "hello", []backend.Backend{a}, nil, backend.SamplingParams{})

	require.Len(t, replies, 1)
	assert.Equal(t, "answer-a", replies[0].Content)
	assert.Equal(t, 1, a.callCount())
}
