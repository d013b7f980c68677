package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperplay/internal/ir"
)

func TestWriteTransition_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, createTestSession("s1")))

	rec := ir.TransitionRecord{
		Seq:        7,
		Time:       2500,
		Event:      "a<:RED>",
		Object:     "a",
		Type:       ir.Selection,
		Transition: ir.Stop,
		From:       ir.Occurring,
		To:         ir.Sleeping,
	}
	require.NoError(t, s.WriteTransition(ctx, "s1", rec))

	got, err := s.ReadTransitions(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []ir.TransitionRecord{rec}, got)
}

func TestWriteTransition_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, createTestSession("s1")))

	rec := createTestRecord(1, "a")
	require.NoError(t, s.WriteTransition(ctx, "s1", rec))
	require.NoError(t, s.WriteTransition(ctx, "s1", rec))

	got, err := s.ReadTransitions(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteTransition_RequiresSession(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteTransition(context.Background(), "ghost", createTestRecord(1, "a"))
	assert.Error(t, err, "foreign key should reject unknown sessions")
}

func TestReadTransitions_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, createTestSession("s1")))

	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, s.WriteTransition(ctx, "s1", createTestRecord(seq, "a")))
	}

	got, err := s.ReadTransitions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Equal(t, int64(3), got[2].Seq)
}

func TestReadTransitions_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ReadTransitions(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadObjectTransitions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, createTestSession("s1")))
	require.NoError(t, s.WriteTransition(ctx, "s1", createTestRecord(1, "a")))
	require.NoError(t, s.WriteTransition(ctx, "s1", createTestRecord(2, "b")))
	require.NoError(t, s.WriteTransition(ctx, "s1", createTestRecord(3, "a")))

	got, err := s.ReadObjectTransitions(ctx, "s1", "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)
}

func TestSessions_CreateReadList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, createTestSession("b")))
	require.NoError(t, s.CreateSession(ctx, createTestSession("a")))
	require.NoError(t, s.CreateSession(ctx, createTestSession("a")), "duplicate create is a no-op")
	require.NoError(t, s.WriteTransition(ctx, "b", createTestRecord(1, "x")))

	sess, err := s.ReadSession(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "doc", sess.DocumentID)
	assert.Equal(t, 1, sess.Transitions)
	assert.Empty(t, sess.TraceHash)

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFinishSession_StoresTraceHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, createTestSession("s1")))

	records := []ir.TransitionRecord{createTestRecord(1, "a"), createTestRecord(2, "b")}
	for _, r := range records {
		require.NoError(t, s.WriteTransition(ctx, "s1", r))
	}

	hash, err := s.FinishSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ir.MustTraceHash(records), hash)

	sess, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, hash, sess.TraceHash)

	ok, err := s.VerifySession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySession_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, createTestSession("s1")))
	require.NoError(t, s.WriteTransition(ctx, "s1", createTestRecord(1, "a")))

	ok, err := s.VerifySession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok, "unfinished sessions never verify")

	_, err = s.FinishSession(ctx, "s1")
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE transitions SET object = 'z' WHERE seq = 1`)
	require.NoError(t, err)

	ok, err = s.VerifySession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFinishSession_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.FinishSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReadTransitions_RejectsCorruptEnums(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, createTestSession("s1")))
	require.NoError(t, s.WriteTransition(ctx, "s1", createTestRecord(1, "a")))

	_, err := s.db.Exec(`UPDATE transitions SET transition = 'rewind'`)
	require.NoError(t, err)

	_, err = s.ReadTransitions(ctx, "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rewind")
}

func TestNewSession(t *testing.T) {
	root := &ir.Context{Base: ir.Base{NodeID: "root"}}
	doc, err := ir.NewDocument("demo", root)
	require.NoError(t, err)

	sess, err := NewSession("s1", doc)
	require.NoError(t, err)
	assert.Equal(t, "demo", sess.DocumentID)
	assert.Equal(t, ir.EngineVersion, sess.EngineVersion)
	assert.Len(t, sess.DocumentHash, 64)
}
