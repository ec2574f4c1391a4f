package transcript

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streamsync "github.com/goliatone/go-streamsync"
)

func serverMsg(id, content string) streamsync.Message {
	return streamsync.Message{ID: id, Role: "assistant", Content: content}
}

func TestAddMessageDedup(t *testing.T) {
	s := NewStore()

	added := s.AddMessage("conv", serverMsg("m1", "hello"))
	assert.True(t, added)

	// same logical message echoed through the server path
	added = s.AddMessage("conv", serverMsg("m1", "hello"))
	assert.False(t, added)

	msgs := s.Messages("conv")
	require.Len(t, msgs, 1, "transcript grows by one, never two")
}

func TestAddMessageCopiesMetadata(t *testing.T) {
	s := NewStore()

	meta := map[string]any{"tokens": 12}
	msg := serverMsg("m1", "hello")
	msg.Metadata = meta
	require.True(t, s.AddMessage("conv", msg))

	meta["tokens"] = 99

	msgs := s.Messages("conv")
	require.Len(t, msgs, 1)
	assert.Equal(t, 12, msgs[0].Metadata["tokens"],
		"stored metadata must not alias the caller's map")
}

func TestAddMessageEmptyID(t *testing.T) {
	s := NewStore()
	assert.False(t, s.AddMessage("conv", streamsync.Message{Content: "no id"}))
	assert.Empty(t, s.Messages("conv"))
}

func TestOptimisticThenEchoReconciles(t *testing.T) {
	s := NewStore()

	local := s.NewLocalMessage("user", "hi there")
	require.True(t, strings.HasPrefix(local.ID, "local-"))
	require.True(t, s.AddMessage("conv", local))

	// server confirms with the canonical id
	s.MapLocalID("conv", local.ID, "srv-42")

	// echo arrives under the canonical id and must dedup
	assert.False(t, s.AddMessage("conv", serverMsg("srv-42", "hi there")))

	msgs := s.Messages("conv")
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-42", msgs[0].ID, "final identity is the canonical server id")
	assert.Equal(t, local.ID, msgs[0].LocalID)
}

func TestEchoThenOptimisticReconciles(t *testing.T) {
	s := NewStore()

	// echo lands first
	require.True(t, s.AddMessage("conv", serverMsg("srv-42", "hi")))
	s.MapLocalID("conv", "local-1", "srv-42")

	// late optimistic insert under the local id: the registry already knows
	// the canonical identity, so callers resolve before inserting
	serverID, ok := s.ServerIDFor("conv", "local-1")
	require.True(t, ok)
	assert.Equal(t, "srv-42", serverID)
	assert.True(t, s.IsProcessed("conv", serverID))

	assert.False(t, s.AddMessage("conv", serverMsg(serverID, "hi")))
	assert.Len(t, s.Messages("conv"), 1)
}

func TestUpdateMessageAfterConfirmation(t *testing.T) {
	s := NewStore()

	local := streamsync.Message{ID: "local-1", LocalID: "local-1", Role: "user", Content: "draft"}
	require.True(t, s.AddMessage("conv", local))
	s.MapLocalID("conv", "local-1", "srv-42")

	content := "final"
	updated := s.UpdateMessage("conv", "srv-42", MessagePatch{Content: &content})
	require.True(t, updated, "update by server id reaches the entry inserted under the local id")

	msgs := s.Messages("conv")
	require.Len(t, msgs, 1)
	assert.Equal(t, "final", msgs[0].Content)
}

func TestUpdateMessageUnknownIDNoOp(t *testing.T) {
	s := NewStore()
	s.AddMessage("conv", serverMsg("m1", "hello"))

	content := "changed"
	assert.False(t, s.UpdateMessage("conv", "missing", MessagePatch{Content: &content}))
	assert.False(t, s.UpdateMessage("other-conv", "m1", MessagePatch{Content: &content}))
	assert.Equal(t, "hello", s.Messages("conv")[0].Content)
}

func TestUpdateMessagePatchFields(t *testing.T) {
	s := NewStore()
	s.AddMessage("conv", serverMsg("m1", "hello"))

	role := "system"
	s.UpdateMessage("conv", "m1", MessagePatch{
		Role:     &role,
		Metadata: map[string]any{"edited": true},
	})

	msg := s.Messages("conv")[0]
	assert.Equal(t, "hello", msg.Content, "nil content field leaves content untouched")
	assert.Equal(t, "system", msg.Role)
	assert.Equal(t, true, msg.Metadata["edited"])
}

func TestSetMessages(t *testing.T) {
	t.Run("dedups with first occurrence winning", func(t *testing.T) {
		s := NewStore()
		s.SetMessages("conv", []streamsync.Message{
			serverMsg("m1", "first"),
			serverMsg("m2", "second"),
			serverMsg("m1", "duplicate"),
		})

		msgs := s.Messages("conv")
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Content)
	})

	t.Run("preserves local id mapping across refresh", func(t *testing.T) {
		s := NewStore()
		s.AddMessage("conv", streamsync.Message{ID: "local-1", LocalID: "local-1", Content: "draft"})
		s.MapLocalID("conv", "local-1", "srv-42")

		s.SetMessages("conv", []streamsync.Message{serverMsg("srv-42", "confirmed")})

		serverID, ok := s.ServerIDFor("conv", "local-1")
		require.True(t, ok, "full refresh must not erase optimistic bookkeeping")
		assert.Equal(t, "srv-42", serverID)
	})

	t.Run("rebuilds processed set", func(t *testing.T) {
		s := NewStore()
		s.AddMessage("conv", serverMsg("stale", "gone after refresh"))

		s.SetMessages("conv", []streamsync.Message{serverMsg("m1", "kept")})

		assert.False(t, s.IsProcessed("conv", "stale"))
		assert.True(t, s.IsProcessed("conv", "m1"))
		assert.True(t, s.AddMessage("conv", serverMsg("stale", "insertable again")))
	})
}

func TestClearMessages(t *testing.T) {
	s := NewStore()
	s.AddMessage("conv", serverMsg("m1", "hello"))

	s.ClearMessages("conv")

	assert.Empty(t, s.Messages("conv"))
	assert.False(t, s.IsProcessed("conv", "m1"))
}

func TestInterleavedConversations(t *testing.T) {
	s := NewStore()

	type insert struct {
		conv string
		msg  streamsync.Message
	}

	var inserts []insert
	for _, conv := range []string{"conv-a", "conv-b"} {
		for i := 1; i <= 3; i++ {
			id := fmt.Sprintf("%s-m%d", conv, i)
			local := streamsync.Message{ID: id, LocalID: "local-" + id, Content: "local"}
			echo := serverMsg(id, "echo")
			inserts = append(inserts,
				insert{conv, local},
				insert{conv, echo},
			)
		}
	}

	// deliberately interleave the two conversations and both paths
	order := []int{0, 6, 1, 7, 2, 8, 9, 3, 10, 4, 11, 5}
	for _, idx := range order {
		in := inserts[idx]
		s.AddMessage(in.conv, in.msg)
	}

	assert.Len(t, s.Messages("conv-a"), 3)
	assert.Len(t, s.Messages("conv-b"), 3)
}

func TestMarkProcessedBlocksInsert(t *testing.T) {
	s := NewStore()
	s.MarkProcessed("conv", "m1")

	assert.True(t, s.IsProcessed("conv", "m1"))
	assert.False(t, s.AddMessage("conv", serverMsg("m1", "late")))
	assert.Empty(t, s.Messages("conv"))
}
