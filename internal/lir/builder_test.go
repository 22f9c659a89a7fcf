package lir

import (
	"testing"

	"cairn/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAssignsDestOnce(t *testing.T) {
	b := NewBuilder()
	id1 := b.EmitConst(types.TInt, 2)
	id2 := b.EmitConst(types.TInt, 3)
	sum := b.Emit(OpAdd, types.TInt, id1, id2, 0)

	require.Len(t, b.Instrs, 3)
	seen := map[int]bool{}
	for _, ins := range b.Instrs {
		if ins.Dest == 0 {
			continue
		}
		assert.False(t, seen[ins.Dest], "dest %d assigned twice", ins.Dest)
		seen[ins.Dest] = true
	}
	assert.Equal(t, sum, b.Instrs[2].Dest)
}

func TestLabelUniqueness(t *testing.T) {
	b := NewBuilder()
	l1 := b.Label("L")
	l2 := b.Label("L")
	assert.NotEqual(t, l1, l2)
}

func TestAliasSetStableByName(t *testing.T) {
	b := NewBuilder()
	a1 := b.AliasSetFor("x", 0)
	a2 := b.AliasSetFor("x", 0)
	a3 := b.AliasSetFor("y", 0)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, a3)
}

func TestAliasSetUniquePerRestrictSite(t *testing.T) {
	b := NewBuilder()
	a1 := b.AliasSetFor("p", 1)
	a2 := b.AliasSetFor("p", 2)
	assert.NotEqual(t, a1, a2)
}

func TestOpClassification(t *testing.T) {
	assert.True(t, OpAdd.IsPure())
	assert.True(t, OpAdd.IsCommutative())
	assert.False(t, OpSub.IsCommutative())
	assert.True(t, OpStoreVar.HasSideEffect())
	assert.False(t, OpAdd.HasSideEffect())
	assert.True(t, OpLoadVar.IsMemoryOp())
}
