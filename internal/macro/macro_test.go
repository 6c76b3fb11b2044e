package macro

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndInvoke(t *testing.T) {
	tbl := New()
	tbl.Register("ku", "get", true, func(_ context.Context, _ Context, input map[string]any) Result {
		return Ok(map[string]any{"id": input["id"]})
	})

	res := tbl.Invoke(context.Background(), "ku", "get", Context{Actor: "alice"}, map[string]any{"id": "ku_1"})
	assert.True(t, res.OK)
	assert.Equal(t, "ku_1", res.Data["id"])
}

func TestInvoke_UnknownOperationReturnsNotFound(t *testing.T) {
	tbl := New()
	res := tbl.Invoke(context.Background(), "ku", "missing", Context{}, nil)
	assert.False(t, res.OK)
	assert.Equal(t, "not_found", res.Error)
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	tbl := New()
	h := func(_ context.Context, _ Context, _ map[string]any) Result { return Ok(nil) }
	tbl.Register("ku", "get", true, h)
	assert.Panics(t, func() { tbl.Register("ku", "get", true, h) })
}

func TestList_FiltersNonPublic(t *testing.T) {
	tbl := New()
	h := func(_ context.Context, _ Context, _ map[string]any) Result { return Ok(nil) }
	tbl.Register("ku", "get", true, h)
	tbl.Register("ku", "internalOp", false, h)

	all := tbl.List(false)
	require.Len(t, all, 2)

	public := tbl.List(true)
	require.Len(t, public, 1)
	assert.Equal(t, "get", public[0].Name)
}

func TestDomains_ReturnsSortedDistinctDomains(t *testing.T) {
	tbl := New()
	h := func(_ context.Context, _ Context, _ map[string]any) Result { return Ok(nil) }
	tbl.Register("ku", "get", true, h)
	tbl.Register("evidence", "attach", true, h)
	tbl.Register("ku", "list", true, h)

	assert.Equal(t, []string{"evidence", "ku"}, tbl.Domains())
}
