package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New[func() string]("compiler")
	require.NoError(t, r.Register("exec", func() string { return "exec" }))
	require.NoError(t, r.Register("fake", func() string { return "fake" }))

	f, err := r.Lookup("fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", f())
	assert.Equal(t, []string{"exec", "fake"}, r.Names())
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := New[int]("chain")
	require.NoError(t, r.Register("exec", 1))
	err := r.Register("exec", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `chain driver "exec" already registered`)

	v, err := r.Lookup("exec")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRegistry_UnknownNameListsRegistered(t *testing.T) {
	r := New[int]("compiler")
	r.MustRegister("exec", 1)
	r.MustRegister("solc", 2)

	_, err := r.Lookup("vyper")
	require.Error(t, err)
	assert.Equal(t, `unknown compiler driver "vyper" (registered: exec, solc)`, err.Error())
}

func TestRegistry_EmptyName(t *testing.T) {
	r := New[int]("compiler")
	assert.Error(t, r.Register("  ", 1))
	assert.Panics(t, func() { r.MustRegister("", 1) })
}
