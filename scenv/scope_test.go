package scenv

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type themeStore struct{ name string }

type userStore struct{ id int }

func TestSharedReturnsInstalledValue(t *testing.T) {
	root := NewScope()
	Install(root, &themeStore{name: "dark"})

	theme, ok := Shared[*themeStore](root)
	require.True(t, ok)
	assert.Equal(t, "dark", theme.name)
}

func TestSharedReturnsFalseForMissingType(t *testing.T) {
	root := NewScope()

	_, ok := Shared[*themeStore](root)
	assert.False(t, ok)
}

func TestChildInheritsFromAncestors(t *testing.T) {
	root := NewScope()
	Install(root, &themeStore{name: "dark"})

	child := root.Child()
	grandchild := child.Child()

	theme, ok := Shared[*themeStore](grandchild)
	require.True(t, ok)
	assert.Equal(t, "dark", theme.name)
}

func TestChildShadowsAncestorValue(t *testing.T) {
	root := NewScope()
	Install(root, &themeStore{name: "dark"})

	child := root.Child()
	Install(child, &themeStore{name: "light"})

	fromChild, _ := Shared[*themeStore](child)
	assert.Equal(t, "light", fromChild.name)

	// The root and any sibling subtree are unaffected.
	fromRoot, _ := Shared[*themeStore](root)
	assert.Equal(t, "dark", fromRoot.name)

	sibling := root.Child()
	fromSibling, _ := Shared[*themeStore](sibling)
	assert.Equal(t, "dark", fromSibling.name)
}

func TestValuesAreKeyedByType(t *testing.T) {
	root := NewScope()
	Install(root, &themeStore{name: "dark"})
	Install(root, &userStore{id: 3})

	theme, ok := Shared[*themeStore](root)
	require.True(t, ok)
	assert.Equal(t, "dark", theme.name)

	user, ok := Shared[*userStore](root)
	require.True(t, ok)
	assert.Equal(t, 3, user.id)
}

func TestInstallOfInterfaceType(t *testing.T) {
	root := NewScope()
	var buf interface{ String() string } = stringer("hello")
	Install(root, buf)

	got, ok := Shared[interface{ String() string }](root)
	require.True(t, ok)
	assert.Equal(t, "hello", got.String())
}

type stringer string

func (s stringer) String() string { return string(s) }

func TestMustShared(t *testing.T) {
	root := NewScope()
	Install(root, &themeStore{name: "dark"})

	assert.NotPanics(t, func() {
		theme := MustShared[*themeStore](root)
		assert.Equal(t, "dark", theme.name)
	})

	assert.Panics(t, func() {
		MustShared[*userStore](root)
	})
}

func TestScopeConcurrentAccess(t *testing.T) {
	t.Parallel()
	root := NewScope()
	child := root.Child()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			Install(root, &userStore{id: n})
		}(i)
		go func() {
			defer wg.Done()
			Shared[*userStore](child)
		}()
	}
	wg.Wait()

	_, ok := Shared[*userStore](child)
	assert.True(t, ok)
}
