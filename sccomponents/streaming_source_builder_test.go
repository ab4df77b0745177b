package sccomponents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statecell/go-statecell/internal/datasource"
)

func TestStreamingSourceBuilder(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := StreamingSource().Build(basicTestContext())
		require.NoError(t, err)
		defer s.Close()

		sp := s.(*datasource.StreamProcessor)
		assert.Equal(t, "", sp.GetBaseURI())
		assert.Equal(t, DefaultInitialReconnectDelay, sp.GetInitialReconnectDelay())
	})

	t.Run("BaseURI", func(t *testing.T) {
		s, err := StreamingSource().BaseURI("http://my-service").Build(basicTestContext())
		require.NoError(t, err)
		defer s.Close()

		sp := s.(*datasource.StreamProcessor)
		assert.Equal(t, "http://my-service", sp.GetBaseURI())
	})

	t.Run("InitialReconnectDelay", func(t *testing.T) {
		s, err := StreamingSource().InitialReconnectDelay(5 * time.Second).Build(basicTestContext())
		require.NoError(t, err)
		defer s.Close()

		sp := s.(*datasource.StreamProcessor)
		assert.Equal(t, 5*time.Second, sp.GetInitialReconnectDelay())
	})

	t.Run("nonpositive InitialReconnectDelay becomes default", func(t *testing.T) {
		for _, delay := range []time.Duration{0, -time.Second} {
			s, err := StreamingSource().InitialReconnectDelay(delay).Build(basicTestContext())
			require.NoError(t, err)
			defer s.Close()

			sp := s.(*datasource.StreamProcessor)
			assert.Equal(t, DefaultInitialReconnectDelay, sp.GetInitialReconnectDelay())
		}
	})
}
