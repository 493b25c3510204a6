package onboarding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllianceSelect(t *testing.T) {
	alliances := DefaultAlliances()

	got, err := alliances.Select(" 1 ")
	require.NoError(t, err)
	require.Equal(t, "anqa", got.Key)

	got, err = alliances.Select("7")
	require.NoError(t, err)
	require.Equal(t, "ANK", got.Tag)

	for _, input := range []string{"0", "8", "abc", "", "-1", "1.5"} {
		_, err := alliances.Select(input)
		var validation *ValidationError
		require.True(t, errors.As(err, &validation), input)
	}
}

func TestAllianceByKey(t *testing.T) {
	alliances := DefaultAlliances()

	got, ok := alliances.ByKey("JAX2")
	require.True(t, ok)
	require.Equal(t, "JAX2", got.Name)

	_, ok = alliances.ByKey("nope")
	require.False(t, ok)

	require.Equal(t, []string{"ANQA", "SPBG", "MGXT", "1ARK", "JAXA", "JAX2", "ANK"}, alliances.RoleNames())
}

func TestParseStep(t *testing.T) {
	require.Equal(t, StepNone, ParseStep(""))
	require.Equal(t, StepNone, ParseStep("bogus"))
	require.Equal(t, StepAlliance, ParseStep("alliance"))
	require.Equal(t, "", StepNone.Stored())
	require.True(t, StepProfile.Before(StepComplete))
	require.False(t, StepComplete.Before(StepAlliance))
}
