package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReplacementRoles_NumberValues(t *testing.T) {
	m, err := ParseReplacementRoles(`{"111": 222, "333": 444}`)
	require.NoError(t, err)
	require.Equal(t, map[int64]int64{111: 222, 333: 444}, m)
}

func TestParseReplacementRoles_StringValues(t *testing.T) {
	m, err := ParseReplacementRoles(`{"111": "222"}`)
	require.NoError(t, err)
	require.Equal(t, map[int64]int64{111: 222}, m)
}

func TestParseReplacementRoles_Empty(t *testing.T) {
	m, err := ParseReplacementRoles("")
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestParseReplacementRoles_BadJSON(t *testing.T) {
	_, err := ParseReplacementRoles(`{"111":`)
	require.Error(t, err)
}

func TestParseReplacementRoles_BadGuildID(t *testing.T) {
	_, err := ParseReplacementRoles(`{"not-a-number": 1}`)
	require.Error(t, err)
}

func TestAllowlists(t *testing.T) {
	c := &Config{
		AdminUserIDs:      []int64{10, 20},
		AuthorizedRoleIDs: []int64{5},
		GuildIDs:          []int64{1, 2},
	}
	require.True(t, c.IsAdmin(10))
	require.False(t, c.IsAdmin(30))
	require.True(t, c.HasAuthorizedRole([]int64{9, 5}))
	require.False(t, c.HasAuthorizedRole([]int64{9}))
	require.False(t, c.HasAuthorizedRole(nil))
	require.True(t, c.ServesGuild(2))
	require.False(t, c.ServesGuild(3))
}
