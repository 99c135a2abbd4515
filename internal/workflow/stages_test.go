package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balmohsen/backend/pkg/models"
)

func TestStageSequence(t *testing.T) {
	seq := StageSequence{models.RoleFinance, models.RoleManager, models.RoleVP}

	assert.Equal(t, models.RoleFinance, seq.First())
	assert.True(t, seq.Contains(models.RoleManager))
	assert.False(t, seq.Contains(models.RoleAdministrator))
	assert.True(t, seq.IsLast(models.RoleVP))
	assert.False(t, seq.IsLast(models.RoleFinance))

	next, ok := seq.Next(models.RoleFinance)
	require.True(t, ok)
	assert.Equal(t, models.RoleManager, next)

	_, ok = seq.Next(models.RoleVP)
	assert.False(t, ok)

	_, ok = seq.Next(models.RoleAdministrator)
	assert.False(t, ok)
}

func TestDefaultRoutes(t *testing.T) {
	routes := DefaultRoutes()
	require.NoError(t, routes.Validate())

	assert.Equal(t, StageSequence{models.RoleFinance, models.RoleManager, models.RoleVP}, routes[models.FormTypeCOC])
	assert.Equal(t,
		StageSequence{models.RoleManager, models.RoleFinance, models.RoleVP, models.RoleAdministrator},
		routes[models.FormTypeCertification])
}

func TestRoutesFromConfig(t *testing.T) {
	routes := RoutesFromConfig(map[string][]string{
		"coc":    {"manager", "vp"},
		"travel": {"finance", "administrator"},
	})
	require.NoError(t, routes.Validate())

	// configured types replace the defaults, untouched defaults survive
	assert.Equal(t, StageSequence{models.RoleManager, models.RoleVP}, routes[models.FormTypeCOC])
	assert.Equal(t, StageSequence{models.RoleFinance, models.RoleAdministrator}, routes[models.FormType("travel")])
	assert.Len(t, routes[models.FormTypeCertification], 4)
}

func TestRoutesValidate(t *testing.T) {
	assert.Error(t, Routes{models.FormTypeCOC: {}}.Validate())
	assert.Error(t, Routes{models.FormTypeCOC: {models.Role("auditor")}}.Validate())
	assert.Error(t, Routes{models.FormTypeCOC: {models.RoleFinance, models.RoleFinance}}.Validate())
	assert.Error(t, Routes{models.FormTypeCOC: {models.RoleCompleted}}.Validate())
}
