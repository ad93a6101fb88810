package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferroci/internal/config"
)

func TestRegistryFromConfig(t *testing.T) {
	reg, err := RegistryFromConfig(config.Default().Analysis)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sum_Abs_Difference", "Min_Max_Range"}, reg.Names())

	cfg := config.Default().Analysis
	cfg.Alignment = "sideways"
	_, err = RegistryFromConfig(cfg)
	assert.ErrorContains(t, err, "unknown alignment")
}
