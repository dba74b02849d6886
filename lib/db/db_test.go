package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureString(t *testing.T) {
	assert.Equal(t, "SetEIfUnset", FeatureSetEIfUnset.String())
	assert.Equal(t, "Set|Get", (FeatureSet | FeatureGet).String())
	assert.Equal(t, "Unknown", Feature(0).String())
	assert.Equal(t, "Unknown", Feature(1<<20).String())
}
