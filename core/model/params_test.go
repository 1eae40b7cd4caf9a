package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamConversions(t *testing.T) {
	n, err := ParamInt("n_estimators", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = ParamInt("n_estimators", 20.0)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	_, err = ParamInt("n_estimators", 2.5)
	assert.Error(t, err)

	n, err = ParamOptionalInt("max_depth", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f, err := ParamFloat("learning_rate", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	_, err = ParamString("criterion", 3)
	assert.Error(t, err)

	b, err := ParamBool("bootstrap", true)
	require.NoError(t, err)
	assert.True(t, b)

	assert.Error(t, UnknownParam("DecisionTreeClassifier", "alpha"))
}
