package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNegatable(t *testing.T) {
	t.Parallel()

	for opt, name := range optionNames {
		assert.Equal(t, optionNegatable.Has(opt), isNegatable(name), "modifier %q", name)
	}

	for name, opt := range optionAliases {
		assert.Equal(t, optionNegatable.Has(opt), isNegatable(name), "modifier %q", name)
	}

	assert.True(t, isNegatable("doc"))
	assert.False(t, isNegatable("unknown"))
}
