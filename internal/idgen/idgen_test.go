package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, New())
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("op_")
	assert.True(t, strings.HasPrefix(id, "op_"))
	assert.Len(t, id, len("op_")+24)
	assert.NotEqual(t, id, WithPrefix("op_"))
}
