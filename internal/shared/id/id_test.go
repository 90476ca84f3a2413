package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCallID(t *testing.T) {
	a := NewCallID()
	b := NewCallID()

	assert.True(t, strings.HasPrefix(a.String(), CallPrefix+"_"))
	assert.NotEqual(t, a, b)
	assert.Less(t, a.String(), b.String(), "ids are monotonic")
}

func TestNewBuildID(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewBuildID().String(), BuildPrefix+"_"))
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewCallID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("call_not-a-ulid")
	assert.Error(t, err)
}
