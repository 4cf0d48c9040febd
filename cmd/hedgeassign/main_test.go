package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatch(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 2, dispatch(nil, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: hedgeassign")

	stdout.Reset()
	assert.Equal(t, 0, dispatch([]string{"help"}, nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "validate")

	stderr.Reset()
	assert.Equal(t, 2, dispatch([]string{"price"}, nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "price"`)

	for _, cmd := range []string{"generate", "aggregate", "solve", "validate", "run"} {
		stderr.Reset()
		assert.Equal(t, 0, dispatch([]string{cmd, "-h"}, nil, &stdout, &stderr), cmd)
		assert.Contains(t, stderr.String(), "hedgeassign "+cmd, cmd)
	}
}
