package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteToFileCreatesFolders(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b", "config.txt")
	require.NoError(t, WriteToFile(p, "one", "two"))
	bs, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(bs))

	require.NoError(t, WriteToFile(p, "three"))
	bs, err = os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "three\n", string(bs))
}

func TestAppendToFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "epTimes", "exp_ms.txt")
	require.NoError(t, AppendToFile(p, "1, 2, "))
	require.NoError(t, AppendToFile(p, "3, ", "4, "))
	bs, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "1, 2, \n3, \n4, \n", string(bs))
}
