package traci

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLengthForms(t *testing.T) {
	t.Run("short form", func(t *testing.T) {
		p := &Buffer{}
		p.WriteUbyte(VarIDList)
		p.WriteString("lane_0")

		b := &Buffer{}
		b.WriteCommand(CmdGetLaneVariable, p.Bytes())
		raw := b.Bytes()
		assert.Equal(t, byte(len(raw)), raw[0])

		id, payload, err := NewStorage(raw).ReadCommand()
		require.NoError(t, err)
		assert.Equal(t, CmdGetLaneVariable, id)
		v, _ := payload.ReadUbyte()
		assert.Equal(t, VarIDList, v)
		s, err := payload.ReadString()
		require.NoError(t, err)
		assert.Equal(t, "lane_0", s)
		assert.Equal(t, 0, payload.Len())
	})

	t.Run("extended form", func(t *testing.T) {
		long := strings.Repeat("x", 300)
		p := &Buffer{}
		p.WriteString(long)

		b := &Buffer{}
		b.WriteCommand(CmdGetVehicleVariable, p.Bytes())
		raw := b.Bytes()
		assert.Equal(t, byte(0), raw[0])

		id, payload, err := NewStorage(raw).ReadCommand()
		require.NoError(t, err)
		assert.Equal(t, CmdGetVehicleVariable, id)
		s, err := payload.ReadString()
		require.NoError(t, err)
		assert.Equal(t, long, s)
	})
}

func TestStorageTypedValues(t *testing.T) {
	b := &Buffer{}
	b.WriteInt(-7)
	b.WriteDouble(13.5)
	b.WriteStringList([]string{"b", "a"})

	s := NewStorage(b.Bytes())
	i, err := s.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i)

	d, err := s.ReadDouble()
	require.NoError(t, err)
	assert.Equal(t, 13.5, d)

	l, err := s.ReadStringList()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, l)

	_, err = s.ReadUbyte()
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestFramePrefixesTotalLength(t *testing.T) {
	b := &Buffer{}
	b.WriteCommand(CmdClose, nil)
	frame := b.Frame()
	require.Len(t, frame, 6)
	assert.Equal(t, []byte{0, 0, 0, 6, 2, CmdClose}, frame)
}

func TestCorruptLengthsAreRejected(t *testing.T) {
	t.Run("list longer than message", func(t *testing.T) {
		b := &Buffer{}
		b.WriteInt(1 << 30)
		b.WriteString("a")
		_, err := NewStorage(b.Bytes()).ReadStringList()
		assert.Error(t, err)
	})

	t.Run("oversized frame", func(t *testing.T) {
		b := &Buffer{}
		b.WriteInt(MaxMessageLength + 1)
		_, err := ReadMessage(bytes.NewReader(b.Bytes()))
		assert.Error(t, err)
	})

	t.Run("short frame", func(t *testing.T) {
		b := &Buffer{}
		b.WriteInt(3)
		_, err := ReadMessage(bytes.NewReader(b.Bytes()))
		assert.Error(t, err)
	})

	t.Run("valid frame", func(t *testing.T) {
		p := &Buffer{}
		p.WriteStringList([]string{"x", "y"})
		framed := &Buffer{}
		framed.Write(p.Frame())
		s, err := ReadMessage(bytes.NewReader(framed.Bytes()))
		require.NoError(t, err)
		list, err := s.ReadStringList()
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, list)
	})
}
