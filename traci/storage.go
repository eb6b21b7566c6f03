package traci

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrShortBuffer = errors.New("traci: not enough bytes in message")

// MaxMessageLength bounds the size of a single framed message
const MaxMessageLength = 64 << 20

// ReadMessage reads one length prefixed message from r
func ReadMessage(r io.Reader) (*Storage, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length < 4 || length > MaxMessageLength {
		return nil, fmt.Errorf("traci: invalid message length %d", length)
	}
	body := make([]byte, length-4)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return NewStorage(body), nil
}

// Storage is a read cursor over a received message
type Storage struct {
	buf []byte
	pos int
}

func NewStorage(b []byte) *Storage {
	return &Storage{buf: b}
}

func (s *Storage) Len() int {
	return len(s.buf) - s.pos
}

func (s *Storage) next(n int) ([]byte, error) {
	if s.Len() < n {
		return nil, ErrShortBuffer
	}
	b := s.buf[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

func (s *Storage) ReadUbyte() (byte, error) {
	b, err := s.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *Storage) ReadInt() (int32, error) {
	b, err := s.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (s *Storage) ReadDouble() (float64, error) {
	b, err := s.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (s *Storage) ReadString() (string, error) {
	n, err := s.ReadInt()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("traci: negative string length %d", n)
	}
	b, err := s.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Storage) ReadStringList() ([]string, error) {
	n, err := s.ReadInt()
	if err != nil {
		return nil, err
	}
	// every entry carries at least its own length
	if n < 0 || int(n) > s.Len()/4 {
		return nil, fmt.Errorf("traci: invalid list length %d", n)
	}
	out := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		str, err := s.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, str)
	}
	return out, nil
}

// ReadCommand reads a length prefixed command and returns its id and a
// storage restricted to its payload
func (s *Storage) ReadCommand() (byte, *Storage, error) {
	start := s.pos
	l, err := s.ReadUbyte()
	if err != nil {
		return 0, nil, err
	}
	length := int(l)
	if length == 0 {
		ext, err := s.ReadInt()
		if err != nil {
			return 0, nil, err
		}
		length = int(ext)
	}
	id, err := s.ReadUbyte()
	if err != nil {
		return 0, nil, err
	}
	remaining := length - (s.pos - start)
	if remaining < 0 {
		return 0, nil, fmt.Errorf("traci: malformed command length %d", length)
	}
	payload, err := s.next(remaining)
	if err != nil {
		return 0, nil, err
	}
	return id, NewStorage(payload), nil
}

// Buffer accumulates an outgoing message
type Buffer struct {
	bytes.Buffer
}

func (b *Buffer) WriteUbyte(v byte) {
	b.Buffer.WriteByte(v)
}

func (b *Buffer) WriteInt(v int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	b.Write(tmp[:])
}

func (b *Buffer) WriteDouble(v float64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.Write(tmp[:])
}

func (b *Buffer) WriteString(v string) {
	b.WriteInt(int32(len(v)))
	b.Buffer.WriteString(v)
}

func (b *Buffer) WriteStringList(v []string) {
	b.WriteInt(int32(len(v)))
	for _, s := range v {
		b.WriteString(s)
	}
}

// WriteCommand appends a command with the short length form when it fits
// in a single byte and the extended form otherwise
func (b *Buffer) WriteCommand(id byte, payload []byte) {
	short := 1 + 1 + len(payload)
	if short <= 255 {
		b.WriteUbyte(byte(short))
	} else {
		b.WriteUbyte(0)
		b.WriteInt(int32(short + 4))
	}
	b.WriteUbyte(id)
	b.Write(payload)
}

// Frame prefixes the buffered commands with the total message length
func (b *Buffer) Frame() []byte {
	out := make([]byte, 4+b.Len())
	binary.BigEndian.PutUint32(out, uint32(len(out)))
	copy(out[4:], b.Bytes())
	return out
}
