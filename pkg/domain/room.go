package domain

import (
	"errors"
	"fmt"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/schema"
)

// ErrInvalidRoom is wrapped by every Room construction error.
var ErrInvalidRoom = errors.New("invalid room")

// Room is a value type; two rooms with the same size are equal.
type Room struct {
	size int
}

type roomSpec struct {
	Size int `json:"size" validate:"gte=0"`
}

// NewRoom returns a Room of size square meters. size must not be negative.
func NewRoom(size int) (Room, error) {
	if err := validate.Struct(roomSpec{Size: size}); err != nil {
		return Room{}, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	return Room{size: size}, nil
}

// MustRoom is NewRoom for constant sizes; it panics on a negative size.
func MustRoom(size int) Room {
	r, err := NewRoom(size)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Room) Size() int { return r.size }

func (r Room) String() string {
	return fmt.Sprintf("Room{size=%d}", r.size)
}

func (r Room) MarshalJSON() ([]byte, error) {
	return core.JSONEncode(roomSpec{Size: r.size})
}

// RoomShape is the wire shape of a room: {"size": <integer>}.
var RoomShape = schema.NewShape("Room",
	schema.Required("size", schema.Int()),
)

// RoomSchema decodes a Room payload.
var RoomSchema = schema.NewSchema(RoomShape, roomFromObject)

func roomFromObject(o schema.Object) (Room, error) {
	size := o.Int("size")
	if size > maxInt || size < minInt {
		return Room{}, fmt.Errorf("%w: size %d out of range", ErrInvalidRoom, size)
	}
	return NewRoom(int(size))
}

const (
	maxInt = int64(^uint(0) >> 1)
	minInt = -maxInt - 1
)
