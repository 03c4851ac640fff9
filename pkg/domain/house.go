// Package domain holds the values exchanged on the bus and their wire schemas.
package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/schema"
)

var validate = validator.New()

// ErrInvalidHouse is wrapped by every House construction error.
var ErrInvalidHouse = errors.New("invalid house")

// House has a name and a non-empty set of rooms. It is immutable.
type House struct {
	name  string
	rooms []Room
}

type houseSpec struct {
	Name  string `validate:"required"`
	Rooms []Room `validate:"required,min=1"`
}

type houseWire struct {
	Name  string `json:"name"`
	Rooms []Room `json:"rooms"`
}

// NewHouse builds a House. Rooms form a set: equal rooms collapse, first
// occurrence wins the position.
func NewHouse(name string, rooms ...Room) (House, error) {
	unique := lo.Uniq(rooms)
	if err := validate.Struct(houseSpec{Name: name, Rooms: unique}); err != nil {
		return House{}, fmt.Errorf("%w: %v", ErrInvalidHouse, err)
	}
	return House{name: name, rooms: unique}, nil
}

func (h House) Name() string { return h.name }

// Rooms returns a copy of the room set.
func (h House) Rooms() []Room {
	out := make([]Room, len(h.rooms))
	copy(out, h.rooms)
	return out
}

func (h House) NumberOfRooms() int {
	return len(h.rooms)
}

// TotalSize is the sum of all room sizes.
func (h House) TotalSize() int {
	return lo.SumBy(h.rooms, func(r Room) int { return r.size })
}

// Equal reports value equality, ignoring room order.
func (h House) Equal(other House) bool {
	if h.name != other.name || len(h.rooms) != len(other.rooms) {
		return false
	}
	return lo.Every(other.rooms, h.rooms)
}

func (h House) String() string {
	return fmt.Sprintf("House{name=%s, rooms=%v}", h.name, h.rooms)
}

func (h House) MarshalJSON() ([]byte, error) {
	return core.JSONEncode(houseWire{Name: h.name, Rooms: h.rooms})
}

// HouseShape is the wire shape of a house:
// {"name": <string>, "rooms": [{"size": <integer>}, ...]}.
var HouseShape = schema.NewShape("House",
	schema.Required("name", schema.String()),
	schema.Required("rooms", schema.ArrayOf(schema.ObjectOf(RoomShape))),
)

// HouseSchema decodes a House payload.
var HouseSchema = schema.NewSchema(HouseShape, houseFromObject)

func houseFromObject(o schema.Object) (House, error) {
	rooms := make([]Room, 0, len(o.Array("rooms")))
	for _, ro := range o.Objects("rooms") {
		room, err := roomFromObject(ro)
		if err != nil {
			return House{}, err
		}
		rooms = append(rooms, room)
	}
	return NewHouse(o.String("name"), rooms...)
}
