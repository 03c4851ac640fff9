package verticles

import (
	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/domain"
	"github.com/fluxorio/housebus/pkg/schema"
)

// HouseConsumer logs every House seen on its topic.
type HouseConsumer struct {
	*core.BaseVerticle
	topic  string
	schema schema.Schema[domain.House]
}

// NewHouseConsumer creates a consumer on topic. observer may be nil.
func NewHouseConsumer(topic string, observer schema.Observer) *HouseConsumer {
	s := domain.HouseSchema
	if observer != nil {
		s = s.WithObserver(observer)
	}

	return &HouseConsumer{
		BaseVerticle: core.NewBaseVerticle("house-consumer"),
		topic:        topicOrDefault(topic),
		schema:       s,
	}
}

func (v *HouseConsumer) Start(ctx core.FluxorContext) error {
	if err := v.BaseVerticle.Start(ctx); err != nil {
		return err
	}

	_, err := v.Subscribe(v.topic, v.handle)
	return err
}

func (v *HouseConsumer) handle(ctx core.FluxorContext, msg core.Message) error {
	schema.OnMessage(msg, v.schema, func(h domain.House) {
		ctx.Logger().Infof("Received: %s  (%d rooms, %d m²)", h.Name(), h.NumberOfRooms(), h.TotalSize())
	})
	return nil
}

// RoomConsumer logs every Room seen on its topic.
type RoomConsumer struct {
	*core.BaseVerticle
	topic  string
	schema schema.Schema[domain.Room]
}

// NewRoomConsumer creates a consumer on topic. observer may be nil.
func NewRoomConsumer(topic string, observer schema.Observer) *RoomConsumer {
	s := domain.RoomSchema
	if observer != nil {
		s = s.WithObserver(observer)
	}

	return &RoomConsumer{
		BaseVerticle: core.NewBaseVerticle("room-consumer"),
		topic:        topicOrDefault(topic),
		schema:       s,
	}
}

func (v *RoomConsumer) Start(ctx core.FluxorContext) error {
	if err := v.BaseVerticle.Start(ctx); err != nil {
		return err
	}

	_, err := v.Subscribe(v.topic, v.handle)
	return err
}

func (v *RoomConsumer) handle(ctx core.FluxorContext, msg core.Message) error {
	schema.OnMessage(msg, v.schema, func(r domain.Room) {
		ctx.Logger().Infof("Received: %s (%d m²)", r, r.Size())
	})
	return nil
}
