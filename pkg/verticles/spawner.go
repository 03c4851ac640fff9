package verticles

import (
	"context"
	"time"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/domain"
)

// DefaultSpawnInterval is the spawner period when none is configured.
const DefaultSpawnInterval = 2 * time.Second

// HouseSpawner publishes the same sample house on a fixed period.
type HouseSpawner struct {
	*core.BaseVerticle
	topic    string
	interval time.Duration
	house    domain.House
}

// NewHouseSpawner creates a spawner publishing on topic every interval.
func NewHouseSpawner(topic string, interval time.Duration) *HouseSpawner {
	if interval <= 0 {
		interval = DefaultSpawnInterval
	}

	return &HouseSpawner{
		BaseVerticle: core.NewBaseVerticle("house-spawner"),
		topic:        topicOrDefault(topic),
		interval:     interval,
		house:        sampleHouse(),
	}
}

func sampleHouse() domain.House {
	h, err := domain.NewHouse("Haus", domain.MustRoom(10), domain.MustRoom(5), domain.MustRoom(15))
	if err != nil {
		panic(err)
	}
	return h
}

func (v *HouseSpawner) Start(ctx core.FluxorContext) error {
	if err := v.BaseVerticle.Start(ctx); err != nil {
		return err
	}

	_, err := v.SetPeriodic(v.interval, v.spawn)
	return err
}

func (v *HouseSpawner) spawn(context.Context) {
	v.Logger().Info("Spawning house")
	if err := v.Publish(v.topic, v.house); err != nil {
		v.Logger().Warnf("publish house on %s: %v", v.topic, err)
	}
}
