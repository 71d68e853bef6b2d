package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/escolaris/academia-api/internal/models"
)

func TestBusDispatchesByType(t *testing.T) {
	bus := NewBus(nil)

	var levelUps, badges int
	bus.Subscribe(models.EventStudentLeveledUp, func(ctx context.Context, event models.Event) {
		levelUps++
	})
	bus.Subscribe(models.EventStudentLeveledUp, func(ctx context.Context, event models.Event) {
		levelUps++
	})
	bus.Subscribe(models.EventBadgeAwarded, func(ctx context.Context, event models.Event) {
		badges++
	})

	bus.Publish(context.Background(), &models.StudentLeveledUpEvent{StudentID: "s1", NewLevel: 2})

	assert.Equal(t, 2, levelUps)
	assert.Equal(t, 0, badges)
}

func TestBusIgnoresNilEventAndHandler(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(models.EventGradeChanged, nil)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), nil)
		bus.Publish(context.Background(), &models.GradeChangedEvent{GradeID: "g1"})
	})
}
