package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// DeadLetters stores the rows the relay gave up on, one per event.
type DeadLetters struct {
	db *gorm.DB
}

func NewDeadLetters(db *gorm.DB) *DeadLetters {
	return &DeadLetters{db: db}
}

// ParkTx copies event into outbox_dead_letters. Parking an event twice keeps
// the first copy.
func (d *DeadLetters) ParkTx(tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error, attempts int, at time.Time) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	row := models.DeadLetter{
		ID:            uuid.New(),
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		Reason:        reason,
		LastError:     truncateError(cause),
		Attempts:      attempts,
		DeadAt:        at,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

// ForEvent returns the parked copy of eventID, or nil when there is none.
func (d *DeadLetters) ForEvent(ctx context.Context, eventID uuid.UUID) (*models.DeadLetter, error) {
	var row models.DeadLetter
	err := d.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
