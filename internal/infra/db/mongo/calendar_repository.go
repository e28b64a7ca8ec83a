package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "habita/internal/domain/availability"
	domainproperty "habita/internal/domain/property"
	domainrange "habita/internal/domain/shared/daterange"
)

// CalendarRepository stores one document per property. Every reservation write touches it,
// so the version filter serializes overlapping requests for the same property.
type CalendarRepository struct {
	col *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	return &CalendarRepository{col: db.Collection(calendarsCollection)}
}

func (r *CalendarRepository) Calendar(ctx context.Context, id domainproperty.ID) (*domainavailability.Calendar, error) {
	var doc calendarDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainavailability.NewCalendar(id), nil
		}
		return nil, classify(err)
	}
	return doc.toAggregate(), nil
}

func (r *CalendarRepository) Save(ctx context.Context, cal *domainavailability.Calendar) error {
	doc := newCalendarDocument(cal)
	filter := bson.M{"_id": doc.ID, "version": cal.Version}
	doc.Version = cal.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	cal.Version = doc.Version
	return nil
}

type calendarDocument struct {
	ID      string          `bson:"_id"`
	Blocks  []blockDocument `bson:"blocks"`
	Version int64           `bson:"version"`
}

type blockDocument struct {
	Reservation string        `bson:"reservation_id"`
	Range       rangeDocument `bson:"range"`
	CreatedAt   time.Time     `bson:"created_at"`
}

// rangeDocument keeps calendar dates as YYYY-MM-DD so stored ranges never drift across zones.
type rangeDocument struct {
	CheckIn  string `bson:"check_in"`
	CheckOut string `bson:"check_out"`
}

func newRangeDocument(r domainrange.DateRange) rangeDocument {
	return rangeDocument{CheckIn: domainrange.FormatDay(r.CheckIn), CheckOut: domainrange.FormatDay(r.CheckOut)}
}

func (d rangeDocument) toRange() domainrange.DateRange {
	checkIn, _ := domainrange.ParseDay(d.CheckIn)
	checkOut, _ := domainrange.ParseDay(d.CheckOut)
	return domainrange.DateRange{CheckIn: checkIn, CheckOut: checkOut}
}

func newCalendarDocument(cal *domainavailability.Calendar) calendarDocument {
	blocks := make([]blockDocument, 0, len(cal.Blocks))
	for _, b := range cal.Blocks {
		blocks = append(blocks, blockDocument{
			Reservation: b.Reservation,
			Range:       newRangeDocument(b.Range),
			CreatedAt:   b.CreatedAt.UTC(),
		})
	}
	return calendarDocument{ID: string(cal.PropertyID), Blocks: blocks, Version: cal.Version}
}

func (d calendarDocument) toAggregate() *domainavailability.Calendar {
	cal := domainavailability.NewCalendar(domainproperty.ID(d.ID))
	cal.Version = d.Version
	for _, b := range d.Blocks {
		cal.Blocks = append(cal.Blocks, domainavailability.Block{
			Reservation: b.Reservation,
			Range:       b.Range.toRange(),
			CreatedAt:   b.CreatedAt.UTC(),
		})
	}
	return cal
}
