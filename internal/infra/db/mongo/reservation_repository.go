package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"habita/internal/domain/pricing"
	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
	"habita/internal/domain/shared/money"
	domainuser "habita/internal/domain/user"
)

type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	return &ReservationRepository{col: db.Collection(reservationsCollection)}
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ID) (*domainreservation.Reservation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ReservationRepository) ByRequestKey(ctx context.Context, userID domainuser.ID, key string) (*domainreservation.Reservation, error) {
	if key == "" {
		return nil, domainreservation.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"user_id": string(userID), "request_key": key})
}

func (r *ReservationRepository) findOne(ctx context.Context, filter bson.M) (*domainreservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainreservation.ErrNotFound
		}
		return nil, classify(err)
	}
	return doc.toAggregate(), nil
}

func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	doc := newReservationDocument(res)
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	doc.Version = res.Version + 1
	result, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return classify(err)
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	res.Version = doc.Version
	return nil
}

func (r *ReservationRepository) List(ctx context.Context, f domainreservation.Filter) ([]*domainreservation.Reservation, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = string(f.UserID)
	}
	if len(f.PropertyIDs) > 0 {
		ids := make([]string, 0, len(f.PropertyIDs))
		for _, id := range f.PropertyIDs {
			ids = append(ids, string(id))
		}
		filter["property_id"] = bson.M{"$in": ids}
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)
	out := make([]*domainreservation.Reservation, 0)
	for cur.Next(ctx) {
		var doc reservationDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

func (r *ReservationRepository) ListByProperty(ctx context.Context, id domainproperty.ID) ([]*domainreservation.Reservation, error) {
	return r.List(ctx, domainreservation.Filter{PropertyIDs: []domainproperty.ID{id}})
}

type reservationDocument struct {
	ID            string        `bson:"_id"`
	PropertyID    string        `bson:"property_id"`
	UserID        string        `bson:"user_id"`
	Range         rangeDocument `bson:"range"`
	Guests        int           `bson:"guests"`
	Nights        int           `bson:"nights"`
	DiscountBP    int64         `bson:"discount_bp"`
	Nightly       money.Money   `bson:"nightly"`
	Total         money.Money   `bson:"total"`
	Comment       string        `bson:"comment"`
	Status        string        `bson:"status"`
	PaymentStatus string        `bson:"payment_status"`
	RequestKey    string        `bson:"request_key,omitempty"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
	Version       int64         `bson:"version"`
}

func newReservationDocument(r *domainreservation.Reservation) reservationDocument {
	return reservationDocument{
		ID:            string(r.ID),
		PropertyID:    string(r.PropertyID),
		UserID:        string(r.UserID),
		Range:         newRangeDocument(r.Range),
		Guests:        r.Guests,
		Nights:        r.Nights,
		DiscountBP:    int64(r.Discount),
		Nightly:       r.Nightly,
		Total:         r.Total,
		Comment:       r.Comment,
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		RequestKey:    r.RequestKey,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		Version:       r.Version,
	}
}

func (d reservationDocument) toAggregate() *domainreservation.Reservation {
	return &domainreservation.Reservation{
		ID:            domainreservation.ID(d.ID),
		PropertyID:    domainproperty.ID(d.PropertyID),
		UserID:        domainuser.ID(d.UserID),
		Range:         d.Range.toRange(),
		Guests:        d.Guests,
		Nights:        d.Nights,
		Discount:      pricing.Discount(d.DiscountBP),
		Nightly:       d.Nightly,
		Total:         d.Total,
		Comment:       d.Comment,
		Status:        domainreservation.Status(d.Status),
		PaymentStatus: domainreservation.PaymentStatus(d.PaymentStatus),
		RequestKey:    d.RequestKey,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Version:       d.Version,
	}
}
