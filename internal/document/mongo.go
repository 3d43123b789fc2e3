package document

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/query"
)

// MongoBackend stores each entity in the collection named after it.
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

// DialMongo connects to uri and pings the primary.
func DialMongo(ctx context.Context, uri, database string) (*MongoBackend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(5*time.Second))
	if err != nil {
		return nil, translate("connect", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, translate("ping", err)
	}
	return &MongoBackend{client: client, db: client.Database(database)}, nil
}

func (m *MongoBackend) Insert(ctx context.Context, e *model.Entity, rec model.Values) error {
	doc := make(bson.D, 0, len(e.Columns))
	for _, c := range e.Columns {
		if v, ok := rec[c.Field]; ok {
			doc = append(doc, bson.E{Key: c.Name, Value: v})
		}
	}
	_, err := m.db.Collection(e.Name).InsertOne(ctx, doc)
	return translate("insert", err)
}

func (m *MongoBackend) Find(ctx context.Context, e *model.Entity, conds []query.Cond) iter.Seq2[model.Values, error] {
	return func(yield func(model.Values, error) bool) {
		cur, err := m.db.Collection(e.Name).Find(ctx, filter(e, conds))
		if err != nil {
			yield(nil, translate("find", err))
			return
		}
		defer cur.Close(context.Background())

		for cur.Next(ctx) {
			var raw bson.M
			if err := cur.Decode(&raw); err != nil {
				yield(nil, err)
				return
			}
			if !yield(fromBSON(e, raw), nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, translate("find", err))
		}
	}
}

func (m *MongoBackend) Close(ctx context.Context) error {
	return translate("disconnect", m.client.Disconnect(ctx))
}

var mongoOps = map[query.Op]string{
	query.Eq:  "$eq",
	query.Ne:  "$ne",
	query.Lt:  "$lt",
	query.Lte: "$lte",
	query.Gt:  "$gt",
	query.Gte: "$gte",
}

// filter renders a conjunction of normalized conditions.
func filter(e *model.Entity, conds []query.Cond) bson.D {
	if len(conds) == 0 {
		return bson.D{}
	}
	and := make(bson.A, 0, len(conds))
	for _, c := range conds {
		col, _ := e.Column(c.Field)
		var expr bson.D
		switch c.Op {
		case query.IsNull:
			expr = bson.D{{Key: "$eq", Value: nil}}
		case query.NotNull:
			expr = bson.D{{Key: "$ne", Value: nil}}
		default:
			expr = bson.D{{Key: mongoOps[c.Op], Value: c.Value}}
		}
		and = append(and, bson.D{{Key: col.Name, Value: expr}})
	}
	return bson.D{{Key: "$and", Value: and}}
}

func fromBSON(e *model.Entity, raw bson.M) model.Values {
	out := make(model.Values, len(e.Columns))
	for _, c := range e.Columns {
		v, ok := model.Normalize(c.Kind, raw[c.Name])
		if !ok {
			v = nil
		}
		out[c.Field] = v
	}
	return out
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case mongo.IsDuplicateKeyError(err):
		return &errs.ConstraintViolation{Backend: errs.BackendDocument, Op: op, Constraint: "unique", Err: err}
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return errs.Unavailable(errs.BackendDocument, op, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("RetryableWriteError") {
		return errs.Unavailable(errs.BackendDocument, op, err)
	}
	return err
}
