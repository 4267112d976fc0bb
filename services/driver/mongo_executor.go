package driver

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dbautorest/models"
	"dbautorest/services/dialect"
)

// columnSampleSize is how many documents are read to infer a collection's fields.
const columnSampleSize = 100

type mongoExecutor struct {
	client *mongo.Client
	db     *mongo.Database
}

// MongoURI builds the connection string for cfg.
func MongoURI(cfg models.ConnectionConfig) string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(defaultPort(cfg.Port, 27017))),
		Path:   "/",
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := u.Query()
	if cfg.TLS {
		q.Set("tls", "true")
	}
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func openMongo(ctx context.Context, cfg models.ConnectionConfig, opts PoolOptions) (Executor, error) {
	clientOpts := options.Client().ApplyURI(MongoURI(cfg))
	if opts.MaxOpen > 0 {
		clientOpts.SetMaxPoolSize(uint64(opts.MaxOpen))
	}
	if opts.ConnLifetime > 0 {
		clientOpts.SetMaxConnIdleTime(opts.ConnLifetime)
	}
	if opts.DialTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.DialTimeout)
		clientOpts.SetServerSelectionTimeout(opts.DialTimeout)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return &mongoExecutor{client: client, db: client.Database(cfg.Database)}, nil
}

func (e *mongoExecutor) Kind() dialect.Kind { return dialect.MongoDB }

// Columns infers fields from a sample of documents, _id first then sorted.
func (e *mongoExecutor) Columns(ctx context.Context, t dialect.TableRef) ([]Column, error) {
	cur, err := e.db.Collection(t.Name).Find(ctx, bson.M{}, options.Find().SetLimit(columnSampleSize))
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", t.Name, err)
	}
	defer cur.Close(ctx)

	types := map[string]string{}
	for cur.Next(ctx) {
		var doc bson.Raw = cur.Current
		elems, err := doc.Elements()
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		for _, el := range elems {
			if _, seen := types[el.Key()]; !seen {
				types[el.Key()] = el.Value().Type.String()
			}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(types))
	for name := range types {
		if name != "_id" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	cols := make([]Column, 0, len(types))
	if typ, ok := types["_id"]; ok {
		cols = append(cols, Column{Name: "_id", DataType: typ})
	}
	for _, name := range names {
		cols = append(cols, Column{Name: name, DataType: types[name]})
	}
	return cols, nil
}

func (e *mongoExecutor) Tables(ctx context.Context) ([]Table, error) {
	specs, err := e.db.ListCollectionSpecifications(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	tables := make([]Table, 0, len(specs))
	for _, s := range specs {
		kind := models.KindCollection
		if s.Type == "view" {
			kind = models.KindView
		}
		tables = append(tables, Table{Name: s.Name, Kind: kind})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

func (e *mongoExecutor) Query(ctx context.Context, plan *dialect.Plan) ([]Row, error) {
	f := plan.Find
	if f == nil {
		return nil, fmt.Errorf("plan has no document query")
	}
	findOpts := options.Find().SetSkip(f.Skip).SetLimit(f.Limit)
	if f.Projection != nil {
		findOpts.SetProjection(f.Projection)
	}
	if len(f.Sort) > 0 {
		findOpts.SetSort(f.Sort)
	}
	cur, err := e.db.Collection(f.Collection).Find(ctx, f.Filter, findOpts)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	rows := make([]Row, len(docs))
	for i, d := range docs {
		rows[i] = normalizeDocument(d)
	}
	return rows, nil
}

func (e *mongoExecutor) Count(ctx context.Context, plan *dialect.Plan) (int64, error) {
	if plan.Find == nil {
		return 0, fmt.Errorf("plan has no document query")
	}
	return e.db.Collection(plan.Find.Collection).CountDocuments(ctx, plan.Find.Filter)
}

// Watch opens a change stream on a collection.
func (e *mongoExecutor) Watch(ctx context.Context, collection string) (*mongo.ChangeStream, error) {
	return e.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
}

func (e *mongoExecutor) Close() error {
	return e.client.Disconnect(context.Background())
}

// normalizeDocument converts BSON specific types into JSON friendly values.
func normalizeDocument(d bson.M) Row {
	row := make(Row, len(d))
	for k, v := range d {
		row[k] = normalizeBSON(v)
	}
	return row
}

func normalizeBSON(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	case primitive.M:
		return normalizeDocument(bson.M(t))
	case primitive.D:
		return normalizeDocument(bson.M(t.Map()))
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeBSON(item)
		}
		return out
	}
	return v
}
