package celeryconn

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DriverMongo is the driver label of the MongoDB connector
const DriverMongo = "mongodb"

// MongoConnector is a MongoDB-based connector.
// Each published envelope becomes one document {<exchange>: <envelope>} and
// each result one document {_id: <result key>, body: <record>}, both in the
// collection named by the connection details.
//
// MongoDB has no per-document expiry, so the expire argument of FetchResult
// is ignored by this driver.
type MongoConnector struct {
	protocol
}

// NewMongoConnector creates a new MongoDB connector
func NewMongoConnector(opts ...Option) *MongoConnector {
	return &MongoConnector{protocol: newProtocol(DriverMongo, opts)}
}

// Connect builds a MongoDB handle from details and pings the server
func (c *MongoConnector) Connect(ctx context.Context, details Details) (Conn, error) {
	conn, err := NewMongoConn(details)
	if err != nil {
		return nil, err
	}
	return c.EnsureConnected(ctx, conn)
}

// collection is the subset of a MongoDB collection the driver relies on
type collection interface {
	InsertOne(ctx context.Context, doc any) error
	Upsert(ctx context.Context, id string, body any) error
	FindBody(ctx context.Context, id string) ([]byte, error)
	FindAndDeleteBody(ctx context.Context, id string) ([]byte, error)
	Count(ctx context.Context, id string) (int64, error)
	DeleteOne(ctx context.Context, id string) (int64, error)
}

// MongoConn is a handle on a MongoDB collection. It is safe for concurrent use.
type MongoConn struct {
	uri            string
	database       string
	collectionName string

	mu     sync.RWMutex
	client *mongo.Client
	coll   collection
	closed bool
}

// NewMongoConn creates an unconnected handle from details.
// VHost names the database and Collection the collection; both are required.
func NewMongoConn(details Details) (*MongoConn, error) {
	if err := validateMongoDetails(details); err != nil {
		return nil, err
	}

	u := url.URL{Scheme: "mongodb", Host: details.Addr()}
	if details.HasCredentials() {
		u.User = url.UserPassword(details.Username, details.Password)
	}

	return &MongoConn{
		uri:            u.String(),
		database:       details.VHost,
		collectionName: details.Collection,
	}, nil
}

func validateMongoDetails(details Details) error {
	var errs []error
	if err := details.Validate(); err != nil {
		errs = append(errs, err)
	}
	if details.VHost == "" {
		errs = append(errs, fmt.Errorf("%w: vhost (database) is required", ErrConfiguration))
	}
	if details.Collection == "" {
		errs = append(errs, fmt.Errorf("%w: collection is required", ErrConfiguration))
	}
	if (details.Username == "") != (details.Password == "") {
		errs = append(errs, fmt.Errorf("%w: username and password must be given together", ErrConfiguration))
	}
	return errors.Join(errs...)
}

// newMongoConnWithCollection returns a connected handle on coll
func newMongoConnWithCollection(coll collection) *MongoConn {
	return &MongoConn{coll: coll}
}

// IsConnected implements Conn
func (c *MongoConn) IsConnected(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coll != nil && !c.closed
}

// Connect implements Conn by creating the client and pinging the primary
func (c *MongoConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	if c.coll != nil {
		return nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(c.uri))
	if err != nil {
		return fmt.Errorf("%w: failed to create mongodb client: %w", ErrConnection, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return fmt.Errorf("%w: failed to ping mongodb: %w", ErrConnection, err)
	}

	c.client = client
	c.coll = driverCollection{coll: client.Database(c.database).Collection(c.collectionName)}
	return nil
}

// Close implements Conn
func (c *MongoConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.coll = nil
	if c.client == nil {
		return nil
	}
	return c.client.Disconnect(context.Background())
}

func (c *MongoConn) active() (collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrConnClosed
	}
	if c.coll == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnection)
	}
	return c.coll, nil
}

// Insert writes one document holding payload under the destination field
func (c *MongoConn) Insert(ctx context.Context, destination string, payload []byte) error {
	coll, err := c.active()
	if err != nil {
		return err
	}
	return coll.InsertOne(ctx, bson.D{{Key: destination, Value: storedValue(payload)}})
}

// Put implements Store
func (c *MongoConn) Put(ctx context.Context, key string, payload []byte) error {
	coll, err := c.active()
	if err != nil {
		return err
	}
	return coll.Upsert(ctx, key, storedValue(payload))
}

// Get implements Store
func (c *MongoConn) Get(ctx context.Context, key string) ([]byte, error) {
	coll, err := c.active()
	if err != nil {
		return nil, err
	}
	return coll.FindBody(ctx, key)
}

// Exists implements Store
func (c *MongoConn) Exists(ctx context.Context, key string) (bool, error) {
	coll, err := c.active()
	if err != nil {
		return false, err
	}
	n, err := coll.Count(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete implements Store
func (c *MongoConn) Delete(ctx context.Context, key string) (bool, error) {
	coll, err := c.active()
	if err != nil {
		return false, err
	}
	n, err := coll.DeleteOne(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Take implements Taker with FindOneAndDelete
func (c *MongoConn) Take(ctx context.Context, key string) ([]byte, error) {
	coll, err := c.active()
	if err != nil {
		return nil, err
	}
	return coll.FindAndDeleteBody(ctx, key)
}

// storedValue keeps textual payloads readable in the database
func storedValue(payload []byte) any {
	if utf8.Valid(payload) {
		return string(payload)
	}
	return payload
}

// resultDocument is the stored form of a result record
type resultDocument struct {
	ID   string        `bson:"_id"`
	Body bson.RawValue `bson:"body"`
}

func (d resultDocument) bytes() ([]byte, error) {
	if s, ok := d.Body.StringValueOK(); ok {
		return []byte(s), nil
	}
	if _, b, ok := d.Body.BinaryOK(); ok {
		return b, nil
	}
	return nil, fmt.Errorf("unexpected body type %s in %s", d.Body.Type, d.ID)
}

// driverCollection adapts *mongo.Collection to collection
type driverCollection struct {
	coll *mongo.Collection
}

func (d driverCollection) InsertOne(ctx context.Context, doc any) error {
	_, err := d.coll.InsertOne(ctx, doc)
	return err
}

func (d driverCollection) Upsert(ctx context.Context, id string, body any) error {
	_, err := d.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "_id", Value: id}, {Key: "body", Value: body}},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (d driverCollection) decode(res *mongo.SingleResult) ([]byte, error) {
	var doc resultDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.bytes()
}

func (d driverCollection) FindBody(ctx context.Context, id string) ([]byte, error) {
	return d.decode(d.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}))
}

func (d driverCollection) FindAndDeleteBody(ctx context.Context, id string) ([]byte, error) {
	return d.decode(d.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}))
}

func (d driverCollection) Count(ctx context.Context, id string) (int64, error) {
	return d.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
}

func (d driverCollection) DeleteOne(ctx context.Context, id string) (int64, error) {
	res, err := d.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
