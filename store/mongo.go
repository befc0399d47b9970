package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"wingo-engine/models"
)

const (
	roundsCollection   = "rounds"
	countersCollection = "period_counters"
	walletsCollection  = "wallets"
	ledgerCollection   = "ledger_entries"
	wagersCollection   = "wagers"
	historyCollection  = "round_history"
)

// MongoStore implements Store on a MongoDB replica set. Transactions use
// sessions with snapshot reads, which is snapshot isolation rather than
// serializability; the driver retries transient conflicts.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

// EnsureIndexes creates the collections' secondary indexes. Collections are
// created implicitly here, outside any transaction.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	wagerIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "mode", Value: 1}, {Key: "periodId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := s.db.Collection(wagersCollection).Indexes().CreateMany(ctx, wagerIndexes); err != nil {
		return fmt.Errorf("create wager indexes: %w", err)
	}

	ledgerIndex := mongo.IndexModel{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "timestamp", Value: -1}}}
	if _, err := s.db.Collection(ledgerCollection).Indexes().CreateOne(ctx, ledgerIndex); err != nil {
		return fmt.Errorf("create ledger index: %w", err)
	}

	historyIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "mode", Value: 1}, {Key: "resolvedAt", Value: -1}}},
		{
			Keys:    bson.D{{Key: "mode", Value: 1}, {Key: "periodId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := s.db.Collection(historyCollection).Indexes().CreateMany(ctx, historyIndexes); err != nil {
		return fmt.Errorf("create history indexes: %w", err)
	}

	for _, name := range []string{roundsCollection, countersCollection, walletsCollection} {
		err := s.db.CreateCollection(ctx, name)
		var cmdErr mongo.CommandError
		if err != nil && !(errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceExists") {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		// hello is not allowed inside a transaction, so the clock is read
		// on the outer context, once per attempt
		now := s.Now(ctx)
		return nil, fn(&mongoTx{ctx: sessCtx, db: s.db, now: now})
	}, txnOpts)
	if err != nil {
		var serverErr mongo.ServerError
		if errors.As(err, &serverErr) && serverErr.HasErrorLabel("TransientTransactionError") {
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		}
		return err
	}
	return nil
}

// Now asks the server for its clock and falls back to the local clock.
func (s *MongoStore) Now(ctx context.Context) time.Time {
	var res struct {
		LocalTime time.Time `bson:"localTime"`
	}
	err := s.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&res)
	if err != nil || res.LocalTime.IsZero() {
		return time.Now().UTC()
	}
	return res.LocalTime.UTC()
}

func (s *MongoStore) GetRound(ctx context.Context, mode string) (models.Round, error) {
	var round models.Round
	err := s.db.Collection(roundsCollection).FindOne(ctx, bson.M{"_id": mode}).Decode(&round)
	return round, notFound(err)
}

func (s *MongoStore) GetAccount(ctx context.Context, accountID string) (models.WalletAccount, error) {
	var account models.WalletAccount
	err := s.db.Collection(walletsCollection).FindOne(ctx, bson.M{"_id": accountID}).Decode(&account)
	return account, notFound(err)
}

func (s *MongoStore) ListWagers(ctx context.Context, mode, periodID string) ([]models.Wager, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return findAll[models.Wager](ctx, s.db.Collection(wagersCollection),
		bson.M{"mode": mode, "periodId": periodID}, opts)
}

func (s *MongoStore) ListWagersByAccount(ctx context.Context, accountID string, limit int) ([]models.Wager, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	return findAll[models.Wager](ctx, s.db.Collection(wagersCollection), bson.M{"accountId": accountID}, opts)
}

func (s *MongoStore) ListLedger(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))
	return findAll[models.LedgerEntry](ctx, s.db.Collection(ledgerCollection), bson.M{"accountId": accountID}, opts)
}

func (s *MongoStore) PutHistory(ctx context.Context, rec models.HistoryRecord) error {
	_, err := s.db.Collection(historyCollection).
		ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put history %s: %w", rec.ID, err)
	}
	return nil
}

func (s *MongoStore) RecentHistory(ctx context.Context, mode string, limit int) ([]models.HistoryRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "resolvedAt", Value: -1}, {Key: "periodId", Value: -1}}).
		SetLimit(int64(limit))
	return findAll[models.HistoryRecord](ctx, s.db.Collection(historyCollection), bson.M{"mode": mode}, opts)
}

type mongoTx struct {
	ctx mongo.SessionContext
	db  *mongo.Database
	now time.Time
}

func (tx *mongoTx) Now() time.Time {
	return tx.now
}

func (tx *mongoTx) GetRound(mode string) (models.Round, error) {
	var round models.Round
	err := tx.db.Collection(roundsCollection).FindOne(tx.ctx, bson.M{"_id": mode}).Decode(&round)
	return round, notFound(err)
}

func (tx *mongoTx) PutRound(round models.Round) error {
	return tx.replace(roundsCollection, round.Mode, round)
}

func (tx *mongoTx) GetCounter(mode string) (models.PeriodCounter, error) {
	var counter models.PeriodCounter
	err := tx.db.Collection(countersCollection).FindOne(tx.ctx, bson.M{"_id": mode}).Decode(&counter)
	return counter, notFound(err)
}

func (tx *mongoTx) PutCounter(counter models.PeriodCounter) error {
	return tx.replace(countersCollection, counter.Mode, counter)
}

func (tx *mongoTx) GetAccount(accountID string) (models.WalletAccount, error) {
	var account models.WalletAccount
	err := tx.db.Collection(walletsCollection).FindOne(tx.ctx, bson.M{"_id": accountID}).Decode(&account)
	return account, notFound(err)
}

func (tx *mongoTx) PutAccount(account models.WalletAccount) error {
	return tx.replace(walletsCollection, account.AccountID, account)
}

func (tx *mongoTx) AppendLedger(entry models.LedgerEntry) error {
	if _, err := tx.db.Collection(ledgerCollection).InsertOne(tx.ctx, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (tx *mongoTx) GetWager(id string) (models.Wager, error) {
	var wager models.Wager
	err := tx.db.Collection(wagersCollection).FindOne(tx.ctx, bson.M{"_id": id}).Decode(&wager)
	return wager, notFound(err)
}

func (tx *mongoTx) PutWager(wager models.Wager) error {
	return tx.replace(wagersCollection, wager.ID, wager)
}

func (tx *mongoTx) ListPendingWagers(mode, periodID string) ([]models.Wager, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	filter := bson.M{"mode": mode, "periodId": periodID, "status": models.WagerPending}
	return findAll[models.Wager](tx.ctx, tx.db.Collection(wagersCollection), filter, opts)
}

func (tx *mongoTx) replace(collection, id string, doc interface{}) error {
	_, err := tx.db.Collection(collection).
		ReplaceOne(tx.ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	return nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts *options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
