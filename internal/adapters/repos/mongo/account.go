package mongo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/event"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/gateway"
	"gitlab.com/insightbox/insightbox-backend/pkg/mongox"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
	"gitlab.com/insightbox/insightbox-backend/pkg/watermillx"
)

// MaxUpdateRetries bounds how often an update is re-run after losing the version race.
const MaxUpdateRetries = 5

var (
	ErrNilFunc         = errors.New("update function cannot be nil")
	ErrVersionConflict = errors.New("account changed concurrently")
)

type AccountRepo struct {
	tracer trace.Tracer
	logger *slog.Logger
	gw     *gateway.Gateway[*mongodriver.Database]
	bus    *cqrs.EventBus
}

type AccountRepoArgs struct {
	Tracer  trace.Tracer
	Logger  *slog.Logger
	Gateway *gateway.Gateway[*mongodriver.Database]
	// EventBus receives the account events after every successful write. Events
	// are dropped when it is nil.
	EventBus *cqrs.EventBus
}

// NewAccountRepo creates a new instance of AccountRepo.
//
// WARNING: panics if args.Gateway is nil
func NewAccountRepo(args AccountRepoArgs) *AccountRepo {
	if args.Gateway == nil {
		panic("mongo gateway cannot be nil")
	}
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}

	return &AccountRepo{
		tracer: args.Tracer,
		logger: args.Logger,
		gw:     args.Gateway,
		bus:    args.EventBus,
	}
}

func (r *AccountRepo) accounts(ctx context.Context) (*mongodriver.Collection, error) {
	db, err := r.gw.Connect(ctx)
	if err != nil {
		return nil, errorx.NewPersistenceUnavailable().WithCause(err)
	}
	return db.Collection(mongox.AccountsCollection), nil
}

func (r *AccountRepo) SaveAccount(ctx context.Context, acc *account.Account) error {
	const op = "mongo.AccountRepo.SaveAccount"
	ctx, span := r.tracer.Start(ctx, "AccountRepo.SaveAccount")
	defer span.End()

	coll, err := r.accounts(ctx)
	if err != nil {
		otelx.RecordSpanError(span, err, "database unavailable")
		return errorx.Wrap(err, op)
	}

	if _, err := coll.InsertOne(ctx, DomainToAccountDocument(acc, 1)); err != nil {
		err = mapError(err)
		otelx.RecordSpanError(span, err, "failed to insert account")
		return errorx.Wrap(err, op)
	}

	r.publish(ctx, acc.GetUncommittedEvents()...)
	acc.MarkEventsAsCommitted()
	return nil
}

func (r *AccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.GetAccountByID")
	defer span.End()

	acc, _, err := r.find(ctx, bson.M{"_id": id.String()})
	if err != nil {
		recordUnlessNotFound(span, err)
		return nil, errorx.Wrap(err, "mongo.AccountRepo.GetAccountByID")
	}
	return acc, nil
}

func (r *AccountRepo) GetAccountByUsername(ctx context.Context, username string) (*account.Account, error) {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.GetAccountByUsername")
	defer span.End()

	acc, _, err := r.find(ctx, bson.M{"username": username})
	if err != nil {
		recordUnlessNotFound(span, err)
		return nil, errorx.Wrap(err, "mongo.AccountRepo.GetAccountByUsername")
	}
	return acc, nil
}

func (r *AccountRepo) GetAccountByEmail(ctx context.Context, email string) (*account.Account, error) {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.GetAccountByEmail")
	defer span.End()

	acc, _, err := r.find(ctx, bson.M{"email": email})
	if err != nil {
		recordUnlessNotFound(span, err)
		return nil, errorx.Wrap(err, "mongo.AccountRepo.GetAccountByEmail")
	}
	return acc, nil
}

func (r *AccountRepo) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	const op = "mongo.AccountRepo.IsUsernameTaken"
	ctx, span := r.tracer.Start(ctx, "AccountRepo.IsUsernameTaken")
	defer span.End()

	coll, err := r.accounts(ctx)
	if err != nil {
		otelx.RecordSpanError(span, err, "database unavailable")
		return false, errorx.Wrap(err, op)
	}

	n, err := coll.CountDocuments(ctx,
		bson.M{"username": username, "verified": true},
		options.Count().SetLimit(1),
	)
	if err != nil {
		err = mapError(err)
		otelx.RecordSpanError(span, err, "failed to count accounts")
		return false, errorx.Wrap(err, op)
	}

	return n > 0, nil
}

func (r *AccountRepo) UpdateAccountByUsername(
	ctx context.Context,
	username string,
	fn func(ctx context.Context, acc *account.Account) error,
) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.UpdateAccountByUsername")
	defer span.End()

	err := r.update(ctx, span, bson.M{"username": username}, fn)
	return errorx.Wrap(err, "mongo.AccountRepo.UpdateAccountByUsername")
}

func (r *AccountRepo) UpdateAccountByEmail(
	ctx context.Context,
	email string,
	fn func(ctx context.Context, acc *account.Account) error,
) error {
	ctx, span := r.tracer.Start(ctx, "AccountRepo.UpdateAccountByEmail")
	defer span.End()

	err := r.update(ctx, span, bson.M{"email": email}, fn)
	return errorx.Wrap(err, "mongo.AccountRepo.UpdateAccountByEmail")
}

// update reads the account, applies fn and writes it back only if nobody else
// wrote in between. A lost race re-runs fn on a fresh read.
func (r *AccountRepo) update(
	ctx context.Context,
	span trace.Span,
	filter bson.M,
	fn func(ctx context.Context, acc *account.Account) error,
) error {
	if fn == nil {
		otelx.RecordSpanError(span, ErrNilFunc, "update function cannot be nil")
		return ErrNilFunc
	}

	coll, err := r.accounts(ctx)
	if err != nil {
		otelx.RecordSpanError(span, err, "database unavailable")
		return err
	}

	for attempt := 1; attempt <= MaxUpdateRetries; attempt++ {
		acc, version, err := r.find(ctx, filter)
		if err != nil {
			recordUnlessNotFound(span, err)
			return err
		}

		fnerr := fn(ctx, acc)
		if fnerr != nil && !errorx.IsPersistable(fnerr) {
			return fnerr
		}

		doc := DomainToAccountDocument(acc, version)
		res, err := coll.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "version": version},
			bson.M{"$set": doc.setFields(), "$inc": bson.M{"version": 1}},
		)
		if err != nil {
			err = mapError(err)
			otelx.RecordSpanError(span, err, "failed to update account")
			return err
		}
		if res.MatchedCount == 0 {
			span.SetAttributes(attribute.Int("update.attempt", attempt))
			r.logger.DebugContext(ctx, "account version changed, retrying update",
				"attempt", attempt, "account_id", doc.ID)
			continue
		}

		r.publish(ctx, acc.GetUncommittedEvents()...)
		acc.MarkEventsAsCommitted()

		return fnerr
	}

	err = errorx.NewConflict().WithCause(ErrVersionConflict)
	otelx.RecordSpanError(span, err, "gave up updating account")
	return err
}

func (r *AccountRepo) find(ctx context.Context, filter bson.M) (*account.Account, int64, error) {
	coll, err := r.accounts(ctx)
	if err != nil {
		return nil, 0, err
	}

	var doc AccountDocument
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, 0, mapError(err)
	}

	acc, err := AccountDocumentToDomain(doc)
	if err != nil {
		return nil, 0, err
	}
	return acc, doc.Version, nil
}

// publish hands the events to the in-process bus once the write is stored.
// A failed publish is logged; the write itself already happened.
func (r *AccountRepo) publish(ctx context.Context, evts ...event.Event) {
	if r.bus == nil || len(evts) == 0 {
		return
	}
	if err := watermillx.PublishAll(ctx, r.bus, evts...); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish account events", "error", err)
	}
}

func recordUnlessNotFound(span trace.Span, err error) {
	if !errorx.IsNotFound(err) {
		otelx.RecordSpanError(span, err, "failed to get account")
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return account.ErrNotFound.WithCause(err)
	}
	if idx, ok := mongox.DuplicateKeyIndex(err); ok {
		switch idx {
		case mongox.AccountsUsernameIndex:
			return account.ErrUsernameTaken.WithCause(err)
		case mongox.AccountsEmailIndex:
			return account.ErrEmailTaken.WithCause(err)
		default:
			return errorx.NewDuplicateEntry().WithCause(err)
		}
	}
	if isUnavailable(err) {
		return errorx.NewPersistenceUnavailable().WithCause(err)
	}

	return err
}

func isUnavailable(err error) bool {
	if mongodriver.IsTimeout(err) || mongodriver.IsNetworkError(err) {
		return true
	}
	if errors.Is(err, mongodriver.ErrClientDisconnected) || errors.Is(err, gateway.ErrUnavailable) {
		return true
	}

	var selErr topology.ServerSelectionError
	return errors.As(err, &selErr)
}
