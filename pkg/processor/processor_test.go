package processor

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeTx struct {
	database.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	database.DB
	tx *fakeTx
}

func (f *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	return ctx, f.tx, nil
}

type fakeClientRepo struct {
	repositories.ClientRepo
	db        *fakeDB
	upserts   []models.Client
	upsertErr error
	deleted   []string
	deleteErr error
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{db: &fakeDB{tx: &fakeTx{}}}
}

func (f *fakeClientRepo) DB() database.DB {
	return f.db
}

func (f *fakeClientRepo) Upsert(ctx context.Context, client models.Client) (*repositories.UpsertResult, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserts = append(f.upserts, client)
	return &repositories.UpsertResult{Client: &client, IsNew: true}, nil
}

func (f *fakeClientRepo) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeActivityRepo struct {
	repositories.ActivityRepo
	inserts        []models.Activity
	insertErr      error
	removedClients []string
}

func (f *fakeActivityRepo) Insert(ctx context.Context, activity models.Activity) (*models.Activity, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserts = append(f.inserts, activity)
	return &activity, nil
}

func (f *fakeActivityRepo) DeleteByClient(ctx context.Context, clientID string) (int64, error) {
	f.removedClients = append(f.removedClients, clientID)
	return 2, nil
}

func newProcessor(clients *fakeClientRepo, activities *fakeActivityRepo) *Processor {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewProcessor(logger, clients, activities)
}

func TestProcessMessage_ClientCreated(t *testing.T) {
	clients := newFakeClientRepo()
	p := newProcessor(clients, &fakeActivityRepo{})

	msg := &kafka.IncomingMessage{
		Value: []byte(`{
			"event_type": "client.created",
			"client_id": "c1",
			"data": {"id": "ignored", "first_name": "John", "last_name": "Smith", "age": "30"}
		}`),
	}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	require.Len(t, clients.upserts, 1)

	// The event's client_id is authoritative over any id in the payload.
	assert.Equal(t, "c1", clients.upserts[0].ID)
	assert.Equal(t, "John", clients.upserts[0].FirstName)
	assert.Equal(t, "30", clients.upserts[0].Age)
}

func TestProcessMessage_ClientUpdatedRoutesToUpsert(t *testing.T) {
	clients := newFakeClientRepo()
	p := newProcessor(clients, &fakeActivityRepo{})

	msg := &kafka.IncomingMessage{
		Value: []byte(`{"event_type": "client.updated", "client_id": "c1", "data": {"first_name": "Johnny"}}`),
	}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	require.Len(t, clients.upserts, 1)
	assert.Equal(t, "Johnny", clients.upserts[0].FirstName)
}

func TestProcessMessage_MalformedPayloadIsSkipped(t *testing.T) {
	clients := newFakeClientRepo()
	p := newProcessor(clients, &fakeActivityRepo{})

	msg := &kafka.IncomingMessage{
		Value: []byte(`{"event_type": "client.created", "client_id": "c1", "data": ["not", "a", "client"]}`),
	}

	// Garbage payloads drop without error so the partition keeps moving.
	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	assert.Empty(t, clients.upserts)
}

func TestProcessMessage_RepoErrorIsRetried(t *testing.T) {
	clients := newFakeClientRepo()
	clients.upsertErr = errors.New("connection refused")
	p := newProcessor(clients, &fakeActivityRepo{})

	msg := &kafka.IncomingMessage{
		Value: []byte(`{"event_type": "client.created", "client_id": "c1", "data": {}}`),
	}

	// Storage failures bubble up so the message is redelivered.
	assert.Error(t, p.ProcessMessage(context.Background(), msg))
}

func TestProcessMessage_MissingClientIDIsSkipped(t *testing.T) {
	clients := newFakeClientRepo()
	p := newProcessor(clients, &fakeActivityRepo{})

	msg := &kafka.IncomingMessage{
		Value: []byte(`{"event_type": "client.created", "data": {}}`),
	}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	assert.Empty(t, clients.upserts)
}

func TestProcessMessage_UnknownEventTypeIsSkipped(t *testing.T) {
	clients := newFakeClientRepo()
	activities := &fakeActivityRepo{}
	p := newProcessor(clients, activities)

	msg := &kafka.IncomingMessage{
		Value: []byte(`{"event_type": "client.archived", "client_id": "c1"}`),
	}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	assert.Empty(t, clients.upserts)
	assert.Empty(t, clients.deleted)
	assert.Empty(t, activities.inserts)
}

func TestProcessMessage_UnparseableMessageErrors(t *testing.T) {
	p := newProcessor(newFakeClientRepo(), &fakeActivityRepo{})

	msg := &kafka.IncomingMessage{Value: []byte(`{`)}
	assert.Error(t, p.ProcessMessage(context.Background(), msg))
}

func TestProcessMessage_ClientDeleted(t *testing.T) {
	clients := newFakeClientRepo()
	activities := &fakeActivityRepo{}
	p := newProcessor(clients, activities)

	msg := &kafka.IncomingMessage{
		Value: []byte(`{"event_type": "client.deleted", "client_id": "c1"}`),
	}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	// History goes first, then the client, inside one transaction.
	assert.Equal(t, []string{"c1"}, activities.removedClients)
	assert.Equal(t, []string{"c1"}, clients.deleted)
	assert.True(t, clients.db.tx.committed)
}

func TestProcessMessage_ClientDeletedAlreadyGone(t *testing.T) {
	clients := newFakeClientRepo()
	clients.deleteErr = httperror.NewHTTPError(http.StatusNotFound, "client c1 not found")
	p := newProcessor(clients, &fakeActivityRepo{})

	msg := &kafka.IncomingMessage{
		Value: []byte(`{"event_type": "client.deleted", "client_id": "c1"}`),
	}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	assert.False(t, clients.db.tx.committed)
	assert.True(t, clients.db.tx.rolledBack)
}

func TestProcessMessage_ActivityLogged(t *testing.T) {
	activities := &fakeActivityRepo{}
	p := newProcessor(newFakeClientRepo(), activities)

	msg := &kafka.IncomingMessage{
		Value: []byte(`{
			"event_type": "activity.logged",
			"client_id": "c1",
			"activity_id": "act-1",
			"data": {"author": "jdoe", "notes": "met at the park"}
		}`),
	}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	require.Len(t, activities.inserts, 1)

	assert.Equal(t, "act-1", activities.inserts[0].ID)
	assert.Equal(t, "c1", activities.inserts[0].ClientID)
	assert.Equal(t, "jdoe", activities.inserts[0].Author)
}

func TestProcessMessage_ActivityInsertFailureIsRetried(t *testing.T) {
	activities := &fakeActivityRepo{insertErr: errors.New("fk violation")}
	p := newProcessor(newFakeClientRepo(), activities)

	msg := &kafka.IncomingMessage{
		Value: []byte(`{"event_type": "activity.logged", "client_id": "c1", "data": {"author": "jdoe"}}`),
	}

	assert.Error(t, p.ProcessMessage(context.Background(), msg))
}
