package kv

import (
	"context"
	"encoding/base64"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

// DefaultCollection is the Firestore collection holding memory items.
const DefaultCollection = "memory_items"

// Firestore implements Store on a single Firestore collection. Document IDs are
// derived from (PK, SK) so Create gives the conditional-put guarantee.
type Firestore struct {
	client     *firestore.Client
	collection string
}

var _ Store = (*Firestore)(nil)

type firestoreItem struct {
	PK        string `firestore:"pk"`
	SK        string `firestore:"sk"`
	ScopeKey  string `firestore:"scope_key"`
	TypeKey   string `firestore:"type_key"`
	IDKey     string `firestore:"id_key"`
	Data      []byte `firestore:"data"`
	ExpiresAt int64  `firestore:"expires_at"`
}

// FirestoreOption configures NewFirestore.
type FirestoreOption func(*Firestore)

// WithCollection overrides DefaultCollection.
func WithCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		f.collection = name
	}
}

// NewFirestore connects to the given project and database.
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.Wrap(model.ErrValidation, "firestore project is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, model.Unavailable(err, "create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	f := &Firestore{client: client, collection: DefaultCollection}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Firestore) doc(key Key) *firestore.DocumentRef {
	id := base64.RawURLEncoding.EncodeToString([]byte(key.PK + "\x00" + key.SK))
	return f.client.Collection(f.collection).Doc(id)
}

func toFirestore(it Item) firestoreItem {
	return firestoreItem{
		PK: it.PK, SK: it.SK,
		ScopeKey: it.ScopeKey, TypeKey: it.TypeKey, IDKey: it.IDKey,
		Data: it.Data, ExpiresAt: it.ExpiresAt,
	}
}

func fromFirestore(d firestoreItem) Item {
	return Item{
		PK: d.PK, SK: d.SK,
		ScopeKey: d.ScopeKey, TypeKey: d.TypeKey, IDKey: d.IDKey,
		Data: d.Data, ExpiresAt: d.ExpiresAt,
	}
}

func firestoreField(i Index) string {
	switch i {
	case IndexScope:
		return "scope_key"
	case IndexType:
		return "type_key"
	case IndexID:
		return "id_key"
	}
	return "pk"
}

func (f *Firestore) ConditionalPut(ctx context.Context, item Item) error {
	_, err := f.doc(item.Key()).Create(ctx, toFirestore(item))
	if status.Code(err) == codes.AlreadyExists {
		return goerr.Wrap(model.ErrConflict, "item exists", goerr.V("pk", item.PK), goerr.V("sk", item.SK))
	}
	if err != nil {
		return model.Unavailable(err, "create document", goerr.V("pk", item.PK))
	}
	return nil
}

func (f *Firestore) Get(ctx context.Context, key Key) (*Item, error) {
	snap, err := f.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(model.ErrNotFound, "item not found", goerr.V("pk", key.PK), goerr.V("sk", key.SK))
	}
	if err != nil {
		return nil, model.Unavailable(err, "get document", goerr.V("pk", key.PK))
	}

	var d firestoreItem
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "decode document", goerr.V("pk", key.PK))
	}
	it := fromFirestore(d)
	return &it, nil
}

func (f *Firestore) Query(ctx context.Context, in QueryInput) (*QueryOutput, error) {
	limit := normalizeLimit(in.Limit)

	q := f.client.Collection(f.collection).Where(firestoreField(in.Index), "==", in.Partition)
	if in.SKPrefix != "" {
		q = q.Where("sk", ">=", in.SKPrefix).Where("sk", "<", prefixEnd(in.SKPrefix))
	}

	dir := firestore.Desc
	if in.ScanForward {
		dir = firestore.Asc
	}
	q = q.OrderBy("sk", dir)

	if in.Cursor != "" {
		after, err := DecodeCursor(in.Cursor)
		if err != nil {
			return nil, err
		}
		q = q.StartAfter(after)
	}

	iter := q.Limit(limit + 1).Documents(ctx)
	defer iter.Stop()

	out := &QueryOutput{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, model.Unavailable(err, "query documents",
				goerr.V("index", in.Index.String()), goerr.V("partition", in.Partition))
		}
		var d firestoreItem
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "decode document", goerr.V("doc", snap.Ref.ID))
		}
		out.Items = append(out.Items, fromFirestore(d))
	}

	if len(out.Items) > limit {
		out.Items = out.Items[:limit]
		out.NextCursor = EncodeCursor(out.Items[limit-1].SK)
	}
	return out, nil
}

func (f *Firestore) Update(ctx context.Context, key Key, fn func(*Item) error) (*Item, error) {
	ref := f.doc(key)
	var result Item

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrNotFound, "item not found", goerr.V("pk", key.PK), goerr.V("sk", key.SK))
		}
		if err != nil {
			return model.Unavailable(err, "get document for update", goerr.V("pk", key.PK))
		}

		var d firestoreItem
		if err := snap.DataTo(&d); err != nil {
			return goerr.Wrap(err, "decode document", goerr.V("pk", key.PK))
		}
		prev := fromFirestore(d)
		next := prev
		if err := fn(&next); err != nil {
			return err
		}
		pin(&next, prev)
		result = next
		return tx.Set(ref, toFirestore(next))
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (f *Firestore) Delete(ctx context.Context, key Key) error {
	if _, err := f.doc(key).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return model.Unavailable(err, "delete document", goerr.V("pk", key.PK))
	}
	return nil
}

func (f *Firestore) ScanExpired(ctx context.Context, now time.Time, limit int) ([]Item, error) {
	iter := f.client.Collection(f.collection).
		Where("expires_at", ">", 0).
		Where("expires_at", "<=", now.Unix()).
		OrderBy("expires_at", firestore.Asc).
		Limit(normalizeLimit(limit)).
		Documents(ctx)
	defer iter.Stop()

	var items []Item
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, model.Unavailable(err, "scan expired documents")
		}
		var d firestoreItem
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "decode document", goerr.V("doc", snap.Ref.ID))
		}
		items = append(items, fromFirestore(d))
	}
	return items, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
