package store

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreOptions selects the project and credentials of a Firestore client.
// When neither CredentialsJSON nor CredentialsFile is set the client falls
// back to application default credentials (or FIRESTORE_EMULATOR_HOST).
type FirestoreOptions struct {
	ProjectID       string
	DatabaseID      string
	CredentialsFile string
	CredentialsJSON []byte
}

// FirestoreStore reads collections from Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, opts FirestoreOptions) (*FirestoreStore, error) {
	var clientOpts []option.ClientOption
	switch {
	case len(opts.CredentialsJSON) > 0:
		clientOpts = append(clientOpts, option.WithCredentialsJSON(opts.CredentialsJSON))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	projectID := opts.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	var (
		client *firestore.Client
		err    error
	)
	if opts.DatabaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, opts.DatabaseID, clientOpts...)
	} else {
		client, err = firestore.NewClient(ctx, projectID, clientOpts...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create firestore client")
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Ping lists at most one root collection.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collections(ctx).Next()
	if err == iterator.Done {
		return nil
	}
	return err
}

func (s *FirestoreStore) FetchPage(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ref := s.client.Collection(collection)
	if ref == nil {
		return nil, storeErr("firestore", "fetch page", collection, errInvalidCollection)
	}

	query := ref.Query
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.descending() {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	docs, err := query.Limit(q.Limit).Offset(q.Offset).Documents(ctx).GetAll()
	if err != nil {
		return nil, storeErr("firestore", "fetch page", collection, err)
	}

	result := make([]Snapshot, 0, len(docs))
	for _, doc := range docs {
		result = append(result, Snapshot{ID: doc.Ref.ID, Data: fromFirestoreMap(doc.Data())})
	}
	return result, nil
}

func (s *FirestoreStore) FetchOne(ctx context.Context, collection, id string) (Snapshot, error) {
	ref := s.client.Collection(collection)
	if ref == nil {
		return Snapshot{}, storeErr("firestore", "fetch one", collection, errInvalidCollection)
	}
	docRef := ref.Doc(id)
	if docRef == nil {
		return Snapshot{}, storeErr("firestore", "fetch one", collection, errors.Errorf("invalid document id %q", id))
	}
	doc, err := docRef.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, storeErr("firestore", "fetch one", collection, err)
	}
	if !doc.Exists() {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{ID: doc.Ref.ID, Data: fromFirestoreMap(doc.Data())}, nil
}

func fromFirestoreMap(m map[string]interface{}) Document {
	doc := make(Document, len(m))
	for k, v := range m {
		doc[k] = fromFirestore(v)
	}
	return doc
}

// fromFirestore replaces client library types with the store value types.
func fromFirestore(v any) any {
	switch val := v.(type) {
	case *firestore.DocumentRef:
		if val == nil {
			return nil
		}
		return Reference{Path: relativePath(val.Path)}
	case *latlng.LatLng:
		if val == nil {
			return nil
		}
		return GeoPoint{Latitude: val.GetLatitude(), Longitude: val.GetLongitude()}
	case map[string]interface{}:
		return fromFirestoreMap(val)
	case []interface{}:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromFirestore(item)
		}
		return out
	}
	return v
}

// relativePath strips the "projects/<p>/databases/<d>/documents/" prefix of a
// fully qualified document name.
func relativePath(name string) string {
	const marker = "/documents/"
	if i := strings.Index(name, marker); i >= 0 {
		return name[i+len(marker):]
	}
	return strings.Trim(name, "/")
}
