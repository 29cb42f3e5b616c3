package notify

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const notificationsCollection = "notifications"

// FirestoreBackend stores notifications as documents in the
// "notifications" collection, one document per notification.
type FirestoreBackend struct {
	client *firestore.Client
}

// NewFirestoreBackend creates a Firestore-backed notification store.
func NewFirestoreBackend(client *firestore.Client) *FirestoreBackend {
	if client == nil {
		return nil
	}
	return &FirestoreBackend{client: client}
}

// ListNotifications returns the user's newest notifications, capped at limit.
func (f *FirestoreBackend) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if f == nil || f.client == nil {
		return nil, status.Error(codes.Internal, "firestore client is nil")
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = DefaultRetainLimit
	}

	iter := f.client.Collection(notificationsCollection).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var out []Notification
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to list notifications for user %s: %v", userID, err)
		}

		n, err := notificationFromDoc(doc)
		if err != nil {
			// A malformed document is skipped rather than poisoning the
			// whole snapshot.
			continue
		}
		out = append(out, n)
	}

	return out, nil
}

// MarkRead flips the read flag on each id. Already-read and missing
// documents are treated as success so the call stays idempotent.
func (f *FirestoreBackend) MarkRead(ctx context.Context, userID string, ids []string) error {
	if f == nil || f.client == nil {
		return status.Error(codes.Internal, "firestore client is nil")
	}
	if userID == "" {
		return ErrNotAuthenticated
	}

	coll := f.client.Collection(notificationsCollection)
	for _, id := range ids {
		_, err := coll.Doc(id).Update(ctx, []firestore.Update{
			{Path: "is_read", Value: true},
		})
		if err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return status.Errorf(codes.Internal, "failed to mark notification %s read: %v", id, err)
		}
	}

	return nil
}

// Delete removes a notification after verifying it belongs to the user.
func (f *FirestoreBackend) Delete(ctx context.Context, userID string, id string) error {
	if f == nil || f.client == nil {
		return status.Error(codes.Internal, "firestore client is nil")
	}
	if userID == "" {
		return ErrNotAuthenticated
	}

	docRef := f.client.Collection(notificationsCollection).Doc(id)
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return status.Errorf(codes.Internal, "failed to fetch notification %s: %v", id, err)
	}

	n, err := notificationFromDoc(doc)
	if err != nil || n.UserID != userID {
		return ErrNotFound
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return status.Errorf(codes.Internal, "failed to delete notification %s: %v", id, err)
	}

	return nil
}

// Create persists a notification. An empty ID gets a generated document id;
// re-creating an existing id is treated as success.
func (f *FirestoreBackend) Create(ctx context.Context, n *Notification) error {
	if f == nil || f.client == nil {
		return status.Error(codes.Internal, "firestore client is nil")
	}
	if n == nil || n.UserID == "" {
		return status.Error(codes.InvalidArgument, "notification and userID must be non-empty")
	}

	coll := f.client.Collection(notificationsCollection)

	var docRef *firestore.DocumentRef
	if n.ID == "" {
		docRef = coll.NewDoc()
		n.ID = docRef.ID
	} else {
		docRef = coll.Doc(n.ID)
	}

	// Create (not Set) keeps retried writes idempotent.
	if _, err := docRef.Create(ctx, n); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return status.Errorf(codes.Internal, "failed to create notification user=%s id=%s: %v", n.UserID, n.ID, err)
	}

	return nil
}

// notificationFromDoc decodes a Firestore document into a Notification,
// enforcing the closed type enum.
func notificationFromDoc(doc *firestore.DocumentSnapshot) (Notification, error) {
	var n Notification
	if err := doc.DataTo(&n); err != nil {
		return Notification{}, status.Errorf(codes.Internal, "failed to parse notification %s: %v", doc.Ref.ID, err)
	}
	n.ID = doc.Ref.ID

	if _, err := ParseNotificationType(string(n.Type)); err != nil {
		return Notification{}, err
	}
	return n, nil
}
