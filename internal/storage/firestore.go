package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/tphummel/fit-drive/internal/crypto"
	"github.com/tphummel/fit-drive/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage keeps one document per user in collection, with the
// provider authorizations embedded as a map. Access and refresh tokens are
// encrypted before they are written.
type FirestoreStorage struct {
	client           *firestore.Client
	projectID        string
	collection       string
	ledgerCollection string
	encryptor        crypto.Encryptor
	now              func() time.Time
}

var _ Storage = (*FirestoreStorage)(nil)

// UserDoc represents a user document in Firestore
type UserDoc struct {
	Email          string                      `firestore:"email"`
	CreatedAt      time.Time                   `firestore:"created_at"`
	Authorizations map[string]AuthorizationDoc `firestore:"authorizations"`
}

// AuthorizationDoc is the stored form of an AuthorizationRecord. Token fields
// hold ciphertext.
type AuthorizationDoc struct {
	Provider       string    `firestore:"provider"`
	AccessToken    string    `firestore:"access_token"`
	RefreshToken   string    `firestore:"refresh_token,omitempty"`
	Scope          string    `firestore:"scope,omitempty"`
	TokenType      string    `firestore:"token_type,omitempty"`
	ExternalUserID string    `firestore:"external_user_id,omitempty"`
	ExpiresAt      time.Time `firestore:"expires_at,omitempty"`
	UpdatedAt      time.Time `firestore:"updated_at"`
}

type usedLoginTokenDoc struct {
	ExpiresAt time.Time `firestore:"expires_at"`
}

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreStorage, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Firestore storage ready", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStorage{
		client:           client,
		projectID:        projectID,
		collection:       collection,
		ledgerCollection: collection + "_used_login_tokens",
		encryptor:        encryptor,
		now:              time.Now,
	}, nil
}

// Document IDs may not contain '/'.
func userDocID(email string) string {
	return url.PathEscape(email)
}

func (s *FirestoreStorage) userRef(email string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(userDocID(email))
}

func (s *FirestoreStorage) encryptRecord(rec AuthorizationRecord) (AuthorizationDoc, error) {
	access, err := s.encryptor.Encrypt(rec.AccessToken)
	if err != nil {
		return AuthorizationDoc{}, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	doc := AuthorizationDoc{
		Provider:       rec.Provider,
		AccessToken:    access,
		Scope:          rec.Scope,
		TokenType:      rec.TokenType,
		ExternalUserID: rec.ExternalUserID,
		ExpiresAt:      rec.ExpiresAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if rec.RefreshToken != "" {
		refresh, err := s.encryptor.Encrypt(rec.RefreshToken)
		if err != nil {
			return AuthorizationDoc{}, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		doc.RefreshToken = refresh
	}
	return doc, nil
}

func (s *FirestoreStorage) decryptDoc(email string, doc AuthorizationDoc) (AuthorizationRecord, error) {
	access, err := s.encryptor.Decrypt(doc.AccessToken)
	if err != nil {
		return AuthorizationRecord{}, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	rec := AuthorizationRecord{
		Provider:       doc.Provider,
		OwnerEmail:     email,
		AccessToken:    access,
		Scope:          doc.Scope,
		TokenType:      doc.TokenType,
		ExternalUserID: doc.ExternalUserID,
		ExpiresAt:      doc.ExpiresAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if doc.RefreshToken != "" {
		refresh, err := s.encryptor.Decrypt(doc.RefreshToken)
		if err != nil {
			return AuthorizationRecord{}, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		rec.RefreshToken = refresh
	}
	return rec, nil
}

func (s *FirestoreStorage) toUser(snap *firestore.DocumentSnapshot) (*User, error) {
	var doc UserDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	u := &User{
		Email:          doc.Email,
		CreatedAt:      doc.CreatedAt,
		Authorizations: make(map[string]AuthorizationRecord, len(doc.Authorizations)),
	}
	for name, authDoc := range doc.Authorizations {
		rec, err := s.decryptDoc(doc.Email, authDoc)
		if err != nil {
			return nil, err
		}
		u.Authorizations[name] = rec
	}
	return u, nil
}

func (s *FirestoreStorage) FindUser(ctx context.Context, email string) (*User, error) {
	snap, err := s.userRef(email).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUserNotFound
		}
		return nil, unavailable("get user from Firestore", err)
	}
	u, err := s.toUser(snap)
	if err != nil {
		return nil, unavailable("decode user", err)
	}
	return u, nil
}

func (s *FirestoreStorage) CreateUser(ctx context.Context, email string) (*User, error) {
	doc := UserDoc{
		Email:          email,
		CreatedAt:      s.now(),
		Authorizations: map[string]AuthorizationDoc{},
	}
	_, err := s.userRef(email).Create(ctx, doc)
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return nil, unavailable("create user in Firestore", err)
	}
	return s.FindUser(ctx, email)
}

func (s *FirestoreStorage) DeleteUser(ctx context.Context, email string) error {
	_, err := s.userRef(email).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrUserNotFound
		}
		return unavailable("delete user from Firestore", err)
	}
	return nil
}

func (s *FirestoreStorage) SaveAuthorization(ctx context.Context, rec AuthorizationRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	doc, err := s.encryptRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.userRef(rec.OwnerEmail).Update(ctx, []firestore.Update{{
		FieldPath: firestore.FieldPath{"authorizations", rec.Provider},
		Value:     doc,
	}})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrUserNotFound
		}
		return unavailable("save authorization to Firestore", err)
	}
	return nil
}

func (s *FirestoreStorage) ConsumeLoginToken(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	_, err := s.client.Collection(s.ledgerCollection).Doc(id).Create(ctx, usedLoginTokenDoc{ExpiresAt: expiresAt})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, unavailable("record login token", err)
	}
	return true, nil
}

func (s *FirestoreStorage) CleanupExpiredLoginTokens(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.ledgerCollection).Where("expires_at", "<", s.now()).Documents(ctx)
	defer iter.Stop()

	removed := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return removed, unavailable("iterate login tokens", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			log.LogErrorWithFields("storage", "Failed to delete expired login token id", map[string]any{
				"error": err.Error(),
			})
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
