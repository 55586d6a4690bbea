package mongo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/facegate/facegate/internal/core/domain"
)

const accountsCollection = "accounts"

type MongoAccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{coll: db.Collection(accountsCollection)}
}

type mongoAccount struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Email           string             `bson:"email"`
	PasswordHash    string             `bson:"password_hash"`
	FaceTemplate    []byte             `bson:"face_template,omitempty"`
	TemplateVersion int                `bson:"template_version,omitempty"`
	CreatedAt       int64              `bson:"created_at"`
	UpdatedAt       int64              `bson:"updated_at"`
}

// templateProjection keeps full scans from pulling password hashes.
var templateProjection = bson.M{"email": 1, "face_template": 1, "template_version": 1}

func (r *MongoAccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	doc := toMongoAccount(account)
	doc.ID = primitive.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return fromMongoAccount(doc), nil
}

func (r *MongoAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var doc mongoAccount
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return fromMongoAccount(doc), nil
}

func (r *MongoAccountRepository) Delete(ctx context.Context, email string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"email": email})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// SetTemplate overwrites the stored template in a single update, so
// concurrent writers resolve to whichever lands last.
func (r *MongoAccountRepository) SetTemplate(ctx context.Context, email string, blob []byte, version int) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, templateUpdate(blob, version, time.Now()))
	if err != nil {
		return fmt.Errorf("set template: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// ScanTemplates streams every account that carries a template. Nothing is
// cached between calls; each iteration opens a fresh cursor.
func (r *MongoAccountRepository) ScanTemplates(ctx context.Context) iter.Seq2[domain.StoredTemplate, error] {
	return func(yield func(domain.StoredTemplate, error) bool) {
		opts := options.Find().SetProjection(templateProjection)
		cur, err := r.coll.Find(ctx, templateFilter(), opts)
		if err != nil {
			yield(domain.StoredTemplate{}, fmt.Errorf("scan templates: %w", err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			if !yield(storedFromRaw(cur.Current), nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(domain.StoredTemplate{}, fmt.Errorf("scan templates: %w", err))
		}
	}
}

func templateFilter() bson.M {
	return bson.M{"face_template": bson.M{"$exists": true}}
}

func templateUpdate(blob []byte, version int, now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"face_template":    blob,
		"template_version": version,
		"updated_at":       now.Unix(),
	}}
}

func toMongoAccount(a *domain.Account) mongoAccount {
	doc := mongoAccount{
		Email:           a.Email,
		PasswordHash:    a.PasswordHash,
		FaceTemplate:    a.FaceTemplate,
		TemplateVersion: a.TemplateVersion,
		CreatedAt:       a.CreatedAt.Unix(),
		UpdatedAt:       a.UpdatedAt.Unix(),
	}
	if id, err := primitive.ObjectIDFromHex(a.ID); err == nil {
		doc.ID = id
	}
	return doc
}

func fromMongoAccount(doc mongoAccount) *domain.Account {
	return &domain.Account{
		ID:              doc.ID.Hex(),
		Email:           doc.Email,
		PasswordHash:    doc.PasswordHash,
		FaceTemplate:    doc.FaceTemplate,
		TemplateVersion: doc.TemplateVersion,
		CreatedAt:       unixToTime(doc.CreatedAt),
		UpdatedAt:       unixToTime(doc.UpdatedAt),
	}
}

func toStoredTemplate(doc mongoAccount) domain.StoredTemplate {
	return domain.StoredTemplate{
		Email:   doc.Email,
		Blob:    doc.FaceTemplate,
		Version: doc.TemplateVersion,
	}
}

// storedFromRaw decodes one scanned document. A document that does not fit
// the account schema comes back with Err set so the caller can skip it and
// keep scanning.
func storedFromRaw(raw bson.Raw) domain.StoredTemplate {
	var doc mongoAccount
	if err := bson.Unmarshal(raw, &doc); err != nil {
		email, _ := raw.Lookup("email").StringValueOK()
		return domain.StoredTemplate{Email: email, Err: fmt.Errorf("decode template: %w", err)}
	}
	return toStoredTemplate(doc)
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
