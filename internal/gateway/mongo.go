package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"resumekit/internal/domain"
)

// mongoGateway implements the persistence gateway on MongoDB. Range shifts
// run as $inc updateMany inside a session transaction, which needs a replica
// set (Atlas qualifies).
type mongoGateway struct {
	client *mongo.Client
	dbName string
}

type blockInstanceDoc struct {
	ID          string    `bson:"_id"`
	Type        string    `bson:"type"`
	Payload     bson.M    `bson:"payload"`
	OwnerUserID string    `bson:"owner_user_id"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type blockLinkDoc struct {
	DocumentID string `bson:"document_id"`
	BlockID    string `bson:"block_id"`
	Type       string `bson:"type"`
	Position   int    `bson:"position"`
}

func newMongoGateway(cfg *Config, password string) (*mongoGateway, error) {
	port := cfg.Port
	if port == 0 {
		port = 27017
	}
	var uri string
	if cfg.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.Username, password, cfg.Host, port)
	} else {
		uri = fmt.Sprintf("mongodb://%s:%d", cfg.Host, port)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	return &mongoGateway{client: client, dbName: cfg.Database}, nil
}

func (g *mongoGateway) instances() *mongo.Collection {
	return g.client.Database(g.dbName).Collection("block_instances")
}

func (g *mongoGateway) links() *mongo.Collection {
	return g.client.Database(g.dbName).Collection("document_blocks")
}

func (g *mongoGateway) CreateBlockInstance(ctx context.Context, b *domain.BlockInstance) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	doc := blockInstanceDoc{
		ID:          b.ID,
		Type:        string(b.Type),
		Payload:     bson.M(b.Payload),
		OwnerUserID: b.OwnerUserID,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if _, err := g.instances().InsertOne(ctx, doc); err != nil {
		return remoteErr("create block instance", err)
	}
	return nil
}

func (g *mongoGateway) GetBlockInstance(ctx context.Context, id string) (*domain.BlockInstance, error) {
	var doc blockInstanceDoc
	err := g.instances().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("block instance %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, remoteErr("get block instance", err)
	}
	return &domain.BlockInstance{
		ID:          doc.ID,
		Type:        domain.BlockType(doc.Type),
		Payload:     domain.Payload(doc.Payload),
		OwnerUserID: doc.OwnerUserID,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func (g *mongoGateway) UpdateBlockInstance(ctx context.Context, b *domain.BlockInstance) error {
	b.UpdatedAt = time.Now().UTC()
	res, err := g.instances().UpdateOne(ctx,
		bson.M{"_id": b.ID},
		bson.M{"$set": bson.M{"payload": bson.M(b.Payload), "updated_at": b.UpdatedAt}},
	)
	if err != nil {
		return remoteErr("update block instance", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("block instance %s: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

func (g *mongoGateway) DeleteBlockInstance(ctx context.Context, id string) error {
	_, err := g.withTx(ctx, func(ctx context.Context) (any, error) {
		refs, err := g.links().CountDocuments(ctx, bson.M{"block_id": id})
		if err != nil {
			return nil, remoteErr("count references", err)
		}
		if refs > 0 {
			return nil, fmt.Errorf("block instance %s referenced by %d document(s): %w", id, refs, domain.ErrConflict)
		}
		res, err := g.instances().DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, remoteErr("delete block instance", err)
		}
		if res.DeletedCount == 0 {
			return nil, fmt.Errorf("block instance %s: %w", id, domain.ErrNotFound)
		}
		return nil, nil
	})
	return err
}

func (g *mongoGateway) LinkBlockToDocument(ctx context.Context, documentID, blockID string, position int) error {
	_, err := g.withTx(ctx, func(ctx context.Context) (any, error) {
		return nil, g.upsertLink(ctx, documentID, blockID, position)
	})
	return err
}

// upsertLink must run inside a session transaction. Re-linking updates the
// position; the denormalized type field keeps ListLinks a single query.
func (g *mongoGateway) upsertLink(ctx context.Context, documentID, blockID string, position int) error {
	var inst blockInstanceDoc
	err := g.instances().FindOne(ctx, bson.M{"_id": blockID}).Decode(&inst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("block instance %s: %w", blockID, domain.ErrNotFound)
	}
	if err != nil {
		return remoteErr("find block instance", err)
	}

	_, err = g.links().UpdateOne(ctx,
		bson.M{"document_id": documentID, "block_id": blockID},
		bson.M{"$set": bson.M{"position": position, "type": inst.Type}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return remoteErr("link block", err)
	}
	return nil
}

// InsertBlockAt opens a slot with an $inc updateMany and upserts the new
// link into it, both inside one session transaction.
func (g *mongoGateway) InsertBlockAt(ctx context.Context, documentID, blockID string, position int) error {
	_, err := g.withTx(ctx, func(ctx context.Context) (any, error) {
		if _, err := g.links().UpdateMany(ctx,
			bson.M{"document_id": documentID, "position": bson.M{"$gte": position}},
			bson.M{"$inc": bson.M{"position": 1}},
		); err != nil {
			return nil, remoteErr("open slot", err)
		}
		return nil, g.upsertLink(ctx, documentID, blockID, position)
	})
	return err
}

// RelinkBlock points an existing link at a different block in place. Single
// updateOne, so the link's position and every other link stay untouched.
func (g *mongoGateway) RelinkBlock(ctx context.Context, documentID, oldBlockID, newBlockID string) error {
	var inst blockInstanceDoc
	err := g.instances().FindOne(ctx, bson.M{"_id": newBlockID}).Decode(&inst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("block instance %s: %w", newBlockID, domain.ErrNotFound)
	}
	if err != nil {
		return remoteErr("find block instance", err)
	}

	res, err := g.links().UpdateOne(ctx,
		bson.M{"document_id": documentID, "block_id": oldBlockID},
		bson.M{"$set": bson.M{"block_id": newBlockID, "type": inst.Type}},
	)
	if err != nil {
		return remoteErr("relink block", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("link %s/%s: %w", documentID, oldBlockID, domain.ErrNotFound)
	}
	return nil
}

func (g *mongoGateway) UnlinkBlockFromDocument(ctx context.Context, documentID, blockID string) error {
	_, err := g.withTx(ctx, func(ctx context.Context) (any, error) {
		var link blockLinkDoc
		err := g.links().FindOne(ctx, bson.M{"document_id": documentID, "block_id": blockID}).Decode(&link)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
		}
		if err != nil {
			return nil, remoteErr("find link", err)
		}
		if _, err := g.links().DeleteOne(ctx, bson.M{"document_id": documentID, "block_id": blockID}); err != nil {
			return nil, remoteErr("delete link", err)
		}
		if _, err := g.links().UpdateMany(ctx,
			bson.M{"document_id": documentID, "position": bson.M{"$gt": link.Position}},
			bson.M{"$inc": bson.M{"position": -1}},
		); err != nil {
			return nil, remoteErr("close gap", err)
		}
		return nil, nil
	})
	return err
}

func (g *mongoGateway) Reorder(ctx context.Context, documentID, blockID string, from, to int) error {
	if from == to {
		return nil
	}
	_, err := g.withTx(ctx, func(ctx context.Context) (any, error) {
		var filter, update bson.M
		if from < to {
			filter = bson.M{"document_id": documentID, "block_id": bson.M{"$ne": blockID},
				"position": bson.M{"$gt": from, "$lte": to}}
			update = bson.M{"$inc": bson.M{"position": -1}}
		} else {
			filter = bson.M{"document_id": documentID, "block_id": bson.M{"$ne": blockID},
				"position": bson.M{"$gte": to, "$lt": from}}
			update = bson.M{"$inc": bson.M{"position": 1}}
		}
		if _, err := g.links().UpdateMany(ctx, filter, update); err != nil {
			return nil, remoteErr("shift range", err)
		}
		res, err := g.links().UpdateOne(ctx,
			bson.M{"document_id": documentID, "block_id": blockID},
			bson.M{"$set": bson.M{"position": to}},
		)
		if err != nil {
			return nil, remoteErr("place moved block", err)
		}
		if res.MatchedCount == 0 {
			return nil, fmt.Errorf("link %s/%s: %w", documentID, blockID, domain.ErrNotFound)
		}
		return nil, nil
	})
	return err
}

func (g *mongoGateway) ListLinks(ctx context.Context, documentID string) ([]domain.BlockLink, error) {
	cursor, err := g.links().Find(ctx,
		bson.M{"document_id": documentID},
		options.Find().SetSort(bson.M{"position": 1}),
	)
	if err != nil {
		return nil, remoteErr("list links", err)
	}
	var docs []blockLinkDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, remoteErr("decode links", err)
	}
	links := make([]domain.BlockLink, len(docs))
	for i, d := range docs {
		links[i] = domain.BlockLink{
			DocumentID: d.DocumentID,
			BlockID:    d.BlockID,
			Type:       domain.BlockType(d.Type),
			Position:   d.Position,
		}
	}
	return links, nil
}

func (g *mongoGateway) CountDocumentsReferencing(ctx context.Context, blockID string) (int, error) {
	count, err := g.links().CountDocuments(ctx, bson.M{"block_id": blockID})
	if err != nil {
		return 0, remoteErr("count references", err)
	}
	return int(count), nil
}

// withTx runs fn inside a session transaction. Cross-document position
// shifts must not be observable half-applied.
func (g *mongoGateway) withTx(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	sess, err := g.client.StartSession()
	if err != nil {
		return nil, remoteErr("start session", err)
	}
	defer sess.EndSession(ctx)
	return sess.WithTransaction(ctx, fn)
}
