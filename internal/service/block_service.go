package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"resumekit/internal/blocktype"
	"resumekit/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Block Service — lifecycle of block instances
// ─────────────────────────────────────────────────────────────

// BlockService creates, edits and deletes block instances. Edits are gated
// twice: by the type's validator, and by the shared-block decision point when
// the block is linked from more than one document.
type BlockService struct {
	registry     *blocktype.Registry
	gateway      domain.PersistenceGateway
	compositions *CompositionService
	decider      ShareDecider
	emitter      EventEmitter
	log          zerolog.Logger
}

// NewBlockService creates a BlockService. A nil decider defaults to Cancel,
// the only safe answer when nobody is there to choose.
func NewBlockService(
	registry *blocktype.Registry,
	gateway domain.PersistenceGateway,
	compositions *CompositionService,
	decider ShareDecider,
	emitter EventEmitter,
	log zerolog.Logger,
) *BlockService {
	if decider == nil {
		decider = StaticDecider(DecisionCancel)
	}
	return &BlockService{
		registry:     registry,
		gateway:      gateway,
		compositions: compositions,
		decider:      decider,
		emitter:      emitter,
		log:          log,
	}
}

// CreateBlock creates a new block instance from the type's default payload,
// with an optional user-supplied name folded in.
func (s *BlockService) CreateBlock(ctx context.Context, ownerUserID string, t domain.BlockType, name string) (*domain.BlockInstance, error) {
	desc, ok := s.registry.Get(t)
	if !ok {
		return nil, fmt.Errorf("block type %q is not registered: %w", t, domain.ErrNotFound)
	}

	payload := desc.NewDefault()
	if name != "" {
		payload["name"] = name
	}

	b := &domain.BlockInstance{
		ID:          uuid.New().String(),
		Type:        t,
		Payload:     payload,
		OwnerUserID: ownerUserID,
	}
	if err := s.gateway.CreateBlockInstance(ctx, b); err != nil {
		return nil, fmt.Errorf("create block: %w", gatewayErr(err))
	}

	s.emitter.Emit(ctx, EventBlockCreated, b)
	return b, nil
}

// GetBlock returns a block instance by ID.
func (s *BlockService) GetBlock(ctx context.Context, id string) (*domain.BlockInstance, error) {
	b, err := s.gateway.GetBlockInstance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get block: %w", gatewayErr(err))
	}
	return b, nil
}

// UpdateBlock replaces a block's payload after validation. documentID names
// the document the caller is editing from; it matters when the block is
// shared and the decision is Duplicate, because only that document gets the
// duplicate. Returns the edited instance, either the original or the duplicate.
func (s *BlockService) UpdateBlock(ctx context.Context, userID, documentID, blockID string, payload domain.Payload) (*domain.BlockInstance, error) {
	return s.UpdateBlockWithDecider(ctx, userID, documentID, blockID, payload, s.decider)
}

// UpdateBlockWithDecider is UpdateBlock with a per-call shared-block
// decider, for surfaces that collect the decision alongside the edit.
func (s *BlockService) UpdateBlockWithDecider(ctx context.Context, userID, documentID, blockID string, payload domain.Payload, decider ShareDecider) (*domain.BlockInstance, error) {
	if decider == nil {
		decider = s.decider
	}
	b, err := s.gateway.GetBlockInstance(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("get block: %w", gatewayErr(err))
	}
	if b.OwnerUserID != userID {
		return nil, fmt.Errorf("block %s is not owned by %s: %w", blockID, userID, domain.ErrUnauthorized)
	}

	desc, ok := s.registry.Get(b.Type)
	if !ok {
		return nil, fmt.Errorf("block type %q is not registered: %w", b.Type, domain.ErrNotFound)
	}
	if res := desc.Validate(payload); !res.Valid {
		return nil, domain.NewValidationError(b.Type, res)
	}

	refCount, err := s.gateway.CountDocumentsReferencing(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("count references: %w", gatewayErr(err))
	}

	if refCount > 1 {
		decision, err := decider.Decide(ctx, blockID, refCount)
		if err != nil {
			return nil, fmt.Errorf("shared-block decision: %w", err)
		}
		switch decision {
		case DecisionCancel:
			return nil, fmt.Errorf("block %s is shared by %d documents: %w", blockID, refCount, domain.ErrEditCancelled)
		case DecisionDuplicate:
			return s.duplicateAndEdit(ctx, documentID, b, payload)
		case DecisionModify:
			// fall through: edit affects every referencing document
		default:
			return nil, fmt.Errorf("unknown share decision %d: %w", decision, domain.ErrInvalidArgument)
		}
	}

	b.Payload = payload
	if err := s.gateway.UpdateBlockInstance(ctx, b); err != nil {
		return nil, fmt.Errorf("update block: %w", gatewayErr(err))
	}

	s.emitter.Emit(ctx, EventBlockUpdated, b)
	return b, nil
}

// DeleteBlock removes a block instance. A block still linked from any
// document cannot be deleted.
func (s *BlockService) DeleteBlock(ctx context.Context, blockID string) error {
	refCount, err := s.gateway.CountDocumentsReferencing(ctx, blockID)
	if err != nil {
		return fmt.Errorf("count references: %w", gatewayErr(err))
	}
	if refCount > 0 {
		return fmt.Errorf("block %s is still referenced by %d document(s): %w", blockID, refCount, domain.ErrConflict)
	}
	if err := s.gateway.DeleteBlockInstance(ctx, blockID); err != nil {
		return fmt.Errorf("delete block: %w", gatewayErr(err))
	}

	s.emitter.Emit(ctx, EventBlockDeleted, blockID)
	return nil
}

// duplicateAndEdit clones the block with the new payload, relinks the clone
// in place of the original for documentID only, and leaves the original (and
// every other document) untouched.
func (s *BlockService) duplicateAndEdit(ctx context.Context, documentID string, original *domain.BlockInstance, payload domain.Payload) (*domain.BlockInstance, error) {
	dup := &domain.BlockInstance{
		ID:          uuid.New().String(),
		Type:        original.Type,
		Payload:     payload,
		OwnerUserID: original.OwnerUserID,
	}
	if err := s.gateway.CreateBlockInstance(ctx, dup); err != nil {
		return nil, fmt.Errorf("duplicate block: %w", gatewayErr(err))
	}
	if err := s.compositions.ReplaceBlock(ctx, documentID, original.ID, dup.ID); err != nil {
		return nil, fmt.Errorf("relink duplicate: %w", err)
	}

	s.log.Debug().Str("original", original.ID).Str("duplicate", dup.ID).Str("document", documentID).Msg("shared block duplicated for edit")
	s.emitter.Emit(ctx, EventBlockCreated, dup)
	return dup, nil
}
