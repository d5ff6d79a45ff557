package mcpserver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"resumekit/internal/domain"
)

func (s *Server) registerCompositionTools() {
	// ── add_block_to_document ──────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_block_to_document",
		mcp.WithDescription("Link a block into a document's composition. Appends unless a position is given."),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Block type of the linked block"), mcp.Required()),
		mcp.WithNumber("at", mcp.Description("Insert position in [0, n] (optional, appends if omitted)")),
	), s.handleAddBlock)

	// ── remove_block_from_document ─────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_block_from_document",
		mcp.WithDescription("Unlink a block from a document and close the gap. The block instance itself survives."),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
	), s.handleRemoveBlock)

	// ── move_block ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Move a block to a new position within its document"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithNumber("to", mcp.Description("Target position in [0, n-1]"), mcp.Required()),
	), s.handleMoveBlock)

	// ── list_document_blocks ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_document_blocks",
		mcp.WithDescription("List a document's blocks in composition order"),
		mcp.WithString("documentId", mcp.Description("Document ID"), mcp.Required()),
	), s.handleListDocumentBlocks)
}

func (s *Server) registerDocumentTools() {
	// ── create_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create an empty resume document"),
		mcp.WithString("ownerUserId", mcp.Description("Owner of the document"), mcp.Required()),
		mcp.WithString("title", mcp.Description("Document title"), mcp.Required()),
	), s.handleCreateDocument)

	// ── list_documents ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List a user's resume documents"),
		mcp.WithString("ownerUserId", mcp.Description("Owner user ID"), mcp.Required()),
	), s.handleListDocuments)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleAddBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	documentID, err := reqString(args, "documentId")
	if err != nil {
		return nil, err
	}
	blockID, err := reqString(args, "blockId")
	if err != nil {
		return nil, err
	}
	blockType, err := reqString(args, "type")
	if err != nil {
		return nil, err
	}

	var at *int
	if v, ok := args["at"].(float64); ok {
		pos := int(v)
		at = &pos
	}

	links, err := s.compositions.Add(ctx, documentID, blockID, domain.BlockType(blockType), at)
	if err != nil {
		return nil, fmt.Errorf("add block: %w", err)
	}
	return jsonResult(links)
}

func (s *Server) handleRemoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	documentID, err := reqString(args, "documentId")
	if err != nil {
		return nil, err
	}
	blockID, err := reqString(args, "blockId")
	if err != nil {
		return nil, err
	}

	links, err := s.compositions.Remove(ctx, documentID, blockID)
	if err != nil {
		return nil, fmt.Errorf("remove block: %w", err)
	}
	return jsonResult(links)
}

func (s *Server) handleMoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	documentID, err := reqString(args, "documentId")
	if err != nil {
		return nil, err
	}
	blockID, err := reqString(args, "blockId")
	if err != nil {
		return nil, err
	}
	to, ok := args["to"].(float64)
	if !ok {
		return nil, fmt.Errorf("to is required")
	}

	links, err := s.compositions.Move(ctx, documentID, blockID, int(to))
	if err != nil {
		return nil, fmt.Errorf("move block: %w", err)
	}
	return jsonResult(links)
}

func (s *Server) handleListDocumentBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := reqString(req.GetArguments(), "documentId")
	if err != nil {
		return nil, err
	}
	comp, err := s.compositions.List(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return jsonResult(comp)
}

func (s *Server) handleCreateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	owner, err := reqString(args, "ownerUserId")
	if err != nil {
		return nil, err
	}
	title, err := reqString(args, "title")
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:          uuid.New().String(),
		OwnerUserID: owner,
		Title:       title,
	}
	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return jsonResult(doc)
}

func (s *Server) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := reqString(req.GetArguments(), "ownerUserId")
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListDocuments(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return jsonResult(docs)
}
