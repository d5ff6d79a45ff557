package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"resumekit/internal/commands"
	"resumekit/internal/domain"
	"resumekit/internal/service"
)

func (s *Server) registerTypeTools() {
	// ── list_block_types ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_block_types",
		mcp.WithDescription("List every registered block type with its category, display name and per-document instance limit."),
	), s.handleListBlockTypes)

	// ── resolve_command ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("resolve_command",
		mcp.WithDescription("Resolve a slash command (e.g. \"/exp\") to a block type, or report no match."),
		mcp.WithString("command", mcp.Description("Slash command, leading / included"), mcp.Required()),
	), s.handleResolveCommand)
}

func (s *Server) registerBlockTools() {
	// ── create_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_block",
		mcp.WithDescription("Create a new block instance from the type's default payload."),
		mcp.WithString("type",
			mcp.Description("Block type: contact, summary, experience, education, skill, project, certification, language, avatar, custom"),
			mcp.Required(),
		),
		mcp.WithString("ownerUserId", mcp.Description("Owner of the new block"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Optional name folded into the payload")),
	), s.handleCreateBlock)

	// ── get_block ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_block",
		mcp.WithDescription("Fetch a block instance with its payload."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
	), s.handleGetBlock)

	// ── update_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block",
		mcp.WithDescription("Replace a block's payload. When the block is shared by several documents, sharedDecision chooses: modify (all documents), duplicate (this document only), cancel."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("userId", mcp.Description("Acting user; must own the block"), mcp.Required()),
		mcp.WithString("documentId", mcp.Description("Document the edit happens from"), mcp.Required()),
		mcp.WithString("payload", mcp.Description("New payload as a JSON object"), mcp.Required()),
		mcp.WithString("sharedDecision", mcp.Description("modify | duplicate | cancel (default cancel)")),
	), s.handleUpdateBlock)

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a block instance. Fails while any document still links it."),
		mcp.WithString("blockId", mcp.Description("Block ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteBlock)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListBlockTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type typeInfo struct {
		Type         domain.BlockType `json:"type"`
		DisplayName  string           `json:"displayName"`
		Category     string           `json:"category"`
		MaxInstances *int             `json:"maxInstances,omitempty"`
	}
	var out []typeInfo
	for _, t := range s.registry.List() {
		d, _ := s.registry.Get(t)
		out = append(out, typeInfo{
			Type:         d.Type,
			DisplayName:  d.DisplayName,
			Category:     string(d.Category),
			MaxInstances: d.MaxInstances,
		})
	}
	return jsonResult(out)
}

func (s *Server) handleResolveCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cmd, err := reqString(req.GetArguments(), "command")
	if err != nil {
		return nil, err
	}
	t, ok := commands.Resolve(cmd)
	if !ok {
		return jsonResult(map[string]any{"match": false})
	}
	return jsonResult(map[string]any{"match": true, "type": t})
}

func (s *Server) handleCreateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockType, err := reqString(args, "type")
	if err != nil {
		return nil, err
	}
	owner, err := reqString(args, "ownerUserId")
	if err != nil {
		return nil, err
	}
	name, _ := args["name"].(string)

	block, err := s.blocks.CreateBlock(ctx, owner, domain.BlockType(blockType), name)
	if err != nil {
		return nil, fmt.Errorf("create block: %w", err)
	}
	return jsonResult(block)
}

func (s *Server) handleGetBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := reqString(req.GetArguments(), "blockId")
	if err != nil {
		return nil, err
	}
	block, err := s.blocks.GetBlock(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	return jsonResult(block)
}

func (s *Server) handleUpdateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockID, err := reqString(args, "blockId")
	if err != nil {
		return nil, err
	}
	userID, err := reqString(args, "userId")
	if err != nil {
		return nil, err
	}
	documentID, err := reqString(args, "documentId")
	if err != nil {
		return nil, err
	}
	rawPayload, err := reqString(args, "payload")
	if err != nil {
		return nil, err
	}

	var payload domain.Payload
	if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	decider, err := parseDecision(args)
	if err != nil {
		return nil, err
	}

	block, err := s.blocks.UpdateBlockWithDecider(ctx, userID, documentID, blockID, payload, decider)
	if err != nil {
		return nil, fmt.Errorf("update block: %w", err)
	}
	return jsonResult(block)
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := reqString(req.GetArguments(), "blockId")
	if err != nil {
		return nil, err
	}
	if err := s.blocks.DeleteBlock(ctx, blockID); err != nil {
		return nil, fmt.Errorf("delete block: %w", err)
	}
	return jsonResult(map[string]any{"deleted": blockID})
}

// parseDecision turns the sharedDecision argument into a decider. Absent or
// empty means cancel: an agent must opt in to touching shared state.
func parseDecision(args map[string]any) (service.ShareDecider, error) {
	raw, _ := args["sharedDecision"].(string)
	switch raw {
	case "", "cancel":
		return service.StaticDecider(service.DecisionCancel), nil
	case "modify":
		return service.StaticDecider(service.DecisionModify), nil
	case "duplicate":
		return service.StaticDecider(service.DecisionDuplicate), nil
	default:
		return nil, fmt.Errorf("sharedDecision must be modify, duplicate or cancel, got %q", raw)
	}
}
