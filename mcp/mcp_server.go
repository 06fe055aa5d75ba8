package mcp

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/models"
	"github.com/cyl19970726/Code3/services"
	storebounty "github.com/cyl19970726/Code3/storage/bounty"
)

// ErrCodeNoIdentity is returned by mutating tools when no operator key is configured.
const ErrCodeNoIdentity = "NO_OPERATOR_IDENTITY"

// MCPServer wraps the mcp-go server with the bounty tools. Every mutating tool
// runs as the one operator identity the server was started with.
type MCPServer struct {
	mcpServer *server.MCPServer
	svc       *services.BountyService
	operator  *bounty.Address
	handlers  map[string]server.ToolHandlerFunc
}

// NewMCPServer creates a new MCP server. operator may be nil, in which case
// only read tools succeed.
func NewMCPServer(svc *services.BountyService, operator *bounty.Address) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Bounty MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		svc:       svc,
		operator:  operator,
		handlers:  make(map[string]server.ToolHandlerFunc),
	}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the server on stdin/stdout until it is closed.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *MCPServer) registerTools() {
	// lifecycle
	s.registerInitializeRegistryTool()
	s.registerCreateBountyTool()
	s.registerAcceptBountyTool()
	s.registerSubmitBountyTool()
	s.registerConfirmBountyTool()
	s.registerClaimBountyTool()
	s.registerCancelBountyTool()

	// queries
	s.registerGetBountyTool()
	s.registerGetBountyByTaskHashTool()
	s.registerListBountiesTool()
	s.registerBountiesByPartyTool("get_bounties_by_sponsor", "sponsor", "List bounties funded by a sponsor address")
	s.registerBountiesByPartyTool("get_bounties_by_worker", "worker", "List bounties assigned to a worker address")
	s.registerListEventsTool()
	s.registerGetBalanceTool()
}

func (s *MCPServer) caller(tool string) (bounty.Address, *ToolError) {
	if s.operator == nil {
		return bounty.Address{}, &ToolError{
			Code:       ErrCodeNoIdentity,
			Message:    "this server has no operator identity",
			Tool:       tool,
			HttpStatus: 401,
			Hint:       "Set BOUNTY_MCP_IDENTITY to the operator's hex private key",
		}
	}
	return *s.operator, nil
}

// uintArg reads an unsigned integer argument sent as a JSON number or a
// decimal string. Strings keep full 64-bit precision.
func uintArg(args map[string]interface{}, tool, name string, required bool) (uint64, *ToolError) {
	raw, ok := args[name]
	if !ok || raw == nil {
		if required {
			return 0, NewMissingFieldError(tool, name)
		}
		return 0, nil
	}
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, NewInvalidFieldError(tool, name, v, "an unsigned 64-bit integer")
		}
		return n, nil
	case float64:
		if v < 0 || v != math.Trunc(v) || v > 1<<53 {
			return 0, NewInvalidFieldError(tool, name, v, "a non-negative integer (send large values as strings)")
		}
		return uint64(v), nil
	default:
		return 0, NewInvalidFieldError(tool, name, v, "an unsigned integer")
	}
}

func addressArg(request mcp.CallToolRequest, tool, name string) (bounty.Address, *ToolError) {
	raw, err := request.RequireString(name)
	if err != nil {
		return bounty.Address{}, NewMissingFieldError(tool, name)
	}
	a, err := bounty.ParseAddress(raw)
	if err != nil {
		return bounty.Address{}, NewInvalidFieldError(tool, name, raw, "a base58 32-byte address")
	}
	return a, nil
}

func pageArgs(request mcp.CallToolRequest) (int, int) {
	return request.GetInt("offset", 0), request.GetInt("limit", 0)
}

func (s *MCPServer) registerInitializeRegistryTool() {
	const name = "initialize_registry"
	tool := mcp.NewTool(name,
		mcp.WithDescription("Create the bounty registry with the operator as authority. Runs once."),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		authority, terr := s.caller(name)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		reg, err := s.svc.Initialize(ctx, authority)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(reg)
	})
}

func (s *MCPServer) registerCreateBountyTool() {
	const name = "create_bounty"
	tool := mcp.NewTool(name,
		mcp.WithDescription("Escrow an amount from the operator into a new bounty vault"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("External task identifier, at most 200 bytes")),
		mcp.WithString("task_url", mcp.Description("Task location, at most 500 bytes")),
		mcp.WithString("task_hash", mcp.Description("Hex Keccak-256 of the task content")),
		mcp.WithString("amount", mcp.Required(), mcp.Description("Native units to escrow, as a decimal string")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sponsor, terr := s.caller(name)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		taskID, err := request.RequireString("task_id")
		if err != nil {
			return errorResult(name, NewMissingFieldError(name, "task_id")), nil
		}
		amount, terr := uintArg(request.GetArguments(), name, "amount", true)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		params := bounty.CreateParams{
			TaskID:  taskID,
			TaskURL: request.GetString("task_url", ""),
			Amount:  amount,
		}
		if raw := request.GetString("task_hash", ""); raw != "" {
			hash, err := bounty.ParseHash(raw)
			if err != nil {
				return errorResult(name, NewInvalidFieldError(name, "task_hash", raw, "32 bytes of hex")), nil
			}
			params.TaskHash = hash
		}

		rec, err := s.svc.Create(ctx, sponsor, params)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(models.NewTransitionResponse(rec))
	})
}

func (s *MCPServer) registerAcceptBountyTool() {
	const name = "accept_bounty"
	tool := mcp.NewTool(name,
		mcp.WithDescription("Assign a worker to an open bounty. The operator must be the sponsor."),
		mcp.WithString("bounty_id", mcp.Required(), mcp.Description("Bounty id")),
		mcp.WithString("worker", mcp.Required(), mcp.Description("Base58 worker address")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, terr := s.caller(name)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		id, terr := uintArg(request.GetArguments(), name, "bounty_id", true)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		worker, terr := addressArg(request, name, "worker")
		if terr != nil {
			return errorResult(name, terr), nil
		}
		rec, err := s.svc.Accept(ctx, caller, id, worker)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(models.NewTransitionResponse(rec))
	})
}

func (s *MCPServer) registerSubmitBountyTool() {
	const name = "submit_bounty"
	tool := mcp.NewTool(name,
		mcp.WithDescription("Record the worker's submission. The operator must be the assigned worker."),
		mcp.WithString("bounty_id", mcp.Required(), mcp.Description("Bounty id")),
		mcp.WithString("submission_url", mcp.Required(), mcp.Description("Deliverable location, at most 500 bytes")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, terr := s.caller(name)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		id, terr := uintArg(request.GetArguments(), name, "bounty_id", true)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		url, err := request.RequireString("submission_url")
		if err != nil {
			return errorResult(name, NewMissingFieldError(name, "submission_url")), nil
		}
		rec, err := s.svc.Submit(ctx, caller, id, url)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(models.NewTransitionResponse(rec))
	})
}

// registerSimpleTransition covers the operations that take only a bounty id.
func (s *MCPServer) registerSimpleTransition(name, description string, run func(context.Context, bounty.Address, uint64) (bounty.Receipt, error)) {
	tool := mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("bounty_id", mcp.Required(), mcp.Description("Bounty id")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, terr := s.caller(name)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		id, terr := uintArg(request.GetArguments(), name, "bounty_id", true)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		rec, err := run(ctx, caller, id)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(models.NewTransitionResponse(rec))
	})
}

func (s *MCPServer) registerConfirmBountyTool() {
	s.registerSimpleTransition("confirm_bounty",
		"Approve a submitted bounty. The operator must be the sponsor.", s.svc.Confirm)
}

func (s *MCPServer) registerClaimBountyTool() {
	s.registerSimpleTransition("claim_bounty",
		"Pay a confirmed bounty's vault to the worker. The operator must be the worker.", s.svc.Claim)
}

func (s *MCPServer) registerCancelBountyTool() {
	s.registerSimpleTransition("cancel_bounty",
		"Refund an open bounty to its sponsor. The operator must be the sponsor.", s.svc.Cancel)
}

func (s *MCPServer) registerGetBountyTool() {
	const name = "get_bounty"
	tool := mcp.NewTool(name,
		mcp.WithDescription("Get a bounty record by id"),
		mcp.WithString("bounty_id", mcp.Required(), mcp.Description("Bounty id")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, terr := uintArg(request.GetArguments(), name, "bounty_id", true)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		b, err := s.svc.Get(ctx, id)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(b)
	})
}

func (s *MCPServer) registerGetBountyByTaskHashTool() {
	const name = "get_bounty_by_task_hash"
	tool := mcp.NewTool(name,
		mcp.WithDescription("Look up the bounty created for a task hash, if any"),
		mcp.WithString("task_hash", mcp.Required(), mcp.Description("Hex Keccak-256 task hash")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := request.RequireString("task_hash")
		if err != nil {
			return errorResult(name, NewMissingFieldError(name, "task_hash")), nil
		}
		hash, err := bounty.ParseHash(raw)
		if err != nil {
			return errorResult(name, NewInvalidFieldError(name, "task_hash", raw, "32 bytes of hex")), nil
		}
		lookup, err := s.svc.GetByTaskHash(ctx, hash)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(lookup)
	})
}

func (s *MCPServer) registerListBountiesTool() {
	const name = "list_bounties"
	tool := mcp.NewTool(name,
		mcp.WithDescription("List bounties ordered by id with optional status filter"),
		mcp.WithString("status", mcp.Description("Open, Accepted, Submitted, Confirmed, Claimed or Cancelled")),
		mcp.WithNumber("offset", mcp.Description("Number of matches to skip")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 100)")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var f storebounty.Filter
		if raw := request.GetString("status", ""); raw != "" {
			st, err := bounty.ParseStatus(raw)
			if err != nil {
				return errorResult(name, NewInvalidFieldError(name, "status", raw, "a bounty status name")), nil
			}
			f.Status = &st
		}
		f.Offset, f.Limit = pageArgs(request)
		page, err := s.svc.List(ctx, f)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(page)
	})
}

func (s *MCPServer) registerBountiesByPartyTool(name, party, description string) {
	tool := mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString(party, mcp.Required(), mcp.Description("Base58 address")),
		mcp.WithNumber("offset", mcp.Description("Number of matches to skip")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 100)")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		addr, terr := addressArg(request, name, party)
		if terr != nil {
			return errorResult(name, terr), nil
		}
		offset, limit := pageArgs(request)
		var page models.BountyList
		var err error
		if party == "sponsor" {
			page, err = s.svc.ListBySponsor(ctx, addr, offset, limit)
		} else {
			page, err = s.svc.ListByWorker(ctx, addr, offset, limit)
		}
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(page)
	})
}

func (s *MCPServer) registerListEventsTool() {
	const name = "list_events"
	tool := mcp.NewTool(name,
		mcp.WithDescription("List bounty events in commit order"),
		mcp.WithString("bounty_id", mcp.Description("Only events of this bounty")),
		mcp.WithString("after", mcp.Description("Only events with a greater sequence number")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 100)")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		var f bounty.EventFilter
		var terr *ToolError
		if f.BountyID, terr = uintArg(args, name, "bounty_id", false); terr != nil {
			return errorResult(name, terr), nil
		}
		if f.AfterSeq, terr = uintArg(args, name, "after", false); terr != nil {
			return errorResult(name, terr), nil
		}
		f.Limit = request.GetInt("limit", 0)
		events, err := s.svc.Events(ctx, f)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(map[string]interface{}{
			"events":      events,
			"total_count": len(events),
		})
	})
}

func (s *MCPServer) registerGetBalanceTool() {
	const name = "get_balance"
	tool := mcp.NewTool(name,
		mcp.WithDescription("Get the native balance of an address. Defaults to the operator."),
		mcp.WithString("address", mcp.Description("Base58 address")),
	)
	s.addTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var addr bounty.Address
		if request.GetString("address", "") != "" {
			a, terr := addressArg(request, name, "address")
			if terr != nil {
				return errorResult(name, terr), nil
			}
			addr = a
		} else {
			a, terr := s.caller(name)
			if terr != nil {
				return errorResult(name, terr), nil
			}
			addr = a
		}
		bal, err := s.svc.Balance(ctx, addr)
		if err != nil {
			return errorResult(name, err), nil
		}
		return jsonResult(bal)
	})
}

// ToolNames lists the registered tools in name order.
func (s *MCPServer) ToolNames() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// addTool registers a tool with the server and keeps its handler for CallTool.
func (s *MCPServer) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.handlers[tool.Name] = handler
	s.mcpServer.AddTool(tool, handler)
}

// CallTool invokes a registered tool in-process.
func (s *MCPServer) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return mcp.NewToolResultError("unknown tool " + name), nil
	}
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return handler(ctx, req)
}

