package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/models"
	"github.com/cyl19970726/Code3/services"
	storebounty "github.com/cyl19970726/Code3/storage/bounty"
)

func addr(b byte) bounty.Address {
	var a bounty.Address
	a[0] = b
	return a
}

func newService() *services.BountyService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return services.NewBountyService(storebounty.NewMemoryStore(), nil, nil, logger)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func call(t *testing.T, s *MCPServer, tool string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), tool, args)
	require.NoError(t, err)
	return res
}

func okJSON(t *testing.T, s *MCPServer, tool string, args map[string]interface{}, v interface{}) {
	t.Helper()
	res := call(t, s, tool, args)
	require.False(t, res.IsError, resultText(t, res))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), v))
}

func toolErr(t *testing.T, s *MCPServer, tool string, args map[string]interface{}) ToolError {
	t.Helper()
	res := call(t, s, tool, args)
	require.True(t, res.IsError)
	var te ToolError
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &te))
	return te
}

func TestToolsRegistered(t *testing.T) {
	s := NewMCPServer(newService(), nil)
	assert.ElementsMatch(t, []string{
		"initialize_registry", "create_bounty", "accept_bounty", "submit_bounty",
		"confirm_bounty", "claim_bounty", "cancel_bounty",
		"get_bounty", "get_bounty_by_task_hash", "list_bounties",
		"get_bounties_by_sponsor", "get_bounties_by_worker",
		"list_events", "get_balance",
	}, s.ToolNames())
}

func TestLifecycleThroughTools(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	sponsor, worker := addr(1), addr(2)
	asSponsor := NewMCPServer(svc, &sponsor)
	asWorker := NewMCPServer(svc, &worker)

	var reg bounty.Registry
	okJSON(t, asSponsor, "initialize_registry", nil, &reg)
	assert.Equal(t, uint64(1), reg.NextBountyID)

	_, err := svc.Fund(ctx, sponsor, 500)
	require.NoError(t, err)

	hash := bounty.TaskHash([]byte("task body"))
	var created models.TransitionResponse
	okJSON(t, asSponsor, "create_bounty", map[string]interface{}{
		"task_id":   "gh#1",
		"task_url":  "https://example.com/1",
		"task_hash": hash.String(),
		"amount":    "300",
	}, &created)
	assert.Equal(t, uint64(1), created.Bounty.BountyID)

	var lookup models.TaskHashLookup
	okJSON(t, asWorker, "get_bounty_by_task_hash", map[string]interface{}{"task_hash": hash.String()}, &lookup)
	assert.True(t, lookup.Found)

	te := toolErr(t, asWorker, "accept_bounty", map[string]interface{}{"bounty_id": "1", "worker": worker.String()})
	assert.Equal(t, string(bounty.CodeUnauthorizedSponsor), te.Code)
	assert.Equal(t, 403, te.HttpStatus)

	var rec models.TransitionResponse
	okJSON(t, asSponsor, "accept_bounty", map[string]interface{}{"bounty_id": float64(1), "worker": worker.String()}, &rec)
	assert.Equal(t, bounty.StatusAccepted, rec.Bounty.Status)
	okJSON(t, asWorker, "submit_bounty", map[string]interface{}{"bounty_id": "1", "submission_url": "https://example.com/pr/1"}, &rec)
	okJSON(t, asSponsor, "confirm_bounty", map[string]interface{}{"bounty_id": "1"}, &rec)
	okJSON(t, asWorker, "claim_bounty", map[string]interface{}{"bounty_id": "1"}, &rec)
	assert.Equal(t, bounty.StatusClaimed, rec.Bounty.Status)

	var bal models.BalanceResponse
	okJSON(t, asWorker, "get_balance", nil, &bal)
	assert.Equal(t, uint64(300), bal.Balance)

	var page models.BountyList
	okJSON(t, asWorker, "get_bounties_by_worker", map[string]interface{}{"worker": worker.String()}, &page)
	assert.Equal(t, []uint64{1}, page.BountyIDs)
	okJSON(t, asWorker, "list_bounties", map[string]interface{}{"status": "claimed"}, &page)
	assert.Equal(t, 1, page.Total)

	var events struct {
		Events     []bounty.Event `json:"events"`
		TotalCount int            `json:"total_count"`
	}
	okJSON(t, asWorker, "list_events", map[string]interface{}{"bounty_id": "1", "after": "2"}, &events)
	assert.Equal(t, 3, events.TotalCount)
}

func TestCancelThroughTools(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	sponsor := addr(1)
	s := NewMCPServer(svc, &sponsor)
	call(t, s, "initialize_registry", nil)
	_, err := svc.Fund(ctx, sponsor, 50)
	require.NoError(t, err)

	var rec models.TransitionResponse
	okJSON(t, s, "create_bounty", map[string]interface{}{"task_id": "t", "amount": "50"}, &rec)
	okJSON(t, s, "cancel_bounty", map[string]interface{}{"bounty_id": "1"}, &rec)
	assert.Equal(t, bounty.StatusCancelled, rec.Bounty.Status)

	var bal models.BalanceResponse
	okJSON(t, s, "get_balance", map[string]interface{}{"address": sponsor.String()}, &bal)
	assert.Equal(t, uint64(50), bal.Balance)
}

func TestToolArgumentErrors(t *testing.T) {
	sponsor := addr(1)
	s := NewMCPServer(newService(), &sponsor)
	readOnly := NewMCPServer(newService(), nil)

	tests := []struct {
		name   string
		server *MCPServer
		tool   string
		args   map[string]interface{}
		code   string
		field  string
	}{
		{"missing id", s, "get_bounty", nil, ErrCodeMissingRequired, "bounty_id"},
		{"negative id", s, "get_bounty", map[string]interface{}{"bounty_id": float64(-1)}, ErrCodeInvalidValue, "bounty_id"},
		{"fractional id", s, "confirm_bounty", map[string]interface{}{"bounty_id": 1.5}, ErrCodeInvalidValue, "bounty_id"},
		{"bad worker", s, "accept_bounty", map[string]interface{}{"bounty_id": "1", "worker": "0OIl"}, ErrCodeInvalidValue, "worker"},
		{"bad hash", s, "get_bounty_by_task_hash", map[string]interface{}{"task_hash": "zz"}, ErrCodeInvalidValue, "task_hash"},
		{"bad status", s, "list_bounties", map[string]interface{}{"status": "finished"}, ErrCodeInvalidValue, "status"},
		{"amount text", s, "create_bounty", map[string]interface{}{"task_id": "t", "amount": "ten"}, ErrCodeInvalidValue, "amount"},
		{"unknown bounty", s, "get_bounty", map[string]interface{}{"bounty_id": "9"}, string(bounty.CodeBountyNotFound), ""},
		{"not initialized", s, "create_bounty", map[string]interface{}{"task_id": "t", "amount": "1"}, string(bounty.CodeNotInitialized), ""},
		{"no operator", readOnly, "cancel_bounty", map[string]interface{}{"bounty_id": "1"}, ErrCodeNoIdentity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := toolErr(t, tt.server, tt.tool, tt.args)
			assert.Equal(t, tt.code, te.Code)
			assert.Equal(t, tt.field, te.Field)
			assert.Equal(t, tt.tool, te.Tool)
		})
	}
}
