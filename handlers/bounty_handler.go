package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/middleware"
	"github.com/cyl19970726/Code3/models"
	"github.com/cyl19970726/Code3/services"
	storebounty "github.com/cyl19970726/Code3/storage/bounty"
)

var errUnsigned = errors.New("request is not signed")

// BountyHandler serves the registry, bounty and account routes.
type BountyHandler struct {
	*BaseHandler
	svc *services.BountyService
}

// NewBountyHandler creates a bounty handler over svc.
func NewBountyHandler(svc *services.BountyService, logger *slog.Logger) *BountyHandler {
	return &BountyHandler{BaseHandler: NewBaseHandler(logger), svc: svc}
}

func (h *BountyHandler) caller(r *http.Request) (bounty.Address, error) {
	c, ok := middleware.CallerFrom(r.Context())
	if !ok {
		return bounty.Address{}, services.Invalid("signature", errUnsigned)
	}
	return c, nil
}

// HandleGetRegistry returns the registry singleton.
// @Summary Get registry
// @Tags Registry
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/registry [get]
func (h *BountyHandler) HandleGetRegistry(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Registry(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendSuccess(w, reg)
}

// HandleInitialize creates the registry with the signer as authority.
// @Summary Initialize registry
// @Tags Registry
// @Produce json
// @Success 201 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/registry [post]
func (h *BountyHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	authority, err := h.caller(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	reg, err := h.svc.Initialize(r.Context(), authority)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, models.NewSuccessResponse(reg))
}

// HandleCreate opens a bounty funded by the signer.
// @Summary Create bounty
// @Tags Bounties
// @Accept json
// @Produce json
// @Param request body models.CreateBountyRequest true "bounty"
// @Success 201 {object} models.TransitionResponse
// @Failure 400 {object} models.APIResponse
// @Failure 422 {object} models.APIResponse
// @Router /api/bounties [post]
func (h *BountyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sponsor, err := h.caller(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	var req models.CreateBountyRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, err)
		return
	}
	params := bounty.CreateParams{TaskID: req.TaskID, TaskURL: req.TaskURL}
	if req.TaskHash != "" {
		hash, err := bounty.ParseHash(req.TaskHash)
		if err != nil {
			h.sendError(w, services.Invalid("task_hash", err))
			return
		}
		params.TaskHash = hash
	}
	if params.Amount, err = parseAmount("amount", req.Amount); err != nil {
		h.sendError(w, err)
		return
	}

	rec, err := h.svc.Create(r.Context(), sponsor, params)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, models.NewSuccessResponse(models.NewTransitionResponse(rec)))
}

// HandleList lists bounties.
// @Summary List bounties
// @Tags Bounties
// @Produce json
// @Param sponsor query string false "sponsor address"
// @Param worker query string false "worker address"
// @Param status query string false "status name"
// @Param offset query int false "offset"
// @Param limit query int false "limit"
// @Success 200 {object} models.BountyList
// @Router /api/bounties [get]
func (h *BountyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	page, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, models.NewSuccessResponseWithMeta(page, map[string]interface{}{
		"total":  page.Total,
		"offset": page.Offset,
		"limit":  page.Limit,
	}))
}

func listFilter(r *http.Request) (storebounty.Filter, error) {
	var f storebounty.Filter
	q := r.URL.Query()
	if raw := q.Get("sponsor"); raw != "" {
		a, err := parseAddress("sponsor", raw)
		if err != nil {
			return f, err
		}
		f.Sponsor = &a
	}
	if raw := q.Get("worker"); raw != "" {
		a, err := parseAddress("worker", raw)
		if err != nil {
			return f, err
		}
		f.Worker = &a
	}
	if raw := q.Get("status"); raw != "" {
		s, err := bounty.ParseStatus(raw)
		if err != nil {
			return f, services.Invalid("status", err)
		}
		f.Status = &s
	}
	var err error
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		return f, err
	}
	return f, nil
}

// HandleGet returns one bounty.
// @Summary Get bounty
// @Tags Bounties
// @Produce json
// @Param id path int true "bounty id"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/bounties/{id} [get]
func (h *BountyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := bountyID(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendSuccess(w, b)
}

// HandleByTaskHash answers whether a bounty exists for a task hash.
// @Summary Find bounty by task hash
// @Tags Bounties
// @Produce json
// @Param hash path string true "hex keccak-256 task hash"
// @Success 200 {object} models.TaskHashLookup
// @Router /api/bounties/by-task-hash/{hash} [get]
func (h *BountyHandler) HandleByTaskHash(w http.ResponseWriter, r *http.Request) {
	hash, err := bounty.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		h.sendError(w, services.Invalid("hash", err))
		return
	}
	lookup, err := h.svc.GetByTaskHash(r.Context(), hash)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendSuccess(w, lookup)
}

// HandleVault returns the vault address and balance of a bounty.
// @Summary Get bounty vault
// @Tags Bounties
// @Produce json
// @Param id path int true "bounty id"
// @Success 200 {object} models.VaultInfo
// @Router /api/bounties/{id}/vault [get]
func (h *BountyHandler) HandleVault(w http.ResponseWriter, r *http.Request) {
	id, err := bountyID(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	info, err := h.svc.Vault(r.Context(), id)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendSuccess(w, info)
}

// HandleVaultQR renders the vault as a PNG QR code.
// @Summary Vault QR code
// @Tags Bounties
// @Produce png
// @Param id path int true "bounty id"
// @Router /api/bounties/{id}/qr [get]
func (h *BountyHandler) HandleVaultQR(w http.ResponseWriter, r *http.Request) {
	id, err := bountyID(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	png, err := h.svc.VaultQR(r.Context(), id)
	if err != nil {
		h.sendError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// HandleTransition runs accept, submit, confirm, claim or cancel on {id}.
// @Summary Bounty lifecycle transition
// @Tags Bounties
// @Accept json
// @Produce json
// @Param id path int true "bounty id"
// @Param op path string true "accept, submit, confirm, claim or cancel"
// @Success 200 {object} models.TransitionResponse
// @Failure 403 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/bounties/{id}/{op} [post]
func (h *BountyHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	id, err := bountyID(r)
	if err != nil {
		h.sendError(w, err)
		return
	}

	ctx := r.Context()
	var rec bounty.Receipt
	switch op := bounty.Operation(strings.ToLower(chi.URLParam(r, "op"))); op {
	case bounty.OpAccept:
		var req models.AcceptBountyRequest
		if err := h.parseJSON(r, &req); err != nil {
			h.sendError(w, err)
			return
		}
		worker, perr := parseAddress("worker", req.Worker)
		if perr != nil {
			h.sendError(w, perr)
			return
		}
		rec, err = h.svc.Accept(ctx, caller, id, worker)
	case bounty.OpSubmit:
		var req models.SubmitBountyRequest
		if err := h.parseJSON(r, &req); err != nil {
			h.sendError(w, err)
			return
		}
		rec, err = h.svc.Submit(ctx, caller, id, req.SubmissionURL)
	case bounty.OpConfirm:
		rec, err = h.svc.Confirm(ctx, caller, id)
	case bounty.OpClaim:
		rec, err = h.svc.Claim(ctx, caller, id)
	case bounty.OpCancel:
		rec, err = h.svc.Cancel(ctx, caller, id)
	default:
		h.sendJSON(w, http.StatusNotFound, models.NewErrorResponse("unknown_operation", "unknown bounty operation "+string(op), http.StatusNotFound))
		return
	}
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendSuccess(w, models.NewTransitionResponse(rec))
}

// HandleBalance returns an account balance.
// @Summary Account balance
// @Tags Accounts
// @Produce json
// @Param address path string true "base58 address"
// @Success 200 {object} models.BalanceResponse
// @Router /api/accounts/{address}/balance [get]
func (h *BountyHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	bal, err := h.svc.Balance(r.Context(), addr)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendSuccess(w, bal)
}

// HandleFund credits an account from the development faucet.
// @Summary Development faucet
// @Tags Accounts
// @Accept json
// @Produce json
// @Param address path string true "base58 address"
// @Param request body models.FundRequest true "amount"
// @Success 200 {object} models.BalanceResponse
// @Router /api/accounts/{address}/fund [post]
func (h *BountyHandler) HandleFund(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	var req models.FundRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.sendError(w, err)
		return
	}
	bal, err := h.svc.Fund(r.Context(), addr, amount)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendSuccess(w, bal)
}
