package api

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/i18n"
	"realestate-token-hub/internal/marketplace"
	"realestate-token-hub/internal/portfolio"
	"realestate-token-hub/internal/property"
	"realestate-token-hub/internal/txlog"
	"realestate-token-hub/internal/wallet"
)

func parseToken(c echo.Context) (common.Address, error) {
	return domain.ParseAddress(c.Param(ParamToken))
}

func parseListingID(c echo.Context) (*big.Int, error) {
	id, ok := new(big.Int).SetString(c.Param(ParamID), 10)
	if !ok || id.Sign() < 0 {
		return nil, invalidInput("listing id")
	}
	return id, nil
}

func parseProposalID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(ParamID), 10, 64)
	if err != nil {
		return 0, invalidInput("proposal id")
	}
	return id, nil
}

func wantRefresh(c echo.Context) bool {
	switch strings.ToLower(c.QueryParam("refresh")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return invalidInput("request body")
	}
	return nil
}

// wallet

type connectRequest struct {
	PrivateKey   string `json:"privateKey"`
	KeystoreFile string `json:"keystoreFile"`
	Passphrase   string `json:"passphrase"`
}

func (s *Server) getWallet(c echo.Context) error {
	info, err := s.deps.Wallet.Info(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) connectWallet(c echo.Context) error {
	var req connectRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	_, err := s.deps.Wallet.Connect(ctx, wallet.KeySource{
		PrivateKey:   req.PrivateKey,
		KeystoreFile: req.KeystoreFile,
		Passphrase:   req.Passphrase,
	})
	if err != nil {
		if classify(err).Status >= http.StatusInternalServerError {
			return &Error{Status: http.StatusBadRequest, Key: i18n.MsgWalletConnectFailed, Args: []any{err.Error()}, Err: err}
		}
		return err
	}

	info, err := s.deps.Wallet.Info(ctx)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgWalletConnected, info)
}

func (s *Server) disconnectWallet(c echo.Context) error {
	s.deps.Wallet.Disconnect()
	return s.respond(c, http.StatusOK, i18n.MsgWalletDisconnected, nil)
}

// properties

func (s *Server) listProperties(c echo.Context) error {
	props, err := s.deps.Properties.List(c.Request().Context(), wantRefresh(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, props)
}

func (s *Server) createProperty(c echo.Context) error {
	var req property.CreateTokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Properties.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusCreated, i18n.MsgPropertyCreated, res)
}

func (s *Server) getProperty(c echo.Context) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	p, err := s.deps.Properties.Get(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// election

type candidateRequest struct {
	Candidate string `json:"candidate"`
}

func (s *Server) getElection(c echo.Context) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	e, err := s.deps.Governance.Election(c.Request().Context(), token, wantRefresh(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (s *Server) proposeCandidate(c echo.Context) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	var req candidateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Governance.ProposeCandidate(c.Request().Context(), token, req.Candidate)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgElectionProposed, res)
}

func (s *Server) voteCandidate(c echo.Context) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	var req candidateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Governance.Vote(c.Request().Context(), token, req.Candidate)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgElectionVoted, res)
}

func (s *Server) finalizeElection(c echo.Context) error {
	token, err := parseToken(c)
	if err != nil {
		return err
	}
	res, err := s.deps.Governance.FinalizeElection(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgElectionFinalized, res, res.Manager.Hex())
}

// listings

type listingRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
	Price  string `json:"price"`
}

type purchaseRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) listListings(c echo.Context) error {
	listings, err := s.deps.Market.Listings(c.Request().Context(), wantRefresh(c))
	if err != nil {
		if classify(err).Status >= http.StatusInternalServerError {
			return &Error{Status: http.StatusBadGateway, Key: i18n.MsgListingsUnavailable, Err: err}
		}
		return err
	}
	listings = marketplace.FilterSymbol(listings, c.QueryParam("symbol"))

	if c.QueryParam("group") != "" {
		return c.JSON(http.StatusOK, marketplace.GroupBySymbol(listings))
	}
	return c.JSON(http.StatusOK, listings)
}

func (s *Server) getListing(c echo.Context) error {
	id, err := parseListingID(c)
	if err != nil {
		return err
	}
	l, err := s.deps.Market.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (s *Server) createListing(c echo.Context) error {
	var req listingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Token == "" || req.Amount == "" || req.Price == "" {
		return domain.ErrMissingFields
	}
	token, err := domain.ParseAddress(req.Token)
	if err != nil {
		return err
	}
	res, err := s.deps.Market.CreateListing(c.Request().Context(), token, req.Amount, req.Price)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusCreated, i18n.MsgListingCreated, res)
}

func (s *Server) purchaseListing(c echo.Context) error {
	id, err := parseListingID(c)
	if err != nil {
		return err
	}
	var req purchaseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Market.Purchase(c.Request().Context(), id, req.Amount)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgListingPurchased, res)
}

func (s *Server) cancelListing(c echo.Context) error {
	id, err := parseListingID(c)
	if err != nil {
		return err
	}
	res, err := s.deps.Market.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgListingCancelled, res)
}

// proposals

type proposalRequest struct {
	Content string `json:"content"`
}

type voteRequest struct {
	Support *bool `json:"support"`
}

func (s *Server) listProposals(c echo.Context) error {
	list, err := s.deps.Governance.Proposals(c.Request().Context(), wantRefresh(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createProposal(c echo.Context) error {
	var req proposalRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.deps.Governance.CreateProposal(c.Request().Context(), req.Content)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusCreated, i18n.MsgProposalCreated, res)
}

func (s *Server) voteProposal(c echo.Context) error {
	id, err := parseProposalID(c)
	if err != nil {
		return err
	}
	var req voteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Support == nil {
		return domain.ErrMissingFields
	}
	res, err := s.deps.Governance.VoteProposal(c.Request().Context(), id, *req.Support)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgProposalVoted, res)
}

func (s *Server) finalizeProposal(c echo.Context) error {
	id, err := parseProposalID(c)
	if err != nil {
		return err
	}
	res, err := s.deps.Governance.FinalizeProposal(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgProposalFinalized, res)
}

func (s *Server) executeProposal(c echo.Context) error {
	id, err := parseProposalID(c)
	if err != nil {
		return err
	}
	res, err := s.deps.Governance.ExecuteProposal(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, i18n.MsgProposalExecuted, res)
}

// assets

func (s *Server) getAssets(c echo.Context) error {
	var owner common.Address
	if v := c.QueryParam("owner"); v != "" {
		addr, err := domain.ParseAddress(v)
		if err != nil {
			return err
		}
		owner = addr
	} else {
		addr, err := s.deps.Wallet.Address()
		if err != nil {
			return err
		}
		owner = addr
	}

	p, err := s.deps.Portfolio.Holdings(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	if err := portfolio.Sort(p.Holdings, c.QueryParam("sort"), c.QueryParam("dir")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// transactions

func txFilter(c echo.Context) (txlog.Filter, error) {
	f := txlog.Filter{
		Kind:     domain.TxKind(c.QueryParam("type")),
		Status:   domain.TxStatus(c.QueryParam("status")),
		Property: c.QueryParam("property"),
		Search:   c.QueryParam("search"),
		Page:     1,
	}
	if v := c.QueryParam("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return f, invalidInput("page")
		}
		f.Page = page
	}
	return f, nil
}

func (s *Server) listTransactions(c echo.Context) error {
	f, err := txFilter(c)
	if err != nil {
		return err
	}
	page, err := s.deps.Journal.Query(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) exportTransactions(c echo.Context) error {
	f, err := txFilter(c)
	if err != nil {
		return err
	}
	events, err := s.deps.Journal.All(c.Request().Context(), f)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("transactions-%s.csv", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(txlog.RenderCSV(events)))
}
