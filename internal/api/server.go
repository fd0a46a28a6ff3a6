// Package api exposes the hub as a JSON HTTP API with a websocket live
// feed.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"realestate-token-hub/internal/feed"
	"realestate-token-hub/internal/governance"
	"realestate-token-hub/internal/i18n"
	"realestate-token-hub/internal/marketplace"
	"realestate-token-hub/internal/observability"
	"realestate-token-hub/internal/portfolio"
	"realestate-token-hub/internal/property"
	"realestate-token-hub/internal/ratelimit"
	"realestate-token-hub/internal/txlog"
	"realestate-token-hub/internal/wallet"
)

// Route parameters.
const (
	ParamToken = "token"
	ParamID    = "id"
)

// Deps holds the services behind the API.
type Deps struct {
	Wallet      *wallet.Wallet
	Properties  *property.Service
	Market      *marketplace.Service
	Governance  *governance.Service
	Portfolio   *portfolio.Service
	Journal     *txlog.Journal
	Feed        *feed.Bus
	Bundle      *i18n.Bundle
	Limiter     *ratelimit.MapLimiter
	DefaultLang language.Tag
	Log         *zap.SugaredLogger

	// TrustedProxies may set X-Forwarded-For. Without any the client IP
	// is the peer address.
	TrustedProxies []*net.IPNet
}

// Server is the HTTP front end.
type Server struct {
	deps Deps
	echo *echo.Echo
	log  *zap.SugaredLogger

	mu          sync.Mutex
	started     time.Time
	lastRefresh time.Time
	refreshes   int
	refreshErr  string
}

// New builds the server and registers all routes.
func New(deps Deps) *Server {
	if deps.Bundle == nil {
		deps.Bundle = i18n.Default()
	}
	if deps.DefaultLang.IsRoot() {
		deps.DefaultLang = i18n.English
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(deps.TrustedProxies)

	s := &Server{deps: deps, echo: e, log: deps.Log, started: time.Now()}
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.metrics)
	e.Use(s.language)
	s.routes()
	return s
}

func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Infof("listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// RecordRefresh notes the outcome of a periodic cache refresh for /status.
func (s *Server) RecordRefresh(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRefresh = at
	s.refreshes++
	s.refreshErr = ""
	if err != nil {
		s.refreshErr = err.Error()
	}
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(observability.Handler()))
	e.GET("/status", s.status)
	e.GET("/ws", s.streamFeed)

	g := e.Group("/api")
	limited := s.rateLimit

	g.GET("/wallet", s.getWallet)
	g.POST("/wallet", s.connectWallet, limited)
	g.DELETE("/wallet", s.disconnectWallet, limited)

	g.GET("/properties", s.listProperties)
	g.POST("/properties", s.createProperty, limited)
	g.GET("/properties/:token", s.getProperty)

	g.GET("/properties/:token/election", s.getElection)
	g.POST("/properties/:token/election/candidates", s.proposeCandidate, limited)
	g.POST("/properties/:token/election/votes", s.voteCandidate, limited)
	g.POST("/properties/:token/election/finalize", s.finalizeElection, limited)

	g.GET("/listings", s.listListings)
	g.GET("/listings/:id", s.getListing)
	g.POST("/listings", s.createListing, limited)
	g.POST("/listings/:id/purchase", s.purchaseListing, limited)
	g.DELETE("/listings/:id", s.cancelListing, limited)

	g.GET("/proposals", s.listProposals)
	g.POST("/proposals", s.createProposal, limited)
	g.POST("/proposals/:id/votes", s.voteProposal, limited)
	g.POST("/proposals/:id/finalize", s.finalizeProposal, limited)
	g.POST("/proposals/:id/execute", s.executeProposal, limited)

	g.GET("/assets", s.getAssets)

	g.GET("/transactions", s.listTransactions)
	g.GET("/transactions.csv", s.exportTransactions)
}

// StatusResponse is the JSON response of /status.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	Started         time.Time `json:"started"`
	ChainID         int64     `json:"chain_id"`
	WalletConnected bool      `json:"wallet_connected"`
	LastRefresh     time.Time `json:"last_refresh,omitempty"`
	Refreshes       int       `json:"refreshes"`
	RefreshError    string    `json:"refresh_error,omitempty"`
	FeedSubscribers int       `json:"feed_subscribers"`
}

func (s *Server) status(c echo.Context) error {
	s.mu.Lock()
	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Started:      s.started,
		LastRefresh:  s.lastRefresh,
		Refreshes:    s.refreshes,
		RefreshError: s.refreshErr,
	}
	s.mu.Unlock()

	if s.deps.Wallet != nil {
		resp.ChainID = s.deps.Wallet.ChainID()
		resp.WalletConnected = s.deps.Wallet.Connected()
	}
	if s.deps.Feed != nil {
		resp.FeedSubscribers = s.deps.Feed.Subscribers()
	}
	return c.JSON(http.StatusOK, resp)
}

// MessageResponse carries a localized confirmation and the operation result.
type MessageResponse struct {
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

func (s *Server) respond(c echo.Context, code int, key string, result any, args ...any) error {
	return c.JSON(code, MessageResponse{
		Message: s.deps.Bundle.Sprintf(langOf(c, s.deps.DefaultLang), key, args...),
		Result:  result,
	})
}
