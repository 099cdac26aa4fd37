package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/carbidx2025/CarbidX-EM/internal/auth"
	"github.com/carbidx2025/CarbidX-EM/internal/domain"
	"github.com/carbidx2025/CarbidX-EM/internal/server/handler"
	"github.com/carbidx2025/CarbidX-EM/internal/server/ws"
	"github.com/carbidx2025/CarbidX-EM/internal/service"
	"github.com/carbidx2025/CarbidX-EM/internal/store/memory"
)

// apiFixture runs the full HTTP stack against in-memory backends.
type apiFixture struct {
	srv    *httptest.Server
	users  *memory.UserStore
	tokens *auth.TokenManager
}

func startAPI(t *testing.T) *apiFixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	users := memory.NewUserStore()
	auctions := memory.NewAuctionStore()
	bids := memory.NewBidStore()
	locks := memory.NewLockManager()
	limiter := memory.NewRateLimiter()
	bus := memory.NewSignalBus()
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	authSvc := service.NewAuthService(users, tokens, 4, logger)
	auctionSvc := service.NewAuctionService(auctions, bids, bus, locks, 24, logger)
	bidSvc := service.NewBidService(bids, auctions, users, locks, limiter, bus, time.Second, 100, time.Minute, logger)
	adminSvc := service.NewAdminService(users, auctions, bids, logger)

	hub := ws.NewHub(bus, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	s := NewServer(Config{Port: 0}, Handlers{
		Auth:     handler.NewAuthHandler(authSvc, logger),
		Auctions: handler.NewAuctionHandler(auctionSvc, logger),
		Bids:     handler.NewBidHandler(bidSvc, logger),
		Admin:    handler.NewAdminHandler(adminSvc, auctionSvc, logger),
		Health:   handler.NewHealthHandler(nil, nil, hub, logger),
	}, tokens, nil, hub, logger)

	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &apiFixture{srv: srv, users: users, tokens: tokens}
}

// do sends a JSON request and decodes the response body into out (when out is
// non-nil and the body is JSON).
func (f *apiFixture) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *apiFixture) register(t *testing.T, in service.RegisterInput) service.Session {
	t.Helper()
	var sess service.Session
	code := f.do(t, http.MethodPost, "/api/register", "", in, &sess)
	require.Equal(t, http.StatusCreated, code)
	return sess
}

// seedAdmin writes an admin account straight into the store; admins cannot be
// created through the public API.
func (f *apiFixture) seedAdmin(t *testing.T) string {
	t.Helper()
	now := domain.Now()
	admin := domain.User{
		ID:        "admin-1",
		Email:     "admin@cars.test",
		Name:      "Admin",
		Role:      domain.RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.users.Create(context.Background(), admin))
	token, err := f.tokens.Issue(admin)
	require.NoError(t, err)
	return token
}

func TestAPI_AuthSurface(t *testing.T) {
	f := startAPI(t)

	buyer := f.register(t, service.RegisterInput{
		Email: "anna@cars.test", Password: "hunter22", Name: "Anna", Role: domain.RoleBuyer,
	})
	require.NotEmpty(t, buyer.Token)

	t.Run("duplicate_email", func(t *testing.T) {
		code := f.do(t, http.MethodPost, "/api/register", "", service.RegisterInput{
			Email: "anna@cars.test", Password: "hunter22", Name: "Anna Two", Role: domain.RoleBuyer,
		}, nil)
		require.Equal(t, http.StatusConflict, code)
	})

	t.Run("admin_role_rejected", func(t *testing.T) {
		code := f.do(t, http.MethodPost, "/api/register", "", service.RegisterInput{
			Email: "boss@cars.test", Password: "hunter22", Name: "Boss", Role: domain.RoleAdmin,
		}, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("me_requires_token", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/me", "", nil, nil))
		require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/me", "garbage", nil, nil))

		var me domain.User
		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/me", buyer.Token, nil, &me))
		require.Equal(t, buyer.User.ID, me.ID)
	})

	t.Run("login_wrong_password", func(t *testing.T) {
		code := f.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"email": "anna@cars.test", "password": "wrong",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestAPI_BiddingFlow(t *testing.T) {
	f := startAPI(t)

	buyer := f.register(t, service.RegisterInput{
		Email: "anna@cars.test", Password: "hunter22", Name: "Anna", Role: domain.RoleBuyer,
	})
	dealer := f.register(t, service.RegisterInput{
		Email: "dealer@cars.test", Password: "hunter22", Name: "Motor House",
		Role: domain.RoleDealer, DealerLicense: "DL-1",
	})
	rival := f.register(t, service.RegisterInput{
		Email: "rival@cars.test", Password: "hunter22", Name: "Rival Motors",
		Role: domain.RoleDealer, DealerLicense: "DL-2",
	})
	adminToken := f.seedAdmin(t)

	var auction domain.Auction
	code := f.do(t, http.MethodPost, "/api/car-requests", buyer.Token, domain.AuctionDraft{
		Title: "Family SUV", Make: "Toyota", Model: "RAV4", Year: 2022,
		MaxBudget: decimal.NewFromInt(30000), Location: "Rotterdam",
	}, &auction)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, domain.AuctionActive, auction.Status)

	t.Run("license_change_suspends_bidding", func(t *testing.T) {
		code := f.do(t, http.MethodPut, "/api/profile", dealer.Token,
			map[string]string{"dealer_license": "DL-1-renewed"}, nil)
		require.Equal(t, http.StatusOK, code)

		// The changed license is unverified until an admin re-checks it.
		code = f.do(t, http.MethodPost, "/api/bids", dealer.Token, domain.BidDraft{
			AuctionID: auction.ID, Price: decimal.NewFromInt(25000),
		}, nil)
		require.Equal(t, http.StatusForbidden, code)

		code = f.do(t, http.MethodPut, "/api/admin/verify-license/"+dealer.User.ID, adminToken, nil, nil)
		require.Equal(t, http.StatusOK, code)
	})

	t.Run("first_bid_wins", func(t *testing.T) {
		var bid domain.Bid
		code := f.do(t, http.MethodPost, "/api/bids", dealer.Token, domain.BidDraft{
			AuctionID: auction.ID, Price: decimal.NewFromInt(25000),
		}, &bid)
		require.Equal(t, http.StatusCreated, code)
		require.Equal(t, domain.BidWinning, bid.Status)
	})

	t.Run("tie_rejected", func(t *testing.T) {
		code := f.do(t, http.MethodPost, "/api/bids", rival.Token, domain.BidDraft{
			AuctionID: auction.ID, Price: decimal.NewFromInt(25000),
		}, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("over_budget_rejected", func(t *testing.T) {
		code := f.do(t, http.MethodPost, "/api/bids", rival.Token, domain.BidDraft{
			AuctionID: auction.ID, Price: decimal.NewFromInt(31000),
		}, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("undercut_takes_the_lead", func(t *testing.T) {
		var bid domain.Bid
		code := f.do(t, http.MethodPost, "/api/bids", rival.Token, domain.BidDraft{
			AuctionID: auction.ID, Price: decimal.NewFromInt(24500),
		}, &bid)
		require.Equal(t, http.StatusCreated, code)
		require.Equal(t, domain.BidWinning, bid.Status)

		var bids []domain.Bid
		code = f.do(t, http.MethodGet, "/api/bids/"+auction.ID, buyer.Token, nil, &bids)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, bids, 2)
		require.Equal(t, domain.BidWinning, bids[0].Status)
		require.Equal(t, rival.User.ID, bids[0].DealerID)
		require.Equal(t, domain.BidLost, bids[1].Status)
	})

	t.Run("buyer_cannot_bid", func(t *testing.T) {
		code := f.do(t, http.MethodPost, "/api/bids", buyer.Token, domain.BidDraft{
			AuctionID: auction.ID, Price: decimal.NewFromInt(20000),
		}, nil)
		require.Equal(t, http.StatusForbidden, code)
	})

	t.Run("dealer_lists_own_bids", func(t *testing.T) {
		var bids []domain.Bid
		code := f.do(t, http.MethodGet, "/api/my-bids", rival.Token, nil, &bids)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, bids, 1)
	})
}

func TestAPI_AdminSurface(t *testing.T) {
	f := startAPI(t)

	buyer := f.register(t, service.RegisterInput{
		Email: "anna@cars.test", Password: "hunter22", Name: "Anna", Role: domain.RoleBuyer,
	})
	adminToken := f.seedAdmin(t)

	t.Run("non_admin_forbidden", func(t *testing.T) {
		code := f.do(t, http.MethodGet, "/api/admin/users", buyer.Token, nil, nil)
		require.Equal(t, http.StatusForbidden, code)
	})

	t.Run("lists_users", func(t *testing.T) {
		var users []domain.User
		code := f.do(t, http.MethodGet, "/api/admin/users", adminToken, nil, &users)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, users, 2)
	})

	t.Run("cancels_auction", func(t *testing.T) {
		var auction domain.Auction
		code := f.do(t, http.MethodPost, "/api/car-requests", buyer.Token, domain.AuctionDraft{
			Title: "City car", Make: "Fiat", Model: "500", Year: 2021,
			MaxBudget: decimal.NewFromInt(12000),
		}, &auction)
		require.Equal(t, http.StatusCreated, code)

		code = f.do(t, http.MethodPut, "/api/admin/auctions/"+auction.ID+"/status", adminToken,
			map[string]string{"status": "cancelled"}, nil)
		require.Equal(t, http.StatusOK, code)

		var got domain.Auction
		code = f.do(t, http.MethodGet, "/api/car-requests/"+auction.ID, buyer.Token, nil, &got)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, domain.AuctionCancelled, got.Status)
	})

	t.Run("unknown_status_rejected", func(t *testing.T) {
		code := f.do(t, http.MethodPut, "/api/admin/auctions/whatever/status", adminToken,
			map[string]string{"status": "paused"}, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})
}

func TestAPI_Health(t *testing.T) {
	f := startAPI(t)

	var report map[string]any
	code := f.do(t, http.MethodGet, "/api/health", "", nil, &report)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", report["status"])
	require.Equal(t, "disabled", report["store"])
	require.Equal(t, "disabled", report["cache"])
}
