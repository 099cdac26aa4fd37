package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

func TestSubmit_FirstBidBecomesWinning(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(100)
	_, dealer := env.seedDealer(t, "d1@cars.test")
	buyer, _ := env.seedBuyer(t, "b1@cars.test")
	a := env.seedAuction(t, buyer.ID, 30000)

	b, err := svc.Submit(context.Background(), dealer, domain.BidDraft{
		AuctionID: a.ID,
		Price:     money(28000),
		Message:   "certified pre-owned, full warranty",
	})
	require.NoError(t, err)
	require.Equal(t, domain.BidWinning, b.Status)
	require.True(t, b.Price.Equal(money(28000)))
	require.Equal(t, a.ID, b.AuctionID)
	require.NotEmpty(t, b.ID)

	winning, err := env.bids.GetWinning(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, winning.ID)
}

func TestSubmit_FreshlyRegisteredDealer(t *testing.T) {
	env := newTestEnv()
	authSvc, _ := newAuthService(env)
	bidSvc := env.bidService(100)
	ctx := context.Background()

	buyer, _ := env.seedBuyer(t, "b@cars.test")
	a := env.seedAuction(t, buyer.ID, 30000)

	// Registration alone is enough to bid: the license starts verified.
	sess, err := authSvc.Register(ctx, RegisterInput{
		Email:         "fresh@cars.test",
		Password:      "hunter22",
		Name:          "Fresh Motors",
		Role:          domain.RoleDealer,
		DealerLicense: "DL-fresh",
	})
	require.NoError(t, err)

	p := domain.Principal{UserID: sess.User.ID, Role: domain.RoleDealer}
	b, err := bidSvc.Submit(ctx, p, domain.BidDraft{AuctionID: a.ID, Price: money(28000)})
	require.NoError(t, err)
	require.Equal(t, domain.BidWinning, b.Status)
}

func TestSubmit_AdmissionRules(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(100)
	ctx := context.Background()

	_, dealer := env.seedDealer(t, "ok@cars.test")
	buyer, buyerPrincipal := env.seedBuyer(t, "b@cars.test")
	a := env.seedAuction(t, buyer.ID, 30000)

	// Establish a 25000 floor.
	_, err := svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a.ID, Price: money(25000)})
	require.NoError(t, err)

	_, unverified := env.seedUser(t, domain.User{
		Email:    "unverified@cars.test",
		Name:     "Unverified",
		Role:     domain.RoleDealer,
		IsActive: true,
	})
	_, inactive := env.seedUser(t, domain.User{
		Email:           "inactive@cars.test",
		Name:            "Inactive",
		Role:            domain.RoleDealer,
		LicenseVerified: true,
		IsActive:        false,
	})
	_, rival := env.seedDealer(t, "rival@cars.test")

	cancelled := env.seedAuction(t, buyer.ID, 30000)
	require.NoError(t, env.auctions.SetStatus(ctx, cancelled.ID, domain.AuctionCancelled))

	// Still Active, but the bidding window already elapsed.
	past := env.seedAuction(t, buyer.ID, 30000)
	past.ID = "past-" + past.ID
	past.CreatedAt = domain.Now().Add(-2 * time.Hour)
	past.EndsAt = domain.Now().Add(-time.Hour)
	require.NoError(t, env.auctions.Create(ctx, past))

	tests := []struct {
		name      string
		principal domain.Principal
		draft     domain.BidDraft
		wantErr   error
	}{
		{
			name:      "buyer_cannot_bid",
			principal: buyerPrincipal,
			draft:     domain.BidDraft{AuctionID: a.ID, Price: money(20000)},
			wantErr:   domain.ErrForbidden,
		},
		{
			name:      "unverified_license",
			principal: unverified,
			draft:     domain.BidDraft{AuctionID: a.ID, Price: money(20000)},
			wantErr:   domain.ErrForbidden,
		},
		{
			name:      "disabled_account",
			principal: inactive,
			draft:     domain.BidDraft{AuctionID: a.ID, Price: money(20000)},
			wantErr:   domain.ErrForbidden,
		},
		{
			name:      "unknown_auction",
			principal: rival,
			draft:     domain.BidDraft{AuctionID: "no-such-auction", Price: money(20000)},
			wantErr:   domain.ErrNotFound,
		},
		{
			name:      "cancelled_auction",
			principal: rival,
			draft:     domain.BidDraft{AuctionID: cancelled.ID, Price: money(20000)},
			wantErr:   domain.ErrAuctionNotActive,
		},
		{
			name:      "window_elapsed",
			principal: rival,
			draft:     domain.BidDraft{AuctionID: past.ID, Price: money(20000)},
			wantErr:   domain.ErrAuctionNotActive,
		},
		{
			name:      "equal_price_rejected",
			principal: rival,
			draft:     domain.BidDraft{AuctionID: a.ID, Price: money(25000)},
			wantErr:   domain.ErrBidNotCompetitive,
		},
		{
			name:      "higher_price_rejected",
			principal: rival,
			draft:     domain.BidDraft{AuctionID: a.ID, Price: money(26000)},
			wantErr:   domain.ErrBidNotCompetitive,
		},
		{
			name:      "zero_price_rejected",
			principal: rival,
			draft:     domain.BidDraft{AuctionID: a.ID, Price: money(0)},
			wantErr:   domain.ErrInvalidInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tc.principal, tc.draft)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	// The floor is untouched by all the rejections above.
	winning, err := env.bids.GetWinning(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, winning.Price.Equal(money(25000)))
}

func TestSubmit_BudgetCeiling(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(100)
	ctx := context.Background()

	_, dealer := env.seedDealer(t, "d@cars.test")
	buyer, _ := env.seedBuyer(t, "b@cars.test")
	a := env.seedAuction(t, buyer.ID, 30000)

	_, err := svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a.ID, Price: money(30001)})
	require.ErrorIs(t, err, domain.ErrBudgetExceeded)

	// Exactly at the ceiling is allowed.
	b, err := svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a.ID, Price: money(30000)})
	require.NoError(t, err)
	require.Equal(t, domain.BidWinning, b.Status)
}

func TestSubmit_UndercutDemotesPreviousWinner(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(100)
	ctx := context.Background()

	_, first := env.seedDealer(t, "first@cars.test")
	_, second := env.seedDealer(t, "second@cars.test")
	buyer, _ := env.seedBuyer(t, "b@cars.test")
	a := env.seedAuction(t, buyer.ID, 30000)

	b1, err := svc.Submit(ctx, first, domain.BidDraft{AuctionID: a.ID, Price: money(28000)})
	require.NoError(t, err)
	b2, err := svc.Submit(ctx, second, domain.BidDraft{AuctionID: a.ID, Price: money(27000)})
	require.NoError(t, err)

	all, err := env.bids.ListByAuction(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	statuses := map[string]domain.BidStatus{}
	for _, b := range all {
		statuses[b.ID] = b.Status
	}
	require.Equal(t, domain.BidLost, statuses[b1.ID])
	require.Equal(t, domain.BidWinning, statuses[b2.ID])
}

func TestSubmit_RateLimited(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(2)
	ctx := context.Background()

	_, dealer := env.seedDealer(t, "d@cars.test")
	buyer, _ := env.seedBuyer(t, "b@cars.test")
	a := env.seedAuction(t, buyer.ID, 30000)

	_, err := svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a.ID, Price: money(29000)})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a.ID, Price: money(28000)})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a.ID, Price: money(27000)})
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestSubmit_ConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(1000)
	ctx := context.Background()

	buyer, _ := env.seedBuyer(t, "b@cars.test")
	a := env.seedAuction(t, buyer.ID, 100000)

	const n = 16
	principals := make([]domain.Principal, n)
	for i := 0; i < n; i++ {
		_, p := env.seedDealer(t, "dealer"+string(rune('a'+i))+"@cars.test")
		principals[i] = p
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct prices so a tie never decides the outcome.
			_, _ = svc.Submit(ctx, principals[i], domain.BidDraft{
				AuctionID: a.ID,
				Price:     money(int64(90000 - i*1000)),
			})
		}(i)
	}
	wg.Wait()

	all, err := env.bids.ListByAuction(ctx, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, all)

	winners := 0
	for _, b := range all {
		if b.Status == domain.BidWinning {
			winners++
		}
	}
	require.Equal(t, 1, winners, "exactly one bid may be Winning")

	// The winner is the cheapest admitted offer, which sits first in the
	// price-ascending listing.
	require.Equal(t, domain.BidWinning, all[0].Status)
	for i := 1; i < len(all); i++ {
		require.Equal(t, domain.BidLost, all[i].Status)
	}
}

func TestListForAuction_PriceAscending(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(100)
	ctx := context.Background()

	_, d1 := env.seedDealer(t, "d1@cars.test")
	_, d2 := env.seedDealer(t, "d2@cars.test")
	_, d3 := env.seedDealer(t, "d3@cars.test")
	buyer, _ := env.seedBuyer(t, "b@cars.test")
	a := env.seedAuction(t, buyer.ID, 50000)

	for _, s := range []struct {
		p     domain.Principal
		price int64
	}{
		{d1, 45000},
		{d2, 42000},
		{d3, 39000},
	} {
		_, err := svc.Submit(ctx, s.p, domain.BidDraft{AuctionID: a.ID, Price: money(s.price)})
		require.NoError(t, err)
	}

	bids, err := svc.ListForAuction(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i-1].Price.LessThanOrEqual(bids[i].Price),
			"bids must be ordered ascending by price")
	}

	_, err = svc.ListForAuction(ctx, "no-such-auction")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListForDealer_OwnBidsNewestFirst(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(100)
	ctx := context.Background()

	_, dealer := env.seedDealer(t, "d@cars.test")
	_, other := env.seedDealer(t, "other@cars.test")
	buyer, buyerPrincipal := env.seedBuyer(t, "b@cars.test")
	a1 := env.seedAuction(t, buyer.ID, 50000)
	a2 := env.seedAuction(t, buyer.ID, 50000)

	_, err := svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a1.ID, Price: money(40000)})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, other, domain.BidDraft{AuctionID: a2.ID, Price: money(41000)})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a2.ID, Price: money(39000)})
	require.NoError(t, err)

	mine, err := svc.ListForDealer(ctx, dealer)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, b := range mine {
		require.Equal(t, dealer.UserID, b.DealerID)
	}

	_, err = svc.ListForDealer(ctx, buyerPrincipal)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSubmit_PublishesNewBidEvent(t *testing.T) {
	env := newTestEnv()
	svc := env.bidService(100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := env.bus.Subscribe(ctx, domain.ChannelBids)
	require.NoError(t, err)

	_, dealer := env.seedDealer(t, "d@cars.test")
	buyer, _ := env.seedBuyer(t, "b@cars.test")
	a := env.seedAuction(t, buyer.ID, 30000)

	b, err := svc.Submit(ctx, dealer, domain.BidDraft{AuctionID: a.ID, Price: money(28000)})
	require.NoError(t, err)

	select {
	case payload := <-events:
		require.Contains(t, string(payload), `"type":"new_bid"`)
		require.Contains(t, string(payload), b.ID)
		require.Contains(t, string(payload), `"auction_id":"`+a.ID+`"`)
	case <-time.After(time.Second):
		t.Fatal("expected a new_bid event on the bus")
	}
}
