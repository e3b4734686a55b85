package bridgetest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/store"
	"github.com/blockberries/bridgeberry/types"
)

// RunComplianceSuite runs the bridge lifecycle scenarios of both
// variants against a store backend.
//
// The factory must return a fresh, empty store for each call; the
// suite does not close it.
func RunComplianceSuite(t *testing.T, factory func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()

	direct := func(t *testing.T) *Harness {
		return NewHarness(t, Options{Variant: types.VariantDirect, Store: factory(t)})
	}
	claim := func(t *testing.T) *Harness {
		return NewHarness(t, Options{Variant: types.VariantClaim, Store: factory(t)})
	}

	t.Run("post_upgrade_report", func(t *testing.T) {
		h := direct(t)
		id := h.Post(Requester, 100, 4, []byte("price?"))
		if id != types.SequenceID(1) {
			t.Fatalf("first id: got %s, want #1", id)
		}
		h.RequireStatus(id, types.StatusPosted)

		if err := h.Server.UpgradeReward(ctx, h.Tx(Stranger, 10, 4), id); err != nil {
			t.Fatalf("UpgradeReward: %v", err)
		}
		h.RequireBalance(id, 110)

		h.Report(id, []byte("42"))
		h.RequireStatus(id, types.StatusReported)
		h.RequireBalance(id, 0)
		if got := h.Bank.Paid(Reporter); got != 110 {
			t.Errorf("reporter paid %d, want 110", got)
		}

		resp, err := h.Server.ReadResponse(ctx, id)
		if err != nil {
			t.Fatalf("ReadResponse: %v", err)
		}
		if !bytes.Equal(resp.Result, []byte("42")) || resp.Reporter != Reporter || resp.Paid != 110 {
			t.Errorf("unexpected response %+v", resp)
		}
		if resp.Timestamp != h.Height {
			t.Errorf("timestamp: got %d, want host height %d", resp.Timestamp, h.Height)
		}

		err = h.Server.ReportResult(ctx, h.Tx(Reporter, 0, 0), DirectReport(id, []byte("43")))
		RequireError(t, err, bridge.ErrWrongStatus)
		if got := h.Bank.TransferCalls.Load(); got != 1 {
			t.Errorf("transfers: got %d, want 1", got)
		}
	})

	t.Run("below_price_floor", func(t *testing.T) {
		h := direct(t)
		_, err := h.Server.Post(ctx, h.Tx(Requester, 5, 4), types.PostRequest{Payload: []byte("x")})
		RequireError(t, err, bridge.ErrInsufficientValue)
		if n, _ := h.Server.QueryCount(ctx); n != 0 {
			t.Errorf("count after rejected post: %d", n)
		}
		if len(h.Events.Events()) != 0 {
			t.Error("rejected post emitted an event")
		}
	})

	t.Run("sequence_ids", func(t *testing.T) {
		h := direct(t)
		for i := uint64(1); i <= 3; i++ {
			id := h.Post(Requester, 40, 4, []byte("same payload"))
			if id != types.SequenceID(i) {
				t.Fatalf("post %d: got id %s", i, id)
			}
		}
		if n, _ := h.Server.QueryCount(ctx); n != 3 {
			t.Errorf("count: got %d, want 3", n)
		}
	})

	t.Run("delete_round_trip", func(t *testing.T) {
		h := direct(t)
		id := h.Post(Requester, 40, 4, []byte("q"))

		_, err := h.Server.Delete(ctx, h.Tx(Requester, 0, 0), id)
		RequireError(t, err, bridge.ErrWrongStatus)

		h.Report(id, []byte("r"))
		_, err = h.Server.Delete(ctx, h.Tx(Stranger, 0, 0), id)
		RequireError(t, err, bridge.ErrUnauthorized)

		resp, err := h.Server.Delete(ctx, h.Tx(Requester, 0, 0), id)
		if err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if !bytes.Equal(resp.Result, []byte("r")) {
			t.Errorf("deleted response result %q", resp.Result)
		}
		h.RequireStatus(id, types.StatusRemoved)
		_, err = h.Server.ReadResponse(ctx, id)
		RequireError(t, err, bridge.ErrNotFound)
		_, err = h.Server.Delete(ctx, h.Tx(Requester, 0, 0), id)
		RequireError(t, err, bridge.ErrWrongStatus)

		if n, _ := h.Server.QueryCount(ctx); n != 1 {
			t.Errorf("count after delete: got %d, want 1", n)
		}
		if next := h.Post(Requester, 40, 4, []byte("q")); next != types.SequenceID(2) {
			t.Errorf("id after delete: got %s, want #2", next)
		}
	})

	t.Run("unauthorized_reporter", func(t *testing.T) {
		h := direct(t)
		id := h.Post(Requester, 40, 4, []byte("q"))
		err := h.Server.ReportResult(ctx, h.Tx(Stranger, 0, 0), DirectReport(id, []byte("r")))
		RequireError(t, err, bridge.ErrUnauthorized)
		h.RequireStatus(id, types.StatusPosted)
		h.RequireBalance(id, 40)
	})

	t.Run("concurrent_reporters", func(t *testing.T) {
		h := direct(t)
		racers := []types.Address{{0x01}, {0x02}, {0x03}, {0x04}, {0x05}, {0x06}, {0x07}, {0x08}}
		for _, r := range racers {
			h.Reporters.Add(r)
		}
		id := h.Post(Requester, 80, 4, []byte("race"))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for _, r := range racers {
			wg.Add(1)
			go func(r types.Address) {
				defer wg.Done()
				err := h.Server.ReportResult(ctx, h.Tx(r, 0, 0), DirectReport(id, r[:1]))
				switch {
				case err == nil:
					mu.Lock()
					wins++
					mu.Unlock()
				case !errors.Is(err, bridge.ErrWrongStatus):
					t.Errorf("racer %s: %v", r, err)
				}
			}(r)
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("winners: got %d, want 1", wins)
		}
		transfers := h.Bank.Transfers()
		if len(transfers) != 1 || transfers[0].Amount != 80 {
			t.Errorf("transfers: %+v", transfers)
		}
	})

	t.Run("concurrent_posts", func(t *testing.T) {
		h := direct(t)
		const n = 16
		ids := make([]types.QueryID, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := h.Server.Post(ctx, h.Tx(Requester, 40, 4), types.PostRequest{Payload: []byte{byte(i)}})
				if err != nil {
					t.Errorf("post %d: %v", i, err)
				}
				ids[i] = id
			}(i)
		}
		wg.Wait()

		seen := make(map[types.QueryID]bool, n)
		for _, id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
		if count, _ := h.Server.QueryCount(ctx); count != n {
			t.Errorf("count: got %d, want %d", count, n)
		}
	})

	t.Run("claim_lifecycle", func(t *testing.T) {
		h := claim(t)
		data := []byte("weather in lisbon")
		id := h.PostSplit(Requester, 10, 7, data)
		if id != types.ContentID(data) {
			t.Fatalf("id: got %s, want content id", id)
		}

		h.Claim(Claimant, id)
		h.RequireStatus(id, types.StatusClaimed)

		h.Include(Stranger, id)
		h.RequireStatus(id, types.StatusIncluded)
		if got := h.Bank.Paid(Claimant); got != 3 {
			t.Errorf("claimant paid %d, want 3", got)
		}
		h.RequireBalance(id, 7)

		h.Resolve(Reporter, id, []byte("sunny"))
		h.RequireStatus(id, types.StatusReported)
		if got := h.Bank.Paid(Reporter); got != 7 {
			t.Errorf("reporter paid %d, want 7", got)
		}
		h.RequireBalance(id, 0)

		want := []string{
			types.EventQueryPosted, types.EventQueryClaimed,
			types.EventInclusionReported, types.EventResultReported,
		}
		got := h.Events.Kinds()
		if len(got) != len(want) {
			t.Fatalf("events: got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("claim_batch_atomic", func(t *testing.T) {
		h := claim(t)
		a := h.PostSplit(Requester, 10, 5, []byte("a"))
		b := h.PostSplit(Requester, 10, 5, []byte("b"))
		h.Claim(Stranger, b)

		err := h.Server.Claim(ctx, h.Tx(Claimant, 0, 0), []types.QueryID{a, b}, types.EligibilityProof{})
		RequireError(t, err, bridge.ErrWrongStatus)
		h.RequireStatus(a, types.StatusPosted)

		q, err := h.Store.Get(ctx, b)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if q.Claim.Claimant != Stranger {
			t.Errorf("claim on b changed hands to %s", q.Claim.Claimant)
		}
	})

	t.Run("claim_expiry", func(t *testing.T) {
		h := claim(t)
		id := h.PostSplit(Requester, 10, 5, []byte("slow"))
		h.Claim(Stranger, id)

		h.Advance(h.Server.Params().ClaimExpiry - 1)
		err := h.Server.Claim(ctx, h.Tx(Claimant, 0, 0), []types.QueryID{id}, types.EligibilityProof{})
		RequireError(t, err, bridge.ErrWrongStatus)

		h.Advance(1)
		h.Claim(Claimant, id)
		q, err := h.Store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if q.Claim.Claimant != Claimant || q.Claim.Epoch != h.Height {
			t.Errorf("claim after expiry: %+v", q.Claim)
		}
	})

	t.Run("bad_inclusion_proof", func(t *testing.T) {
		h := claim(t)
		id := h.PostSplit(Requester, 10, 5, []byte("p"))
		h.Claim(Claimant, id)

		report := h.InclusionProof(id)
		report.Proof.Path[0][0] ^= 0xff
		err := h.Server.ReportInclusion(ctx, h.Tx(Claimant, 0, 0), report)
		RequireError(t, err, bridge.ErrInvalidProof)
		h.RequireStatus(id, types.StatusClaimed)
		h.RequireBalance(id, 10)
		if h.Bank.TransferCalls.Load() != 0 {
			t.Error("failed inclusion moved value")
		}
	})

	t.Run("repost_content_id", func(t *testing.T) {
		h := claim(t)
		id := h.PostSplit(Requester, 10, 5, []byte("dup"))
		_, err := h.Server.Post(ctx, h.Tx(Stranger, 10, 0), types.PostRequest{Payload: []byte("dup")})
		RequireError(t, err, bridge.ErrWrongStatus)

		h.Claim(Claimant, id)
		h.Include(Claimant, id)
		h.Resolve(Reporter, id, []byte("r"))
		if _, err := h.Server.Delete(ctx, h.Tx(Requester, 0, 0), id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		h.RequireStatus(id, types.StatusUnknown)
		if again := h.PostSplit(Stranger, 10, 5, []byte("dup")); again != id {
			t.Errorf("repost id: got %s, want %s", again, id)
		}
	})

	t.Run("direct_rejects_claims", func(t *testing.T) {
		h := direct(t)
		if h.Server.AsClaimer() != nil {
			t.Fatal("direct server exposes Claimer")
		}
		id := h.Post(Requester, 40, 4, []byte("q"))
		err := h.Server.Claim(ctx, h.Tx(Claimant, 0, 0), []types.QueryID{id}, types.EligibilityProof{})
		RequireError(t, err, bridge.ErrUnsupported)
	})
}
