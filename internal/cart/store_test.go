package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/fjod/quickmarket/internal/domain"
	"github.com/fjod/quickmarket/internal/logger"
	"github.com/fjod/quickmarket/internal/notify"
	"github.com/fjod/quickmarket/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStorage struct {
	storage.Store
	getErr error
	sets   int
}

func (f *failingStorage) Get(context.Context, string, string) ([]byte, error) {
	return nil, f.getErr
}

func (f *failingStorage) Set(context.Context, string, string, []byte) error {
	f.sets++
	return nil
}

func product(name string, price int64) domain.ProductSnapshot {
	return domain.ProductSnapshot{Name: name, PricePerKg: decimal.NewFromInt(price)}
}

func newStore(t *testing.T, s storage.Store) (*Store, *notify.Collector) {
	t.Helper()
	n := notify.NewCollector()
	return NewStore(s, "session-1", n, logger.Discard()), n
}

func persisted(t *testing.T, s storage.Store) []domain.CartItem {
	t.Helper()
	data, err := s.Get(context.Background(), "session-1", storage.KeyCart)
	require.NoError(t, err)
	items, err := Decode(data)
	require.NoError(t, err)
	return items
}

func TestLoad_Missing(t *testing.T) {
	st, n := newStore(t, storage.NewMemoryStore())

	c := st.Load(context.Background())
	assert.True(t, c.IsEmpty())
	assert.True(t, st.Hydrated())
	assert.Empty(t, n.Drain())
}

func TestLoad_CorruptOrNull(t *testing.T) {
	for _, blob := range []string{`null`, `{"items":`, `"oops"`, ``, `  null  `} {
		t.Run(fmt.Sprintf("%q", blob), func(t *testing.T) {
			mem := storage.NewMemoryStore()
			require.NoError(t, mem.Set(context.Background(), "session-1", storage.KeyCart, []byte(blob)))
			st, _ := newStore(t, mem)

			var c domain.Cart
			assert.NotPanics(t, func() { c = st.Load(context.Background()) })
			assert.True(t, c.IsEmpty())
			assert.True(t, st.Hydrated())
		})
	}
}

func TestLoad_CorruptNotifiesUser(t *testing.T) {
	mem := storage.NewMemoryStore()
	require.NoError(t, mem.Set(context.Background(), "session-1", storage.KeyCart, []byte(`[{`)))
	st, n := newStore(t, mem)

	st.Load(context.Background())

	notes := n.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)
}

func TestLoad_BackendErrorKeepsStoreUnhydrated(t *testing.T) {
	backend := &failingStorage{getErr: errors.New("connection reset")}
	st, n := newStore(t, backend)

	c := st.Load(context.Background())
	assert.True(t, c.IsEmpty())
	assert.False(t, st.Hydrated())
	assert.Len(t, n.Drain(), 1)

	require.NoError(t, st.Add(context.Background(), "rice", product("Rice", 1200), 1, false))
	assert.Equal(t, 0, backend.sets)
}

func TestSave_SkippedBeforeLoad(t *testing.T) {
	mem := storage.NewMemoryStore()
	require.NoError(t, mem.Set(context.Background(), "session-1", storage.KeyCart, []byte(`[{"productId":"rice","quantity":2,"product":{"name":"Rice","pricePerKg":"1200"}}]`)))
	st, _ := newStore(t, mem)

	require.NoError(t, st.Save(context.Background()))

	items := persisted(t, mem)
	require.Len(t, items, 1)
	assert.Equal(t, "rice", items[0].ProductID)
}

func TestAdd_InsertsThenIncrements(t *testing.T) {
	mem := storage.NewMemoryStore()
	st, n := newStore(t, mem)
	ctx := context.Background()
	st.Load(ctx)

	require.NoError(t, st.Add(ctx, "rice", product("Rice", 1200), 2, false))
	require.NoError(t, st.Add(ctx, "rice", product("Rice", 1200), 3, true))

	assert.Equal(t, 1, st.ItemCount())
	assert.Equal(t, 5, st.TotalWeight())
	assert.True(t, st.Subtotal().Equal(decimal.NewFromInt(6000)))
	assert.Len(t, n.Drain(), 2)

	items := persisted(t, mem)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, items[0].NeedsGrinding)
}

func TestAdd_Validation(t *testing.T) {
	st, _ := newStore(t, storage.NewMemoryStore())
	ctx := context.Background()
	st.Load(ctx)

	assert.ErrorIs(t, st.Add(ctx, "rice", product("Rice", 1200), 0, false), ErrInvalidQuantity)

	gone := product("Garri", 700)
	gone.AvailabilityStatus = "out_of_stock"
	assert.ErrorIs(t, st.Add(ctx, "garri", gone, 1, false), ErrUnavailable)

	limited := product("Yam", 900)
	limited.StockQty = 3
	require.NoError(t, st.Add(ctx, "yam", limited, 2, false))
	assert.ErrorIs(t, st.Add(ctx, "yam", limited, 2, false), ErrExceedsStock)
	assert.ErrorIs(t, st.SetQuantity(ctx, "yam", 4), ErrExceedsStock)
	assert.Equal(t, 2, st.TotalWeight())
}

func TestSetQuantity_NonPositiveEqualsRemove(t *testing.T) {
	ctx := context.Background()

	build := func() *Store {
		st, _ := newStore(t, storage.NewMemoryStore())
		st.Load(ctx)
		require.NoError(t, st.Add(ctx, "rice", product("Rice", 1200), 2, false))
		require.NoError(t, st.Add(ctx, "beans", product("Beans", 900), 1, false))
		return st
	}

	removed := build()
	require.NoError(t, removed.Remove(ctx, "rice"))

	zero := build()
	require.NoError(t, zero.SetQuantity(ctx, "rice", 0))

	negative := build()
	require.NoError(t, negative.SetQuantity(ctx, "rice", -5))

	assert.Equal(t, removed.Cart(), zero.Cart())
	assert.Equal(t, removed.Cart(), negative.Cart())
	assert.Equal(t, 1, zero.ItemCount())
}

func TestSetQuantity_UnknownIsNoop(t *testing.T) {
	mem := storage.NewMemoryStore()
	st, n := newStore(t, mem)
	ctx := context.Background()
	st.Load(ctx)
	require.NoError(t, st.Add(ctx, "rice", product("Rice", 1200), 2, false))
	n.Drain()

	require.NoError(t, st.SetQuantity(ctx, "plantain", 4))
	require.NoError(t, st.Remove(ctx, "plantain"))

	assert.Equal(t, 1, st.ItemCount())
	assert.Empty(t, n.Drain())
}

func TestRemove_Notifies(t *testing.T) {
	st, n := newStore(t, storage.NewMemoryStore())
	ctx := context.Background()
	st.Load(ctx)
	require.NoError(t, st.Add(ctx, "rice", product("Rice", 1200), 2, false))
	n.Drain()

	require.NoError(t, st.Remove(ctx, "rice"))
	assert.Equal(t, []notify.Notification{{Level: notify.LevelSuccess, Message: "Rice removed from cart"}}, n.Drain())
	assert.Equal(t, 0, st.ItemCount())
}

func TestRemove_LastItemMatchesReload(t *testing.T) {
	mem := storage.NewMemoryStore()
	st, _ := newStore(t, mem)
	ctx := context.Background()
	st.Load(ctx)
	require.NoError(t, st.Add(ctx, "rice", product("Rice", 1200), 2, false))

	require.NoError(t, st.Remove(ctx, "rice"))
	reloaded, _ := newStore(t, mem)
	assert.Equal(t, domain.Cart{}, st.Cart())
	assert.Equal(t, st.Cart(), reloaded.Load(ctx))
}

func TestClear(t *testing.T) {
	mem := storage.NewMemoryStore()
	st, _ := newStore(t, mem)
	ctx := context.Background()
	st.Load(ctx)
	require.NoError(t, st.Add(ctx, "rice", product("Rice", 1200), 2, false))

	require.NoError(t, st.Clear(ctx))
	assert.Empty(t, persisted(t, mem))
}

// Any sequence of mutations keeps the derived totals consistent with the items.
func TestDerivedTotals_RandomSequences(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	ids := []string{"rice", "beans", "yam", "garri", "pepper"}
	prices := map[string]int64{"rice": 1200, "beans": 900, "yam": 800, "garri": 700, "pepper": 2500}

	for run := 0; run < 50; run++ {
		mem := storage.NewMemoryStore()
		st, _ := newStore(t, mem)
		st.Load(ctx)
		for _, id := range ids {
			require.NoError(t, st.Add(ctx, id, product(id, prices[id]), 1+rng.Intn(4), false))
		}

		for op := 0; op < 30; op++ {
			id := ids[rng.Intn(len(ids))]
			if rng.Intn(4) == 0 {
				require.NoError(t, st.Remove(ctx, id))
			} else {
				require.NoError(t, st.SetQuantity(ctx, id, rng.Intn(8)-2))
			}
		}

		want := decimal.Zero
		distinct := 0
		for _, it := range st.Cart().Items {
			assert.Positive(t, it.Quantity)
			want = want.Add(decimal.NewFromInt(prices[it.ProductID] * int64(it.Quantity)))
			distinct++
		}
		assert.True(t, want.Equal(st.Subtotal()), "run %d", run)
		assert.Equal(t, distinct, st.ItemCount())

		reloaded, _ := newStore(t, mem)
		assert.Equal(t, st.Cart(), reloaded.Load(ctx))
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	items := []domain.CartItem{
		{
			ProductID: "rice",
			Quantity:  3,
			Product: domain.ProductSnapshot{
				Name:               "Rice",
				PricePerKg:         decimal.RequireFromString("1250.5"),
				Images:             []string{"rice.jpg"},
				Category:           "grains",
				StockQty:           40,
				AvailabilityStatus: "in_stock",
				IsHeavy:            true,
			},
			NeedsGrinding: true,
		},
		{ProductID: "beans", Quantity: 1, Product: product("Beans", 900)},
	}

	data, err := Encode(items)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)
}

func TestDecode_DropsInvalidAndDuplicateEntries(t *testing.T) {
	items, err := Decode([]byte(`[
		{"productId":"rice","quantity":2},
		{"productId":"","quantity":1},
		{"productId":"beans","quantity":0},
		{"productId":"rice","quantity":9}
	]`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestEncode_EmptyIsArray(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

// Two stores on the same session do not see each other's writes: the last
// Save wins. This is a known limitation, not a guarantee.
func TestConcurrentSessions_LastWriteWins(t *testing.T) {
	mem := storage.NewMemoryStore()
	ctx := context.Background()

	tabA, _ := newStore(t, mem)
	tabB, _ := newStore(t, mem)
	tabA.Load(ctx)
	tabB.Load(ctx)

	require.NoError(t, tabA.Add(ctx, "rice", product("Rice", 1200), 1, false))
	require.NoError(t, tabB.Add(ctx, "beans", product("Beans", 900), 1, false))

	items := persisted(t, mem)
	require.Len(t, items, 1)
	assert.Equal(t, "beans", items[0].ProductID)
}
