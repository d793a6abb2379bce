package cards

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/effects"
	"github.com/arcanechess/arcane-server-go/internal/game/rules"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := DefaultCatalog()
	card, ok := c.Lookup("pawn_scout")
	require.True(t, ok)
	assert.Equal(t, "Pawn: Scout", card.Name)
	assert.Equal(t, TypeTransform, card.Type)
	assert.Equal(t, TargetPiece, card.Target)
	assert.Contains(t, c.IDs(), "forbidden_lands")
}

func TestCatalogPlaceholder(t *testing.T) {
	card := DefaultCatalog().Card("time_warp")
	assert.Equal(t, "time_warp", card.ID)
	assert.Equal(t, "Time Warp", card.Name)
}

func TestLoadCatalog(t *testing.T) {
	builtin, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog().Len(), builtin.Len())

	path := filepath.Join(t.TempDir(), "cards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cards:\n  - id: mine\n    name: Mine\n"), 0o600))
	custom, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 1, custom.Len())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	_, err := ParseCatalog([]byte("cards:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)
}

func TestDeckLimitAndOrder(t *testing.T) {
	ids := make([]string, DeckSize)
	for i := range ids {
		ids[i] = "card_" + string(rune('a'+i))
	}
	deck, err := DefaultCatalog().BuildDeck(ids)
	require.NoError(t, err)
	assert.Equal(t, DeckSize, deck.Size())
	assert.ErrorIs(t, deck.Add(Placeholder("extra")), ErrDeckFull)

	top, err := deck.Draw()
	require.NoError(t, err)
	assert.Equal(t, "card_a", top.ID)
	assert.Equal(t, DeckSize-1, deck.Size())
}

func TestDeckDrawEmpty(t *testing.T) {
	deck, err := NewDeck(nil)
	require.NoError(t, err)
	_, err = deck.Draw()
	assert.ErrorIs(t, err, ErrDeckEmpty)
}

func TestDeckShuffleKeepsCards(t *testing.T) {
	deck, err := NewDeck([]Card{Placeholder("a"), Placeholder("b"), Placeholder("c")})
	require.NoError(t, err)
	deck.Shuffle(rand.New(rand.NewSource(7)))
	assert.Equal(t, 3, deck.Size())
}

func TestHandAndDiscard(t *testing.T) {
	var h Hand
	h.Add(Placeholder("mine"))
	h.Add(Placeholder("mine"))
	h.Add(Placeholder("barricade"))

	assert.True(t, h.Has("mine"))
	card, ok := h.Remove("mine")
	require.True(t, ok)
	assert.Equal(t, 2, h.Len())
	assert.True(t, h.Has("mine"))

	_, ok = h.Remove("exhaustion")
	assert.False(t, ok)

	var pile DiscardPile
	pile.Add(card)
	top, ok := pile.Top()
	require.True(t, ok)
	assert.Equal(t, "mine", top.ID)
	assert.Equal(t, 1, pile.Size())
}

func TestResolverUnknownCard(t *testing.T) {
	r := NewDefaultResolver()
	_, err := r.Resolve(board.NewStandard(), board.White, "time_warp", Target{})
	assert.ErrorIs(t, err, ErrUnknownCard)
	assert.False(t, r.Supports("time_warp"))
}

func TestForbiddenLandsCard(t *testing.T) {
	r := NewDefaultResolver()
	b := board.New()

	_, err := r.Resolve(b, board.White, "forbidden_lands", Target{})
	require.NoError(t, err)
	assert.True(t, b.Config.ForbiddenActive)

	_, err = r.Resolve(b, board.White, "forbidden_lands", Target{})
	require.NoError(t, err)
	p := b.PieceAt(board.MustParse("a1"))
	require.NotNil(t, p)
	assert.Equal(t, board.Pawn, p.Kind)
	assert.Equal(t, board.White, p.Color)
}

func TestExhaustionCardTargetsOpponent(t *testing.T) {
	b := board.New()
	_, err := NewDefaultResolver().Resolve(b, board.White, "exhaustion", Target{})
	require.NoError(t, err)
	assert.True(t, b.Effects.Has(effects.TypeExhaustion, effects.ColorTarget("B")))
	assert.False(t, b.Effects.Has(effects.TypeExhaustion, effects.ColorTarget("W")))
}

func TestTransformCards(t *testing.T) {
	r := NewDefaultResolver()
	b := board.NewStandard()

	_, err := r.Resolve(b, board.White, "pawn_scout", Target{Square: "e2"})
	require.NoError(t, err)
	assert.Equal(t, board.Scout, b.PieceAt(board.MustParse("e2")).Kind)

	_, err = r.Resolve(b, board.White, "knight_headhunter", Target{Square: "e7"})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = r.Resolve(b, board.Black, "bishop_warlock", Target{Square: "c8"})
	require.NoError(t, err)
	assert.Equal(t, board.Warlock, b.PieceAt(board.MustParse("c8")).Kind)

	_, err = r.Resolve(b, board.White, "knight_headhunter", Target{Square: "z9"})
	assert.ErrorIs(t, err, board.ErrInvalidSquareNotation)
}

func TestSummonPeonAvoidsEnemyBackRank(t *testing.T) {
	r := NewDefaultResolver()
	b := board.New()

	_, err := r.Resolve(b, board.White, "summon_peon", Target{Square: "d8"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Nil(t, b.PieceAt(board.MustParse("d8")))

	_, err = r.Resolve(b, board.White, "summon_peon", Target{Square: "d4"})
	require.NoError(t, err)
	assert.Equal(t, board.Peon, b.PieceAt(board.MustParse("d4")).Kind)
}

func TestCursedEffigyLinksWarlock(t *testing.T) {
	r := NewDefaultResolver()
	b := board.New()
	rules.InstallHandlers(b)

	_, err := r.Resolve(b, board.White, "cursed_effigy", Target{Square: "d5"})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	warlock := b.NewPiece(board.White, board.Warlock)
	b.Place(board.MustParse("a1"), warlock)
	_, err = r.Resolve(b, board.White, "cursed_effigy", Target{Square: "d5"})
	require.NoError(t, err)

	effigy := b.PieceAt(board.MustParse("d5"))
	require.NotNil(t, effigy)
	assert.Equal(t, board.Effigy, effigy.Kind)
	assert.Equal(t, board.Black, effigy.Color)
	assert.Equal(t, warlock.ID, effigy.LinkedID)
	assert.Equal(t, "cursed_effigy", effigy.Curse)
}

func TestBarricadeAndMine(t *testing.T) {
	r := NewDefaultResolver()
	b := board.New()
	rules.InstallHandlers(b)

	_, err := r.Resolve(b, board.Black, "barricade", Target{Square: "e5"})
	require.NoError(t, err)
	assert.Equal(t, board.NoColor, b.PieceAt(board.MustParse("e5")).Color)

	_, err = r.Resolve(b, board.Black, "mine", Target{Square: "e5"})
	require.NoError(t, err)
	b.Effects.ProcessTurn(b.Turn + rules.MineFuse)
	assert.Nil(t, b.PieceAt(board.MustParse("e5")))
}

func TestEyeForAnEye(t *testing.T) {
	r := NewDefaultResolver()
	b := board.NewStandard()

	_, err := r.Resolve(b, board.White, "eye_for_an_eye", Target{Square: "e2", Secondary: "e7"})
	require.NoError(t, err)
	assert.True(t, b.PieceAt(board.MustParse("e2")).Marked)
	assert.True(t, b.PieceAt(board.MustParse("e7")).Marked)
	assert.Len(t, b.Effects.ByType(effects.TypeMark), 2)

	_, err = r.Resolve(b, board.White, "eye_for_an_eye", Target{Square: "e7", Secondary: "e2"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
