package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txentities "github.com/sand/fraud-detector/backend/internal/entities"
	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

func reasonsFor(flags []entities.FlagEvent, txID int64) []string {
	var reasons []string
	for _, f := range flags {
		if f.TransactionID == txID {
			reasons = append(reasons, f.Reason)
		}
	}
	return reasons
}

func TestNewRuleEngineFillsZeroFieldsFromDefaults(t *testing.T) {
	engine := NewRuleEngine(discardLogger(), RuleConfig{BurstThreshold: 5, GeoWindow: 10 * time.Minute}, defaultRules)

	assert.Equal(t, RuleConfig{
		BurstWindow:     time.Minute,
		BurstThreshold:  5,
		AmountThreshold: 5000,
		GeoWindow:       10 * time.Minute,
	}, engine.Config())
	assert.Equal(t, defaultRules, newEngine().Config())
}

// The burst threshold is ">= 3 inclusive of the current transaction".
func TestBurstRuleThresholdInclusive(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 10, "US", 0),
		tx(2, 1, 10, "US", 10*time.Second),
		tx(3, 1, 10, "US", 20*time.Second),
		tx(4, 1, 10, "US", 30*time.Second),
	}

	flags, invalid := newEngine().Evaluate(txs)
	require.Empty(t, invalid)

	assert.Empty(t, reasonsFor(flags, 1))
	assert.Empty(t, reasonsFor(flags, 2))
	assert.Equal(t, []string{entities.ReasonBurst}, reasonsFor(flags, 3))
	assert.Equal(t, []string{entities.ReasonBurst}, reasonsFor(flags, 4))
}

// A threshold of 4 gives the stricter "more than 3" reading: three
// transactions inside a minute do not trigger, the fourth does.
func TestBurstRuleStricterThreshold(t *testing.T) {
	cfg := defaultRules
	cfg.BurstThreshold = 4
	engine := NewRuleEngine(discardLogger(), cfg, defaultRules)

	txs := []txentities.Transaction{
		tx(1, 1, 10, "US", 0),
		tx(2, 1, 10, "US", 10*time.Second),
		tx(3, 1, 10, "US", 20*time.Second),
		tx(4, 1, 10, "US", 30*time.Second),
	}

	flags, _ := engine.Evaluate(txs)
	assert.Empty(t, reasonsFor(flags, 3))
	assert.Equal(t, []string{entities.ReasonBurst}, reasonsFor(flags, 4))
}

func TestBurstRuleWindowBoundary(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 10, "US", 0),
		tx(2, 1, 10, "US", 30*time.Second),
		tx(3, 1, 10, "US", 61*time.Second),
	}

	flags, _ := newEngine().Evaluate(txs)
	assert.Empty(t, flags)

	txs[2] = tx(3, 1, 10, "US", 60*time.Second)
	flags, _ = newEngine().Evaluate(txs)
	assert.Equal(t, []string{entities.ReasonBurst}, reasonsFor(flags, 3))
}

func TestBurstRuleIsPerUser(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 10, "US", 0),
		tx(2, 1, 10, "US", 5*time.Second),
		tx(3, 2, 10, "US", 10*time.Second),
	}

	flags, _ := newEngine().Evaluate(txs)
	assert.Empty(t, flags)
}

func TestAmountRuleIsStrict(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 5000.00, "US", 0),
		tx(2, 2, 5000.01, "US", 0),
	}

	flags, _ := newEngine().Evaluate(txs)
	assert.Empty(t, reasonsFor(flags, 1))
	assert.Equal(t, []string{entities.ReasonAmount}, reasonsFor(flags, 2))
}

func TestGeoRuleWithinFiveMinutes(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 10, "US", 0),
		tx(2, 1, 10, "FR", 4*time.Minute),
	}

	flags, _ := newEngine().Evaluate(txs)
	assert.Empty(t, reasonsFor(flags, 1))
	assert.Equal(t, []string{entities.ReasonGeo}, reasonsFor(flags, 2))
}

func TestGeoRuleOutsideFiveMinutes(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 10, "US", 0),
		tx(2, 1, 10, "FR", 6*time.Minute),
	}

	flags, _ := newEngine().Evaluate(txs)
	assert.Empty(t, flags)
}

func TestGeoRuleFlagsOncePerTransaction(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 10, "US", 0),
		tx(2, 1, 10, "DE", 2*time.Minute),
		tx(3, 1, 10, "FR", 4*time.Minute),
	}

	flags, _ := newEngine().Evaluate(txs)
	assert.Equal(t, []string{entities.ReasonGeo}, reasonsFor(flags, 3))
}

func TestGeoRuleUnknownCountry(t *testing.T) {
	t.Run("two missing countries do not trigger", func(t *testing.T) {
		txs := []txentities.Transaction{
			tx(1, 1, 10, "", 0),
			tx(2, 1, 10, "", 2*time.Minute),
		}
		flags, _ := newEngine().Evaluate(txs)
		assert.Empty(t, flags)
	})

	t.Run("missing next to a concrete country triggers", func(t *testing.T) {
		txs := []txentities.Transaction{
			tx(1, 1, 10, "US", 0),
			tx(2, 1, 10, "", 2*time.Minute),
		}
		flags, _ := newEngine().Evaluate(txs)
		require.Len(t, flags, 1)
		assert.Equal(t, entities.ReasonGeo, flags[0].Reason)
		assert.Equal(t, txentities.UnknownCountry, flags[0].Country)
	})
}

func TestRulesAreIndependent(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 10, "US", 0),
		tx(2, 1, 10, "US", 10*time.Second),
		tx(3, 1, 9000, "FR", 20*time.Second),
	}

	flags, _ := newEngine().Evaluate(txs)
	assert.ElementsMatch(t,
		[]string{entities.ReasonBurst, entities.ReasonAmount, entities.ReasonGeo},
		reasonsFor(flags, 3))
}

func TestEvaluateEndToEndExample(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 100, "US", 0),
		tx(2, 1, 6000, "US", 30*time.Second),
		tx(3, 1, 50, "FR", 2*time.Minute),
		tx(4, 1, 50, "US", 45*time.Second),
	}
	SortForSweep(txs)

	flags, invalid := newEngine().Evaluate(txs)
	require.Empty(t, invalid)
	require.Len(t, flags, 3)

	assert.Empty(t, reasonsFor(flags, 1))
	assert.Equal(t, []string{entities.ReasonAmount}, reasonsFor(flags, 2))
	assert.Equal(t, []string{entities.ReasonGeo}, reasonsFor(flags, 3))
	assert.Equal(t, []string{entities.ReasonBurst}, reasonsFor(flags, 4))
}

func TestEvaluateSkipsInvalidRows(t *testing.T) {
	txs := []txentities.Transaction{
		tx(1, 1, 6000, "US", time.Minute),
		tx(2, 1, 6000, "US", 0), // out of order
		{ID: 3, UserID: 1, Amount: 6000},
		tx(4, 1, 6000, "US", 2*time.Minute),
	}

	flags, invalid := newEngine().Evaluate(txs)
	require.Len(t, invalid, 2)
	for _, err := range invalid {
		assert.ErrorIs(t, err, entities.ErrValidation)
	}

	assert.Equal(t, []string{entities.ReasonAmount}, reasonsFor(flags, 1))
	assert.Empty(t, reasonsFor(flags, 2))
	assert.Empty(t, reasonsFor(flags, 3))
	assert.Equal(t, []string{entities.ReasonAmount}, reasonsFor(flags, 4))
}

func TestSortForSweep(t *testing.T) {
	txs := []txentities.Transaction{
		tx(5, 2, 10, "US", 0),
		tx(4, 1, 10, "US", time.Minute),
		tx(3, 1, 10, "US", 0),
		tx(2, 1, 10, "US", 0),
	}
	SortForSweep(txs)

	var ids []int64
	for _, tr := range txs {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []int64{2, 3, 4, 5}, ids)
}
