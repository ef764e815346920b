package paper

import (
	"time"

	"github.com/google/uuid"
	"github.com/jimstein/diffstock/types"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// reconcile runs the weight-to-holdings algorithm of §4.6 exactly: for each
// target symbol with an available quote, compute the integer-share delta,
// skip if under one share, then execute a cash-bounded BUY or a
// holdings-bounded SELL. Symbols with no quote this round are skipped and
// returned in skipped rather than failing the whole batch.
func reconcile(
	holdings map[string]types.Holding,
	targetWeights map[string]float64,
	cash decimal.Decimal,
	prices map[string]float64,
	feeRate float64,
	wholeShares bool,
) (trades []types.Trade, newHoldings map[string]types.Holding, newCash decimal.Decimal, skipped []string) {
	newHoldings = make(map[string]types.Holding, len(holdings))
	for k, v := range holdings {
		newHoldings[k] = v
	}
	newCash = cash
	fee := decimal.NewFromFloat(feeRate)

	portfolioValue := newCash
	for sym, h := range newHoldings {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		portfolioValue = portfolioValue.Add(h.Quantity.Mul(decimal.NewFromFloat(price)))
	}

	now := time.Now()
	for symbol, w := range targetWeights {
		priceF, ok := prices[symbol]
		if !ok {
			skipped = append(skipped, symbol)
			continue
		}
		price := decimal.NewFromFloat(priceF)
		targetDollar := portfolioValue.Mul(decimal.NewFromFloat(w))
		targetQty := quantizeQty(targetDollar.Div(price), wholeShares)

		current := newHoldings[symbol]
		delta := targetQty.Sub(current.Quantity)

		if delta.Abs().LessThan(one) {
			continue
		}

		if delta.IsPositive() {
			affordable := quantizeQty(newCash.Div(price.Mul(one.Add(fee))), wholeShares)
			execQty := decimal.Min(delta, affordable)
			if execQty.IsNegative() {
				execQty = decimal.Zero
			}
			if execQty.GreaterThanOrEqual(one) {
				notional := execQty.Mul(price)
				feeAmt := notional.Mul(fee)
				newCash = newCash.Sub(notional).Sub(feeAmt)
				current = applyBuy(current, symbol, execQty, price)
				newHoldings[symbol] = current
				trades = append(trades, types.Trade{ID: uuid.New().String(), Timestamp: now, Symbol: symbol, Side: types.Buy, Quantity: execQty, Price: price, Fee: feeAmt})
			}
		} else {
			requested := delta.Abs()
			execQty := decimal.Min(requested, current.Quantity)
			if execQty.GreaterThanOrEqual(one) {
				notional := execQty.Mul(price)
				feeAmt := notional.Mul(fee)
				newCash = newCash.Add(notional).Sub(feeAmt)
				current.Quantity = current.Quantity.Sub(execQty)
				newHoldings[symbol] = current
				trades = append(trades, types.Trade{ID: uuid.New().String(), Timestamp: now, Symbol: symbol, Side: types.Sell, Quantity: execQty, Price: price, Fee: feeAmt})
			}
		}
	}
	return trades, newHoldings, newCash, skipped
}

// applyBuy updates avg_cost as a quantity-weighted blend of the existing
// position and the new fill, per the invariant that avg_cost only changes
// on BUY.
func applyBuy(h types.Holding, symbol string, qty, price decimal.Decimal) types.Holding {
	if h.Symbol == "" {
		h.Symbol = symbol
	}
	totalCostBefore := h.Quantity.Mul(h.AvgCost)
	totalCostAfter := totalCostBefore.Add(qty.Mul(price))
	newQty := h.Quantity.Add(qty)
	newAvgCost := h.AvgCost
	if newQty.IsPositive() {
		newAvgCost = totalCostAfter.Div(newQty)
	}
	return types.Holding{Symbol: symbol, Quantity: newQty, AvgCost: newAvgCost}
}

func quantizeQty(q decimal.Decimal, wholeShares bool) decimal.Decimal {
	if wholeShares {
		return q.Floor()
	}
	return q.Truncate(4)
}

// buildSnapshot assembles a Snapshot with total_value computed exactly as
// cash + sum(qty*price), satisfying testable property 3. benchmarkReturnPct
// is computed by the caller, which alone knows the benchmark's baseline
// price.
func buildSnapshot(cash decimal.Decimal, holdings map[string]types.Holding, prices map[string]float64, initialCapital decimal.Decimal, benchmarkReturnPct float64) types.Snapshot {
	holdingsList := make([]types.Holding, 0, len(holdings))
	priceMap := make(map[string]decimal.Decimal, len(prices))
	total := cash
	for sym, h := range holdings {
		holdingsList = append(holdingsList, h)
		if priceF, ok := prices[sym]; ok {
			p := decimal.NewFromFloat(priceF)
			priceMap[sym] = p
			total = total.Add(h.Quantity.Mul(p))
		}
	}
	pnl := total.Sub(initialCapital)
	pnlPct := 0.0
	if initialCapital.IsPositive() {
		pnlPct, _ = pnl.Div(initialCapital).Float64()
	}
	return types.Snapshot{
		Timestamp: time.Now(), CashUSD: cash, Holdings: holdingsList, SymbolPrices: priceMap,
		TotalValue: total, PnLUSD: pnl, PnLPct: pnlPct, BenchmarkReturnPct: benchmarkReturnPct,
	}
}
