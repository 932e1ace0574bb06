package validator

// validatePriceSource checks the stocks/crypto root shape: an object
// with "symbol" and a "prices" array of OHLCV bars (grounded on the
// original crypto ingestion collaborator's CoinGecko-shaped output:
// {symbol, prices: [{timestamp, open, high, low, close, volume}], metadata}).
func validatePriceSource(payload interface{}) Result {
	root, ok := asMap(payload)
	if !ok {
		return Result{Valid: false, Errors: []string{"root must be an object"}}
	}

	var errs, warnings []string
	requireString(root, "symbol", &errs)

	prices, ok := asSlice(root["prices"])
	if !ok {
		errs = append(errs, "missing or non-array field \"prices\"")
		return Result{Valid: false, Errors: errs, Warnings: warnings}
	}
	if len(prices) == 0 {
		warnings = append(warnings, "empty prices array")
	}

	for _, p := range prices {
		bar, ok := asMap(p)
		if !ok {
			errs = append(errs, "price bar is not an object")
			continue
		}
		requireString(bar, "timestamp", &errs)
		requireNumber(bar, "open", &errs)
		requireNumber(bar, "high", &errs)
		requireNumber(bar, "low", &errs)
		requireNumber(bar, "close", &errs)
		if _, ok := bar["volume"]; !ok {
			warnings = append(warnings, "price bar missing volume")
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}
