package profit

// ImpactFunc models price impact as a function of trade size (in base-asset
// units) against a hop's liquidity estimate. Must be monotonically
// non-decreasing in size and return a value in [0,1).
//
// The calculator evaluates it at the cycle's base trade size on every hop,
// not at the hop's running input amount. Liquidity estimates are scalars
// with no common unit across venues, so treating size as the depth consumed
// in each hop's own book keeps the net-profit curve unimodal for the size
// search. A per-hop-input variant would need per-hop unit conversion to be
// meaningful.
type ImpactFunc func(size, liquidity float64) float64

// ConstantProduct is the default constant-product-style approximation
// size/(size+liquidity).
func ConstantProduct(size, liquidity float64) float64 {
	if size <= 0 {
		return 0
	}
	if liquidity <= 0 {
		return 1
	}
	return size / (size + liquidity)
}

// Linear scales impact as coef * size/liquidity, capped at 1.
func Linear(coef float64) ImpactFunc {
	return func(size, liquidity float64) float64 {
		if size <= 0 {
			return 0
		}
		if liquidity <= 0 {
			return 1
		}
		v := coef * size / liquidity
		if v > 1 {
			return 1
		}
		return v
	}
}

// NoImpact disables the slippage term entirely.
func NoImpact(size, liquidity float64) float64 { return 0 }

// ImpactByName resolves the configured model name.
func ImpactByName(name string, coef float64) (ImpactFunc, bool) {
	switch name {
	case "", "constant_product":
		return ConstantProduct, true
	case "linear":
		return Linear(coef), true
	case "none":
		return NoImpact, true
	}
	return nil, false
}
