package lockers

import (
	"math/big"

	"github.com/holiman/uint256"
)

var (
	bigOne           = big.NewInt(1)
	oneHundredBps    = big.NewInt(OneHundredPercent)
	healthThreshold  = big.NewInt(HealthFactor)
	upperHealth      = big.NewInt(UpperHealthFactor)
	discountBpsScale = big.NewInt(100_000_000)
)

func bps(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

func isZero(v *big.Int) bool { return v == nil || v.Sign() == 0 }

// requirePositive fails with ErrZeroAmount for a nil or zero amount and
// otherwise applies checkAmounts to amount and the optional companions.
func requirePositive(amount *big.Int, companions ...*big.Int) error {
	if isZero(amount) {
		return ErrZeroAmount
	}
	return checkAmounts(append([]*big.Int{amount}, companions...)...)
}

// mulDiv returns a*b/c rounded down. c must be non-zero.
func mulDiv(a, b, c *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// checkAmounts rejects negative values and values that do not fit in 256 bits.
// Nil values are skipped.
func checkAmounts(values ...*big.Int) error {
	for _, v := range values {
		if v == nil {
			continue
		}
		if v.Sign() < 0 {
			return ErrNegativeAmount
		}
		if _, overflow := uint256.FromBig(v); overflow {
			return ErrAmountOverflow
		}
	}
	return nil
}

// capacityOf is value·10000/CR − netMinted, floored at zero.
func capacityOf(value, netMinted *big.Int, collateralRatio uint64) *big.Int {
	if collateralRatio == 0 {
		return big.NewInt(0)
	}
	capacity := mulDiv(value, oneHundredBps, bps(collateralRatio))
	capacity.Sub(capacity, netMinted)
	if capacity.Sign() < 0 {
		return big.NewInt(0)
	}
	return capacity
}

// healthFactorOf returns value·10000·10000/(netMinted·LR) in basis points.
func healthFactorOf(value, netMinted *big.Int, liquidationRatio uint64) (*big.Int, error) {
	if isZero(netMinted) || liquidationRatio == 0 {
		return nil, ErrHealthUndefined
	}
	num := new(big.Int).Mul(value, oneHundredBps)
	num.Mul(num, oneHundredBps)
	den := new(big.Int).Mul(netMinted, bps(liquidationRatio))
	return num.Quo(num, den), nil
}

// maxRemovableOf converts the unused minting capacity back into collateral
// units: capacity·locked/value.
func maxRemovableOf(locked, value, netMinted *big.Int, collateralRatio uint64) *big.Int {
	if isZero(value) || isZero(locked) {
		return big.NewInt(0)
	}
	capacity := capacityOf(value, netMinted, collateralRatio)
	return mulDiv(capacity, locked, value)
}

// maxBuyableOf is the largest collateral amount a liquidator may buy so that
// the locker health does not exceed UpperHealthFactor afterwards. The locker
// is assumed unhealthy. When the discount is too steep for a liquidation to
// ever restore health the whole locked amount is buyable.
func maxBuyableOf(netMinted, locked, price, oneUnit *big.Int, liquidationRatio, discount uint64) *big.Int {
	lr := bps(liquidationRatio)
	num := new(big.Int).Mul(upperHealth, netMinted)
	num.Mul(num, lr)
	num.Quo(num, oneHundredBps)
	held := new(big.Int).Mul(locked, price)
	held.Mul(held, oneHundredBps)
	held.Quo(held, oneUnit)
	num.Sub(num, held)
	if num.Sign() <= 0 {
		return big.NewInt(0)
	}

	den := new(big.Int).Mul(upperHealth, lr)
	den.Mul(den, price)
	den.Mul(den, bps(discount))
	den.Quo(den, discountBpsScale)
	den.Sub(den, new(big.Int).Mul(price, oneHundredBps))
	if den.Sign() <= 0 {
		return new(big.Int).Set(locked)
	}
	num.Mul(num, oneUnit)
	return num.Quo(num, den)
}

// discountedCost prices collateral in pegged units at the discount ratio:
// floor(collateral·price·discount/(10000·oneUnit)) + 1.
func discountedCost(collateral, price, oneUnit *big.Int, discount uint64) *big.Int {
	cost := new(big.Int).Mul(collateral, price)
	cost.Mul(cost, bps(discount))
	cost.Quo(cost, new(big.Int).Mul(oneHundredBps, oneUnit))
	return cost.Add(cost, bigOne)
}

// idleSplit splits the idle-slash equivalent between the reporter and the
// compensation recipient pro rata to reward and inflated amount.
func idleSplit(equivalent, reward, inflatedAmount *big.Int) (rewardPaid, recipientAmount *big.Int) {
	total := new(big.Int).Add(inflatedAmount, reward)
	if total.Sign() == 0 {
		return big.NewInt(0), new(big.Int).Set(equivalent)
	}
	recipientAmount = mulDiv(equivalent, inflatedAmount, total)
	rewardPaid = new(big.Int).Sub(equivalent, recipientAmount)
	return rewardPaid, recipientAmount
}

// thiefSplit returns the reporter reward and the collateral reserved for sale,
// scaled down proportionally when they exceed the locked amount.
func thiefSplit(equivalent, rewardAmount, amount, locked *big.Int, liquidationRatio uint64) (reward, reserved *big.Int) {
	reward = mulDiv(equivalent, rewardAmount, amount)
	reserved = mulDiv(equivalent, bps(liquidationRatio), oneHundredBps)
	total := new(big.Int).Add(reward, reserved)
	if total.Cmp(locked) > 0 {
		reward = mulDiv(reward, locked, total)
		reserved = new(big.Int).Sub(locked, reward)
	}
	return reward, reserved
}
