package vault

import (
	"math/big"

	"tenor/crypto"
	"tenor/native/fixedpoint"
)

func findCollateral(token DebtToken, asset crypto.Address) (Asset, bool) {
	for _, candidate := range token.Collaterals() {
		if candidate.Address.Equal(asset) {
			return candidate, true
		}
	}
	return Asset{}, false
}

// hypotheticalRatio prices lockedHyp units of the given collateral against
// debtHyp units of the market's underlying and returns the 18-decimal ratio
// between the two values. Zero locked collateral yields a zero ratio; zero or
// negative debt is rejected.
func (l *Ledger) hypotheticalRatio(token DebtToken, collateral crypto.Address, lockedHyp, debtHyp *big.Int) (*big.Int, error) {
	if lockedHyp == nil || lockedHyp.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if debtHyp == nil || debtHyp.Sign() <= 0 {
		return nil, ErrZeroDebt
	}
	asset, ok := findCollateral(token, collateral)
	if !ok {
		return nil, ErrUnsupportedCollateral
	}
	scalarBig, ok := token.CollateralPrecisionScalar(collateral)
	if !ok {
		return nil, ErrUnknownPrecisionData
	}

	collateralPrice, err := l.prices.GetAdjustedPrice(asset.Symbol)
	if err != nil {
		return nil, err
	}
	underlyingPrice, err := l.prices.GetAdjustedPrice(token.Underlying().Symbol)
	if err != nil {
		return nil, err
	}

	locked, err := fixedpoint.FromBig(lockedHyp)
	if err != nil {
		return nil, err
	}
	debt, err := fixedpoint.FromBig(debtHyp)
	if err != nil {
		return nil, err
	}
	scalar, err := fixedpoint.FromBig(scalarBig)
	if err != nil {
		return nil, err
	}
	collateralUsd, err := fixedpoint.FromBig(collateralPrice)
	if err != nil {
		return nil, err
	}
	underlyingUsd, err := fixedpoint.FromBig(underlyingPrice)
	if err != nil {
		return nil, err
	}

	lockedUpscaled, err := fixedpoint.Upscale(locked, scalar)
	if err != nil {
		return nil, err
	}
	lockedValue, err := fixedpoint.Mul(lockedUpscaled, collateralUsd)
	if err != nil {
		return nil, err
	}
	debtValue, err := fixedpoint.Mul(debt, underlyingUsd)
	if err != nil {
		return nil, err
	}
	ratio, err := fixedpoint.Div(lockedValue, debtValue)
	if err != nil {
		return nil, err
	}
	return ratio.ToBig(), nil
}

// ClutchableCollateral computes how much of the given collateral a liquidator
// may seize for repaying repayAmount of the market's underlying, including
// the liquidation incentive. The result is denominated in the collateral's
// native precision.
func (l *Ledger) ClutchableCollateral(market, collateral crypto.Address, repayAmount *big.Int) (*big.Int, error) {
	token, err := l.market(market)
	if err != nil {
		return nil, err
	}
	if repayAmount == nil || repayAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	asset, ok := findCollateral(token, collateral)
	if !ok {
		return nil, ErrUnsupportedCollateral
	}
	scalarBig, ok := token.CollateralPrecisionScalar(collateral)
	if !ok {
		return nil, ErrUnknownPrecisionData
	}

	incentiveBig := l.risk.LiquidationIncentive()
	if incentiveBig == nil || incentiveBig.Sign() == 0 {
		return big.NewInt(0), nil
	}

	collateralPrice, err := l.prices.GetAdjustedPrice(asset.Symbol)
	if err != nil {
		return nil, err
	}
	underlyingPrice, err := l.prices.GetAdjustedPrice(token.Underlying().Symbol)
	if err != nil {
		return nil, err
	}

	repay, err := fixedpoint.FromBig(repayAmount)
	if err != nil {
		return nil, err
	}
	incentive, err := fixedpoint.FromBig(incentiveBig)
	if err != nil {
		return nil, err
	}
	scalar, err := fixedpoint.FromBig(scalarBig)
	if err != nil {
		return nil, err
	}
	collateralUsd, err := fixedpoint.FromBig(collateralPrice)
	if err != nil {
		return nil, err
	}
	underlyingUsd, err := fixedpoint.FromBig(underlyingPrice)
	if err != nil {
		return nil, err
	}

	seizableValue, err := fixedpoint.Mul(repay, incentive)
	if err != nil {
		return nil, err
	}
	clutchableUpscaled, err := fixedpoint.MulDiv(seizableValue, underlyingUsd, collateralUsd)
	if err != nil {
		return nil, err
	}
	clutchable, err := fixedpoint.Downscale(clutchableUpscaled, scalar)
	if err != nil {
		return nil, err
	}
	return clutchable.ToBig(), nil
}
