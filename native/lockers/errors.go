package lockers

import "errors"

var (
	errNilState        = errors.New("lockers: state not configured")
	errNilCollaborator = errors.New("lockers: collaborator not configured")

	ErrNotInitialized     = errors.New("lockers: registry not initialised")
	ErrAlreadyInitialized = errors.New("lockers: registry already initialised")
	ErrReentrant          = errors.New("lockers: reentrant call")
	ErrNotOwner           = errors.New("lockers: caller is not the owner")
	ErrNotBurnRouter      = errors.New("lockers: caller is not the burn router")
	ErrNotMinter          = errors.New("lockers: only minters can mint")
	ErrNotBurner          = errors.New("lockers: only burners can burn")
	ErrPaused             = errors.New("lockers: paused")
	ErrNotPaused          = errors.New("lockers: not paused")

	ErrZeroAddress     = errors.New("lockers: address is zero")
	ErrZeroAmount      = errors.New("lockers: amount is zero")
	ErrNegativeAmount  = errors.New("lockers: negative amount")
	ErrBelowOneHundred = errors.New("lockers: less than 100%")
	ErrAboveOneHundred = errors.New("lockers: more than 100%")
	ErrCollateralRatio = errors.New("lockers: must CR > LR")
	ErrAmountOverflow  = errors.New("lockers: amount exceeds 256 bits")

	ErrIsCandidate        = errors.New("lockers: is candidate")
	ErrIsLocker           = errors.New("lockers: is locker")
	ErrUnsupportedToken   = errors.New("lockers: unsupported collateral")
	ErrLowCollateral      = errors.New("lockers: low collateral")
	ErrValueMismatch      = errors.New("lockers: value does not match locked amount")
	ErrUnexpectedValue    = errors.New("lockers: value sent for token collateral")
	ErrUsedLockingScript  = errors.New("lockers: used locking script")
	ErrEmptyLockingScript = errors.New("lockers: empty locking script")
	ErrInvalidRescue      = errors.New("lockers: invalid rescue script")
	ErrNoRequest          = errors.New("lockers: no request")
	ErrNoLocker           = errors.New("lockers: no locker")
	ErrAlreadyRequested   = errors.New("lockers: locker has already requested")
	ErrStillActive        = errors.New("lockers: still active")
	ErrNetMinted          = errors.New("lockers: net minted is not zero")
	ErrSlashingPending    = errors.New("lockers: slashing amount is not zero")
	ErrNotValidLocker     = errors.New("lockers: input address is not a valid locker")
	ErrNotActive          = errors.New("lockers: not active")

	ErrInsufficientCapacity = errors.New("lockers: insufficient capacity")
	ErrHealthUndefined      = errors.New("lockers: netMinted or liquidationRatio is zero")
	ErrHealthy              = errors.New("lockers: is healthy")
	ErrMaxRemovable         = errors.New("lockers: more than max removable collateral")
	ErrBelowMinCollateral   = errors.New("lockers: less than min collateral")
	ErrNotEnoughCollateral  = errors.New("lockers: not enough collateral to buy")
	ErrNotEnoughSlashed     = errors.New("lockers: not enough slashed collateral to buy")
	ErrSlashedCostExceeded  = errors.New("lockers: cost exceeds slashed amount")
	ErrCostExceedsNetMinted = errors.New("lockers: cost exceeds net minted")
	ErrBurnExceedsNetMinted = errors.New("lockers: burn exceeds net minted")
	ErrZeroValue            = errors.New("lockers: value is zero")
)
