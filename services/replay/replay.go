package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"corebtc/config"
	"corebtc/core"
	"corebtc/crypto"
	"corebtc/native/lockers"
	telemetry "corebtc/observability/otel"
)

const maxLineBytes = 1 << 20

var tracer = telemetry.Tracer("corebtc/replay")

// Op is one line of an operation log. Fields not used by an operation must be
// left empty.
type Op struct {
	Op              string  `json:"op"`
	Caller          string  `json:"caller,omitempty"`
	Time            int64   `json:"time,omitempty"`
	Locker          string  `json:"locker,omitempty"`
	Account         string  `json:"account,omitempty"`
	Token           string  `json:"token,omitempty"`
	Amount          string  `json:"amount,omitempty"`
	Value           string  `json:"value,omitempty"`
	LockingScript   string  `json:"lockingScript,omitempty"`
	LockingAddress  string  `json:"lockingAddress,omitempty"`
	RescueType      string  `json:"rescueType,omitempty"`
	RescueScript    string  `json:"rescueScript,omitempty"`
	Recipient       string  `json:"recipient,omitempty"`
	RewardAmount    string  `json:"rewardAmount,omitempty"`
	RewardRecipient string  `json:"rewardRecipient,omitempty"`
	TxRef           string  `json:"txRef,omitempty"`
	Param           *uint64 `json:"param,omitempty"`
	Price           string  `json:"price,omitempty"`
	Decimals        uint8   `json:"decimals,omitempty"`
}

// Failure records an operation that was rolled back.
type Failure struct {
	Line int    `json:"line"`
	Op   string `json:"op"`
	Err  string `json:"error"`
}

// Result summarises a replay.
type Result struct {
	Applied  int       `json:"applied"`
	Failures []Failure `json:"failures"`
}

// Options tunes Run.
type Options struct {
	// Strict stops at the first failed operation.
	Strict bool
	Logger *slog.Logger
}

// ErrUnknownOp is returned for operation names the replayer does not know.
var ErrUnknownOp = errors.New("replay: unknown operation")

type handler func(n *core.Node, a *args) error

var handlers = map[string]handler{
	"fund":    fund,
	"approve": approve,
	"price":   price,

	"request":              request,
	"revoke_request":       callerOnly((*lockers.Engine).RevokeRequest),
	"add_locker":           callerAndAccount("locker", (*lockers.Engine).AddLocker),
	"request_inactivation": callerOnly((*lockers.Engine).RequestInactivation),
	"request_activation":   callerOnly((*lockers.Engine).RequestActivation),
	"self_remove":          callerOnly((*lockers.Engine).SelfRemoveLocker),
	"add_collateral":       addCollateral,
	"remove_collateral":    removeCollateral,
	"slash_idle":           slashIdle,
	"slash_thief":          slashThief,
	"buy_slashed":          buySlashed,
	"liquidate":            liquidate,
	"mint":                 mint,
	"burn":                 burn,

	"add_minter":         callerAndAccount("account", (*lockers.Engine).AddMinter),
	"remove_minter":      callerAndAccount("account", (*lockers.Engine).RemoveMinter),
	"add_burner":         callerAndAccount("account", (*lockers.Engine).AddBurner),
	"remove_burner":      callerAndAccount("account", (*lockers.Engine).RemoveBurner),
	"pause":              callerOnly((*lockers.Engine).Pause),
	"unpause":            callerOnly((*lockers.Engine).Unpause),
	"set_burn_router":    callerAndAccount("account", (*lockers.Engine).SetBurnRouter),
	"transfer_ownership": callerAndAccount("account", (*lockers.Engine).TransferOwnership),

	"set_locker_fee":                callerAndParam((*lockers.Engine).SetLockerPercentageFee),
	"set_slash_compensation_ratio":  callerAndParam((*lockers.Engine).SetSlashCompensationRatio),
	"set_price_with_discount_ratio": callerAndParam((*lockers.Engine).SetPriceWithDiscountRatio),
	"set_collateral_ratio":          callerAndParam((*lockers.Engine).SetCollateralRatio),
	"set_liquidation_ratio":         callerAndParam((*lockers.Engine).SetLiquidationRatio),
	"set_inactivation_delay":        callerAndParam((*lockers.Engine).SetInactivationDelay),

	"catalog_add_asset":          catalogAddAsset,
	"catalog_remove_asset":       catalogRemoveAsset,
	"catalog_set_min_locked":     catalogSetMinLocked,
	"catalog_transfer_ownership": catalogTransferOwnership,
}

// Ops returns the supported operation names.
func Ops() []string {
	out := make([]string, 0, len(handlers))
	for name := range handlers {
		out = append(out, name)
	}
	return out
}

// Run applies every operation read from r in order. Each operation commits
// on success and is rolled back on failure. Blank lines and lines starting
// with '#' are skipped. The node clock is pinned to each operation's time and
// released when Run returns.
func Run(ctx context.Context, node *core.Node, r io.Reader, opts Options) (*Result, error) {
	if node == nil {
		return nil, errors.New("replay: node required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defer node.Clock().Pin(0)

	result := &Result{Failures: []Failure{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return result, err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		op, err := decodeOp(raw)
		name := ""
		if op != nil {
			name = op.Op
		}
		_, span := tracer.Start(ctx, "replay."+name)
		span.SetAttributes(attribute.Int("replay.line", line))
		if err == nil {
			err = Apply(node, op)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if err != nil {
			result.Failures = append(result.Failures, Failure{Line: line, Op: name, Err: err.Error()})
			logger.Warn("replay op failed", slog.Int("line", line), slog.String("op", name), slog.Any("error", err))
			if opts.Strict {
				return result, fmt.Errorf("replay: line %d: %w", line, err)
			}
			continue
		}
		result.Applied++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("replay: read: %w", err)
	}
	logger.Info("replay finished", slog.Int("applied", result.Applied), slog.Int("failed", len(result.Failures)))
	return result, nil
}

func decodeOp(raw []byte) (*Op, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	op := new(Op)
	if err := dec.Decode(op); err != nil {
		return nil, fmt.Errorf("replay: decode: %w", err)
	}
	return op, nil
}

// Apply runs a single operation against the node as one commit.
func Apply(node *core.Node, op *Op) error {
	name := strings.ToLower(strings.TrimSpace(op.Op))
	h, ok := handlers[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownOp, op.Op)
	}
	if op.Time > 0 {
		node.Clock().Pin(op.Time)
	}
	return node.Apply(func() error {
		a := &args{op: op, node: node}
		if err := h(node, a); err != nil {
			return err
		}
		return a.err
	})
}

// args parses operation fields, keeping the first error.
type args struct {
	op   *Op
	node *core.Node
	err  error
}

func (a *args) fail(field string, err error) {
	if a.err == nil {
		a.err = fmt.Errorf("replay: %s: %w", field, err)
	}
}

func (a *args) address(field, raw string) common.Address {
	if a.err != nil {
		return common.Address{}
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		a.fail(field, err)
	}
	return addr
}

func (a *args) caller() common.Address { return a.address("caller", a.op.Caller) }

func (a *args) token() common.Address {
	if a.err != nil {
		return common.Address{}
	}
	token, err := config.TokenAddress(a.op.Token)
	if err != nil {
		a.fail("token", err)
	}
	return token
}

func (a *args) amount(field, raw string) *big.Int {
	if a.err != nil {
		return nil
	}
	v, err := config.ParseAmount(raw)
	if err != nil {
		a.fail(field, err)
	}
	return v
}

func (a *args) optionalAmount(field, raw string) *big.Int {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(0)
	}
	return a.amount(field, raw)
}

func (a *args) hexBytes(field, raw string) []byte {
	if a.err != nil {
		return nil
	}
	out, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		a.fail(field, err)
	}
	return out
}

// lockingScript accepts either a hex script or a Bitcoin address.
func (a *args) lockingScript() []byte {
	if a.err != nil {
		return nil
	}
	if addr := strings.TrimSpace(a.op.LockingAddress); addr != "" {
		script, err := crypto.LockingScriptFromAddress(addr, a.node.Network())
		if err != nil {
			a.fail("lockingAddress", err)
		}
		return script
	}
	return a.hexBytes("lockingScript", a.op.LockingScript)
}

func (a *args) param() uint64 {
	if a.op.Param == nil {
		a.fail("param", errors.New("required"))
		return 0
	}
	return *a.op.Param
}

func callerOnly(fn func(*lockers.Engine, common.Address) error) handler {
	return func(n *core.Node, a *args) error {
		caller := a.caller()
		if a.err != nil {
			return a.err
		}
		return fn(n.Lockers(), caller)
	}
}

func callerAndAccount(field string, fn func(*lockers.Engine, common.Address, common.Address) error) handler {
	return func(n *core.Node, a *args) error {
		caller := a.caller()
		raw := a.op.Account
		if field == "locker" {
			raw = a.op.Locker
		}
		account := a.address(field, raw)
		if a.err != nil {
			return a.err
		}
		return fn(n.Lockers(), caller, account)
	}
}

func callerAndParam(fn func(*lockers.Engine, common.Address, uint64) error) handler {
	return func(n *core.Node, a *args) error {
		caller := a.caller()
		v := a.param()
		if a.err != nil {
			return a.err
		}
		return fn(n.Lockers(), caller, v)
	}
}

func fund(n *core.Node, a *args) error {
	account := a.address("account", a.op.Account)
	token := a.token()
	amount := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	return n.State().Credit(token, account, amount)
}

// approve lets the registry account spend the caller's tokens.
func approve(n *core.Node, a *args) error {
	caller := a.caller()
	token := a.token()
	amount := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	return n.State().Approve(token, caller, n.RegistryAccount(), amount)
}

func price(n *core.Node, a *args) error {
	token := a.token()
	p := a.amount("price", a.op.Price)
	if a.err != nil {
		return a.err
	}
	return n.Oracle().SetFeed(token, p, a.op.Decimals, n.Clock().Now())
}

func request(n *core.Node, a *args) error {
	caller := a.caller()
	script := a.lockingScript()
	locked := a.amount("amount", a.op.Amount)
	value := a.optionalAmount("value", a.op.Value)
	token := a.token()
	rescue := a.hexBytes("rescueScript", a.op.RescueScript)
	if a.err != nil {
		return a.err
	}
	rescueType, err := crypto.ParseScriptType(a.op.RescueType)
	if err != nil {
		return fmt.Errorf("replay: rescueType: %w", err)
	}
	return n.Lockers().RequestToBecomeLocker(caller, lockers.RequestParams{
		LockingScript:    script,
		LockedAmount:     locked,
		RescueScriptType: rescueType,
		RescueScript:     rescue,
		CollateralToken:  token,
	}, value)
}

func addCollateral(n *core.Node, a *args) error {
	caller := a.caller()
	locker := a.address("locker", a.op.Locker)
	amount := a.amount("amount", a.op.Amount)
	value := a.optionalAmount("value", a.op.Value)
	if a.err != nil {
		return a.err
	}
	return n.Lockers().AddCollateral(caller, locker, amount, value)
}

func removeCollateral(n *core.Node, a *args) error {
	caller := a.caller()
	amount := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	return n.Lockers().RemoveCollateral(caller, amount)
}

func slashIdle(n *core.Node, a *args) error {
	caller := a.caller()
	locker := a.address("locker", a.op.Locker)
	reward := a.optionalAmount("rewardAmount", a.op.RewardAmount)
	rewardRecipient := a.address("rewardRecipient", a.op.RewardRecipient)
	amount := a.amount("amount", a.op.Amount)
	recipient := a.address("recipient", a.op.Recipient)
	if a.err != nil {
		return a.err
	}
	_, err := n.Lockers().SlashIdleLocker(caller, locker, reward, rewardRecipient, amount, recipient)
	return err
}

func slashThief(n *core.Node, a *args) error {
	caller := a.caller()
	locker := a.address("locker", a.op.Locker)
	reward := a.optionalAmount("rewardAmount", a.op.RewardAmount)
	rewardRecipient := a.address("rewardRecipient", a.op.RewardRecipient)
	amount := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	_, err := n.Lockers().SlashThiefLocker(caller, locker, reward, rewardRecipient, amount)
	return err
}

func buySlashed(n *core.Node, a *args) error {
	caller := a.caller()
	locker := a.address("locker", a.op.Locker)
	amount := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	_, err := n.Lockers().BuySlashedCollateralOfLocker(caller, locker, amount)
	return err
}

func liquidate(n *core.Node, a *args) error {
	caller := a.caller()
	locker := a.address("locker", a.op.Locker)
	amount := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	_, err := n.Lockers().LiquidateLocker(caller, locker, amount)
	return err
}

func mint(n *core.Node, a *args) error {
	caller := a.caller()
	script := a.lockingScript()
	recipient := a.address("recipient", a.op.Recipient)
	amount := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	_, err := n.Lockers().Mint(caller, script, recipient, common.HexToHash(a.op.TxRef), amount)
	return err
}

func burn(n *core.Node, a *args) error {
	caller := a.caller()
	script := a.lockingScript()
	amount := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	_, err := n.Lockers().Burn(caller, script, amount)
	return err
}

func catalogAddAsset(n *core.Node, a *args) error {
	caller := a.caller()
	token := a.token()
	minLocked := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	return n.Catalog().AddAsset(caller, token, minLocked)
}

func catalogRemoveAsset(n *core.Node, a *args) error {
	caller := a.caller()
	token := a.token()
	if a.err != nil {
		return a.err
	}
	return n.Catalog().RemoveAsset(caller, token)
}

func catalogSetMinLocked(n *core.Node, a *args) error {
	caller := a.caller()
	token := a.token()
	minLocked := a.amount("amount", a.op.Amount)
	if a.err != nil {
		return a.err
	}
	return n.Catalog().SetMinLockedAmount(caller, token, minLocked)
}

func catalogTransferOwnership(n *core.Node, a *args) error {
	caller := a.caller()
	account := a.address("account", a.op.Account)
	if a.err != nil {
		return a.err
	}
	return n.Catalog().TransferOwnership(caller, account)
}
