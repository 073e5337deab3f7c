package lockers

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	paramsKey          = []byte("lockers/params")
	countersKey        = []byte("lockers/counters")
	recordPrefix       = []byte("lockers/record/")
	scriptPrefix       = []byte("lockers/script/")
	usagePrefix        = []byte("lockers/usage/")
	candidateList      = addressList{list: []byte("lockers/candidates"), index: []byte("lockers/candidates/index/")}
	admittedLockerList = addressList{list: []byte("lockers/admitted"), index: []byte("lockers/admitted/index/")}
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	key := append([]byte(nil), prefix...)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	Snapshot() int
	RevertToSnapshot(id int)
	SetRole(role string, addr []byte) error
	RemoveRole(role string, addr []byte) error
	HasRole(role string, addr []byte) bool
	SetPaused(module string, paused bool) error
	IsPaused(module string) bool
}

// addressList is a dense address vector with a reverse index supporting
// swap-remove. Slots are stored +1 so that zero means absent.
type addressList struct {
	list  []byte
	index []byte
}

func (l addressList) indexKey(addr common.Address) []byte {
	return prefixed(l.index, addr.Bytes())
}

func (l addressList) members(st engineState) ([]common.Address, error) {
	var out []common.Address
	if _, err := st.KVGet(l.list, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (l addressList) contains(st engineState, addr common.Address) (bool, error) {
	var slot uint64
	ok, err := st.KVGet(l.indexKey(addr), &slot)
	if err != nil {
		return false, err
	}
	return ok && slot > 0, nil
}

func (l addressList) add(st engineState, addr common.Address) error {
	present, err := l.contains(st, addr)
	if err != nil || present {
		return err
	}
	members, err := l.members(st)
	if err != nil {
		return err
	}
	members = append(members, addr)
	if err := st.KVPut(l.list, members); err != nil {
		return err
	}
	return st.KVPut(l.indexKey(addr), uint64(len(members)))
}

func (l addressList) remove(st engineState, addr common.Address) error {
	var slot uint64
	ok, err := st.KVGet(l.indexKey(addr), &slot)
	if err != nil {
		return err
	}
	if !ok || slot == 0 {
		return nil
	}
	members, err := l.members(st)
	if err != nil {
		return err
	}
	idx := int(slot - 1)
	if idx >= len(members) {
		return fmt.Errorf("lockers: corrupt index for %s", addr.Hex())
	}
	last := len(members) - 1
	if idx != last {
		members[idx] = members[last]
		if err := st.KVPut(l.indexKey(members[idx]), uint64(idx)+1); err != nil {
			return err
		}
	}
	members = members[:last]
	if err := st.KVPut(l.list, members); err != nil {
		return err
	}
	return st.KVDelete(l.indexKey(addr))
}

func (e *Engine) loadParams() (*Params, error) {
	params := new(Params)
	ok, err := e.state.KVGet(paramsKey, params)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return params, nil
}

func (e *Engine) putParams(params *Params) error {
	return e.state.KVPut(paramsKey, params)
}

func (e *Engine) loadLocker(addr common.Address) (*Locker, error) {
	record := newLocker()
	if _, err := e.state.KVGet(prefixed(recordPrefix, addr.Bytes()), record); err != nil {
		return nil, err
	}
	record.normalize()
	return record, nil
}

func (e *Engine) putLocker(addr common.Address, record *Locker) error {
	if err := checkAmounts(record.LockedAmount, record.NetMinted, record.SlashingCoreBTCAmount, record.ReservedTokenForSlash); err != nil {
		return fmt.Errorf("%w: locker %s", err, addr.Hex())
	}
	return e.state.KVPut(prefixed(recordPrefix, addr.Bytes()), record)
}

func (e *Engine) scriptOwner(script []byte) (common.Address, bool, error) {
	var owner common.Address
	ok, err := e.state.KVGet(prefixed(scriptPrefix, script), &owner)
	if err != nil {
		return common.Address{}, false, err
	}
	if !ok || owner == (common.Address{}) {
		return common.Address{}, false, nil
	}
	return owner, true, nil
}

func (e *Engine) bindScript(script []byte, owner common.Address) error {
	return e.state.KVPut(prefixed(scriptPrefix, script), owner)
}

func (e *Engine) unbindScript(script []byte) error {
	return e.state.KVDelete(prefixed(scriptPrefix, script))
}

func (e *Engine) loadCounters() (*Counters, error) {
	counters := new(Counters)
	if _, err := e.state.KVGet(countersKey, counters); err != nil {
		return nil, err
	}
	return counters, nil
}

func (e *Engine) putCounters(counters *Counters) error {
	return e.state.KVPut(countersKey, counters)
}

func (e *Engine) usage(token common.Address) (uint64, error) {
	var count uint64
	if _, err := e.state.KVGet(prefixed(usagePrefix, token.Bytes()), &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Engine) adjustUsage(token common.Address, delta int) error {
	count, err := e.usage(token)
	if err != nil {
		return err
	}
	key := prefixed(usagePrefix, token.Bytes())
	switch {
	case delta > 0:
		count += uint64(delta)
	case uint64(-delta) >= count:
		return e.state.KVDelete(key)
	default:
		count -= uint64(-delta)
	}
	return e.state.KVPut(key, count)
}
