package state

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	tokenPrefix     = []byte("token:")
	tokenListKey    = ethcrypto.Keccak256([]byte("token-list"))
	balancePrefix   = []byte("balance:")
	allowancePrefix = []byte("allowance:")
	supplyPrefix    = []byte("supply:")
	rolePrefix      = []byte("role:")
	pausePrefix     = []byte("pause:")
)

func hashed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func tokenMetadataKey(token common.Address) []byte {
	return hashed(tokenPrefix, token.Bytes())
}

func balanceKey(token, owner common.Address) []byte {
	return hashed(balancePrefix, token.Bytes(), owner.Bytes())
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return hashed(allowancePrefix, token.Bytes(), owner.Bytes(), spender.Bytes())
}

func supplyKey(token common.Address) []byte {
	return hashed(supplyPrefix, token.Bytes())
}

func roleKey(role string) []byte {
	return hashed(rolePrefix, []byte(role))
}

func pauseKey(module string) []byte {
	return hashed(pausePrefix, []byte(module))
}
