package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// WeiToEther formats an amount of wei as a decimal ether string without
// losing precision.
func WeiToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	sign := ""
	abs := new(big.Int).Set(wei)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	whole, frac := new(big.Int).QuoRem(abs, big.NewInt(params.Ether), new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}

	fs := frac.String()
	fs = strings.Repeat("0", 18-len(fs)) + fs

	return sign + whole.String() + "." + strings.TrimRight(fs, "0")
}
