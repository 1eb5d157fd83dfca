package tree

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/notetree/pkg/util"
)

var errNegativeValue = errors.New("negative value")

// parseValue parses leaf value given either as 0x-prefixed big-endian hex
// or as a decimal number.
func parseValue(s string) (util.Uint256, error) {
	if strings.HasPrefix(s, "0x") {
		return util.Uint256DecodeStringBE(s)
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return util.Uint256{}, fmt.Errorf("invalid value %q: neither 0x-prefixed hex nor decimal", s)
	}
	if b.Sign() < 0 {
		return util.Uint256{}, fmt.Errorf("%w: %s", errNegativeValue, s)
	}
	var v uint256.Int
	if overflow := v.SetFromBig(b); overflow {
		return util.Uint256{}, fmt.Errorf("value %s has more than 256 bits", s)
	}
	return util.Uint256(v.Bytes32()), nil
}

func parseValues(args []string) ([]util.Uint256, error) {
	res := make([]util.Uint256, len(args))
	for i := range args {
		v, err := parseValue(args[i])
		if err != nil {
			return nil, fmt.Errorf("value #%d: %w", i, err)
		}
		res[i] = v
	}
	return res, nil
}
