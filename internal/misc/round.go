package misc

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/types"
)

// MaxCKKSValue 是 CKKS 协处理器可以精确还原的最大明文
// PN12QP109 的默认 scale 为 2^32，超过这个范围四舍五入后不再可靠
const MaxCKKSValue uint64 = 1 << 32

// RoundToUint 将 CKKS 解码得到的近似值还原为整数
func RoundToUint(v float64) (uint64, error) {
	rounded := math.Round(v)
	if rounded < 0 || rounded > float64(MaxCKKSValue) || math.IsNaN(rounded) {
		return 0, errors.Wrapf(types.ErrValueOutOfRange, "decoded %.3f", v)
	}
	return uint64(rounded), nil
}
