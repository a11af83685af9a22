package clientlib

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/types"
)

// ParseAmount 解析命令行给出的数额，必须为正整数
func ParseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(types.ErrInvalidAmount, "%q is not a positive integer", s)
	}
	if v == 0 {
		return 0, errors.Wrap(types.ErrInvalidAmount, "amount must be positive")
	}
	return v, nil
}
