package clientlib

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/handshake"
	"github.com/CamberLoid/tzama/internal/restfulpayload"
	"github.com/CamberLoid/tzama/internal/types"
)

// Handles 是某个账户当前的密文句柄
type Handles struct {
	Contract types.Principal
	Wallet   types.Handle
	Staked   types.Handle
	Total    types.Handle
}

// Balances 是解密后的余额。
// 总质押量只对被授权的账户可见，TotalKnown 为假时 Total 无意义
type Balances struct {
	Owner      types.Principal
	Wallet     uint64
	Staked     uint64
	Total      uint64
	TotalKnown bool
}

func (c *Client) handle(ctx context.Context, endpoint string) (restfulpayload.HandleResp, error) {
	var resp restfulpayload.HandleResp
	err := c.Server.call(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Handles 读取 owner 的钱包、质押与总质押句柄
func (c *Client) Handles(ctx context.Context, owner types.Principal) (Handles, error) {
	var out Handles
	wallet, err := c.handle(ctx, restfulpayload.BalanceEndpoint+"/"+owner.Hex())
	if err != nil {
		return out, err
	}
	staked, err := c.handle(ctx, restfulpayload.StakedEndpoint+"/"+owner.Hex())
	if err != nil {
		return out, err
	}
	total, err := c.handle(ctx, restfulpayload.TotalEndpoint)
	if err != nil {
		return out, err
	}
	contract := wallet.Contract
	if c.Ledger != (types.Principal{}) {
		contract = c.Ledger
	}
	return Handles{Contract: contract, Wallet: wallet.Handle, Staked: staked.Handle, Total: total.Handle}, nil
}

func (c *Client) domain(ctx context.Context) (handshake.Domain, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return handshake.Domain{}, err
	}
	return handshake.Domain{ChainID: info.ChainID, VerifyingContract: info.KMS}, nil
}

// Decrypt 以 MainUser 的身份跑一次解密握手
func (c *Client) Decrypt(ctx context.Context, pairs []types.HandleContractPair) (map[types.Handle]uint64, error) {
	domain, err := c.domain(ctx)
	if err != nil {
		return nil, err
	}
	signer := handshake.NewKeySigner(c.MainUser.SigningKey.PrivateKey)
	return handshake.UserDecrypt(ctx, c, signer, domain, pairs, handshake.DefaultGrantDuration)
}

// Balances 读取并解密 owner 的余额。owner 必须是 MainUser 本人，
// 否则服务端会拒绝解密。总质押量单独请求，未被授权时不影响其余结果。
func (c *Client) Balances(ctx context.Context, owner types.Principal) (Balances, error) {
	out := Balances{Owner: owner}
	h, err := c.Handles(ctx, owner)
	if err != nil {
		return out, err
	}
	values, err := c.Decrypt(ctx, []types.HandleContractPair{
		{Handle: h.Wallet, Contract: h.Contract},
		{Handle: h.Staked, Contract: h.Contract},
	})
	if err != nil {
		return out, err
	}
	out.Wallet, out.Staked = values[h.Wallet], values[h.Staked]

	total, err := c.Decrypt(ctx, []types.HandleContractPair{{Handle: h.Total, Contract: h.Contract}})
	switch {
	case err == nil:
		out.Total, out.TotalKnown = total[h.Total], true
	case errors.Is(err, types.ErrDecryptionUnauthorized):
	default:
		return out, err
	}
	return out, nil
}

// UserDecrypt 实现 handshake.Transport
func (c *Client) UserDecrypt(ctx context.Context, req *handshake.Request) (handshake.Response, error) {
	var resp restfulpayload.DecryptResp
	if err := c.Server.call(ctx, http.MethodPost, restfulpayload.DecryptEndpoint, req, &resp); err != nil {
		return nil, err
	}
	return resp.Sealed, nil
}
