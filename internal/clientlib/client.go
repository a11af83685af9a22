package clientlib

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/restfulpayload"
	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
	"github.com/CamberLoid/tzama/internal/users"
)

// Client 以 MainUser 的身份访问账本与解密服务。
// Ledger 非零时覆盖 /address 返回的账本地址
type Client struct {
	Server   *Server
	MainUser *users.User
	Ledger   types.Principal

	mu   sync.Mutex
	info *restfulpayload.AddressResp
}

func NewClient(serverURL string, mainUser *users.User) (*Client, error) {
	server, err := NewServer(serverURL)
	if err != nil {
		return nil, err
	}
	return &Client{Server: server, MainUser: mainUser}, nil
}

// Info 返回账本、解密服务和协处理器的地址，成功后缓存
func (c *Client) Info(ctx context.Context) (restfulpayload.AddressResp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info != nil {
		return *c.info, nil
	}
	var info restfulpayload.AddressResp
	if err := c.Server.call(ctx, http.MethodGet, restfulpayload.AddressEndpoint, nil, &info); err != nil {
		return info, err
	}
	c.info = &info
	return info, nil
}

// LedgerAddress 返回输入与解密请求所绑定的账本地址
func (c *Client) LedgerAddress(ctx context.Context) (types.Principal, error) {
	if c.Ledger != (types.Principal{}) {
		return c.Ledger, nil
	}
	info, err := c.Info(ctx)
	if err != nil {
		return types.Principal{}, err
	}
	return info.Ledger, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var resp restfulpayload.VersionResp
	if err := c.Server.call(ctx, http.MethodGet, restfulpayload.VersionEndpoint, nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// Faucet 为 to 铸造 amount，amount 必须为正
func (c *Client) Faucet(ctx context.Context, to types.Principal, amount uint64) (*transaction.Transaction, error) {
	if amount == 0 {
		return nil, errors.Wrap(types.ErrInvalidAmount, "faucet amount must be positive")
	}
	var resp restfulpayload.TxResp
	err := c.Server.call(ctx, http.MethodPost, restfulpayload.FaucetEndpoint, restfulpayload.FaucetReq{To: to, Amount: &amount}, &resp)
	return resp.Transaction, err
}

func (c *Client) Stake(ctx context.Context, value uint64) (*transaction.Transaction, error) {
	return c.move(ctx, transaction.KindStake, value)
}

func (c *Client) Unstake(ctx context.Context, value uint64) (*transaction.Transaction, error) {
	return c.move(ctx, transaction.KindUnstake, value)
}

// Encrypt 请求协处理器为 (账本, MainUser) 构造输入
func (c *Client) Encrypt(ctx context.Context, value uint64) (types.EncryptedInput, error) {
	ledger, err := c.LedgerAddress(ctx)
	if err != nil {
		return types.EncryptedInput{}, err
	}
	var resp restfulpayload.EncryptResp
	err = c.Server.call(ctx, http.MethodPost, restfulpayload.EncryptEndpoint, restfulpayload.EncryptReq{
		Value:     value,
		Contract:  ledger,
		Submitter: c.MainUser.Address(),
	}, &resp)
	return resp.Input, err
}

func (c *Client) move(ctx context.Context, kind transaction.Kind, value uint64) (*transaction.Transaction, error) {
	if value == 0 {
		return nil, errors.Wrapf(types.ErrInvalidAmount, "%s value must be positive", kind)
	}
	in, err := c.Encrypt(ctx, value)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt input")
	}
	return c.Submit(ctx, kind, in)
}

// Submit 签名并提交一个已构造好的输入
func (c *Client) Submit(ctx context.Context, kind transaction.Kind, in types.EncryptedInput) (*transaction.Transaction, error) {
	endpoint := restfulpayload.StakeEndpoint
	if kind == transaction.KindUnstake {
		endpoint = restfulpayload.UnstakeEndpoint
	}
	sig, err := c.MainUser.Sign(transaction.RequestDigest(kind, in))
	if err != nil {
		return nil, errors.Wrap(err, "sign request")
	}
	var resp restfulpayload.TxResp
	err = c.Server.call(ctx, http.MethodPost, endpoint, restfulpayload.TxReq{
		Caller:    c.MainUser.Address(),
		Input:     in,
		Signature: sig,
	}, &resp)
	return resp.Transaction, err
}

func (c *Client) Transaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var resp restfulpayload.TxResp
	err := c.Server.call(ctx, http.MethodGet, restfulpayload.TransactionEndpoint+"/"+id.String(), nil, &resp)
	return resp.Transaction, err
}
