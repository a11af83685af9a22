package types

// EncryptedInput 是客户端构造的密文输入：句柄加上证明。
// 证明保证密文编码的是 64 位无符号整数，且只对 (账本地址, 提交者) 有效。
// 每个输入只能被可变入口消费一次。
type EncryptedInput struct {
	Handle Handle `json:"handle"`
	Proof  []byte `json:"proof"`
}

// HandleContractPair 是解密请求中的一项：句柄以及持有它的合约地址
type HandleContractPair struct {
	Handle   Handle    `json:"handle"`
	Contract Principal `json:"contractAddress"`
}
