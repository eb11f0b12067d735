package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	orderTypeHash  = crypto.Keccak256([]byte(OrderStructType))
	domainTypeHash = crypto.Keccak256([]byte(EIP712DomainType))
)

// BuildDomainSeparator 计算 CTF Exchange 的 EIP712 域分隔符
func BuildDomainSeparator(chainID int64, verifyingContract common.Address) [32]byte {
	buf := make([]byte, 0, 5*32)
	buf = append(buf, domainTypeHash...)
	buf = append(buf, crypto.Keccak256([]byte(ExchangeDomainName))...)
	buf = append(buf, crypto.Keccak256([]byte(ExchangeDomainVersion))...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(verifyingContract.Bytes(), 32)...)

	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

func uintWord(v int64) [32]byte {
	var out [32]byte
	copy(out[:], common.LeftPadBytes(big.NewInt(v).Bytes(), 32))
	return out
}

func bigWord(v *big.Int) [32]byte {
	var out [32]byte
	copy(out[:], common.LeftPadBytes(v.Bytes(), 32))
	return out
}

func addressWord(a common.Address) [32]byte {
	var out [32]byte
	copy(out[:], common.LeftPadBytes(a.Bytes(), 32))
	return out
}

type tokenWordEntry struct {
	id   string
	word [32]byte
}

// OrderHasher 订单哈希快路径
// maker/signer/sigType 以及所有常量操作数在初始化时填充为 32 字节字，
// 每次下单只需填 salt、tokenId 和两个数量
type OrderHasher struct {
	domainSeparator [32]byte

	makerWord   [32]byte
	signerWord  [32]byte
	sigTypeWord [32]byte

	zeroWord     [32]byte // taker / expiration / nonce
	feeRateWord  [32]byte
	sideBuyWord  [32]byte
	sideSellWord [32]byte

	// 最近两个 tokenId 的字缓存（一个市场只有 up/down 两个 token）
	mu         sync.Mutex
	tokenCache [2]tokenWordEntry
}

// NewOrderHasher 创建订单哈希器
func NewOrderHasher(maker, signer common.Address, sigType int, chainID int64) *OrderHasher {
	return &OrderHasher{
		domainSeparator: BuildDomainSeparator(chainID, common.HexToAddress(ExchangeAddress)),
		makerWord:       addressWord(maker),
		signerWord:      addressWord(signer),
		sigTypeWord:     uintWord(int64(sigType)),
		feeRateWord:     uintWord(FeeRateBps),
		sideBuyWord:     uintWord(0),
		sideSellWord:    uintWord(1),
	}
}

// DomainSeparator 返回缓存的域分隔符
func (h *OrderHasher) DomainSeparator() [32]byte {
	return h.domainSeparator
}

func (h *OrderHasher) tokenWord(tokenID string) ([32]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.tokenCache {
		if e.id == tokenID {
			return e.word, nil
		}
	}

	v, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return [32]byte{}, fmt.Errorf("无效的 tokenId: %s", tokenID)
	}
	w := bigWord(v)

	// 滑动保留最近两个
	h.tokenCache[1] = h.tokenCache[0]
	h.tokenCache[0] = tokenWordEntry{id: tokenID, word: w}
	return w, nil
}

// HashOrder 计算订单结构哈希
// keccak256(typeHash || salt || maker || signer || taker || tokenId ||
//           makerAmount || takerAmount || expiration || nonce || feeRateBps || side || sigType)
func (h *OrderHasher) HashOrder(salt int64, tokenID string, makerAmount, takerAmount *big.Int, isBuy bool) ([32]byte, error) {
	tokenW, err := h.tokenWord(tokenID)
	if err != nil {
		return [32]byte{}, err
	}

	sideW := h.sideSellWord
	if isBuy {
		sideW = h.sideBuyWord
	}

	saltW := uintWord(salt)
	makerAmtW := bigWord(makerAmount)
	takerAmtW := bigWord(takerAmount)

	buf := make([]byte, 0, 13*32)
	buf = append(buf, orderTypeHash...)
	buf = append(buf, saltW[:]...)
	buf = append(buf, h.makerWord[:]...)
	buf = append(buf, h.signerWord[:]...)
	buf = append(buf, h.zeroWord[:]...) // taker
	buf = append(buf, tokenW[:]...)
	buf = append(buf, makerAmtW[:]...)
	buf = append(buf, takerAmtW[:]...)
	buf = append(buf, h.zeroWord[:]...) // expiration
	buf = append(buf, h.zeroWord[:]...) // nonce
	buf = append(buf, h.feeRateWord[:]...)
	buf = append(buf, sideW[:]...)
	buf = append(buf, h.sigTypeWord[:]...)

	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out, nil
}

// SignOrderHash 签名订单哈希
// digest = keccak256(0x19 0x01 || domainSeparator || orderHash)，
// 签名序列化为 r || s || v（65 字节，v 为 27/28），0x 前缀十六进制
func (h *OrderHasher) SignOrderHash(orderHash [32]byte, privateKey *ecdsa.PrivateKey) (string, error) {
	raw := make([]byte, 0, 2+2*32)
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, h.domainSeparator[:]...)
	raw = append(raw, orderHash[:]...)
	digest := crypto.Keccak256(raw)

	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", fmt.Errorf("签名失败: %w", err)
	}
	// crypto.Sign 的 v 为 0/1，合约侧要求 27/28
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + common.Bytes2Hex(sig), nil
}
