package chain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/vulpemventures/go-elements/network"
)

type Network int

const (
	Bitcoin Network = iota
	BitcoinTestnet
	Liquid
	LiquidTestnet
	ElementsRegtest
)

const (
	LiquidPolicyAsset        = "6f0279e9ed041c3d710a9f57d0c02928416460c4b722ae3457a11eec381c526d"
	LiquidTestnetPolicyAsset = "144c654344aa716d6f3abcc1ca90e5641e4e2a7f633bc09fe3baf64585819a49"

	DefaultBitcoinNode       = "electrum.bullbitcoin.com:50002"
	DefaultTestnetNode       = "electrum.bullbitcoin.com:60002"
	DefaultLiquidNode        = "blockstream.info:995"
	DefaultLiquidTestnetNode = "electrs.sideswap.io:12002"
	DefaultRegtestNode       = "localhost:50001"
)

var networkNames = map[Network]string{
	Bitcoin:         "bitcoin",
	BitcoinTestnet:  "testnet",
	Liquid:          "liquid",
	LiquidTestnet:   "liquid-testnet",
	ElementsRegtest: "regtest",
}

func (n Network) String() string {
	if name, ok := networkNames[n]; ok {
		return name
	}
	return fmt.Sprintf("network(%d)", int(n))
}

func ParseNetwork(name string) (Network, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for n, s := range networkNames {
		if s == name {
			return n, nil
		}
	}
	return 0, swaperr.ErrInput.Newf("unknown network %q", name)
}

// IsConfidential reports whether the chain supports confidential
// transactions and issued assets.
func (n Network) IsConfidential() bool {
	return n == Liquid || n == LiquidTestnet || n == ElementsRegtest
}

// Params returns the address parameters of a confidential chain.
func (n Network) Params() (*network.Network, error) {
	switch n {
	case Liquid:
		return &network.Liquid, nil
	case LiquidTestnet:
		return &network.Testnet, nil
	case ElementsRegtest:
		return &network.Regtest, nil
	default:
		return nil, swaperr.ErrInput.Newf("%s is not a confidential chain", n)
	}
}

func (n Network) DefaultPolicyAsset() string {
	switch n {
	case Liquid:
		return LiquidPolicyAsset
	case LiquidTestnet:
		return LiquidTestnetPolicyAsset
	case ElementsRegtest:
		return network.Regtest.AssetID
	default:
		return ""
	}
}

// Config selects the chain and how to reach it.
type Config struct {
	Network        Network
	ElectrumURL    string
	TLS            bool
	ValidateDomain bool
	// PolicyAsset is the hex asset id fees are paid in. Only meaningful on
	// confidential chains.
	PolicyAsset string
}

func DefaultBitcoin() Config {
	return Config{
		Network:        Bitcoin,
		ElectrumURL:    DefaultBitcoinNode,
		TLS:            true,
		ValidateDomain: true,
	}
}

// DefaultNode returns the Electrum server used when none is configured,
// and whether it speaks TLS.
func (n Network) DefaultNode() (string, bool) {
	switch n {
	case Bitcoin:
		return DefaultBitcoinNode, true
	case BitcoinTestnet:
		return DefaultTestnetNode, true
	case Liquid:
		return DefaultLiquidNode, true
	case LiquidTestnet:
		return DefaultLiquidTestnetNode, false
	default:
		return DefaultRegtestNode, false
	}
}

func DefaultLiquid() Config {
	return Config{
		Network:        LiquidTestnet,
		ElectrumURL:    DefaultLiquidTestnetNode,
		TLS:            false,
		ValidateDomain: true,
		PolicyAsset:    LiquidTestnetPolicyAsset,
	}
}

func (c Config) Validate() error {
	if _, ok := networkNames[c.Network]; !ok {
		return swaperr.ErrInput.Newf("unknown network %d", int(c.Network))
	}
	if len(c.ElectrumURL) <= 0 {
		return swaperr.ErrInput.New("missing electrum url")
	}
	if len(c.PolicyAsset) <= 0 {
		return nil
	}
	if !c.Network.IsConfidential() {
		return swaperr.ErrInput.Newf("policy asset is not supported on %s", c.Network)
	}
	buf, err := hex.DecodeString(c.PolicyAsset)
	if err != nil {
		return swaperr.ErrInput.Wrap(err, "invalid policy asset")
	}
	if len(buf) != 32 {
		return swaperr.ErrInput.Newf("invalid policy asset length %d", len(buf))
	}
	return nil
}

// Params is a shortcut for c.Network.Params.
func (c Config) Params() (*network.Network, error) {
	return c.Network.Params()
}

// FeeAsset returns the configured policy asset, falling back to the chain
// default.
func (c Config) FeeAsset() string {
	if len(c.PolicyAsset) > 0 {
		return c.PolicyAsset
	}
	return c.Network.DefaultPolicyAsset()
}
