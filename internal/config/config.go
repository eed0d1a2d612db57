package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/internal/infrastructure/esplora"
	"github.com/ArkLabsHQ/liquid-swap/pkg/chain"
	"github.com/ArkLabsHQ/liquid-swap/pkg/electrum"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/ArkLabsHQ/liquid-swap/utils"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/viper"
)

const (
	LedgerElectrum = "electrum"
	LedgerEsplora  = "esplora"
)

type Config struct {
	Network                chain.Network
	Ledger                 string
	ElectrumURL            string
	ElectrumTLS            bool
	ElectrumValidateDomain bool
	EsploraURL             string
	PolicyAsset            string
	BoltzURL               string
	BoltzWSURL             string
	HTTPPort               uint32
	LogLevel               uint32
	RefundPollInterval     time.Duration
	DefaultFee             uint64
	SigningKey             string
	SigningKeyFile         string

	ledger     swaptx.Ledger
	signingKey *btcec.PrivateKey
}

var (
	Network                = "NETWORK"
	Ledger                 = "LEDGER"
	ElectrumURL            = "ELECTRUM_URL"
	ElectrumTLS            = "ELECTRUM_TLS"
	ElectrumValidateDomain = "ELECTRUM_VALIDATE_DOMAIN"
	EsploraURL             = "ESPLORA_URL"
	PolicyAsset            = "POLICY_ASSET"
	BoltzURL               = "BOLTZ_URL"
	BoltzWSURL             = "BOLTZ_WS_URL"
	HTTPPort               = "HTTP_PORT"
	LogLevel               = "LOG_LEVEL"
	RefundPollInterval     = "REFUND_POLL_INTERVAL"
	DefaultFee             = "DEFAULT_FEE"

	// Signing key configuration, either the key itself (hex or mnemonic)
	// or a file containing it.
	SigningKey     = "SIGNING_KEY"
	SigningKeyFile = "SIGNING_KEY_FILE"

	defaultNetwork                = chain.LiquidTestnet.String()
	defaultLedger                 = LedgerElectrum
	defaultElectrumTLS            = false
	defaultElectrumValidateDomain = true
	defaultHTTPPort               = 7001
	defaultLogLevel               = 4
	defaultRefundPollInterval     = 5 * time.Second
	defaultFee                    = 300
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("LIQUIDSWAP")
	viper.AutomaticEnv()

	viper.SetDefault(Network, defaultNetwork)
	viper.SetDefault(Ledger, defaultLedger)
	viper.SetDefault(ElectrumTLS, defaultElectrumTLS)
	viper.SetDefault(ElectrumValidateDomain, defaultElectrumValidateDomain)
	viper.SetDefault(HTTPPort, defaultHTTPPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(RefundPollInterval, defaultRefundPollInterval)
	viper.SetDefault(DefaultFee, defaultFee)

	net, err := chain.ParseNetwork(viper.GetString(Network))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Network:                net,
		Ledger:                 strings.ToLower(viper.GetString(Ledger)),
		ElectrumURL:            viper.GetString(ElectrumURL),
		ElectrumTLS:            viper.GetBool(ElectrumTLS),
		ElectrumValidateDomain: viper.GetBool(ElectrumValidateDomain),
		EsploraURL:             viper.GetString(EsploraURL),
		PolicyAsset:            viper.GetString(PolicyAsset),
		BoltzURL:               viper.GetString(BoltzURL),
		BoltzWSURL:             viper.GetString(BoltzWSURL),
		HTTPPort:               viper.GetUint32(HTTPPort),
		LogLevel:               viper.GetUint32(LogLevel),
		RefundPollInterval:     viper.GetDuration(RefundPollInterval),
		DefaultFee:             viper.GetUint64(DefaultFee),
		SigningKey:             viper.GetString(SigningKey),
		SigningKeyFile:         cleanAndExpandPath(viper.GetString(SigningKeyFile)),
	}
	if len(config.ElectrumURL) <= 0 {
		config.ElectrumURL, config.ElectrumTLS = net.DefaultNode()
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := config.initLedgerService(); err != nil {
		return nil, err
	}
	if err := config.initSigningKey(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Chain() chain.Config {
	return chain.Config{
		Network:        c.Network,
		ElectrumURL:    c.ElectrumURL,
		TLS:            c.ElectrumTLS,
		ValidateDomain: c.ElectrumValidateDomain,
		PolicyAsset:    c.PolicyAsset,
	}
}

func (c *Config) LedgerService() swaptx.Ledger {
	return c.ledger
}

// SigningKeyService returns the configured signing key, nil if none was
// given.
func (c *Config) SigningKeyService() *btcec.PrivateKey {
	return c.signingKey
}

func (c *Config) validate() error {
	if err := c.Chain().Validate(); err != nil {
		return err
	}
	if c.RefundPollInterval <= 0 {
		return fmt.Errorf("refund poll interval must be positive")
	}
	if len(c.BoltzURL) > 0 && !utils.IsValidURL(c.BoltzURL) {
		return fmt.Errorf("invalid boltz url %s", c.BoltzURL)
	}
	if len(c.BoltzWSURL) > 0 && !utils.IsValidURL(c.BoltzWSURL) {
		return fmt.Errorf("invalid boltz ws url %s", c.BoltzWSURL)
	}
	return nil
}

func (c *Config) initLedgerService() error {
	switch c.Ledger {
	case LedgerElectrum:
		if !utils.IsValidHostPort(c.ElectrumURL) {
			return fmt.Errorf("invalid electrum url %s, expected host:port", c.ElectrumURL)
		}
		c.ledger = electrum.NewClient(electrum.ConfigFromChain(c.Chain()))
	case LedgerEsplora:
		if !utils.IsValidURL(c.EsploraURL) {
			return fmt.Errorf("invalid esplora url %s", c.EsploraURL)
		}
		c.ledger = esplora.NewService(c.EsploraURL)
	default:
		return fmt.Errorf("unknown ledger type %s, please select one of %s, %s", c.Ledger, LedgerElectrum, LedgerEsplora)
	}
	return nil
}

func (c *Config) initSigningKey() error {
	secret := c.SigningKey
	if len(c.SigningKeyFile) > 0 {
		buf, err := os.ReadFile(c.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("failed to read signing key file: %s", err)
		}
		secret = string(buf)
	}
	if len(strings.TrimSpace(secret)) <= 0 {
		return nil
	}

	key, err := utils.ParsePrivateKey(secret)
	if err != nil {
		return fmt.Errorf("invalid signing key: %s", err)
	}
	c.signingKey = key
	return nil
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
