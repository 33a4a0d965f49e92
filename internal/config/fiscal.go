package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FiscalPolicy holds the legal tables that drive guide amounts and
// registration ceilings. Amounts are in BRL.
type FiscalPolicy struct {
	MinimumWage      decimal.Decimal
	INSSRate         decimal.Decimal
	TruckingINSSRate decimal.Decimal
	ICMS             decimal.Decimal
	ISS              decimal.Decimal
	StandardCeiling  decimal.Decimal
	TruckingCeiling  decimal.Decimal
}

func DefaultFiscalPolicy() FiscalPolicy {
	return FiscalPolicy{
		MinimumWage:      decimal.NewFromInt(1518),
		INSSRate:         decimal.RequireFromString("0.05"),
		TruckingINSSRate: decimal.RequireFromString("0.12"),
		ICMS:             decimal.RequireFromString("1.00"),
		ISS:              decimal.RequireFromString("5.00"),
		StandardCeiling:  decimal.NewFromInt(81000),
		TruckingCeiling:  decimal.NewFromInt(251600),
	}
}

// INSS returns the monthly social security contribution, rounded to cents.
func (p FiscalPolicy) INSS(trucking bool) decimal.Decimal {
	rate := p.INSSRate
	if trucking {
		rate = p.TruckingINSSRate
	}
	return p.MinimumWage.Mul(rate).Round(2)
}

// FiscalPolicyHolder serves the current policy and swaps it atomically
// when fiscal.yml changes on disk.
type FiscalPolicyHolder struct {
	current atomic.Value // holds FiscalPolicy
}

func NewFiscalPolicyHolder(cfg Config, log *zap.Logger) (*FiscalPolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.fiscal")

	v := viper.New()
	v.SetConfigName("fiscal")
	v.SetConfigType("yml")
	if cfg.FiscalPolicyPath != "" {
		v.AddConfigPath(cfg.FiscalPolicyPath)
	}
	v.AddConfigPath("/var/lib/meiwatch/config")
	v.AddConfigPath("/etc/meiwatch")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MEIWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFiscalPolicy()
	v.SetDefault("fiscal.minimumWage", defaults.MinimumWage.String())
	v.SetDefault("fiscal.inssRate", defaults.INSSRate.String())
	v.SetDefault("fiscal.truckingInssRate", defaults.TruckingINSSRate.String())
	v.SetDefault("fiscal.icms", defaults.ICMS.StringFixed(2))
	v.SetDefault("fiscal.iss", defaults.ISS.StringFixed(2))
	v.SetDefault("fiscal.standardCeiling", defaults.StandardCeiling.String())
	v.SetDefault("fiscal.truckingCeiling", defaults.TruckingCeiling.String())

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	policy, err := decodeFiscalPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticFiscalPolicyHolder(policy)
	if !fileFound {
		log.Info("fiscal policy file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeFiscalPolicy(v)
		if err != nil {
			log.Warn("fiscal policy reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("fiscal policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticFiscalPolicyHolder wraps a fixed policy.
func NewStaticFiscalPolicyHolder(policy FiscalPolicy) *FiscalPolicyHolder {
	holder := &FiscalPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *FiscalPolicyHolder) Get() FiscalPolicy {
	if h == nil {
		return DefaultFiscalPolicy()
	}
	return h.current.Load().(FiscalPolicy)
}

// fiscalKeys maps fiscal.yml keys to policy fields. Values are read as
// strings so money never passes through float64.
var fiscalKeys = []struct {
	key   string
	field func(*FiscalPolicy) *decimal.Decimal
}{
	{"minimumWage", func(p *FiscalPolicy) *decimal.Decimal { return &p.MinimumWage }},
	{"inssRate", func(p *FiscalPolicy) *decimal.Decimal { return &p.INSSRate }},
	{"truckingInssRate", func(p *FiscalPolicy) *decimal.Decimal { return &p.TruckingINSSRate }},
	{"icms", func(p *FiscalPolicy) *decimal.Decimal { return &p.ICMS }},
	{"iss", func(p *FiscalPolicy) *decimal.Decimal { return &p.ISS }},
	{"standardCeiling", func(p *FiscalPolicy) *decimal.Decimal { return &p.StandardCeiling }},
	{"truckingCeiling", func(p *FiscalPolicy) *decimal.Decimal { return &p.TruckingCeiling }},
}

func decodeFiscalPolicy(v *viper.Viper) (FiscalPolicy, error) {
	var policy FiscalPolicy
	for _, k := range fiscalKeys {
		value, err := parseAmount(k.key, v.GetString("fiscal."+k.key))
		if err != nil {
			return FiscalPolicy{}, err
		}
		*k.field(&policy) = value
	}
	if err := validateFiscalPolicy(policy); err != nil {
		return FiscalPolicy{}, err
	}
	return policy, nil
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("fiscal.%s: %w", field, err)
	}
	return value, nil
}

func validateFiscalPolicy(p FiscalPolicy) error {
	if !p.MinimumWage.IsPositive() {
		return errors.New("fiscal.minimumWage must be positive")
	}
	if !p.StandardCeiling.IsPositive() || !p.TruckingCeiling.IsPositive() {
		return errors.New("fiscal ceilings must be positive")
	}
	one := decimal.NewFromInt(1)
	for _, rate := range []decimal.Decimal{p.INSSRate, p.TruckingINSSRate} {
		if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
			return errors.New("fiscal inss rates must be in [0, 1)")
		}
	}
	if p.ICMS.IsNegative() || p.ISS.IsNegative() {
		return errors.New("fiscal.icms and fiscal.iss cannot be negative")
	}
	return nil
}
