package providers

import (
	"fmt"
	"strings"

	"media-library/internal/config"
	"media-library/internal/library"
)

// NeedsRefreshErrorPolicy decides what a failing NeedsRefresh check means.
type NeedsRefreshErrorPolicy int

const (
	// FailClosed skips the provider for this refresh.
	FailClosed NeedsRefreshErrorPolicy = iota
	// FailOpen runs the provider as if it needed a refresh.
	FailOpen
)

func (p NeedsRefreshErrorPolicy) String() string {
	if p == FailOpen {
		return config.PolicyFailOpen
	}
	return config.PolicyFailClosed
}

// ParseNeedsRefreshErrorPolicy maps the configuration value to a policy.
// An empty value selects FailClosed.
func ParseNeedsRefreshErrorPolicy(s string) (NeedsRefreshErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.PolicyFailClosed:
		return FailClosed, nil
	case config.PolicyFailOpen:
		return FailOpen, nil
	default:
		return FailClosed, fmt.Errorf("unknown needs-refresh error policy %q", s)
	}
}

// Policy is the operator configuration the orchestrator consults. It is
// re-read before every provider run and on every configuration change.
type Policy struct {
	InternetEnabled    bool
	ExcludedTypes      []string
	NeedsRefreshErrors NeedsRefreshErrorPolicy
}

// PolicyFromConfig extracts the provider policy from the server configuration.
func PolicyFromConfig(cfg config.ServerConfig) Policy {
	onError, err := ParseNeedsRefreshErrorPolicy(cfg.NeedsRefreshErrorPolicy)
	if err != nil {
		onError = FailClosed
	}
	return Policy{
		InternetEnabled:    cfg.EnableInternetProviders,
		ExcludedTypes:      cfg.InternetProviderExcludeTypes,
		NeedsRefreshErrors: onError,
	}
}

// Excludes reports whether internet providers are disabled for t.
// Type names compare case-insensitively.
func (p Policy) Excludes(t library.ItemType) bool {
	for _, excluded := range p.ExcludedTypes {
		if strings.EqualFold(excluded, string(t)) {
			return true
		}
	}
	return false
}

// allowsInternet reports whether an internet provider may run for t.
func (p Policy) allowsInternet(t library.ItemType) bool {
	return p.InternetEnabled && !p.Excludes(t)
}

// Reasons a provider is skipped, used as metric labels.
const (
	SkipUnsupported     = "unsupported"
	SkipInternetOff     = "internet_disabled"
	SkipSlow            = "slow"
	SkipTypeExcluded    = "type_excluded"
	SkipDontFetchMeta   = "dont_fetch_meta"
	SkipFresh           = "fresh"
	SkipNeedsRefreshErr = "needs_refresh_error"
)

// Eligible applies the static skip rules in order and returns the first one
// that matches. The NeedsRefresh check is not part of it.
func Eligible(caps Capabilities, item *library.Item, policy Policy, allowSlow bool) (bool, string) {
	switch {
	case caps.Supports != nil && !caps.Supports(item):
		return false, SkipUnsupported
	case caps.RequiresInternet && !policy.InternetEnabled:
		return false, SkipInternetOff
	case caps.IsSlow && !allowSlow:
		return false, SkipSlow
	case caps.RequiresInternet && policy.Excludes(item.Type):
		return false, SkipTypeExcluded
	case caps.RequiresInternet && item.DontFetchMeta:
		return false, SkipDontFetchMeta
	}
	return true, ""
}
