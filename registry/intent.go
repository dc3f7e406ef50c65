package registry

import (
	"strings"

	"github.com/BaSui01/agentmesh/types"
)

// intentTable maps free-form intent strings to capabilities. The table is
// fixed: unknown intents are a routing error, not a fallthrough.
var intentTable = map[string]Capability{
	"purchase":  CapabilityPurchase,
	"buy":       CapabilityPurchase,
	"order":     CapabilityPurchase,
	"approve":   CapabilityApproval,
	"approval":  CapabilityApproval,
	"authorize": CapabilityApproval,
	"notify":    CapabilityNotification,
	"alert":     CapabilityNotification,
	"remind":    CapabilityNotification,
	"chat":      CapabilityConversation,
	"ask":       CapabilityConversation,
	"talk":      CapabilityConversation,
	"analyze":   CapabilityAnalysis,
	"summarize": CapabilityAnalysis,
	"report":    CapabilityAnalysis,
	"search":    CapabilitySearch,
	"find":      CapabilitySearch,
	"lookup":    CapabilitySearch,
}

// IntentCapability resolves a free-form intent string to a capability.
func IntentCapability(intent string) (Capability, error) {
	c, ok := intentTable[strings.ToLower(strings.TrimSpace(intent))]
	if !ok {
		return "", types.NewError(types.ErrUnknownIntent, "no capability mapping for intent: "+intent)
	}
	return c, nil
}

// Route maps an intent to a capability and returns the preferred enabled
// agent for it: the first result of FindByCapability.
func (r *Registry) Route(intent string) (*AgentDescriptor, error) {
	c, err := IntentCapability(intent)
	if err != nil {
		return nil, err
	}

	candidates := r.FindByCapability(c)
	if len(candidates) == 0 {
		return nil, types.NewError(types.ErrNoAgentAvailable,
			"no enabled agent for capability: "+string(c))
	}
	return candidates[0], nil
}

// RouteCapability returns the preferred enabled agent for a capability.
func (r *Registry) RouteCapability(c Capability) (*AgentDescriptor, error) {
	candidates := r.FindByCapability(c)
	if len(candidates) == 0 {
		return nil, types.NewError(types.ErrNoAgentAvailable,
			"no enabled agent for capability: "+string(c))
	}
	return candidates[0], nil
}
