package registry

import "fmt"

// Capability is a tag describing what kind of request an agent can handle.
// The set is closed: routing matches against these values only, so a typo in
// configuration surfaces as a validation error instead of a silent no-match.
type Capability string

const (
	// CapabilityPurchase handles purchase and order placement requests.
	CapabilityPurchase Capability = "purchase"
	// CapabilityApproval handles approval and authorization requests.
	CapabilityApproval Capability = "approval"
	// CapabilityNotification handles outbound notification requests.
	CapabilityNotification Capability = "notification"
	// CapabilityConversation handles general conversational requests.
	CapabilityConversation Capability = "conversation"
	// CapabilityAnalysis handles analysis and summarization requests.
	CapabilityAnalysis Capability = "analysis"
	// CapabilitySearch handles retrieval and lookup requests.
	CapabilitySearch Capability = "search"
)

// allCapabilities is the closed set used for validation.
var allCapabilities = map[Capability]struct{}{
	CapabilityPurchase:     {},
	CapabilityApproval:     {},
	CapabilityNotification: {},
	CapabilityConversation: {},
	CapabilityAnalysis:     {},
	CapabilitySearch:       {},
}

// ParseCapability validates a capability tag from configuration.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if _, ok := allCapabilities[c]; !ok {
		return "", fmt.Errorf("unknown capability: %q", s)
	}
	return c, nil
}

// CapabilitySet is a set of capability tags.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given tags.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Contains reports whether the set contains the capability.
func (s CapabilitySet) Contains(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Intersects reports whether the two sets share any capability.
func (s CapabilitySet) Intersects(other CapabilitySet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for c := range small {
		if _, ok := large[c]; ok {
			return true
		}
	}
	return false
}

// Slice returns the set's members. Order is unspecified.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}
