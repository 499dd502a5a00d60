package tags

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	defaultPolicyOnce sync.Once
	defaultPolicy     *Policy
)

// Policy filters rendered tags through a bluemonday policy. Attributes the
// policy does not allow are dropped; a tag that does not survive renders as an
// empty string.
type Policy struct {
	policy *bluemonday.Policy
}

// NewPolicy wraps an existing bluemonday policy.
func NewPolicy(policy *bluemonday.Policy) *Policy {
	return &Policy{policy: policy}
}

// DefaultPolicy allows the attributes head tags normally carry and strips
// event handlers and scripting URLs.
func DefaultPolicy() *Policy {
	defaultPolicyOnce.Do(func() {
		policy := bluemonday.NewPolicy()
		policy.AllowElements("meta", "link")
		policy.AllowAttrs(
			"charset", "name", "content", "http-equiv", "property", "itemprop",
		).OnElements("meta")
		policy.AllowAttrs(
			"rel", "type", "sizes", "media", "as", "crossorigin", "hreflang",
			"integrity", "referrerpolicy", "title", "color",
		).OnElements("link")
		policy.AllowAttrs("href").OnElements("link")
		policy.AllowURLSchemes("http", "https")
		policy.AllowRelativeURLs(true)
		defaultPolicy = &Policy{policy: policy}
	})
	return defaultPolicy
}

// Sanitize filters a rendered tag.
func (p *Policy) Sanitize(markup string) string {
	if p == nil || p.policy == nil {
		return markup
	}
	return strings.TrimSpace(p.policy.Sanitize(markup))
}

// RenderMeta renders and sanitizes a meta tag.
func (p *Policy) RenderMeta(tag *Meta) string {
	return p.Sanitize(tag.Render())
}

// RenderLink renders and sanitizes a link tag.
func (p *Policy) RenderLink(tag *Link) string {
	return p.Sanitize(tag.Render())
}
