package csrf

import (
	"context"
	"strings"

	"github.com/goliatone/go-viewrender/pkg/injection"
	"github.com/goliatone/go-viewrender/pkg/tags"
)

// ViewInjection exposes the request's CSRF token to the view and the layout
// as a Token parameter, and to the page head as a meta tag.
type ViewInjection struct {
	source            TokenSource
	parameterName     string
	metaAttributeName string
	formParameter     string
	headerName        string
}

var (
	_ injection.ContentParameters = (*ViewInjection)(nil)
	_ injection.LayoutParameters  = (*ViewInjection)(nil)
	_ injection.MetaTags          = (*ViewInjection)(nil)
)

// NewViewInjection builds an injection reading tokens from source. A nil
// source reads the request context.
func NewViewInjection(source TokenSource) *ViewInjection {
	if source == nil {
		source = ContextTokenSource{}
	}
	return &ViewInjection{
		source:            source,
		parameterName:     DefaultParameterName,
		metaAttributeName: DefaultMetaAttributeName,
		formParameter:     DefaultFormParameter,
		headerName:        DefaultHeaderName,
	}
}

func (v *ViewInjection) clone() *ViewInjection {
	out := *v
	return &out
}

// WithParameterName returns a copy exposing the token under name.
func (v *ViewInjection) WithParameterName(name string) *ViewInjection {
	out := v.clone()
	out.parameterName = strings.TrimSpace(name)
	return out
}

// WithMetaAttributeName returns a copy using name in the meta tag's name
// attribute.
func (v *ViewInjection) WithMetaAttributeName(name string) *ViewInjection {
	out := v.clone()
	out.metaAttributeName = strings.TrimSpace(name)
	return out
}

// WithFormParameter returns a copy naming the hidden form field.
func (v *ViewInjection) WithFormParameter(name string) *ViewInjection {
	out := v.clone()
	out.formParameter = strings.TrimSpace(name)
	return out
}

// WithHeaderName returns a copy naming the request header.
func (v *ViewInjection) WithHeaderName(name string) *ViewInjection {
	out := v.clone()
	out.headerName = strings.TrimSpace(name)
	return out
}

// ContentParameters implements injection.ContentParameters.
func (v *ViewInjection) ContentParameters(ctx context.Context) (map[string]any, error) {
	return v.parameters(ctx)
}

// LayoutParameters implements injection.LayoutParameters.
func (v *ViewInjection) LayoutParameters(ctx context.Context) (map[string]any, error) {
	return v.parameters(ctx)
}

// MetaTags implements injection.MetaTags.
func (v *ViewInjection) MetaTags(ctx context.Context) ([]tags.Entry, error) {
	token, err := v.token(ctx)
	if err != nil {
		return nil, err
	}
	return []tags.Entry{{
		Key: MetaTagKey,
		Value: tags.Attributes{
			"name":    v.metaAttributeName,
			"content": token,
		},
	}}, nil
}

func (v *ViewInjection) parameters(ctx context.Context) (map[string]any, error) {
	token, err := v.token(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		v.parameterName: Token{
			Value:         token,
			ParameterName: v.formParameter,
			HeaderName:    v.headerName,
		},
	}, nil
}

func (v *ViewInjection) token(ctx context.Context) (string, error) {
	token, err := v.source.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrTokenNotSet
	}
	return token, nil
}
