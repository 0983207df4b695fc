// Package mailing renders outgoing emails from Liquid templates: the
// double opt-in confirmation message and per-subscriber newsletter issues.
package mailing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// TemplateService compiles Liquid templates and caches them by key.
type TemplateService struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a template service with the custom filters
// registered.
func NewTemplateService() *TemplateService {
	ts := &TemplateService{engine: liquid.NewEngine()}
	ts.registerCustomFilters()
	return ts
}

func (ts *TemplateService) registerCustomFilters() {
	// {{ name | default: "there" }}; also treats "<nil>" as blank.
	ts.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if strings.TrimSpace(s) == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ email | email_domain }}
	ts.engine.RegisterFilter("email_domain", func(email string) string {
		_, host, ok := strings.Cut(email, "@")
		if !ok {
			return ""
		}
		return host
	})

	// {{ email | mask_email }}
	ts.engine.RegisterFilter("mask_email", func(email string) string {
		local, host, ok := strings.Cut(email, "@")
		if !ok {
			return email
		}
		if len(local) <= 2 {
			return local + "***@" + host
		}
		return local[:2] + "***@" + host
	})
}

// Parse compiles a template string and returns any syntax error.
func (ts *TemplateService) Parse(templateStr string) error {
	_, err := ts.compile("", templateStr)
	return err
}

// Render processes a template with the given variables. A non-empty
// cacheKey reuses the compiled template on later calls.
func (ts *TemplateService) Render(cacheKey, templateStr string, vars map[string]interface{}) (string, error) {
	tpl, err := ts.compile(cacheKey, templateStr)
	if err != nil {
		return "", err
	}
	out, rerr := tpl.RenderString(vars)
	if rerr != nil {
		return "", fmt.Errorf("render template %q: %w", cacheKey, rerr)
	}
	return out, nil
}

// ClearCacheKey removes a specific cached template.
func (ts *TemplateService) ClearCacheKey(key string) {
	ts.cache.Delete(key)
}

func (ts *TemplateService) compile(cacheKey, templateStr string) (*liquid.Template, error) {
	if cacheKey != "" {
		if cached, ok := ts.cache.Load(cacheKey); ok {
			return cached.(*liquid.Template), nil
		}
	}
	tpl, err := ts.engine.ParseString(templateStr)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", cacheKey, err)
	}
	if cacheKey != "" {
		ts.cache.Store(cacheKey, tpl)
	}
	return tpl, nil
}
