// Package stealth suppresses the most obvious automation signals of a
// Chrome tab driven over the DevTools protocol.
package stealth

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/internal/config"
)

//go:embed evasions.js
var evasionsScript string

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string   `json:"userAgent,omitempty"`
	Platform  string   `json:"platform,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Timezone  string   `json:"-"`
	Locale    string   `json:"-"`
}

// DefaultPersona is used for any field the configuration leaves empty.
var DefaultPersona = Persona{
	Platform:  "Win32",
	Languages: []string{"en-US", "en"},
	Timezone:  "America/New_York",
	Locale:    "en-US",
}

// PersonaFromConfig fills a Persona from configuration, falling back to DefaultPersona.
func PersonaFromConfig(cfg config.PersonaConfig) Persona {
	p := Persona{
		UserAgent: cfg.UserAgent,
		Platform:  cfg.Platform,
		Languages: cfg.Languages,
		Timezone:  cfg.Timezone,
		Locale:    cfg.Locale,
	}
	if p.Platform == "" {
		p.Platform = DefaultPersona.Platform
	}
	if len(p.Languages) == 0 {
		p.Languages = DefaultPersona.Languages
	}
	if p.Timezone == "" {
		p.Timezone = DefaultPersona.Timezone
	}
	if p.Locale == "" {
		p.Locale = DefaultPersona.Locale
	}
	return p
}

// AcceptLanguage renders the persona's languages as an Accept-Language header
// with descending quality values.
func (p Persona) AcceptLanguage() string {
	parts := make([]string, 0, len(p.Languages))
	for i, lang := range p.Languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

// Script returns the evasion script with the persona prepended.
func (p Persona) Script() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return fmt.Sprintf("window.__coursepilotPersona = %s;\n%s", data, evasionsScript), nil
}

// Apply returns the tasks that install the persona on the current target.
// They must run before the first navigation.
func Apply(p Persona, logger *zap.Logger) (chromedp.Tasks, error) {
	script, err := p.Script()
	if err != nil {
		return nil, err
	}
	logger.Debug("Applying browser stealth persona",
		zap.String("platform", p.Platform),
		zap.Strings("languages", p.Languages),
		zap.String("timezone", p.Timezone),
	)

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": p.AcceptLanguage()}),
	}
	// An empty override would blank the real user agent.
	if p.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(p.UserAgent).WithAcceptLanguage(p.AcceptLanguage()).WithPlatform(p.Platform))
	}
	return tasks, nil
}
