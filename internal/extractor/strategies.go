// internal/extractor/strategies.go
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/selectors"
)

// structured reads groups that reference their prompt through aria-labelledby.
func (e *Extractor) structured(ctx context.Context, x *extraction) error {
	groups, err := x.page.QueryAll(ctx, structuredSelector)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if x.claimed[g.Key()] {
			continue
		}
		ref, _, err := g.Attribute(ctx, "aria-labelledby")
		if err != nil {
			return err
		}
		ids := strings.Fields(ref)
		if len(ids) == 0 || !e.recognized(ids[0]) {
			continue
		}

		r, err := resolveOptions(ctx, x.page, g, x.claimed)
		if err != nil {
			return fmt.Errorf("options of %s: %w", g.Describe(), err)
		}
		prompt, err := e.referencedPrompt(ctx, x, ids[0])
		if err != nil {
			return err
		}
		if err := x.claim(ctx, g); err != nil {
			return err
		}
		x.add(schemas.AnswerableUnit{
			Prompt:   prompt,
			Kind:     r.kind,
			Options:  r.options,
			Input:    r.input,
			Strategy: StrategyStructured,
		})
	}
	return nil
}

func (e *Extractor) recognized(id string) bool {
	if len(e.prefixes) == 0 {
		return true
	}
	for _, p := range e.prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// referencedPrompt reads the prompt element by id. The element is claimed so
// its text is not picked up again as a free-standing prompt.
func (e *Extractor) referencedPrompt(ctx context.Context, x *extraction, id string) (string, error) {
	fallback := strings.TrimPrefix(id, "prompt-")
	el, err := x.page.ElementByID(ctx, id)
	if errors.Is(err, schemas.ErrElementNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	if err := x.claim(ctx, el); err != nil {
		return "", err
	}
	text, err := optionText(ctx, el)
	if err != nil {
		return "", err
	}
	if text == "" {
		return fallback, nil
	}
	return text, nil
}

// containers reads question containers without a prompt reference. Their
// options are usually icon stand-ins.
func (e *Extractor) containers(ctx context.Context, x *extraction) error {
	found, err := x.page.QueryAll(ctx, containerSelector)
	if err != nil {
		return err
	}
	for _, c := range found {
		if x.claimed[c.Key()] {
			continue
		}
		wraps, err := wrapsClaimed(ctx, x, c)
		if err != nil {
			return err
		}
		if wraps {
			// Its question was read by an earlier strategy.
			if err := x.claim(ctx, c); err != nil {
				return err
			}
			continue
		}

		r, err := resolveOptions(ctx, x.page, c, x.claimed)
		if err != nil {
			return fmt.Errorf("options of %s: %w", c.Describe(), err)
		}
		if r.empty() {
			continue
		}
		prompt, err := containerPrompt(ctx, c, len(x.units)+1)
		if err != nil {
			return err
		}
		if err := x.claim(ctx, c); err != nil {
			return err
		}
		name := StrategyContainer
		if r.via == StrategyIconographic {
			name = StrategyIconographic
		}
		x.add(schemas.AnswerableUnit{
			Prompt:   prompt,
			Kind:     r.kind,
			Options:  r.options,
			Input:    r.input,
			Strategy: name,
		})
	}
	return nil
}

func wrapsClaimed(ctx context.Context, x *extraction, c schemas.Node) (bool, error) {
	inner, err := c.QueryAll(ctx, selectors.Join(structuredSelector, viewerSelector, controlSelector))
	if err != nil {
		return false, err
	}
	for _, n := range inner {
		if x.claimed[n.Key()] {
			return true, nil
		}
	}
	return false, nil
}

// containerPrompt is the first viewer of c that is not option text, else the
// legend, else a numbered placeholder.
func containerPrompt(ctx context.Context, c schemas.Node, ordinal int) (string, error) {
	excluded := make(map[string]bool)
	options, err := c.QueryAll(ctx, optionSelector)
	if err != nil {
		return "", err
	}
	for _, o := range options {
		vs, err := o.QueryAll(ctx, viewerSelector)
		if err != nil {
			return "", err
		}
		for _, v := range vs {
			excluded[v.Key()] = true
		}
	}

	viewers, err := c.QueryAll(ctx, viewerSelector)
	if err != nil {
		return "", err
	}
	for _, v := range viewers {
		if excluded[v.Key()] {
			continue
		}
		text, err := v.Text(ctx)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}

	legends, err := c.QueryAll(ctx, legendSelector)
	if err != nil {
		return "", err
	}
	if len(legends) > 0 {
		text, err := legends[0].Text(ctx)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return fmt.Sprintf("Question %d", ordinal), nil
}

// proximity treats long free-standing rich text as a prompt and looks a few
// levels up for the controls that belong to it.
func (e *Extractor) proximity(ctx context.Context, x *extraction) error {
	viewers, err := x.page.QueryAll(ctx, viewerSelector)
	if err != nil {
		return err
	}
	for _, v := range viewers {
		if x.claimed[v.Key()] {
			continue
		}
		prompt, ok, err := promptCandidate(ctx, v)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		x.claimed[v.Key()] = true

		r, scope, err := nearbyOptions(ctx, x, v)
		if err != nil {
			return fmt.Errorf("options near %s: %w", v.Describe(), err)
		}
		if scope != nil {
			if err := x.claim(ctx, scope); err != nil {
				return err
			}
		}
		x.add(schemas.AnswerableUnit{
			Prompt:   prompt,
			Kind:     r.kind,
			Options:  r.options,
			Input:    r.input,
			Strategy: StrategyProximity,
		})
	}
	return nil
}

// promptCandidate reports whether viewer v reads as a question.
func promptCandidate(ctx context.Context, v schemas.Node) (string, bool, error) {
	in, err := insideOption(ctx, v)
	if err != nil || in {
		return "", false, err
	}
	text, err := v.Text(ctx)
	if err != nil {
		return "", false, err
	}
	if utf8.RuneCountInString(text) <= minPromptLength {
		return "", false, nil
	}
	return text, true, nil
}

// nearbyOptions climbs from prompt until an ancestor holds controls. The climb
// stops at an ancestor that also holds another prompt or anything an earlier
// unit claimed, since its controls could belong to either.
func nearbyOptions(ctx context.Context, x *extraction, prompt schemas.Node) (resolved, schemas.Node, error) {
	scope := prompt
	for level := 0; level < proximityDepth; level++ {
		parent, err := scope.Parent(ctx)
		if errors.Is(err, schemas.ErrElementNotFound) {
			break
		}
		if err != nil {
			return resolved{}, nil, err
		}
		scope = parent

		shared, err := holdsOtherPrompt(ctx, x, scope, prompt)
		if err != nil {
			return resolved{}, nil, err
		}
		if shared {
			break
		}
		r, err := resolveOptions(ctx, x.page, scope, x.claimed)
		if err != nil {
			return resolved{}, nil, err
		}
		if !r.empty() {
			return r, scope, nil
		}
	}
	return resolved{kind: schemas.SingleSelect}, nil, nil
}

func holdsOtherPrompt(ctx context.Context, x *extraction, scope, prompt schemas.Node) (bool, error) {
	taken, err := scope.QueryAll(ctx, selectors.Join(structuredSelector, containerSelector, controlSelector, iconOwnerSelector))
	if err != nil {
		return false, err
	}
	for _, n := range taken {
		if x.claimed[n.Key()] {
			return true, nil
		}
	}

	viewers, err := scope.QueryAll(ctx, viewerSelector)
	if err != nil {
		return false, err
	}
	for _, v := range viewers {
		if v.Key() == prompt.Key() {
			continue
		}
		if x.claimed[v.Key()] {
			return true, nil
		}
		_, ok, err := promptCandidate(ctx, v)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
