package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	ifTag    = regexp.MustCompile(`\{\{\s*#if\s+([a-z_][a-z0-9_]*)\s*\}\}`)
	blockTag = regexp.MustCompile(`\{\{\s*(?:#if\s+([a-z_][a-z0-9_]*)|(else)|(/if))\s*\}\}`)
	varTag   = regexp.MustCompile(`\{\{\s*([a-z_][a-z0-9_]*)\s*\}\}`)
)

// Render fills the template with vars after checking that every required
// variable is non-blank. Templates support {{name}} substitution and
// {{#if name}}...{{else}}...{{/if}} blocks; a block keeps its first branch
// when name is non-blank.
func (p *Prompt) Render(vars map[string]string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("prompt is required")
	}
	for _, name := range p.Config.Input.RequiredVariables {
		if strings.TrimSpace(vars[name]) == "" {
			return "", fmt.Errorf("prompt %s: variable %q is required", p.Config.Slug, name)
		}
	}

	text := applyConditionals(p.Config.Template, vars)
	text = varTag.ReplaceAllStringFunc(text, func(tag string) string {
		name := varTag.FindStringSubmatch(tag)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return tag
	})
	return strings.TrimSpace(text), nil
}

// applyConditionals resolves #if blocks, nested ones included. Text from an
// unterminated block onwards is left untouched.
func applyConditionals(src string, vars map[string]string) string {
	var out strings.Builder
	for {
		open := ifTag.FindStringSubmatchIndex(src)
		if open == nil {
			out.WriteString(src)
			return out.String()
		}

		name := src[open[2]:open[3]]
		then, otherwise, rest, ok := splitBlock(src[open[1]:])
		if !ok {
			out.WriteString(src)
			return out.String()
		}

		out.WriteString(src[:open[0]])
		if strings.TrimSpace(vars[name]) != "" {
			out.WriteString(applyConditionals(then, vars))
		} else {
			out.WriteString(applyConditionals(otherwise, vars))
		}
		src = rest
	}
}

// splitBlock cuts body (the text after an #if tag) at its matching else and
// /if tags.
func splitBlock(body string) (then, otherwise, rest string, ok bool) {
	depth := 0
	elseAt, elseEnd := -1, -1
	for _, m := range blockTag.FindAllStringSubmatchIndex(body, -1) {
		switch {
		case m[2] >= 0:
			depth++
		case m[4] >= 0:
			if depth == 0 && elseAt < 0 {
				elseAt, elseEnd = m[0], m[1]
			}
		case m[6] >= 0:
			if depth > 0 {
				depth--
				continue
			}
			if elseAt < 0 {
				return body[:m[0]], "", body[m[1]:], true
			}
			return body[:elseAt], body[elseEnd:m[0]], body[m[1]:], true
		}
	}
	return "", "", "", false
}
