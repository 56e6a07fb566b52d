// internal/harvest/strategy.go
package harvest

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/valpere/FeedHarvester/internal/browser"
)

// Strategy is one named way of reading a field from a record root.
// Find reports false when the strategy has nothing to offer.
type Strategy struct {
	Name string
	Find func(root browser.Node) (string, bool)
}

// Field is a ranked list of strategies ending in a fallback that
// always yields the field's default.
type Field struct {
	Name       string
	Default    string
	Strategies []Strategy
}

// NewField builds a field whose strategy list is terminated by
// Fallback(def).
func NewField(name, def string, strategies ...Strategy) Field {
	ranked := make([]Strategy, 0, len(strategies)+1)
	ranked = append(ranked, strategies...)
	ranked = append(ranked, Fallback(def))
	return Field{Name: name, Default: def, Strategies: ranked}
}

// Extract returns the first usable value produced by the field's
// strategies, or the default.
func (f Field) Extract(root browser.Node) string {
	value, _ := f.ExtractNamed(root)
	return value
}

// ExtractNamed is Extract that also reports which strategy won.
func (f Field) ExtractNamed(root browser.Node) (string, string) {
	for _, s := range f.Strategies {
		value, ok := try(s, root)
		if !ok {
			continue
		}
		value = norm.NFC.String(strings.TrimSpace(value))
		if value != "" {
			return value, s.Name
		}
	}
	return f.Default, "default"
}

// try runs one strategy; a panic counts as not found.
func try(s Strategy, root browser.Node) (value string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			value, ok = "", false
		}
	}()
	if s.Find == nil || root == nil {
		return "", false
	}
	return s.Find(root)
}

// Func wraps an arbitrary function as a strategy
func Func(name string, fn func(root browser.Node) (string, bool)) Strategy {
	return Strategy{Name: name, Find: fn}
}

// Fallback always yields value
func Fallback(value string) Strategy {
	return Strategy{
		Name: "default",
		Find: func(browser.Node) (string, bool) { return value, true },
	}
}

// Text reads the text of the first descendant matching selector
func Text(selector string) Strategy {
	return Strategy{
		Name: "text:" + selector,
		Find: func(root browser.Node) (string, bool) {
			n, ok := root.Find(selector)
			if !ok {
				return "", false
			}
			return n.Text(), true
		},
	}
}

// Attr reads an attribute of the first descendant matching selector
func Attr(selector, attr string) Strategy {
	return AttrTransform(selector, attr, nil)
}

// AttrTransform reads an attribute and passes it through transform
func AttrTransform(selector, attr string, transform func(string) string) Strategy {
	return Strategy{
		Name: fmt.Sprintf("attr:%s@%s", selector, attr),
		Find: func(root browser.Node) (string, bool) {
			n, ok := root.Find(selector)
			if !ok {
				return "", false
			}
			v, ok := n.Attr(attr)
			if !ok {
				return "", false
			}
			if transform != nil {
				v = transform(v)
			}
			return v, true
		},
	}
}

// AttrWhereText reads attr from the first match of selector that has
// visible text, so paired fields come from the same element.
func AttrWhereText(selector, attr string, transform func(string) string) Strategy {
	return Strategy{
		Name: fmt.Sprintf("attr-where-text:%s@%s", selector, attr),
		Find: func(root browser.Node) (string, bool) {
			for _, n := range root.FindAll(selector) {
				if strings.TrimSpace(n.Text()) == "" {
					continue
				}
				v, ok := n.Attr(attr)
				if !ok {
					return "", false
				}
				if transform != nil {
					v = transform(v)
				}
				return v, true
			}
			return "", false
		},
	}
}

// FirstText returns the first matching descendant text accepted by pred
func FirstText(selector string, pred func(string) bool) Strategy {
	return Strategy{
		Name: "first-text:" + selector,
		Find: func(root browser.Node) (string, bool) {
			for _, n := range root.FindAll(selector) {
				text := strings.TrimSpace(n.Text())
				if text != "" && (pred == nil || pred(text)) {
					return text, true
				}
			}
			return "", false
		},
	}
}

// FirstAttr returns the first matching descendant attribute accepted by pred
func FirstAttr(selector, attr string, pred func(string) bool) Strategy {
	return Strategy{
		Name: fmt.Sprintf("first-attr:%s@%s", selector, attr),
		Find: func(root browser.Node) (string, bool) {
			for _, n := range root.FindAll(selector) {
				v, ok := n.Attr(attr)
				if ok && v != "" && (pred == nil || pred(v)) {
					return v, true
				}
			}
			return "", false
		},
	}
}

var ariaDigits = regexp.MustCompile(`\d[\d,]*`)

// Engagement metric names as classified from action-button labels
const (
	MetricReply  = "reply"
	MetricRepost = "repost"
	MetricLike   = "like"
	MetricView   = "view"
)

// classifyAria maps an action-button label to a metric. Checks run in
// a fixed order, so "Reply" wins over "Like" within one label.
func classifyAria(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "reply") || strings.Contains(l, "replies"):
		return MetricReply
	case strings.Contains(l, "repost") || strings.Contains(l, "retweet"):
		return MetricRepost
	case strings.Contains(l, "like"):
		return MetricLike
	case strings.Contains(l, "view"):
		return MetricView
	}
	return ""
}

// AriaMetric reads an engagement count from the aria-label of the
// post's action group. A zero reading is treated as missing so lower
// ranked strategies get a chance.
func AriaMetric(metric string) Strategy {
	return Strategy{
		Name: "aria:" + metric,
		Find: func(root browser.Node) (string, bool) {
			for _, button := range root.FindAll(ActionGroupButtons) {
				label, ok := button.Attr("aria-label")
				if !ok || label == "" {
					continue
				}
				number := ariaDigits.FindString(label)
				if number == "" || classifyAria(label) != metric {
					continue
				}
				count := strings.ReplaceAll(number, ",", "")
				if strings.Trim(count, "0") == "" {
					return "", false
				}
				return count, true
			}
			return "", false
		},
	}
}

// isDigits reports whether s is a plain run of digits
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isCounter accepts plain digits or abbreviated counters like "1.2K"
func isCounter(s string) bool {
	return isDigits(s) || strings.ContainsAny(s, "KM")
}
