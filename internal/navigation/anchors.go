// internal/navigation/anchors.go
package navigation

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

// anchorProfile describes how to recognize an anchor page and find its targets.
type anchorProfile struct {
	// ready matches once the anchor has rendered.
	ready string
	// targets are tried in order; the first selector with matches wins.
	targets []string
	// links are tried inside a target for the element to click. The target
	// itself is clicked when none match.
	links []string
	// label and status read a target's title and completion text.
	label  string
	status string
}

var profiles = map[schemas.AnchorKind]anchorProfile{
	schemas.AnchorOutline: {
		ready:   `div[data-e2e="courseNavigation"]`,
		targets: []string{`a[data-test="rc-WeekNavigationItem"]`},
	},
	schemas.AnchorGrades: {
		ready: `.rc-GradeSummaryWidget, .gradebook, div[role="grid"][aria-label="Assignments Table"], .rc-AssignmentsTableRowCds`,
		targets: []string{
			`.rc-AssignmentsTableRowCds`,
			`div[role="row"]`,
		},
		links: []string{
			`a[data-click-key="open_course_home.grades_page.click.grades_page_item_link"]`,
			`a`,
		},
		label:  `div[data-e2e="item-title-text"] a`,
		status: `div.status-column-text p`,
	},
}

const (
	coverButtonSelector = `button[data-testid="CoverPageActionButton"]`
	gradesNavSelector   = `li[data-e2e="gradesNavigationItem"]`
)

// coverLabels are the button captions that lead from a cover page into the content.
var coverLabels = []string{"resume", "start"}

var courseSlug = regexp.MustCompile(`^/learn/([^/]+)/?$`)

// NormalizeCourseURL turns a bare course link such as
// https://www.coursera.org/learn/ml into its first-module page.
func NormalizeCourseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid course url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid course url %q: scheme and host are required", raw)
	}
	if m := courseSlug.FindStringSubmatch(u.Path); m != nil {
		u.Path = "/learn/" + m[1] + "/home/module/1"
	}
	return u.String(), nil
}

// sameURL compares two locations ignoring the fragment and a trailing slash.
func sameURL(a, b string) bool {
	return canonical(a) == canonical(b)
}

func canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/")
	}
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// linksToAnchor reports whether link points at the anchor page itself, as the
// first module of a course outline does.
func linksToAnchor(ctx context.Context, page schemas.Page, link schemas.Node, anchorURL string) bool {
	href, ok, err := link.Attribute(ctx, "href")
	if err != nil || !ok || strings.TrimSpace(href) == "" {
		return false
	}
	loc, err := page.Location(ctx)
	if err != nil {
		return false
	}
	base, err := url.Parse(loc)
	if err != nil {
		return false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	return sameURL(base.ResolveReference(ref).String(), anchorURL)
}

// isCoverCaption reports whether a button caption starts with Resume or Start.
func isCoverCaption(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, l := range coverLabels {
		if strings.HasPrefix(text, l) {
			return true
		}
	}
	return false
}
