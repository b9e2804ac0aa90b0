package render

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

const renderScoreThreshold = 4

// NeedsRendering scores raw HTML for signs that the page builds its content
// client-side (SPA mount points, framework markers, script-heavy bodies).
// Pages below the threshold are served from their initial markup, saving a
// browser session.
func NeedsRendering(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	score := 0
	lower := bytes.ToLower(data)

	if hasMountPoint(lower, "root") || hasMountPoint(lower, "app") || hasMountPoint(lower, "__next") {
		score += 3
	}
	if bytes.Contains(lower, []byte("<noscript")) {
		score += 2
	}
	if bytes.Contains(data, []byte(`content="Next.js"`)) ||
		bytes.Contains(data, []byte(`data-reactroot`)) ||
		bytes.Contains(data, []byte(`ng-app`)) ||
		bytes.Contains(data, []byte(`data-v-`)) {
		score += 3
	}

	scriptBytes, textBytes := contentRatio(data)
	if textBytes > 0 && scriptBytes > textBytes*3 {
		score += 2
	} else if textBytes == 0 && scriptBytes > 0 {
		score += 2
	}

	if len(strings.Fields(visibleBodyText(data))) < 30 {
		score += 2
	}

	return score >= renderScoreThreshold
}

func hasMountPoint(lower []byte, id string) bool {
	return bytes.Contains(lower, []byte(`<div id="`+id+`"`)) ||
		bytes.Contains(lower, []byte(`<div id='`+id+`'`))
}

func contentRatio(data []byte) (scriptBytes, textBytes int) {
	node, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					scriptBytes += len(c.Data)
				}
			}
			return
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				textBytes += len(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return
}

func visibleBodyText(data []byte) string {
	node, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	body := findElement(node, "body")
	if body == nil {
		return ""
	}
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				buf.WriteString(trimmed)
				buf.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)
	return buf.String()
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
