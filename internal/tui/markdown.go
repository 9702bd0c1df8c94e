package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	codeBlockRegex = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	headingRegex   = regexp.MustCompile(`<h([1-6]) id="[^"]*">(.*?)</h[1-6]>`)
	strongRegex    = regexp.MustCompile(`<strong>(.*?)</strong>`)
	emRegex        = regexp.MustCompile(`<em>(.*?)</em>`)
	linkRegex      = regexp.MustCompile(`<a href="([^"]*)">(.*?)</a>`)
	blockquoteRe   = regexp.MustCompile(`(?s)<blockquote>(.*?)</blockquote>`)
	listRegex      = regexp.MustCompile(`(?s)<(ul|ol)>(.*?)</(?:ul|ol)>`)
	liRegex        = regexp.MustCompile(`<li>(.*?)</li>`)
	htmlTagRegex   = regexp.MustCompile(`<[^>]+>`)
	multiNewline   = regexp.MustCompile(`\n{3,}`)
	inlineCodeRe   = regexp.MustCompile(`<code>([^<]+)</code>`)
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary))

	inlineCodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorAccent))

	codeBlockStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	blockquoteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFgMuted)).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color(colorBorder)).
			PaddingLeft(1)

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorAccent)).
			Underline(true)

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))
)

// markdownRenderer turns assistant markdown into styled terminal text with
// syntax-highlighted code fences. Rendering never fails: anything the
// pipeline cannot handle falls through as plain text.
type markdownRenderer struct {
	md        goldmark.Markdown
	formatter chroma.Formatter
	style     *chroma.Style
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{
		md: goldmark.New(
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
			goldmark.WithExtensions(extension.GFM),
		),
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("dracula"),
	}
}

func (r *markdownRenderer) Render(content string, width int) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.formatForTerminal(buf.String(), width)
}

func (r *markdownRenderer) formatForTerminal(htmlContent string, width int) string {
	result := htmlContent

	// Code fences first, parked behind placeholders so the remaining
	// transforms cannot mangle highlighted output.
	var codeBlocks []string
	result = codeBlockRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := codeBlockRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		code := decodeHTMLEntities(matches[2])
		highlighted := r.highlight(code, matches[1])

		codeWidth := width - 6
		if codeWidth < 20 {
			codeWidth = 20
		}
		styled := codeBlockStyle.Width(codeWidth).Render(highlighted)

		index := len(codeBlocks)
		codeBlocks = append(codeBlocks, styled)
		return fmt.Sprintf("\n{{CODE_BLOCK_%d}}\n", index)
	})

	result = inlineCodeRe.ReplaceAllStringFunc(result, func(m string) string {
		matches := inlineCodeRe.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return inlineCodeStyle.Render(decodeHTMLEntities(matches[1]))
	})

	result = headingRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := headingRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		return headingStyle.Render(matches[2]) + "\n"
	})

	result = strongRegex.ReplaceAllString(result, "\x1b[1m$1\x1b[0m")
	result = emRegex.ReplaceAllString(result, "\x1b[3m$1\x1b[0m")

	result = linkRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := linkRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		if matches[1] == matches[2] {
			return linkStyle.Render(matches[1])
		}
		return linkStyle.Render(fmt.Sprintf("%s (%s)", matches[2], matches[1]))
	})

	result = blockquoteRe.ReplaceAllStringFunc(result, func(m string) string {
		matches := blockquoteRe.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		content := htmlTagRegex.ReplaceAllString(strings.TrimSpace(matches[1]), "")
		return blockquoteStyle.Render(content) + "\n"
	})

	result = listRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := listRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		ordered := matches[1] == "ol"
		items := liRegex.FindAllStringSubmatch(matches[2], -1)
		var list strings.Builder
		for i, item := range items {
			if len(item) < 2 {
				continue
			}
			marker := "• "
			if ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			list.WriteString(bulletStyle.Render("  " + marker))
			list.WriteString(htmlTagRegex.ReplaceAllString(item[1], ""))
			list.WriteString("\n")
		}
		return list.String()
	})

	result = strings.ReplaceAll(result, "<p>", "")
	result = strings.ReplaceAll(result, "</p>", "\n")
	for _, br := range []string{"<br>", "<br/>", "<br />"} {
		result = strings.ReplaceAll(result, br, "\n")
	}

	for i, codeBlock := range codeBlocks {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{CODE_BLOCK_%d}}", i), codeBlock)
	}

	result = htmlTagRegex.ReplaceAllString(result, "")
	result = decodeHTMLEntities(result)
	result = multiNewline.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

func (r *markdownRenderer) highlight(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

var htmlEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
	"&#x27;": "'",
	"&#x60;": "`",
	"&nbsp;": " ",
}

func decodeHTMLEntities(s string) string {
	for old, repl := range htmlEntities {
		s = strings.ReplaceAll(s, old, repl)
	}
	return s
}
