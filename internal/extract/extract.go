// Package extract converts fetched HTML into normalized text for
// summarization.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Strategy selects the primary extraction approach.
type Strategy string

// Supported strategies.
const (
	// StrategyMarkdown converts the whole document to markdown, preserving
	// headings and link targets.
	StrategyMarkdown Strategy = "markdown"
	// StrategyArticle isolates the main article content and returns its text.
	StrategyArticle Strategy = "article"
)

// maxTraversalNodes bounds the plain-text fallback walk so pathological
// documents cannot pin a worker.
const maxTraversalNodes = 200_000

// Extractor implements pipeline.Extractor with a layered fallback: primary
// strategy, then readability, then a bounded plain-text walk. Extraction
// never fails on malformed HTML, only on empty input.
type Extractor struct {
	strategy Strategy
	logger   *zap.Logger
}

// New builds an Extractor. An unknown strategy falls back to markdown.
func New(strategy Strategy, logger *zap.Logger) *Extractor {
	if strategy != StrategyMarkdown && strategy != StrategyArticle {
		strategy = StrategyMarkdown
	}
	return &Extractor{strategy: strategy, logger: logger}
}

// Extract converts page HTML to text using the configured strategy.
func (e *Extractor) Extract(pageHTML, pageURL string) (string, error) {
	pageHTML = strings.TrimSpace(pageHTML)
	if pageHTML == "" {
		return "", fmt.Errorf("empty document")
	}

	if e.strategy == StrategyMarkdown {
		if md, err := htmltomarkdown.ConvertString(pageHTML); err == nil {
			if md = strings.TrimSpace(md); md != "" {
				return md, nil
			}
		} else {
			e.logger.Debug("markdown conversion failed, falling back",
				zap.String("url", pageURL),
				zap.Error(err),
			)
		}
	}

	if text := articleText(pageHTML, pageURL); text != "" {
		return text, nil
	}

	text, err := plainText(pageHTML)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("document has no extractable text")
	}
	e.logger.Debug("used plain-text fallback", zap.String("url", pageURL))
	return text, nil
}

// articleText runs a readability pass and returns the article's text, or ""
// if readability fails or finds nothing.
func articleText(pageHTML, pageURL string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(pageHTML), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// plainText walks the document iteratively and joins visible text nodes.
// Script, style, and template subtrees are skipped. The walk is bounded by
// maxTraversalNodes.
func plainText(pageHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	visited := 0
	stack := make([]*html.Node, 0, 64)
	for _, node := range root.Nodes {
		stack = append(stack, node)
	}
	for len(stack) > 0 && visited < maxTraversalNodes {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++

		switch node.Type {
		case html.TextNode:
			if text := strings.TrimSpace(node.Data); text != "" {
				parts = append(parts, text)
			}
			continue
		case html.ElementNode:
			switch node.Data {
			case "script", "style", "template", "noscript":
				continue
			}
		}
		// Push children in reverse so text is collected in document order.
		for child := node.LastChild; child != nil; child = child.PrevSibling {
			stack = append(stack, child)
		}
	}
	return strings.Join(parts, " "), nil
}
