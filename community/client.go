package community

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/source"
	"github.com/padraicbc/lottosync/syncerr"
)

const sourceName = "community board"

// Client reads the latest detail post from the forum board. It shares the
// session cookies of the underlying source client.
type Client struct {
	src    *source.Client
	cfg    config.CommunityConfig
	logger *zap.Logger
}

func NewClient(src *source.Client, cfg config.CommunityConfig, logger *zap.Logger) *Client {
	return &Client{src: src, cfg: cfg, logger: logger}
}

// Login signs in to the board. Boards readable anonymously leave LoginURL
// empty and skip this step.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.LoginURL == "" {
		return nil
	}
	form := map[string]string{
		c.cfg.LoginIDField: c.cfg.ID,
		c.cfg.LoginPWField: c.cfg.Password,
	}
	if _, err := c.src.PostForm(ctx, c.cfg.LoginURL, form, ""); err != nil {
		return err
	}
	c.logger.Debug("signed in to community board", zap.String("id", c.cfg.ID))
	return nil
}

// Latest returns the title and the line-preserved body text of the newest
// post on the board.
func (c *Client) Latest(ctx context.Context) (string, string, error) {
	board, err := c.src.Get(ctx, c.cfg.BoardURL, nil, "")
	if err != nil {
		return "", "", err
	}
	href, ok := board.Find(c.cfg.ArticleSel).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", "", syncerr.Format(sourceName, "no article link on board", nil)
	}
	link, err := resolve(c.cfg.BoardURL, href)
	if err != nil {
		return "", "", syncerr.Format(sourceName, "bad article link", err)
	}

	if err := c.src.Pace(ctx); err != nil {
		return "", "", err
	}
	article, err := c.src.Get(ctx, link, nil, c.cfg.BoardURL)
	if err != nil {
		return "", "", err
	}

	title := strings.TrimSpace(article.Find(c.cfg.TitleSel).First().Text())
	if title == "" {
		return "", "", syncerr.Format(sourceName, "article has no title", nil)
	}
	body := article.Find(c.cfg.BodySel).First()
	if body.Length() == 0 {
		return "", "", syncerr.Format(sourceName, "article has no body", nil)
	}

	var sb strings.Builder
	for _, n := range body.Nodes {
		writeText(&sb, n)
	}
	c.logger.Info("read community post", zap.String("title", title), zap.String("url", link))
	return title, sb.String(), nil
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

// writeText flattens n into text, breaking lines at block elements.
func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		case atom.Br:
			sb.WriteByte('\n')
			return
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeText(sb, child)
	}
	if n.Type == html.ElementNode && blockBreak(n.DataAtom) {
		sb.WriteByte('\n')
	}
}

func blockBreak(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4:
		return true
	}
	return false
}
