package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	appLog "duesync/internal/log"
	"duesync/internal/model"
)

// Browser scrapes the checkouts page with a headless Chromium instance
// driven over the DevTools protocol.
type Browser struct {
	PortalURL string
	Username  string
	Password  string
	Location  *time.Location

	// Timeout bounds the whole login and extraction sequence.
	Timeout time.Duration
}

// Records logs in to the portal and parses the checkouts table.
func (b *Browser) Records(parentCtx context.Context) ([]model.DueDateRecord, error) {
	if b.PortalURL == "" {
		return nil, fmt.Errorf("browser: portal URL is required")
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, timeoutOrDefault(b.Timeout))
	defer timeoutCancel()

	appLog.Info("browser: opening portal", "url", b.PortalURL)
	if err := chromedp.Run(ctx,
		chromedp.Navigate(b.PortalURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("browser: navigate: %w", err)
	}

	userSel, err := locateInBrowser(ctx, usernameField)
	if err != nil {
		return nil, err
	}
	passSel, err := locateInBrowser(ctx, passwordField)
	if err != nil {
		return nil, err
	}
	submitSel, err := locateInBrowser(ctx, loginButton)
	if err != nil {
		return nil, err
	}

	var tableHTML string
	if err := chromedp.Run(ctx,
		chromedp.SendKeys(userSel, b.Username, chromedp.ByQuery),
		chromedp.SendKeys(passSel, b.Password, chromedp.ByQuery),
		chromedp.Click(submitSel, chromedp.ByQuery),
		chromedp.WaitVisible("#"+checkoutTableID, chromedp.ByQuery),
		chromedp.OuterHTML("#"+checkoutTableID, &tableHTML, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("browser: login and read checkouts: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return nil, fmt.Errorf("browser: parse checkouts: %w", err)
	}
	return ParseCheckouts(doc.Selection, b.Location)
}

// locateInBrowser returns the selector of the first locator in chain that
// matches something on the current page.
func locateInBrowser(ctx context.Context, chain Chain) (string, error) {
	for _, l := range chain {
		var nodes []*cdp.Node
		if err := chromedp.Run(ctx,
			chromedp.Nodes(l.Selector(), &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		); err != nil {
			return "", fmt.Errorf("browser: query %s: %w", l.Selector(), err)
		}
		if len(nodes) > 0 {
			return l.Selector(), nil
		}
	}
	return "", fmt.Errorf("browser: no element matched %s", chain)
}
