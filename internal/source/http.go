package source

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	appLog "duesync/internal/log"
	"duesync/internal/model"
)

// Portal scrapes the checkouts page over plain HTTP by submitting the login
// form directly. It needs no browser but only works while the portal renders
// the checkouts table server side.
type Portal struct {
	PortalURL string
	Username  string
	Password  string
	Location  *time.Location
	Timeout   time.Duration
	UserAgent string
}

type loginForm struct {
	action string
	fields map[string]string
}

func (p *Portal) Records(ctx context.Context) ([]model.DueDateRecord, error) {
	if p.PortalURL == "" {
		return nil, fmt.Errorf("http: portal URL is required")
	}

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeoutOrDefault(p.Timeout))
	if p.UserAgent != "" {
		c.UserAgent = p.UserAgent
	}

	var (
		form     loginForm
		records  []model.DueDateRecord
		parseErr error
		found    bool
	)

	c.OnHTML("form", func(e *colly.HTMLElement) {
		if form.action != "" {
			return
		}
		f, ok := p.extractLoginForm(e.DOM)
		if !ok {
			return
		}
		if f.action == "" {
			f.action = e.Request.URL.String()
		} else {
			f.action = e.Request.AbsoluteURL(f.action)
		}
		form = f
	})

	appLog.Info("http: opening portal", "url", p.PortalURL)
	if err := c.Visit(p.PortalURL); err != nil {
		return nil, fmt.Errorf("http: open portal: %w", err)
	}
	if form.action == "" {
		return nil, fmt.Errorf("http: login form not found on %s", p.PortalURL)
	}

	// Clones share the cookie jar, so the session survives across requests.
	post := c.Clone()
	post.OnHTML("#"+checkoutTableID, func(e *colly.HTMLElement) {
		found = true
		records, parseErr = ParseCheckouts(e.DOM, p.Location)
	})

	if err := post.Post(form.action, form.fields); err != nil {
		return nil, fmt.Errorf("http: login: %w", err)
	}
	if !found {
		// Some portals answer the login with a redirect page only.
		if err := post.Visit(p.PortalURL); err != nil {
			return nil, fmt.Errorf("http: reload portal: %w", err)
		}
	}
	if !found {
		return nil, fmt.Errorf("http: %w after login (check credentials)", ErrNoCheckoutTable)
	}
	return records, parseErr
}

// extractLoginForm collects the hidden inputs of a form that carries both
// credential fields, plus the credentials under the form's field names.
func (p *Portal) extractLoginForm(form *goquery.Selection) (loginForm, bool) {
	user, ok := usernameField.Find(form)
	if !ok {
		return loginForm{}, false
	}
	pass, ok := passwordField.Find(form)
	if !ok {
		return loginForm{}, false
	}
	userName, _ := user.Attr("name")
	passName, _ := pass.Attr("name")
	if userName == "" || passName == "" {
		return loginForm{}, false
	}

	fields := make(map[string]string)
	form.Find("input[type='hidden']").Each(func(_ int, in *goquery.Selection) {
		if name, ok := in.Attr("name"); ok && name != "" {
			fields[name] = in.AttrOr("value", "")
		}
	})
	fields[userName] = p.Username
	fields[passName] = p.Password

	action, _ := form.Attr("action")
	return loginForm{action: action, fields: fields}, true
}
