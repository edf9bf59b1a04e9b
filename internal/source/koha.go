package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"duesync/internal/model"
	"duesync/internal/reconcile"
)

// Koha OPAC page structure.
const checkoutTableID = "checkoutst"

var (
	usernameField = Chain{ByID("userid"), ByName("login_userid")}
	passwordField = Chain{ByID("password"), ByName("login_password")}
	loginButton   = Chain{
		ByCSS(`input[type='submit'].btn.btn-primary[value='Log in']`),
		ByCSS(`input.btn.btn-primary[value='Log in']`),
		ByCSS(`fieldset.action input[type='submit'][value='Log in']`),
		ByCSS(`fieldset.action input[type='submit']`),
		ByCSS(`input[type='submit'].btn.btn-primary`),
		ByPosition{CSS: `input[type='submit']`},
	}

	titleCell    = Chain{ByCSS("span.biblio-title")}
	dueCell      = Chain{ByCSS("td.date_due"), ByPosition{CSS: "td[class*='date'], td[data-order]", Last: true}}
	checkoutCell = Chain{ByCSS("td.checkout_date")}
	authorCell   = Chain{ByCSS("td.author")}
)

// ErrNoCheckoutTable is returned when a page has no checkouts table, which
// usually means the login did not succeed.
var ErrNoCheckoutTable = errors.New("checkouts table not found")

// ParseCheckouts extracts one record per row of the checkouts table found
// in (or being) root. Rows without a usable due date are kept with a zero
// DueDate so they are reported as skipped.
func ParseCheckouts(root *goquery.Selection, loc *time.Location) ([]model.DueDateRecord, error) {
	table := root
	if !root.Is("#" + checkoutTableID) {
		table = root.Find("#" + checkoutTableID).First()
	}
	if table.Length() == 0 {
		return nil, ErrNoCheckoutTable
	}

	rows := table.Find("tbody tr")
	records := make([]model.DueDateRecord, 0, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		title := titleCell.Text(row)
		if title == "" {
			title = fmt.Sprintf("Book %d", i+1)
		}
		author := authorCell.Text(row)
		if author == "" {
			author = model.AuthorUnknown
		}
		records = append(records, reconcile.NewRecord(
			title,
			author,
			checkoutCell.Text(row),
			dueCell.Text(row),
			loc,
		))
	})
	return records, nil
}
