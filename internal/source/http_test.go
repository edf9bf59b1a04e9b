package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!DOCTYPE html>
<html><body>
<form action="/cgi-bin/koha/opac-user.pl" method="post" name="auth" id="auth">
  <input type="hidden" name="koha_login_context" value="opac">
  <fieldset>
    <input type="text" id="userid" name="login_userid">
    <input type="password" id="password" name="login_password">
  </fieldset>
  <fieldset class="action"><input type="submit" value="Log in" class="btn btn-primary"></fieldset>
</form>
</body></html>`

func newPortalServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	checkouts, err := os.ReadFile("testdata/checkouts.html")
	require.NoError(t, err)

	var posts []string
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/koha/opac-user.pl", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			posts = append(posts, fmt.Sprintf("%s/%s/%s",
				r.PostForm.Get("login_userid"),
				r.PostForm.Get("login_password"),
				r.PostForm.Get("koha_login_context")))
			if r.PostForm.Get("login_userid") == "reader" && r.PostForm.Get("login_password") == "s3cret" {
				http.SetCookie(w, &http.Cookie{Name: "CGISESSID", Value: "ok", Path: "/"})
				_, _ = w.Write(checkouts)
				return
			}
			_, _ = w.Write([]byte(loginPage))
			return
		}
		if c, err := r.Cookie("CGISESSID"); err == nil && c.Value == "ok" {
			_, _ = w.Write(checkouts)
			return
		}
		_, _ = w.Write([]byte(loginPage))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &posts
}

func TestPortalRecords(t *testing.T) {
	srv, posts := newPortalServer(t)
	p := &Portal{
		PortalURL: srv.URL + "/cgi-bin/koha/opac-user.pl",
		Username:  "reader",
		Password:  "s3cret",
		Location:  kolkata(t),
	}

	records, err := p.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "The Go Programming Language", records[0].Title)
	assert.Equal(t, []string{"reader/s3cret/opac"}, *posts)
}

func TestPortalBadCredentials(t *testing.T) {
	srv, _ := newPortalServer(t)
	p := &Portal{
		PortalURL: srv.URL + "/cgi-bin/koha/opac-user.pl",
		Username:  "reader",
		Password:  "wrong",
		Location:  kolkata(t),
	}

	_, err := p.Records(context.Background())
	assert.ErrorIs(t, err, ErrNoCheckoutTable)
}

func TestPortalWithoutLoginForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>maintenance</body></html>`))
	}))
	defer srv.Close()

	_, err := (&Portal{PortalURL: srv.URL, Location: kolkata(t)}).Records(context.Background())
	assert.Error(t, err)
}
