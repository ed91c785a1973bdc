package templates

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/louisbranch/todolist/internal/services/todo/platform/i18n"
)

func localizer(t *testing.T, acceptLanguage string) i18n.Localizer {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if acceptLanguage != "" {
		req.Header.Set("Accept-Language", acceptLanguage)
	}
	return i18n.MustLoadEmbedded().Localizer(req)
}

func TestTodoPageEscapesUserContent(t *testing.T) {
	t.Parallel()

	loc := localizer(t, "")
	var buf bytes.Buffer
	page := Page(LayoutData{Title: "To-do list", Loc: loc, LiveFeed: true}, TodoPage(TodoPageData{
		Loc:         loc,
		DisplayName: "<b>Alice</b>",
		Todos: []TodoItem{
			{ID: "todo-2", Title: `<script>alert("x")</script>`, Completed: true},
			{ID: "todo-1", Title: "Buy milk"},
		},
	}))
	if err := page.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		`<html lang="en-US">`,
		"Welcome, &lt;b&gt;Alice&lt;/b&gt;",
		"&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;",
		`action="/todos/add"`,
		`data-done="true"`,
		`name="completed" value="true"`,
		`name="completed" value="false"`,
		`action="/todos/delete"`,
		"1 open of 2",
		"/todos/events",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("page missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, "<b>Alice</b>") {
		t.Fatal("display name was not escaped")
	}
	if strings.Index(html, "todo-2") > strings.Index(html, "todo-1") {
		t.Fatal("rows should keep the given order")
	}
}

func TestTodoPageEmptyState(t *testing.T) {
	t.Parallel()

	loc := localizer(t, "tr-TR")
	var buf bytes.Buffer
	if err := TodoPage(TodoPageData{Loc: loc, DisplayName: "Ayşe"}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "Henüz yapılacak bir şey yok.") {
		t.Fatalf("missing turkish empty state:\n%s", html)
	}
	if strings.Contains(html, `<ul class="todos">`) {
		t.Fatal("empty page should not render a list")
	}
}

func TestLoginPageShowsInvalidMessage(t *testing.T) {
	t.Parallel()

	loc := localizer(t, "")
	var buf bytes.Buffer
	if err := LoginPage(LoginPageData{Loc: loc, Invalid: true}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{`action="/login"`, `name="token"`, "That session token is not valid."} {
		if !strings.Contains(html, want) {
			t.Fatalf("login page missing %q:\n%s", want, html)
		}
	}

	buf.Reset()
	if err := LoginPage(LoginPageData{Loc: loc}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "not valid") {
		t.Fatal("valid login page should not show an error")
	}
}

func TestLayoutOmitsScriptWithoutLiveFeed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Page(LayoutData{Title: "Sign in", Loc: localizer(t, "")}, LoginPage(LoginPageData{Loc: localizer(t, "")})).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Fatal("login page should not open the live feed")
	}
	if !strings.Contains(buf.String(), "<title>Sign in</title>") {
		t.Fatalf("missing title:\n%s", buf.String())
	}
}

func TestPageStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loc := localizer(t, "")
	var buf bytes.Buffer
	err := Page(LayoutData{Title: "To-do list", Loc: loc}, TodoPage(TodoPageData{Loc: loc})).Render(ctx, &buf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("render err = %v, want context.Canceled", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("canceled render wrote %q", buf.String())
	}
}
