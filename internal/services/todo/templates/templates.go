// Package templates holds the todo page components. The *_templ.go files are
// generated from the .templ sources by templ generate.
package templates

import "github.com/louisbranch/todolist/internal/services/todo/platform/i18n"

// LayoutData configures the page shell.
type LayoutData struct {
	Title    string
	Loc      i18n.Localizer
	LiveFeed bool
}

// TodoItem is one rendered list row.
type TodoItem struct {
	ID        string
	Title     string
	Completed bool
}

// TodoPageData is the signed-in list page.
type TodoPageData struct {
	Loc         i18n.Localizer
	DisplayName string
	Todos       []TodoItem
}

// LoginPageData is the sign-in form.
type LoginPageData struct {
	Loc     i18n.Localizer
	Invalid bool
}

func openCount(items []TodoItem) int {
	open := 0
	for _, item := range items {
		if !item.Completed {
			open++
		}
	}
	return open
}
