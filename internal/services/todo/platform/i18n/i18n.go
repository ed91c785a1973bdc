// Package i18n loads the UI copy catalogs and resolves the request language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the source locale every other catalog must cover.
const BaseLocale = "en-US"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds the registered UI copy for every supported locale.
type Catalog struct {
	builder   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
	keys      []string
}

// LoadEmbedded loads the catalogs compiled into the binary.
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embeddedLocales, "locales")
}

// MustLoadEmbedded is LoadEmbedded for package initialization.
func MustLoadEmbedded() *Catalog {
	c, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFromFS reads every <locale>.yaml under dir. The base locale must be
// present and every other locale must translate each of its keys.
func LoadFromFS(fsys fs.FS, dir string) (*Catalog, error) {
	paths, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)

	files := make(map[string]localeFile, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		want := strings.TrimSuffix(path.Base(p), ".yaml")
		if strings.TrimSpace(file.Locale) != want {
			return nil, fmt.Errorf("catalog %s: locale %q must match file name %q", p, file.Locale, want)
		}
		if len(file.Messages) == 0 {
			return nil, fmt.Errorf("catalog %s: messages are required", p)
		}
		files[want] = file
	}

	base, ok := files[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	keys := make([]string, 0, len(base.Messages))
	for key := range base.Messages {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	baseTag := language.MustParse(BaseLocale)
	c := &Catalog{
		builder:   catalog.NewBuilder(catalog.Fallback(baseTag)),
		supported: []language.Tag{baseTag},
		keys:      keys,
	}
	locales := make([]string, 0, len(files))
	for locale := range files {
		if locale != BaseLocale {
			locales = append(locales, locale)
		}
	}
	sort.Strings(locales)
	for _, locale := range append([]string{BaseLocale}, locales...) {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		if locale != BaseLocale {
			c.supported = append(c.supported, tag)
		}
		messages := files[locale].Messages
		for _, key := range keys {
			value, ok := messages[key]
			if !ok {
				return nil, fmt.Errorf("catalog %s: missing key %q", locale, key)
			}
			if err := c.builder.SetString(tag, key, value); err != nil {
				return nil, fmt.Errorf("register %s %q: %w", locale, key, err)
			}
		}
		for key := range messages {
			if _, ok := base.Messages[key]; !ok {
				return nil, fmt.Errorf("catalog %s: key %q is not in %s", locale, key, BaseLocale)
			}
		}
	}
	c.matcher = language.NewMatcher(c.supported)
	return c, nil
}

// Supported returns the locales in matching order, base locale first.
func (c *Catalog) Supported() []language.Tag {
	return append([]language.Tag(nil), c.supported...)
}

// Match picks the supported locale closest to an Accept-Language value.
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.supported[0]
	}
	_, index, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return c.supported[0]
	}
	return c.supported[index]
}

// Localizer returns the copy printer for r's preferred language.
func (c *Catalog) Localizer(r *http.Request) Localizer {
	header := ""
	if r != nil {
		header = r.Header.Get("Accept-Language")
	}
	tag := c.Match(header)
	return Localizer{
		Tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(c.builder)),
	}
}

// Localizer renders catalog keys for one language.
type Localizer struct {
	Tag     language.Tag
	printer *message.Printer
}

// T renders key with optional format arguments.
func (l Localizer) T(key string, args ...any) string {
	if l.printer == nil {
		return key
	}
	return l.printer.Sprintf(key, args...)
}

// Lang returns the BCP 47 tag for the html lang attribute.
func (l Localizer) Lang() string {
	return l.Tag.String()
}
