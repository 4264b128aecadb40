package main

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const defaultLang = "en"

var supportedLangs = []language.Tag{language.English, language.Russian}

//go:embed locales/*/*.yaml
var localeFS embed.FS

type localeFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Catalog holds the UI strings for every supported language and the
// printers that format them.
type Catalog struct {
	messages map[string]map[string]string
	printers map[string]*message.Printer
	matcher  language.Matcher
}

func LoadCatalog() (*Catalog, error) {
	return LoadCatalogFS(localeFS)
}

func LoadCatalogFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	c := &Catalog{
		messages: map[string]map[string]string{},
		printers: map[string]*message.Printer{},
		matcher:  language.NewMatcher(supportedLangs),
	}
	builder := catalog.NewBuilder(catalog.Fallback(language.English))

	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", path, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", path, err)
		}
		locale := strings.TrimSpace(file.Locale)
		if locale != filepath.Base(filepath.Dir(path)) {
			return nil, fmt.Errorf("locale %s: locale %q must match its directory", path, locale)
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", path, err)
		}

		if c.messages[locale] == nil {
			c.messages[locale] = map[string]string{}
		}
		for key, value := range file.Messages {
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("locale %s: blank message key", path)
			}
			if _, dup := c.messages[locale][key]; dup {
				return nil, fmt.Errorf("locale %s: duplicate key %q", path, key)
			}
			c.messages[locale][key] = value
			if err := builder.SetString(tag, key, value); err != nil {
				return nil, fmt.Errorf("locale %s: key %q: %w", path, key, err)
			}
		}
	}

	if _, ok := c.messages[defaultLang]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined", defaultLang)
	}
	for _, tag := range supportedLangs {
		base, _ := tag.Base()
		c.printers[base.String()] = message.NewPrinter(tag, message.Catalog(builder))
	}
	return c, nil
}

func (c *Catalog) printer(lang string) *message.Printer {
	return c.printers[normalizeLang(lang)]
}

// Text returns the localized message for key, formatted with args.
// Unknown keys are returned as is.
func (c *Catalog) Text(lang, key string, args ...any) string {
	return c.printer(lang).Sprintf(key, args...)
}

// FormatInt groups digits the way the language writes them.
func (c *Catalog) FormatInt(lang string, n int64) string {
	return c.printer(lang).Sprintf("%d", n)
}

// Messages returns a copy of every message for lang, falling back to the
// base language.
func (c *Catalog) Messages(lang string) map[string]string {
	src, ok := c.messages[normalizeLang(lang)]
	if !ok {
		src = c.messages[defaultLang]
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MatchLanguage picks a supported language from an explicit choice or an
// Accept-Language header.
func (c *Catalog) MatchLanguage(explicit, acceptLanguage string) string {
	if explicit = strings.ToLower(strings.TrimSpace(explicit)); explicit != "" {
		return normalizeLang(explicit)
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return defaultLang
	}
	tag, _, _ := c.matcher.Match(tags...)
	base, _ := tag.Base()
	return normalizeLang(base.String())
}

func normalizeLang(lang string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "ru") {
		return "ru"
	}
	return defaultLang
}
